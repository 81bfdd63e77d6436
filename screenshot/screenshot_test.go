package screenshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(y), G: 10, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fakeBrowser answers the DevTools commands a capture issues.
type fakeBrowser struct {
	t       *testing.T
	shot    []byte
	failNav string

	mu      sync.Mutex
	methods []string
	params  map[string]json.RawMessage
}

func (f *fakeBrowser) record(msg cdpMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods = append(f.methods, msg.Method)
	if f.params == nil {
		f.params = make(map[string]json.RawMessage)
	}
	f.params[msg.Method] = msg.Params
}

func (f *fakeBrowser) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func (f *fakeBrowser) param(method string) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params[method]
}

func (f *fakeBrowser) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade: %v", err)
		return
	}
	defer conn.Close()

	const session = "S1"
	for {
		var msg cdpMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		f.record(msg)

		var result any = map[string]any{}
		var events []cdpMessage
		switch msg.Method {
		case "Target.createTarget":
			result = map[string]any{"targetId": "T1"}
		case "Target.attachToTarget":
			result = map[string]any{"sessionId": session}
		case "Page.navigate":
			if f.failNav != "" {
				result = map[string]any{"frameId": "F1", "errorText": f.failNav}
				break
			}
			result = map[string]any{"frameId": "F1"}
			events = append(events,
				cdpMessage{Method: "Page.loadEventFired", SessionID: "other"},
				cdpMessage{Method: "Page.domContentEventFired", SessionID: session},
				cdpMessage{Method: "Page.loadEventFired", SessionID: session},
			)
		case "Page.getLayoutMetrics":
			result = map[string]any{
				"contentSize":    map[string]any{"width": 2000, "height": 3000},
				"cssContentSize": map[string]any{"width": 1280, "height": 1600},
			}
		case "Page.captureScreenshot":
			result = map[string]any{"data": base64.StdEncoding.EncodeToString(f.shot)}
		case "Browser.close":
		case "Unknown.method":
			conn.WriteJSON(map[string]any{
				"id":    msg.ID,
				"error": map[string]any{"code": -32601, "message": "not found"},
			})
			continue
		}

		raw, _ := json.Marshal(result)
		if err := conn.WriteJSON(cdpMessage{ID: msg.ID, SessionID: msg.SessionID, Result: raw}); err != nil {
			return
		}
		for _, ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func newFakeChrome(t *testing.T, fb *fakeBrowser) (*Chrome, *bool) {
	t.Helper()
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	stopped := false
	c := NewChrome(Config{Settle: time.Millisecond, Timeout: 5 * time.Second})
	c.launch = func(ctx context.Context) (string, func(), error) {
		return "ws" + strings.TrimPrefix(srv.URL, "http"), func() { stopped = true }, nil
	}
	return c, &stopped
}

func writePage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(path, []byte("<h1>hi</h1>"), 0o644))
	return path
}

func TestChromeCapture(t *testing.T) {
	fb := &fakeBrowser{t: t, shot: testPNG(t, 40, 30)}
	c, stopped := newFakeChrome(t, fb)
	path := writePage(t)

	img, err := c.Capture(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Width)
	assert.Equal(t, 30, img.Height)
	assert.Equal(t, fb.shot, img.PNG)
	assert.True(t, *stopped, "browser should be stopped")

	assert.Equal(t, []string{
		"Target.createTarget",
		"Target.attachToTarget",
		"Page.enable",
		"Emulation.setDeviceMetricsOverride",
		"Page.navigate",
		"Page.getLayoutMetrics",
		"Page.captureScreenshot",
		"Browser.close",
	}, fb.calls())

	var nav struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(fb.param("Page.navigate"), &nav))
	assert.True(t, strings.HasPrefix(nav.URL, "file:///"), nav.URL)
	assert.True(t, strings.HasSuffix(nav.URL, "/index.html"), nav.URL)

	// The clip covers the CSS content size, never less than the viewport.
	var shot struct {
		CaptureBeyondViewport bool `json:"captureBeyondViewport"`
		Clip                  struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"clip"`
	}
	require.NoError(t, json.Unmarshal(fb.param("Page.captureScreenshot"), &shot))
	assert.True(t, shot.CaptureBeyondViewport)
	assert.Equal(t, 1280.0, shot.Clip.Width)
	assert.Equal(t, 1600.0, shot.Clip.Height)
}

func TestChromeCaptureNavigateError(t *testing.T) {
	fb := &fakeBrowser{t: t, shot: testPNG(t, 4, 4), failNav: "net::ERR_FILE_NOT_FOUND"}
	c, stopped := newFakeChrome(t, fb)

	_, err := c.Capture(context.Background(), writePage(t))
	require.ErrorIs(t, err, ErrCaptureFailed)
	assert.Contains(t, err.Error(), "ERR_FILE_NOT_FOUND")
	assert.True(t, *stopped)
}

func TestChromeCaptureMissingFile(t *testing.T) {
	fb := &fakeBrowser{t: t}
	c, _ := newFakeChrome(t, fb)

	_, err := c.Capture(context.Background(), filepath.Join(t.TempDir(), "missing.html"))
	require.ErrorIs(t, err, ErrCaptureFailed)
	assert.Empty(t, fb.calls(), "browser must not be contacted")
}

func TestChromeLaunchFailure(t *testing.T) {
	c := NewChrome(Config{})
	c.launch = func(ctx context.Context) (string, func(), error) {
		return "", nil, ErrBrowserNotFound
	}
	_, err := c.Capture(context.Background(), writePage(t))
	require.ErrorIs(t, err, ErrBrowserNotFound)
}

func TestCDPErrorResponse(t *testing.T) {
	fb := &fakeBrowser{t: t}
	srv := httptest.NewServer(fb)
	defer srv.Close()

	client, err := dialCDP(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	defer client.Close()

	err = client.call(context.Background(), "", "Unknown.method", nil, nil)
	var cdpErr *cdpError
	require.ErrorAs(t, err, &cdpErr)
	assert.Equal(t, -32601, cdpErr.Code)
}

func TestCDPCallAfterClose(t *testing.T) {
	fb := &fakeBrowser{t: t}
	srv := httptest.NewServer(fb)
	defer srv.Close()

	client, err := dialCDP(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	client.Close()
	<-client.done

	err = client.call(context.Background(), "", "Browser.close", nil, nil)
	require.ErrorIs(t, err, errConnClosed)
}

func TestNewChromeDefaults(t *testing.T) {
	c := NewChrome(Config{Settle: -time.Second})
	w, h := c.Viewport()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 800, h)
	assert.Equal(t, DefaultBrowsers, c.cfg.Browser)
	assert.Zero(t, c.cfg.Settle)
	assert.Equal(t, 20*time.Second, c.cfg.Timeout)
}

func TestFileURL(t *testing.T) {
	assert.Equal(t, "file:///tmp/a%20b/index.html", fileURL("/tmp/a b/index.html"))
	assert.Equal(t, "file:///tmp/100%25.html", fileURL("/tmp/100%.html"))
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage(testPNG(t, 7, 3))
	require.NoError(t, err)
	assert.Equal(t, 7, img.Width)
	assert.Equal(t, 3, img.Height)

	_, err = DecodeImage([]byte("not a png"))
	require.Error(t, err)
}

func TestSlice(t *testing.T) {
	img, err := DecodeImage(testPNG(t, 10, 25))
	require.NoError(t, err)

	parts, err := Slice(img, 10)
	require.NoError(t, err)
	require.Len(t, parts, 3)

	heights := []int{10, 10, 5}
	for i, p := range parts {
		assert.Equal(t, 10, p.Width)
		assert.Equal(t, heights[i], p.Height)

		decoded, err := png.Decode(bytes.NewReader(p.PNG))
		require.NoError(t, err)
		assert.Equal(t, heights[i], decoded.Bounds().Dy())
		// First row of each slice carries the source row's colour.
		r, _, _, _ := decoded.At(decoded.Bounds().Min.X, decoded.Bounds().Min.Y).RGBA()
		assert.Equal(t, uint32(i*10), r>>8)
	}
}

func TestSliceFits(t *testing.T) {
	img, err := DecodeImage(testPNG(t, 10, 8))
	require.NoError(t, err)

	parts, err := Slice(img, 8)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, img.PNG, parts[0].PNG)

	_, err = Slice(img, 0)
	require.Error(t, err)
}
