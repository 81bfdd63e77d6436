package screenshot

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/caffeineduck/code2doc/internal/procgroup"
	"github.com/caffeineduck/code2doc/language"
)

// DefaultBrowsers lists the executables tried when Config.Browser is empty.
const DefaultBrowsers = "chromium|chromium-browser|google-chrome|google-chrome-stable|chrome|microsoft-edge|msedge"

// Config controls the headless browser.
type Config struct {
	// Browser is an executable path or a "|"-separated list of names to look
	// up on PATH.
	Browser        string
	ViewportWidth  int
	ViewportHeight int
	// Settle is how long to wait after the load event before capturing, so
	// scripts and web fonts can finish.
	Settle time.Duration
	// Timeout bounds one capture including browser startup.
	Timeout time.Duration
	// Toolchain resolves Browser; nil uses a private cache.
	Toolchain *language.Toolchain
	Logger    *slog.Logger
}

// DefaultConfig returns a 1280x800 viewport with a 20s timeout.
func DefaultConfig() Config {
	return Config{
		Browser:        DefaultBrowsers,
		ViewportWidth:  1280,
		ViewportHeight: 800,
		Settle:         500 * time.Millisecond,
		Timeout:        20 * time.Second,
	}
}

// launchFunc starts a browser and returns its DevTools websocket URL and a
// function that stops it.
type launchFunc func(ctx context.Context) (wsURL string, stop func(), err error)

// Chrome captures pages with a Chromium-based browser driven over the
// DevTools protocol. Each capture starts a fresh browser.
type Chrome struct {
	cfg    Config
	launch launchFunc
	log    *slog.Logger
}

// NewChrome returns a Chrome capturer. Zero fields in cfg take their
// defaults.
func NewChrome(cfg Config) *Chrome {
	def := DefaultConfig()
	if cfg.Browser == "" {
		cfg.Browser = def.Browser
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = def.ViewportWidth
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = def.ViewportHeight
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Chrome{cfg: cfg, log: log}
	c.launch = c.launchBrowser
	return c
}

// Viewport returns the configured viewport size in pixels.
func (c *Chrome) Viewport() (width, height int) {
	return c.cfg.ViewportWidth, c.cfg.ViewportHeight
}

// Capture renders path and returns a screenshot of the whole page.
func (c *Chrome) Capture(ctx context.Context, path string) (Image, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	abs, err := filepath.Abs(path)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	wsURL, stop, err := c.launch(ctx)
	if err != nil {
		return Image{}, err
	}
	defer stop()

	client, err := dialCDP(ctx, wsURL)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	defer client.Close()

	img, err := c.capture(ctx, client, fileURL(abs))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	// Best effort; stop kills the process anyway.
	_ = client.call(ctx, "", "Browser.close", nil, nil)

	c.log.Debug("captured", "file", filepath.Base(abs), "width", img.Width, "height", img.Height)
	return img, nil
}

func (c *Chrome) capture(ctx context.Context, client *cdpClient, target string) (Image, error) {
	var created struct {
		TargetID string `json:"targetId"`
	}
	if err := client.call(ctx, "", "Target.createTarget", map[string]any{"url": "about:blank"}, &created); err != nil {
		return Image{}, err
	}

	var attached struct {
		SessionID string `json:"sessionId"`
	}
	if err := client.call(ctx, "", "Target.attachToTarget", map[string]any{
		"targetId": created.TargetID,
		"flatten":  true,
	}, &attached); err != nil {
		return Image{}, err
	}
	session := attached.SessionID

	if err := client.call(ctx, session, "Page.enable", nil, nil); err != nil {
		return Image{}, err
	}
	if err := client.call(ctx, session, "Emulation.setDeviceMetricsOverride", map[string]any{
		"width":             c.cfg.ViewportWidth,
		"height":            c.cfg.ViewportHeight,
		"deviceScaleFactor": 1,
		"mobile":            false,
	}, nil); err != nil {
		return Image{}, err
	}

	var nav struct {
		ErrorText string `json:"errorText"`
	}
	if err := client.call(ctx, session, "Page.navigate", map[string]any{"url": target}, &nav); err != nil {
		return Image{}, err
	}
	if nav.ErrorText != "" {
		return Image{}, fmt.Errorf("navigate: %s", nav.ErrorText)
	}
	if _, err := client.waitEvent(ctx, session, "Page.loadEventFired"); err != nil {
		return Image{}, err
	}

	if c.cfg.Settle > 0 {
		select {
		case <-ctx.Done():
			return Image{}, ctx.Err()
		case <-time.After(c.cfg.Settle):
		}
	}

	var metrics struct {
		ContentSize    size `json:"contentSize"`
		CSSContentSize size `json:"cssContentSize"`
	}
	if err := client.call(ctx, session, "Page.getLayoutMetrics", nil, &metrics); err != nil {
		return Image{}, err
	}
	content := metrics.CSSContentSize
	if content.Width == 0 || content.Height == 0 {
		content = metrics.ContentSize
	}
	width := max(float64(c.cfg.ViewportWidth), content.Width)
	height := max(float64(c.cfg.ViewportHeight), content.Height)

	var shot struct {
		Data string `json:"data"`
	}
	if err := client.call(ctx, session, "Page.captureScreenshot", map[string]any{
		"format":                "png",
		"captureBeyondViewport": true,
		"clip": map[string]any{
			"x": 0, "y": 0,
			"width":  width,
			"height": height,
			"scale":  1,
		},
	}, &shot); err != nil {
		return Image{}, err
	}

	data, err := base64.StdEncoding.DecodeString(shot.Data)
	if err != nil {
		return Image{}, fmt.Errorf("decode screenshot: %w", err)
	}
	return DecodeImage(data)
}

type size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u.String()
}

// launchBrowser starts the browser with an ephemeral profile and waits for
// it to announce its DevTools endpoint on stderr.
func (c *Chrome) launchBrowser(ctx context.Context) (string, func(), error) {
	tc := c.cfg.Toolchain
	if tc == nil {
		var err error
		if tc, err = language.NewToolchain(16); err != nil {
			return "", nil, err
		}
	}
	bin, err := tc.Resolve(c.cfg.Browser)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBrowserNotFound, err)
	}

	profile, err := os.MkdirTemp("", "code2doc-browser-*")
	if err != nil {
		return "", nil, fmt.Errorf("create profile dir: %w", err)
	}

	args := []string{
		"--headless=new",
		"--remote-debugging-port=0",
		"--user-data-dir=" + profile,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-gpu",
		"--disable-extensions",
		"--hide-scrollbars",
		"--mute-audio",
		"--allow-file-access-from-files",
	}
	if os.Geteuid() == 0 {
		args = append(args, "--no-sandbox")
	}
	args = append(args, "about:blank")

	cmd := exec.Command(bin, args...)
	procgroup.Set(cmd)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		os.RemoveAll(profile)
		return "", nil, err
	}
	if err := cmd.Start(); err != nil {
		os.RemoveAll(profile)
		return "", nil, fmt.Errorf("start browser: %w", err)
	}

	found := make(chan string, 1)
	scanned := make(chan struct{})
	stop := func() {
		procgroup.Kill(cmd)
		<-scanned
		cmd.Wait()
		os.RemoveAll(profile)
	}

	go func() {
		defer close(scanned)
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			line := sc.Text()
			if i := strings.Index(line, "ws://"); i != -1 && strings.Contains(line, "DevTools listening") {
				select {
				case found <- strings.TrimSpace(line[i:]):
				default:
				}
			}
		}
		close(found)
	}()

	select {
	case <-ctx.Done():
		stop()
		return "", nil, fmt.Errorf("%w: browser did not start: %w", ErrCaptureFailed, ctx.Err())
	case ws, ok := <-found:
		if !ok {
			stop()
			return "", nil, fmt.Errorf("%w: browser exited before opening DevTools", ErrCaptureFailed)
		}
		c.log.Debug("browser started", "browser", bin, "devtools", ws)
		return ws, stop, nil
	}
}
