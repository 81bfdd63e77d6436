package publish

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
	urlErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) Put(ctx context.Context, key string, content []byte, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = content
	m.types[key] = contentType
	return nil
}

func (m *memStore) URL(ctx context.Context, key string) (string, error) {
	if m.urlErr != nil {
		return "", m.urlErr
	}
	return "https://example.test/" + key, nil
}

func writeReport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Ada_CS101_Lab-3.docx")
	require.NoError(t, os.WriteFile(path, []byte("PK report"), 0o644))
	return path
}

func TestPublish(t *testing.T) {
	store := newMemStore()
	p := NewPublisher(store)
	path := writeReport(t)

	r, err := p.Publish(context.Background(), path)
	require.NoError(t, err)

	_, err = uuid.Parse(r.RunID)
	require.NoError(t, err)
	assert.Equal(t, r.RunID+"/Ada_CS101_Lab-3.docx", r.Key)
	assert.Equal(t, "https://example.test/"+r.Key, r.URL)
	assert.Equal(t, []byte("PK report"), store.objects[r.Key])
	assert.Equal(t, DocxContentType, store.types[r.Key])

	again, err := p.Publish(context.Background(), path)
	require.NoError(t, err)
	assert.NotEqual(t, r.RunID, again.RunID)
}

func TestPublishErrors(t *testing.T) {
	path := writeReport(t)

	var nilPub *Publisher
	_, err := nilPub.Publish(context.Background(), path)
	require.ErrorIs(t, err, ErrStoreNotConfigured)

	_, err = NewPublisher(newMemStore()).Publish(context.Background(), filepath.Join(t.TempDir(), "missing.docx"))
	require.Error(t, err)

	store := newMemStore()
	store.putErr = errors.New("access denied")
	_, err = NewPublisher(store).Publish(context.Background(), path)
	require.EqualError(t, err, "access denied")

	// A failed link does not undo the upload.
	store = newMemStore()
	store.urlErr = errors.New("presign failed")
	r, err := NewPublisher(store).Publish(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, r.URL)
	assert.Contains(t, store.objects, r.Key)
}

func TestNewS3StoreValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
	}{
		{"no endpoint", S3Config{AccessKey: "a", SecretKey: "s", Bucket: "b"}},
		{"no credentials", S3Config{Endpoint: "localhost:9000", Bucket: "b"}},
		{"no bucket", S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3Store(tt.cfg)
			require.ErrorIs(t, err, ErrStoreNotConfigured)
		})
	}
}

// fakeS3 accepts bucket creation and object uploads.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string]string
	reqs    []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, r.Method+" "+r.URL.Path)

	path := strings.Trim(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case key != "" && r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = string(body)
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{buckets: map[string]bool{}, objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	store, err := NewS3Store(S3Config{
		Endpoint:  u.Host,
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "reports",
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "/run-1/a.docx", []byte("first"), DocxContentType))
	require.NoError(t, store.Put(ctx, "run-1/b.docx", []byte("second"), ""))

	fake.mu.Lock()
	assert.True(t, fake.buckets["reports"])
	assert.Contains(t, fake.objects["reports/run-1/a.docx"], "first")
	assert.Contains(t, fake.objects["reports/run-1/b.docx"], "second")
	// The bucket is checked and created once.
	buckets := 0
	for _, r := range fake.reqs {
		if r == "PUT /reports/" || r == "PUT /reports" {
			buckets++
		}
	}
	fake.mu.Unlock()
	assert.Equal(t, 1, buckets)

	link, err := store.URL(ctx, "run-1/a.docx")
	require.NoError(t, err)
	assert.Contains(t, link, "/reports/run-1/a.docx")
	assert.Contains(t, link, "X-Amz-Signature=")

	require.Error(t, store.Put(ctx, "  ", nil, ""))
}
