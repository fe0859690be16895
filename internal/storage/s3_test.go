package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/narrator/internal/config"
)

// fakeS3 is a path-style object store that understands PUT and HEAD.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.objects[r.URL.Path] = body
			w.Header().Set("ETag", `"fake"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodHead:
			obj, ok := f.objects[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(obj)))
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) get(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[path]
	return obj, ok
}

func newStore(t *testing.T, srv *httptest.Server, publicURL string) *S3 {
	t.Helper()
	s, err := NewS3(config.S3Config{
		Endpoint:  srv.URL,
		Region:    "auto",
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "talks",
		Prefix:    "narrations/",
		PublicURL: publicURL,
	})
	require.NoError(t, err)
	return s
}

func TestPublishUploadsUnderPrefix(t *testing.T) {
	fake, srv := newFakeS3(t)
	s := newStore(t, srv, "https://cdn.example.com/")

	path := filepath.Join(t.TempDir(), "output.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF fake wav"), 0o644))

	loc, err := s.Publish(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/narrations/output.wav", loc)

	obj, ok := fake.get("/talks/narrations/output.wav")
	require.True(t, ok)
	assert.Equal(t, "RIFF fake wav", string(obj))
}

func TestUploadEmptyObjectIsNotTransferred(t *testing.T) {
	_, srv := newFakeS3(t)
	s := newStore(t, srv, "")

	err := s.Upload(context.Background(), bytes.NewReader(nil), "empty.wav")
	assert.True(t, errors.Is(err, ErrNoDataTransferred))
}

func TestKeyExists(t *testing.T) {
	_, srv := newFakeS3(t)
	s := newStore(t, srv, "")
	ctx := context.Background()

	ok, err := s.KeyExists(ctx, "missing.wav")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Upload(ctx, bytes.NewReader([]byte("data")), "present.wav"))
	ok, err = s.KeyExists(ctx, "present.wav")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPublishMissingFile(t *testing.T) {
	_, srv := newFakeS3(t)
	s := newStore(t, srv, "")

	_, err := s.Publish(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocation(t *testing.T) {
	_, srv := newFakeS3(t)
	assert.Equal(t, "s3://talks/a.wav", newStore(t, srv, "").Location("a.wav"))
	assert.Equal(t, "https://pub.example/a.wav", newStore(t, srv, "https://pub.example").Location("a.wav"))
}

func TestNewS3Validation(t *testing.T) {
	_, err := NewS3(config.S3Config{Endpoint: "http://localhost:9000"})
	assert.Error(t, err)

	_, err = NewS3(config.S3Config{Bucket: "talks"})
	assert.Error(t, err)
}
