package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStorage is a tiny in-memory storage API.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	auth    []string
	// lostUploads stores that many uploads but answers them with a 503.
	lostUploads int
	uploads     int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	if strings.HasPrefix(r.URL.Path, "/object/sign/") {
		key := strings.TrimPrefix(r.URL.Path, "/object/sign/")
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			ExpiresIn int `json:"expiresIn"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.ExpiresIn != 3600 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"signedURL": "/object/sign/" + key + "?token=abc",
		})
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/object/")
	switch r.Method {
	case http.MethodPost:
		if _, exists := f.objects[key]; exists {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"statusCode":"409","error":"Duplicate","message":"The resource already exists"}`))
			return
		}
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		f.uploads++
		if f.lostUploads > 0 {
			f.lostUploads--
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	case http.MethodDelete:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.objects, key)
	}
}

func TestBlobClient_RoundTrip(t *testing.T) {
	nopLogger := zerolog.Nop()
	fake := newFakeStorage()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewBlobClient(srv.URL+"/", "service-key", &nopLogger)
	ctx := context.Background()
	png := []byte("\x89PNG\r\n\x1a\nfake")

	require.NoError(t, c.Put(ctx, "signatures", "evt/guest_1.png", png, "image/png"))

	got, err := c.Get(ctx, "signatures", "evt/guest_1.png")
	require.NoError(t, err)
	assert.Equal(t, png, got)

	err = c.Put(ctx, "signatures", "evt/guest_1.png", png, "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	url, err := c.SignedURL(ctx, "signatures", "evt/guest_1.png", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, srv.URL+"/object/sign/signatures/evt/guest_1.png"), url)

	require.NoError(t, c.Delete(ctx, "signatures", "evt/guest_1.png"))
	require.NoError(t, c.Delete(ctx, "signatures", "evt/guest_1.png"), "deleting twice succeeds")

	_, err = c.Get(ctx, "signatures", "evt/guest_1.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	for _, h := range fake.auth {
		assert.Equal(t, "Bearer service-key", h)
	}
}

func TestBlobClient_PutRetryAfterLostResponse(t *testing.T) {
	nopLogger := zerolog.Nop()
	fake := newFakeStorage()
	fake.lostUploads = 1
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewBlobClient(srv.URL, "service-key", &nopLogger)
	c.http.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "signatures", "evt/late.png", []byte("png"), "image/png"))
	fake.mu.Lock()
	assert.Equal(t, 1, fake.uploads)
	fake.mu.Unlock()

	got, err := c.Get(ctx, "signatures", "evt/late.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), got)

	// A conflict on the first attempt is still an error.
	assert.Error(t, c.Put(ctx, "signatures", "evt/late.png", []byte("png"), "image/png"))
}

func TestBlobClient_MapBucket(t *testing.T) {
	nopLogger := zerolog.Nop()
	fake := newFakeStorage()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewBlobClient(srv.URL, "service-key", &nopLogger).
		MapBucket("signatures", "nda-signatures-prod").
		MapBucket("pdfs", "")
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "signatures", "evt/a.png", []byte("png"), "image/png"))
	require.NoError(t, c.Put(ctx, "pdfs", "evt/a.pdf", []byte("%PDF"), "application/pdf"))

	fake.mu.Lock()
	_, mapped := fake.objects["nda-signatures-prod/evt/a.png"]
	_, unmapped := fake.objects["pdfs/evt/a.pdf"]
	fake.mu.Unlock()
	assert.True(t, mapped)
	assert.True(t, unmapped, "an empty name keeps the logical bucket")

	got, err := c.Get(ctx, "signatures", "evt/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), got)
}

func TestMemoryBlobs(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBlobs()

	require.NoError(t, m.Put(ctx, "pdfs", "e/1.pdf", []byte("%PDF"), "application/pdf"))
	assert.Error(t, m.Put(ctx, "pdfs", "e/1.pdf", []byte("%PDF"), "application/pdf"))

	url, err := m.SignedURL(ctx, "pdfs", "e/1.pdf", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "memory://pdfs/e/1.pdf?expires="))

	require.NoError(t, m.Delete(ctx, "pdfs", "e/1.pdf"))
	_, err = m.Get(ctx, "pdfs", "e/1.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, 0, m.Len())
}
