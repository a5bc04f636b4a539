package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeBackend(healthy bool, indices ...string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/_cluster/health", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"green"}`))
	})
	mux.HandleFunc("/_cat/indices/", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len("/_cat/indices/"):]
		for _, index := range indices {
			if index == name {
				w.Write([]byte("green open " + name))
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func TestHealthy(t *testing.T) {
	ts := newFakeBackend(true)
	defer ts.Close()
	assert.NoError(t, NewHTTPClient(http.DefaultClient, ts.URL).Healthy(context.Background()))
}

func TestUnhealthy(t *testing.T) {
	ts := newFakeBackend(false)
	defer ts.Close()
	assert.Error(t, NewHTTPClient(http.DefaultClient, ts.URL).Healthy(context.Background()))
}

func TestIndexExists(t *testing.T) {
	ts := newFakeBackend(true, "image-20260831")
	defer ts.Close()
	c := NewHTTPClient(http.DefaultClient, ts.URL)

	exists, err := c.IndexExists(context.Background(), "image-20260831")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.IndexExists(context.Background(), "audio-20260831")
	require.NoError(t, err)
	assert.False(t, exists)
}
