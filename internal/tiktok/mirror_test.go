package tiktok

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_fxtok/internal/engine"
)

func newTestMirror(t *testing.T, handler http.HandlerFunc) *Mirror {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	fetcher := engine.NewFetcher(engine.Config{HTTPClient: srv.Client()}, engine.NewSession())
	return NewMirror(fetcher, srv.URL+"/api/")
}

func TestMirrorImages(t *testing.T) {
	m := newTestMirror(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "7311111111111111111", r.PostForm.Get("url"))
		assert.Equal(t, "12", r.PostForm.Get("count"))
		assert.Equal(t, "1", r.PostForm.Get("hd"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":0,"msg":"success","data":{"images":["https://img.example/1.jpeg","https://img.example/2.jpeg"]}}`))
	})

	images, err := m.Images(context.Background(), "7311111111111111111")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/1.jpeg", "https://img.example/2.jpeg"}, images)
}

func TestMirrorImagesEmpty(t *testing.T) {
	m := newTestMirror(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":-1,"msg":"Url parsing is failed!"}`))
	})

	images, err := m.Images(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestMirrorImagesErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"body", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestMirror(t, tt.handler).Images(context.Background(), "1")
			assert.Error(t, err)
		})
	}
}
