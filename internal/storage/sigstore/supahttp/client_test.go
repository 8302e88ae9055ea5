package supahttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_Put_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/storage/v1/object/signatures/service-12.png", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "image/png", r.Header.Get("Content-Type"))
		require.Equal(t, "true", r.Header.Get("x-upsert"))

		body, _ := io.ReadAll(r.Body)
		require.Equal(t, []byte("png-bytes"), body)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Key":"signatures/service-12.png"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	url, err := c.Put(context.Background(), "signatures", "service-12.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/storage/v1/object/public/signatures/service-12.png", url)
}

func TestClient_Put_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "bad")
	_, err := c.Put(context.Background(), "signatures", "service-1.png", []byte("x"), "image/png")
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}
