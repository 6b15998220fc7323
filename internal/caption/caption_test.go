package caption

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCaptionSuccess(t *testing.T) {
	var gotBody int64
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody = r.ContentLength
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[{"generated_text": "a cat on a couch"}]`))
	}))
	defer srv.Close()

	h := NewHuggingFace(srv.URL, "hf-token")
	got := h.Caption(context.Background(), []byte("raw image bytes"))
	require.Equal(t, "a cat on a couch", got)
	require.Equal(t, int64(len("raw image bytes")), gotBody)
	require.Equal(t, "Bearer hf-token", gotAuth)
}

func TestCaptionUpstreamErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := NewHuggingFace(srv.URL, "")
	require.Equal(t, Fallback, h.Caption(context.Background(), []byte("img")))
}

func TestCaptionMalformedBodyFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected": "shape"}`))
	}))
	defer srv.Close()

	h := NewHuggingFace(srv.URL, "")
	require.Equal(t, Fallback, h.Caption(context.Background(), []byte("img")))
}

func TestCaptionUnreachableEndpointFallsBack(t *testing.T) {
	h := NewHuggingFace("http://127.0.0.1:1", "")
	require.Equal(t, Fallback, h.Caption(context.Background(), []byte("img")))
}
