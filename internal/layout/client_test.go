package layout

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwlim/gonggo/internal/common"
)

func TestHTTPBackendDetect(t *testing.T) {
	png := []byte("fake png bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/detect", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Model string `json:"model"`
			Image string `json:"image"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		decoded, err := base64.StdEncoding.DecodeString(body.Image)
		require.NoError(t, err)
		assert.Equal(t, png, decoded)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"detections": []RawDetection{
				{ClassID: 1, Confidence: 0.93, BBox: [4]float64{0.1, 0.1, 0.9, 0.2}},
			},
		})
	}))
	defer srv.Close()

	backend, err := NewHTTPBackend(HTTPBackendConfig{BaseURL: srv.URL, ModelID: "test-model"}, nil)
	require.NoError(t, err)

	dets, err := backend.Detect(context.Background(), png)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 1, dets[0].ClassID)
	assert.InDelta(t, 0.93, dets[0].Confidence, 1e-9)
}

func TestHTTPBackendDetectServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	backend, err := NewHTTPBackend(HTTPBackendConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = backend.Detect(context.Background(), []byte("png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHTTPBackendHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	backend, err := NewHTTPBackend(HTTPBackendConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	assert.NoError(t, backend.Healthy(context.Background()))
}

func TestHTTPBackendHealthyFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	backend, err := NewHTTPBackend(HTTPBackendConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	err = backend.Healthy(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFatalDocument)
}

func TestNewHTTPBackendRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPBackend(HTTPBackendConfig{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
