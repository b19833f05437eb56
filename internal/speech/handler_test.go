package speech

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/tts", h.Synthesize)
	r.POST("/api/voices", h.Voices)
	return r
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTTSEndpointReturnsAudioBytes(t *testing.T) {
	want := []byte{0x49, 0x44, 0x33}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(want)
	}))
	defer srv.Close()

	synth := NewSynthesizer(nil)
	synth.EndpointOverride = srv.URL
	router := newTestRouter(NewHandler(synth, nil, "eastus", "en-US-JennyNeural", "", nil))

	w := postJSON(t, router, "/api/tts", TTSRequest{
		Text: "hello", Voice: "en-US-JennyNeural", Language: "en-US", APIKey: "k", Region: "eastus",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	require.Equal(t, want, w.Body.Bytes())
}

func TestTTSEndpointMissingText(t *testing.T) {
	router := newTestRouter(NewHandler(NewSynthesizer(nil), nil, "eastus", "en-US-JennyNeural", "", nil))

	w := postJSON(t, router, "/api/tts", TTSRequest{APIKey: "k"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Contains(t, resp.Error, "text")
}

func TestTTSEndpointFallsBackToServerKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		_, _ = w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	synth := NewSynthesizer(nil)
	synth.EndpointOverride = srv.URL
	router := newTestRouter(NewHandler(synth, nil, "eastus", "en-US-JennyNeural", "server-key", nil))

	w := postJSON(t, router, "/api/tts", TTSRequest{Text: "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "server-key", gotKey)
}

func TestVoicesEndpointFallsBackToServerKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "server-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	synth := NewSynthesizer(nil)
	synth.EndpointOverride = srv.URL
	router := newTestRouter(NewHandler(synth, nil, "eastus", "en-US-JennyNeural", "server-key", nil))

	w := postJSON(t, router, "/api/voices", VoicesRequest{})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTTSEndpointMissingAPIKey(t *testing.T) {
	router := newTestRouter(NewHandler(NewSynthesizer(nil), nil, "eastus", "en-US-JennyNeural", "", nil))

	w := postJSON(t, router, "/api/tts", TTSRequest{Text: "hello"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTTSEndpointUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	synth := NewSynthesizer(nil)
	synth.EndpointOverride = srv.URL
	router := newTestRouter(NewHandler(synth, nil, "eastus", "en-US-JennyNeural", "", nil))

	w := postJSON(t, router, "/api/tts", TTSRequest{
		Text: "hello", Voice: "v", Language: "en-US", APIKey: "k", Region: "eastus",
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Error)
}

func TestVoicesEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"ShortName":"en-US-JennyNeural","Locale":"en-US"}]`))
	}))
	defer srv.Close()

	synth := NewSynthesizer(nil)
	synth.EndpointOverride = srv.URL
	router := newTestRouter(NewHandler(synth, nil, "eastus", "en-US-JennyNeural", "", nil))

	w := postJSON(t, router, "/api/voices", VoicesRequest{APIKey: "k", Region: "eastus"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool    `json:"success"`
		Voices  []Voice `json:"voices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Len(t, resp.Voices, 1)
	require.Equal(t, "en-US-JennyNeural", resp.Voices[0].ShortName)
}

func TestVoicesEndpointMissingKey(t *testing.T) {
	router := newTestRouter(NewHandler(NewSynthesizer(nil), nil, "eastus", "en-US-JennyNeural", "", nil))

	w := postJSON(t, router, "/api/voices", VoicesRequest{Region: "eastus"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}
