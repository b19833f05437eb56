package speech

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gauner-audio/backend/pkg/queue"
	"github.com/gauner-audio/backend/pkg/response"
)

// TTSRequest is the body for POST /api/tts.
type TTSRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
	APIKey   string `json:"apiKey"`
	Region   string `json:"region"`
}

// VoicesRequest is the body for POST /api/voices.
type VoicesRequest struct {
	APIKey string `json:"apiKey"`
	Region string `json:"region"`
}

// Handler handles speech HTTP endpoints.
type Handler struct {
	synth         *Synthesizer
	queue         *queue.Queue // optional: enqueue server-side archive jobs
	defaultRegion string
	defaultVoice  string
	defaultKey    string // server-side subscription key, used when a request omits apiKey
	logger        *zap.Logger
}

// NewHandler creates a speech handler. q may be nil to disable archiving;
// defaultKey may be empty, in which case every request must carry its own key.
func NewHandler(synth *Synthesizer, q *queue.Queue, defaultRegion, defaultVoice, defaultKey string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		synth:         synth,
		queue:         q,
		defaultRegion: defaultRegion,
		defaultVoice:  defaultVoice,
		defaultKey:    defaultKey,
		logger:        logger,
	}
}

// Synthesize handles POST /api/tts. Returns raw audio/mpeg bytes on success.
func (h *Handler) Synthesize(c *gin.Context) {
	var req TTSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Text == "" {
		response.BadRequest(c, "text is required")
		return
	}
	if req.APIKey == "" {
		req.APIKey = h.defaultKey
	}
	if req.APIKey == "" {
		response.BadRequest(c, "apiKey is required")
		return
	}
	if req.Voice == "" {
		req.Voice = h.defaultVoice
	}
	if req.Language == "" {
		req.Language = "en-US"
	}
	if req.Region == "" {
		req.Region = h.defaultRegion
	}

	audio, err := h.synth.SynthesizeLong(c.Request.Context(), SynthesisRequest{
		Text:        req.Text,
		Voice:       req.Voice,
		Language:    req.Language,
		Credentials: Credentials{APIKey: req.APIKey, Region: req.Region},
	})
	if err != nil {
		if errors.Is(err, ErrMissingCredentials) {
			response.BadRequest(c, "apiKey is required")
			return
		}
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			h.logger.Error("speech upstream rejected",
				zap.Int("status", upstream.StatusCode),
				zap.String("voice", req.Voice))
		} else {
			h.logger.Error("synthesis failed", zap.Error(err))
		}
		response.Internal(c, "speech synthesis failed")
		return
	}

	h.archive(c, req, audio)

	c.Data(http.StatusOK, "audio/mpeg", audio)
}

// archive enqueues a server-side copy of the synthesized audio. Best effort;
// failures are logged and never affect the response.
func (h *Handler) archive(c *gin.Context, req TTSRequest, audio []byte) {
	if h.queue == nil {
		return
	}
	payload := queue.AudioArchivePayload{
		Filename: fmt.Sprintf("tts_%d.mp3", time.Now().UnixNano()),
		Voice:    req.Voice,
		Language: req.Language,
	}
	if err := h.queue.EnqueueAudioArchive(c.Request.Context(), audio, payload); err != nil {
		h.logger.Warn("audio archive enqueue failed", zap.Error(err))
	}
}

// Voices handles POST /api/voices.
func (h *Handler) Voices(c *gin.Context) {
	var req VoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.APIKey == "" {
		req.APIKey = h.defaultKey
	}
	if req.APIKey == "" {
		response.BadRequest(c, "apiKey is required")
		return
	}
	if req.Region == "" {
		req.Region = h.defaultRegion
	}

	voices, err := h.synth.ListVoices(c.Request.Context(), Credentials{APIKey: req.APIKey, Region: req.Region})
	if err != nil {
		if errors.Is(err, ErrMissingCredentials) {
			response.BadRequest(c, "apiKey is required")
			return
		}
		h.logger.Error("list voices failed", zap.Error(err))
		response.Internal(c, "failed to fetch voices")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "voices": voices})
}
