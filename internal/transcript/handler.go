package transcript

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gauner-audio/backend/pkg/response"
)

// Request is the body for POST /api/transcript. Either videoId or url is required.
type Request struct {
	VideoID string `json:"videoId"`
	URL     string `json:"url"`
}

// Handler handles transcript HTTP endpoints.
type Handler struct {
	extractor *Extractor
	cache     *Cache
	language  string
	logger    *zap.Logger
}

// NewHandler creates a transcript handler. cache may be nil.
func NewHandler(extractor *Extractor, cache *Cache, language string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if language == "" {
		language = "en"
	}
	return &Handler{extractor: extractor, cache: cache, language: language, logger: logger}
}

// Get handles POST /api/transcript.
func (h *Handler) Get(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reference := req.VideoID
	if reference == "" {
		reference = req.URL
	}
	if reference == "" {
		response.BadRequest(c, "videoId or url is required")
		return
	}

	ctx := c.Request.Context()
	if videoID, err := ExtractVideoID(reference); err == nil {
		if cached := h.cache.Get(ctx, videoID, h.language); cached != nil {
			h.logger.Debug("transcript cache hit", zap.String("video_id", videoID))
			c.JSON(http.StatusOK, gin.H{
				"success":     true,
				"transcript":  cached.Transcript,
				"title":       cached.Title,
				"videoId":     cached.VideoID,
				"channelName": cached.ChannelName,
			})
			return
		}
	}

	result, err := h.extractor.Extract(ctx, reference)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidReference):
			response.BadRequest(c, "could not parse a video ID from the request")
		case errors.Is(err, ErrNoTranscript):
			response.NotFound(c, "No transcript available for this video")
		default:
			h.logger.Error("transcript extraction failed", zap.Error(err))
			response.Internal(c, "transcript extraction failed")
		}
		return
	}

	h.cache.Put(ctx, h.language, result)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transcript":  result.Transcript,
		"title":       result.Title,
		"videoId":     result.VideoID,
		"channelName": result.ChannelName,
	})
}
