package drive

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gauner-audio/backend/pkg/response"
)

// MaxAudioFileSize bounds uploaded audio files (50MB).
const MaxAudioFileSize = 50 * 1024 * 1024

// Handler handles the drive upload HTTP endpoint.
type Handler struct {
	client *Client
	repo   *Repository // optional: nil disables upload history
	logger *zap.Logger
}

// NewHandler creates a drive handler. repo may be nil.
func NewHandler(client *Client, repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{client: client, repo: repo, logger: logger}
}

// Upload handles POST /api/upload-to-drive. Multipart form fields: audioFile,
// accessToken, userId, filename, metadata (JSON string).
func (h *Handler) Upload(c *gin.Context) {
	file, err := c.FormFile("audioFile")
	if err != nil {
		response.BadRequest(c, "missing file (form field: audioFile)")
		return
	}
	if file.Size > MaxAudioFileSize {
		response.BadRequest(c, "file size exceeds 50MB limit")
		return
	}
	accessToken := c.PostForm("accessToken")
	if accessToken == "" {
		response.BadRequest(c, "accessToken is required")
		return
	}
	userID := c.PostForm("userId")
	if userID == "" {
		response.BadRequest(c, "userId is required")
		return
	}
	filename := c.PostForm("filename")
	if filename == "" {
		filename = file.Filename
	}
	if filename == "" {
		filename = "narration.mp3"
	}
	metadata := c.PostForm("metadata")

	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		h.logger.Error("read uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}

	rec, err := h.client.Upload(c.Request.Context(), accessToken, userID, filename, data, metadata)
	if err != nil {
		switch {
		case errors.Is(err, ErrAuthRejected):
			response.Unauthorized(c, "Drive access token rejected")
		case errors.Is(err, ErrFolderOperation):
			response.Internal(c, "could not locate or create the Drive folder")
		default:
			h.logger.Error("drive upload failed", zap.Error(err), zap.String("user_id", userID))
			response.Internal(c, "upload to Drive failed")
		}
		return
	}

	// History is best effort; the Drive upload already succeeded.
	if h.repo != nil {
		if err := h.repo.Record(c.Request.Context(), userID, filename, file.Size, rec); err != nil {
			h.logger.Warn("persist upload record failed", zap.Error(err), zap.String("file_id", rec.FileID))
		}
	}

	response.OK(c, rec)
}

// History handles GET /api/uploads (authenticated). Returns the caller's upload history.
func (h *Handler) History(c *gin.Context) {
	if h.repo == nil {
		response.ServiceUnavailable(c, "upload history not configured")
		return
	}
	userID := c.Query("userId")
	if userID == "" {
		response.BadRequest(c, "userId is required")
		return
	}
	list, err := h.repo.ListByUser(c.Request.Context(), userID, 50)
	if err != nil {
		h.logger.Error("list uploads failed", zap.Error(err), zap.String("user_id", userID))
		response.Internal(c, "failed to list uploads")
		return
	}
	response.OK(c, list)
}
