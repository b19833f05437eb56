// Package drive uploads synthesized audio into a per-user Google Drive folder.
//
// The folder name is derived deterministically from the user ID and looked up
// on every upload; it is created at most once and reused afterward. Concurrent
// first uploads for the same user can race the creation call; the store keeps
// whichever folder wins and this client does not coordinate (documented
// limitation).
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/gauner-audio/backend/internal/models"
)

var (
	// ErrAuthRejected is returned when the Drive API rejects the access token.
	ErrAuthRejected = errors.New("drive access token rejected")
	// ErrFolderOperation is returned when neither lookup nor creation of the
	// per-user folder succeeds.
	ErrFolderOperation = errors.New("drive folder lookup and creation failed")
)

const (
	defaultAPIBaseURL    = "https://www.googleapis.com/drive/v3"
	defaultUploadBaseURL = "https://www.googleapis.com/upload/drive/v3"
	folderMimeType       = "application/vnd.google-apps.folder"
)

// Client is a Google Drive v3 REST client authorized per call by bearer token.
type Client struct {
	// APIBaseURL and UploadBaseURL override the Drive endpoints, for tests.
	APIBaseURL    string
	UploadBaseURL string

	folderPrefix string
	client       *http.Client
	logger       *zap.Logger
}

// NewClient creates a Drive client. folderPrefix names the per-user container:
// "<prefix>_<userId>".
func NewClient(folderPrefix string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if folderPrefix == "" {
		folderPrefix = "GaunerAudio"
	}
	return &Client{
		APIBaseURL:    defaultAPIBaseURL,
		UploadBaseURL: defaultUploadBaseURL,
		folderPrefix:  folderPrefix,
		client:        &http.Client{Timeout: 120 * time.Second},
		logger:        logger,
	}
}

// FolderName returns the deterministic per-user folder name.
func (c *Client) FolderName(userID string) string {
	return c.folderPrefix + "_" + userID
}

type driveFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WebViewLink string `json:"webViewLink,omitempty"`
}

// EnsureFolder returns the ID of the user's folder, creating it if absent.
func (c *Client) EnsureFolder(ctx context.Context, accessToken, userID string) (string, error) {
	name := c.FolderName(userID)

	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", name, folderMimeType)
	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "files(id,name)")

	id, lookupErr := c.lookupFolder(ctx, accessToken, params)
	if lookupErr == nil && id != "" {
		return id, nil
	}
	if errors.Is(lookupErr, ErrAuthRejected) {
		return "", lookupErr
	}

	id, createErr := c.createFolder(ctx, accessToken, name)
	if createErr == nil {
		return id, nil
	}
	if errors.Is(createErr, ErrAuthRejected) {
		return "", createErr
	}
	c.logger.Error("drive folder get-or-create failed",
		zap.String("folder", name),
		zap.NamedError("lookup", lookupErr),
		zap.NamedError("create", createErr))
	return "", ErrFolderOperation
}

func (c *Client) lookupFolder(ctx context.Context, accessToken string, params url.Values) (string, error) {
	body, err := c.do(ctx, http.MethodGet, c.APIBaseURL+"/files?"+params.Encode(), accessToken, "", nil)
	if err != nil {
		return "", err
	}
	var result struct {
		Files []driveFile `json:"files"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse folder search: %w", err)
	}
	if len(result.Files) == 0 {
		return "", nil
	}
	return result.Files[0].ID, nil
}

func (c *Client) createFolder(ctx context.Context, accessToken, name string) (string, error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"name":     name,
		"mimeType": folderMimeType,
	})
	body, err := c.do(ctx, http.MethodPost, c.APIBaseURL+"/files", accessToken, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	var folder driveFile
	if err := json.Unmarshal(body, &folder); err != nil {
		return "", fmt.Errorf("parse folder create: %w", err)
	}
	if folder.ID == "" {
		return "", fmt.Errorf("folder create returned no id")
	}
	return folder.ID, nil
}

// Upload stores the audio bytes as a new file inside the user's folder and
// attaches the caller's metadata as the file description. A metadata-attach
// failure is logged and does not invalidate the upload.
func (c *Client) Upload(ctx context.Context, accessToken, userID, filename string, data []byte, metadata string) (*models.UploadedFileRecord, error) {
	folderID, err := c.EnsureFolder(ctx, accessToken, userID)
	if err != nil {
		return nil, err
	}

	fileMeta, _ := json.Marshal(map[string]interface{}{
		"name":    filename,
		"parents": []string{folderID},
	})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := metaPart.Write(fileMeta); err != nil {
		return nil, fmt.Errorf("write metadata part: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", "audio/mpeg")
	mediaPart, err := w.CreatePart(mediaHeader)
	if err != nil {
		return nil, fmt.Errorf("create media part: %w", err)
	}
	if _, err := mediaPart.Write(data); err != nil {
		return nil, fmt.Errorf("write media part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	uploadURL := c.UploadBaseURL + "/files?uploadType=multipart&fields=id,name,webViewLink"
	contentType := "multipart/related; boundary=" + w.Boundary()
	body, err := c.do(ctx, http.MethodPost, uploadURL, accessToken, contentType, &buf)
	if err != nil {
		return nil, err
	}

	var uploaded driveFile
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return nil, fmt.Errorf("parse upload response: %w", err)
	}
	if uploaded.ID == "" {
		return nil, fmt.Errorf("upload returned no file id")
	}

	if metadata != "" {
		if err := c.patchDescription(ctx, accessToken, uploaded.ID, metadata); err != nil {
			c.logger.Warn("drive metadata attach failed",
				zap.String("file_id", uploaded.ID),
				zap.Error(err))
		}
	}

	fileURL := uploaded.WebViewLink
	if fileURL == "" {
		fileURL = "https://drive.google.com/file/d/" + uploaded.ID + "/view"
	}
	return &models.UploadedFileRecord{
		FileID:     uploaded.ID,
		FileURL:    fileURL,
		FolderID:   folderID,
		UploadedAt: time.Now().UTC(),
	}, nil
}

func (c *Client) patchDescription(ctx context.Context, accessToken, fileID, metadata string) error {
	payload, _ := json.Marshal(map[string]string{"description": metadata})
	_, err := c.do(ctx, http.MethodPatch, c.APIBaseURL+"/files/"+fileID, accessToken, "application/json", bytes.NewReader(payload))
	return err
}

// do performs one authorized Drive call and returns the response body.
// 401 and 403 map to ErrAuthRejected; other non-2xx statuses wrap the body.
func (c *Client) do(ctx context.Context, method, rawURL, accessToken, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read drive response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d: %s", ErrAuthRejected, resp.StatusCode, string(respBody))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("drive API status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
