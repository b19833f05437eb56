package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 30 * time.Second
)

// YtdlpSource fetches auto-generated captions via the yt-dlp subprocess. The
// subtitle file is written to a private temp directory and removed after being
// read, on success and failure alike.
type YtdlpSource struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string
	// Timeout is the wall-clock limit per invocation. Defaults to 30 seconds.
	// A timeout is treated the same as a process failure.
	Timeout time.Duration

	logger *zap.Logger
}

// NewYtdlpSource creates a yt-dlp backed caption source.
func NewYtdlpSource(path string, timeout time.Duration, logger *zap.Logger) *YtdlpSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YtdlpSource{Path: path, Timeout: timeout, logger: logger}
}

// Name identifies this source in logs.
func (y *YtdlpSource) Name() string { return "ytdlp" }

// Fetch downloads the auto-generated subtitle track and returns its plain text.
// The primary language is tried first; on failure or empty output it retries
// once with the expanded list of regional variants.
func (y *YtdlpSource) Fetch(ctx context.Context, videoID, lang string) (string, error) {
	text, err := y.fetchLangs(ctx, videoID, []string{lang})
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if err != nil {
		y.logger.Debug("ytdlp primary language failed, retrying with variants",
			zap.String("video_id", videoID), zap.String("lang", lang), zap.Error(err))
	}
	return y.fetchLangs(ctx, videoID, expandLanguages(lang))
}

func (y *YtdlpSource) fetchLangs(ctx context.Context, videoID string, langs []string) (string, error) {
	dir, err := os.MkdirTemp("", "gauner-subs-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	// The subtitle artifact must not outlive the read, whatever path we exit on.
	defer os.RemoveAll(dir)

	timeout := y.Timeout
	if timeout == 0 {
		timeout = defaultYtdlpTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"--skip-download",
		"--write-auto-subs",
		"--write-subs",
		"--sub-format", "json3",
		"--sub-langs", strings.Join(langs, ","),
		"--no-warnings",
		"-o", filepath.Join(dir, "captions"),
		"https://www.youtube.com/watch?v=" + videoID,
	}
	cmd := exec.CommandContext(cmdCtx, y.path(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("yt-dlp timed out after %s", timeout)
		}
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "captions*.json3"))
	if err != nil || len(matches) == 0 {
		return "", nil // ran fine but produced no subtitle file: no captions
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return "", fmt.Errorf("read subtitle file: %w", err)
	}
	return parseJSON3(data)
}

func (y *YtdlpSource) path() string {
	if y.Path != "" {
		return y.Path
	}
	return defaultYtdlpPath
}

// Probe fetches the video title and channel name via yt-dlp's JSON metadata dump.
func (y *YtdlpSource) Probe(ctx context.Context, videoID string) (string, string, error) {
	timeout := y.Timeout
	if timeout == 0 {
		timeout = defaultYtdlpTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, y.path(),
		"-J", "--skip-download", "--no-warnings",
		"https://www.youtube.com/watch?v="+videoID,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("yt-dlp metadata failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var meta struct {
		Title    string `json:"title"`
		Channel  string `json:"channel"`
		Uploader string `json:"uploader"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return "", "", fmt.Errorf("parse yt-dlp metadata: %w", err)
	}
	channel := meta.Channel
	if channel == "" {
		channel = meta.Uploader
	}
	return meta.Title, channel, nil
}
