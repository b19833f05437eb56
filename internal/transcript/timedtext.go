package transcript

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimedtextBaseURL = "https://www.youtube.com/api/timedtext"

// timedtextFormats are the serialization formats tried per language, in order:
// event/segment JSON first, then timed-text markup, then line-based cues.
var timedtextFormats = []struct {
	param string
	parse func([]byte) (string, error)
}{
	{"json3", parseJSON3},
	{"ttml", parseTTML},
	{"vtt", parseVTT},
}

// TimedtextSource fetches captions from YouTube's timedtext endpoint directly,
// without a subprocess. Used when yt-dlp is unavailable or came up empty.
type TimedtextSource struct {
	// BaseURL overrides the timedtext endpoint, for tests.
	BaseURL string

	client *http.Client
	logger *zap.Logger
}

// NewTimedtextSource creates a timedtext-backed caption source.
func NewTimedtextSource(logger *zap.Logger) *TimedtextSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimedtextSource{
		BaseURL: defaultTimedtextBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Name identifies this source in logs.
func (t *TimedtextSource) Name() string { return "timedtext" }

// Fetch iterates the language candidates and, within each, the serialization
// formats, accepting the first response that parses to non-empty text. A parse
// failure or empty document moves on to the next format, not out of the chain.
func (t *TimedtextSource) Fetch(ctx context.Context, videoID, lang string) (string, error) {
	var lastErr error
	for _, candidate := range expandLanguages(lang) {
		for _, format := range timedtextFormats {
			body, err := t.get(ctx, videoID, candidate, format.param)
			if err != nil {
				lastErr = err
				continue
			}
			text, err := format.parse(body)
			if err != nil {
				lastErr = err
				continue
			}
			if strings.TrimSpace(text) != "" {
				return text, nil
			}
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", nil
}

func (t *TimedtextSource) get(ctx context.Context, videoID, lang, format string) ([]byte, error) {
	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", lang)
	params.Set("fmt", format)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timedtext request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timedtext status %d for lang=%s fmt=%s", resp.StatusCode, lang, format)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read timedtext body: %w", err)
	}
	return body, nil
}
