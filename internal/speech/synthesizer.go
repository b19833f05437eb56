// Package speech synthesizes narrated audio through the regional Cognitive
// Speech endpoints, chunking long text into bounded segments and concatenating
// the encoded MP3 responses.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrMissingCredentials is returned when no subscription key is supplied.
var ErrMissingCredentials = errors.New("missing speech API key")

// UpstreamError carries the speech service's non-success status and body.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("speech service returned %d: %s", e.StatusCode, e.Body)
}

// Credentials identify the caller to the speech service.
type Credentials struct {
	APIKey string
	Region string
}

// SynthesisRequest is one text-to-speech call. Text must stay under the single
// call bound; longer inputs go through SynthesizeLong.
type SynthesisRequest struct {
	Text     string
	Voice    string
	Language string
	Credentials
}

const outputFormat = "audio-16khz-128kbitrate-mono-mp3"

// Synthesizer calls the regional speech synthesis endpoint.
type Synthesizer struct {
	// EndpointOverride replaces the regional endpoint URL, for tests.
	EndpointOverride string

	client *http.Client
	logger *zap.Logger
}

// NewSynthesizer creates a speech synthesizer.
func NewSynthesizer(logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

func (s *Synthesizer) endpoint(region string) string {
	if s.EndpointOverride != "" {
		return s.EndpointOverride
	}
	return fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region)
}

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// buildSSML embeds the text in the voice and language markup. The text is
// escaped so markup-significant characters cannot corrupt the payload.
func buildSSML(text, voice, language string) string {
	return fmt.Sprintf(
		"<speak version='1.0' xml:lang='%s'><voice xml:lang='%s' name='%s'>%s</voice></speak>",
		language, language, voice, ssmlEscaper.Replace(text),
	)
}

// Synthesize sends one synchronous synthesis call and returns the raw encoded
// audio response body untouched.
func (s *Synthesizer) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if req.APIKey == "" {
		return nil, ErrMissingCredentials
	}

	ssml := buildSSML(req.Text, req.Voice, req.Language)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(req.Region), bytes.NewBufferString(ssml))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", req.APIKey)
	httpReq.Header.Set("X-Microsoft-OutputFormat", outputFormat)
	httpReq.Header.Set("User-Agent", "gauner-audio-backend")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
