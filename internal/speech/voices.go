package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Voice is one entry from the speech service's voice catalog.
type Voice struct {
	Name            string `json:"Name"`
	DisplayName     string `json:"DisplayName"`
	ShortName       string `json:"ShortName"`
	Gender          string `json:"Gender"`
	Locale          string `json:"Locale"`
	LocaleName      string `json:"LocaleName,omitempty"`
	VoiceType       string `json:"VoiceType,omitempty"`
	SampleRateHertz string `json:"SampleRateHertz,omitempty"`
}

func (s *Synthesizer) voicesEndpoint(region string) string {
	if s.EndpointOverride != "" {
		return s.EndpointOverride
	}
	return fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/voices/list", region)
}

// ListVoices fetches the voice catalog for a region.
func (s *Synthesizer) ListVoices(ctx context.Context, creds Credentials) ([]Voice, error) {
	if creds.APIKey == "" {
		return nil, ErrMissingCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.voicesEndpoint(creds.Region), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", creds.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voices request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read voices response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var voices []Voice
	if err := json.Unmarshal(body, &voices); err != nil {
		return nil, fmt.Errorf("parse voices response: %w", err)
	}
	return voices, nil
}
