package models

// TranscriptResult is the plain-text caption extraction result for one video.
// Transcript is always non-empty trimmed text; extraction fails rather than
// returning an empty success.
type TranscriptResult struct {
	Title       string `json:"title"`
	Transcript  string `json:"transcript"`
	VideoID     string `json:"videoId"`
	ChannelName string `json:"channelName,omitempty"`
}
