package speech

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"
)

const (
	// ShortTextLimit is the largest input sent as a single synthesis call.
	ShortTextLimit = 1000
	// SegmentSize is the per-segment bound for chunked synthesis.
	SegmentSize = 800
)

// SplitText partitions text into contiguous segments of at most max runes,
// preserving order and content exactly. Cuts land wherever the bound falls; no
// re-wrapping at word boundaries.
func SplitText(text string, max int) []string {
	if max <= 0 || text == "" {
		return nil
	}
	runes := []rune(text)
	segments := make([]string, 0, (len(runes)+max-1)/max)
	for start := 0; start < len(runes); start += max {
		end := start + max
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[start:end]))
	}
	return segments
}

// SynthesizeLong produces audio for arbitrarily long text. Inputs at or under
// ShortTextLimit go through a single call. Longer text is cut into SegmentSize
// segments synthesized strictly one at a time in order; the first segment
// failure aborts the whole operation and any partial audio is discarded. On
// success the encoded segment buffers are concatenated byte-exact, relying on
// the MP3 codec tolerating raw frame concatenation.
func (s *Synthesizer) SynthesizeLong(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if len([]rune(req.Text)) <= ShortTextLimit {
		return s.Synthesize(ctx, req)
	}

	segments := SplitText(req.Text, SegmentSize)
	s.logger.Info("chunked synthesis",
		zap.Int("segments", len(segments)),
		zap.Int("text_length", len(req.Text)),
		zap.String("voice", req.Voice))

	var combined bytes.Buffer
	for i, segment := range segments {
		segReq := req
		segReq.Text = segment
		audio, err := s.Synthesize(ctx, segReq)
		if err != nil {
			return nil, fmt.Errorf("segment %d/%d: %w", i+1, len(segments), err)
		}
		combined.Write(audio)
	}
	return combined.Bytes(), nil
}
