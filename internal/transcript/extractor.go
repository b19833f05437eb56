// Package transcript extracts plain-text captions for YouTube videos.
//
// Extraction runs an ordered chain of caption sources: a yt-dlp subprocess
// source first, then YouTube's timedtext endpoint directly. Each source is
// tried across a small list of regional language variants until one yields
// non-trivial text.
package transcript

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/gauner-audio/backend/internal/models"
)

var (
	// ErrInvalidReference is returned when no video ID can be parsed from the input.
	ErrInvalidReference = errors.New("invalid video reference")
	// ErrNoTranscript is returned when every caption source has been exhausted.
	ErrNoTranscript = errors.New("no transcript available for this video")
)

// minTranscriptLen rejects placeholder/garbage caption payloads. Anything this
// short after trimming is treated as "no transcript" and the next source is tried.
const minTranscriptLen = 20

// videoIDRegex is the canonical 11-character ID shape, enforced only for IDs
// cut out of a URL where anything else means the cut went wrong.
var videoIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// opaqueIDRegex accepts any bare ID-safe token. A reference that is not a URL
// is treated as an opaque ID and passed through for the caption sources to
// resolve; no length is assumed.
var opaqueIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ExtractVideoID derives the video ID from a URL or a bare ID. It is
// deterministic and idempotent over all accepted input shapes: watch?v=,
// youtu.be/, embed/, shorts/, or an opaque ID token.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidReference
	}

	candidate := raw
	if i := strings.Index(candidate, "watch?v="); i >= 0 {
		candidate = candidate[i+len("watch?v="):]
	} else if i := strings.Index(candidate, "youtu.be/"); i >= 0 {
		candidate = candidate[i+len("youtu.be/"):]
	} else if i := strings.Index(candidate, "/embed/"); i >= 0 {
		candidate = candidate[i+len("/embed/"):]
	} else if i := strings.Index(candidate, "/shorts/"); i >= 0 {
		candidate = candidate[i+len("/shorts/"):]
	} else {
		if opaqueIDRegex.MatchString(raw) {
			return raw, nil
		}
		return "", ErrInvalidReference
	}
	// Strip trailing query or path components.
	if i := strings.IndexAny(candidate, "?&/#"); i >= 0 {
		candidate = candidate[:i]
	}
	if !videoIDRegex.MatchString(candidate) {
		return "", ErrInvalidReference
	}
	return candidate, nil
}

// CaptionSource is one strategy for obtaining raw caption text for a video.
type CaptionSource interface {
	// Name identifies the source in logs.
	Name() string
	// Fetch returns plain transcript text for the video in the given language.
	// An empty string with nil error means the source responded but carried no
	// captions; the caller treats both cases as "try the next source".
	Fetch(ctx context.Context, videoID, lang string) (string, error)
}

// MetadataProbe fetches video title and channel name. Best effort; extraction
// succeeds without it.
type MetadataProbe interface {
	Probe(ctx context.Context, videoID string) (title, channel string, err error)
}

// Extractor drives the caption source chain.
type Extractor struct {
	sources  []CaptionSource
	probe    MetadataProbe
	language string
	logger   *zap.Logger
}

// NewExtractor creates an extractor over the given ordered sources.
func NewExtractor(sources []CaptionSource, probe MetadataProbe, language string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if language == "" {
		language = "en"
	}
	return &Extractor{sources: sources, probe: probe, language: language, logger: logger}
}

// Extract resolves the video reference and walks the source chain until one
// produces non-trivial text. Failure of one source is a signal to try the next,
// never a user-visible error; only full exhaustion returns ErrNoTranscript.
func (e *Extractor) Extract(ctx context.Context, reference string) (*models.TranscriptResult, error) {
	videoID, err := ExtractVideoID(reference)
	if err != nil {
		return nil, err
	}

	var text string
	for _, src := range e.sources {
		got, err := src.Fetch(ctx, videoID, e.language)
		if err != nil {
			e.logger.Debug("caption source failed",
				zap.String("source", src.Name()),
				zap.String("video_id", videoID),
				zap.Error(err))
			continue
		}
		got = strings.TrimSpace(got)
		if len(got) < minTranscriptLen {
			e.logger.Debug("caption source returned trivial text",
				zap.String("source", src.Name()),
				zap.String("video_id", videoID),
				zap.Int("length", len(got)))
			continue
		}
		text = got
		e.logger.Info("transcript extracted",
			zap.String("source", src.Name()),
			zap.String("video_id", videoID),
			zap.Int("length", len(text)))
		break
	}
	if text == "" {
		return nil, ErrNoTranscript
	}

	result := &models.TranscriptResult{Transcript: text, VideoID: videoID}
	if e.probe != nil {
		title, channel, err := e.probe.Probe(ctx, videoID)
		if err != nil {
			e.logger.Debug("metadata probe failed", zap.String("video_id", videoID), zap.Error(err))
		} else {
			result.Title = title
			result.ChannelName = channel
		}
	}
	return result, nil
}

// expandLanguages returns the candidate language codes for a primary language:
// the language itself followed by its regional siblings. YouTube labels
// auto-generated English tracks "en-orig" on some videos.
func expandLanguages(lang string) []string {
	base := lang
	if i := strings.Index(base, "-"); i > 0 {
		base = base[:i]
	}
	switch base {
	case "en":
		return []string{"en", "en-US", "en-GB", "en-orig"}
	case "es":
		return []string{"es", "es-ES", "es-419"}
	case "pt":
		return []string{"pt", "pt-BR", "pt-PT"}
	case "zh":
		return []string{"zh", "zh-Hans", "zh-Hant"}
	default:
		if base == lang {
			return []string{base}
		}
		return []string{lang, base}
	}
}
