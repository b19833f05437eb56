package transcript

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTimedtextFixture(t *testing.T, handler http.HandlerFunc) *TimedtextSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	src := NewTimedtextSource(nil)
	src.BaseURL = srv.URL
	return src
}

func TestTimedtextFallsBackToNextFormatOnError(t *testing.T) {
	var firstLangFormats []string
	src := newTimedtextFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lang") == "en" {
			firstLangFormats = append(firstLangFormats, r.URL.Query().Get("fmt"))
		}
		switch r.URL.Query().Get("fmt") {
		case "ttml":
			_, _ = w.Write([]byte(`<tt><body><div><p>from timed text markup</p></div></body></tt>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	text, err := src.Fetch(context.Background(), "dQw4w9WgXcQ", "en")
	require.NoError(t, err)
	require.Equal(t, "from timed text markup", text)
	require.Equal(t, []string{"json3", "ttml"}, firstLangFormats,
		"json3 is tried first; its failure moves to ttml, and success stops the ladder")
}

func TestTimedtextEmptyDocumentsFallThroughToVTT(t *testing.T) {
	src := newTimedtextFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("fmt") {
		case "json3":
			_, _ = w.Write([]byte(`{"events":[]}`)) // well-formed, no captions
		case "ttml":
			_, _ = w.Write([]byte(`<tt><body></body></tt>`))
		case "vtt":
			_, _ = w.Write([]byte("WEBVTT\n\n00:00:00.000 --> 00:00:02.000\nfinal format wins\n"))
		}
	})

	text, err := src.Fetch(context.Background(), "dQw4w9WgXcQ", "en")
	require.NoError(t, err)
	require.Equal(t, "final format wins", text)
}

func TestTimedtextAdvancesToNextLanguageVariant(t *testing.T) {
	var langs []string
	src := newTimedtextFixture(t, func(w http.ResponseWriter, r *http.Request) {
		lang := r.URL.Query().Get("lang")
		if r.URL.Query().Get("fmt") == "json3" {
			langs = append(langs, lang)
		}
		if lang == "en-US" && r.URL.Query().Get("fmt") == "json3" {
			_, _ = w.Write([]byte(`{"events":[{"segs":[{"utf8":"regional variant track"}]}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	text, err := src.Fetch(context.Background(), "dQw4w9WgXcQ", "en")
	require.NoError(t, err)
	require.Equal(t, "regional variant track", text)
	require.Equal(t, []string{"en", "en-US"}, langs)
}

func TestTimedtextMalformedPayloadMovesOn(t *testing.T) {
	src := newTimedtextFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("fmt") {
		case "json3":
			_, _ = w.Write([]byte(`{"events": [`)) // truncated
		case "ttml":
			_, _ = w.Write([]byte(`<tt><body><div><p>survived the parse failure</p></div></body></tt>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	text, err := src.Fetch(context.Background(), "dQw4w9WgXcQ", "en")
	require.NoError(t, err)
	require.Equal(t, "survived the parse failure", text)
}

func TestTimedtextAllFormatsExhaustedReturnsError(t *testing.T) {
	src := newTimedtextFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	text, err := src.Fetch(context.Background(), "dQw4w9WgXcQ", "en")
	require.Error(t, err)
	require.Empty(t, text)
}

func TestTimedtextAllEmptyReturnsNoTextNoError(t *testing.T) {
	src := newTimedtextFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("fmt") {
		case "json3":
			_, _ = w.Write([]byte(`{"events":[]}`))
		case "ttml":
			_, _ = w.Write([]byte(`<tt><body></body></tt>`))
		case "vtt":
			_, _ = w.Write([]byte("WEBVTT\n"))
		}
	})

	text, err := src.Fetch(context.Background(), "dQw4w9WgXcQ", "en")
	require.NoError(t, err)
	require.Empty(t, text)
}
