package speech

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		max      int
		expected []string
	}{
		{name: "empty", text: "", max: 800, expected: nil},
		{name: "under limit", text: "hello", max: 800, expected: []string{"hello"}},
		{name: "exact limit", text: "abcd", max: 4, expected: []string{"abcd"}},
		{name: "one over", text: "abcde", max: 4, expected: []string{"abcd", "e"}},
		{name: "multiple", text: "aaaabbbbcc", max: 4, expected: []string{"aaaa", "bbbb", "cc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitText(tt.text, tt.max)
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestSplitTextCoversInputExactly(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("All work and no play makes Jack a dull boy. ", 60) // ~2640 chars
	segments := SplitText(text, SegmentSize)

	require.Greater(t, len(segments), 1)
	for _, seg := range segments {
		require.LessOrEqual(t, len([]rune(seg)), SegmentSize)
	}
	require.Equal(t, text, strings.Join(segments, ""))
}

func TestSplitTextRespectsRuneBoundaries(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("日本語のテキスト", 200)
	segments := SplitText(text, SegmentSize)
	require.Equal(t, text, strings.Join(segments, ""))
	for _, seg := range segments {
		require.True(t, strings.HasPrefix(text, segments[0]))
		require.LessOrEqual(t, len([]rune(seg)), SegmentSize)
	}
}

func TestSynthesizeLongShortPathSingleCall(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	synth := NewSynthesizer(nil)
	synth.EndpointOverride = srv.URL

	text := strings.Repeat("a", ShortTextLimit)
	audio, err := synth.SynthesizeLong(context.Background(), SynthesisRequest{
		Text: text, Voice: "en-US-JennyNeural", Language: "en-US",
		Credentials: Credentials{APIKey: "k", Region: "eastus"},
	})
	require.NoError(t, err)
	require.Equal(t, []byte("mp3"), audio)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSynthesizeLongChunksSequentially(t *testing.T) {
	t.Parallel()

	var calls, inFlight, maxInFlight int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt32(&inFlight, 1)
		if cur > atomic.LoadInt32(&maxInFlight) {
			atomic.StoreInt32(&maxInFlight, cur)
		}
		defer atomic.AddInt32(&inFlight, -1)

		atomic.AddInt32(&calls, 1)
		body, _ := io.ReadAll(r.Body)
		// Echo a marker per segment so the caller's concatenation order is observable.
		_, _ = w.Write([]byte{byte(len(body) % 251)})
	}))
	defer srv.Close()

	synth := NewSynthesizer(nil)
	synth.EndpointOverride = srv.URL

	text := strings.Repeat("x", 2500) // 4 segments of <= 800
	audio, err := synth.SynthesizeLong(context.Background(), SynthesisRequest{
		Text: text, Voice: "en-US-JennyNeural", Language: "en-US",
		Credentials: Credentials{APIKey: "k", Region: "eastus"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 4, atomic.LoadInt32(&calls))
	require.EqualValues(t, 1, atomic.LoadInt32(&maxInFlight), "segments must be synthesized one at a time")
	require.Len(t, audio, 4, "one byte per segment response, concatenated")
}

func TestSynthesizeLongCombinedLengthIsSumOfChunks(t *testing.T) {
	t.Parallel()

	chunk := []byte("0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chunk)
	}))
	defer srv.Close()

	synth := NewSynthesizer(nil)
	synth.EndpointOverride = srv.URL

	text := strings.Repeat("y", 1601) // 3 segments
	audio, err := synth.SynthesizeLong(context.Background(), SynthesisRequest{
		Text: text, Voice: "v", Language: "en-US",
		Credentials: Credentials{APIKey: "k", Region: "eastus"},
	})
	require.NoError(t, err)
	require.Equal(t, 3*len(chunk), len(audio))
}

func TestSynthesizeLongAbortsOnSegmentFailure(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 2 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream choked"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	synth := NewSynthesizer(nil)
	synth.EndpointOverride = srv.URL

	text := strings.Repeat("z", 2000)
	audio, err := synth.SynthesizeLong(context.Background(), SynthesisRequest{
		Text: text, Voice: "v", Language: "en-US",
		Credentials: Credentials{APIKey: "k", Region: "eastus"},
	})
	require.Error(t, err)
	require.Nil(t, audio, "partial audio must be discarded")
	require.EqualValues(t, 2, atomic.LoadInt32(&calls), "no segments after the failing one")
}
