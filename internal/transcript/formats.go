package transcript

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// parseJSON3 reconstructs plain text from YouTube's json3 caption format:
// events carrying segs, each seg carrying a utf8 fragment. Events without segs
// (window/position events) are skipped. A well-formed document with zero caption
// events parses to the empty string.
func parseJSON3(data []byte) (string, error) {
	var doc struct {
		Events []struct {
			Segs []struct {
				UTF8 string `json:"utf8"`
			} `json:"segs"`
		} `json:"events"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse json3: %w", err)
	}

	var sb strings.Builder
	for _, event := range doc.Events {
		if len(event.Segs) == 0 {
			continue
		}
		var line strings.Builder
		for _, seg := range event.Segs {
			line.WriteString(seg.UTF8)
		}
		piece := strings.TrimSpace(line.String())
		if piece == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(piece)
	}
	return sb.String(), nil
}

var ttmlParaRegex = regexp.MustCompile(`<p[^>]*>(.*?)</p>`)
var tagRegex = regexp.MustCompile(`<[^>]+>`)

// parseTTML reconstructs plain text from timed-text markup: the content of each
// <p> element in document order, with inner tags stripped and HTML entities
// decoded.
func parseTTML(data []byte) (string, error) {
	matches := ttmlParaRegex.FindAllStringSubmatch(string(data), -1)
	var sb strings.Builder
	for _, m := range matches {
		text := tagRegex.ReplaceAllString(m[1], " ")
		text = strings.Join(strings.Fields(html.UnescapeString(text)), " ")
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// parseVTT reconstructs plain text from WebVTT: every line that is not the
// header, a cue timing line, a cue number, or blank, in order. Repeated lines
// from rolling auto-captions are collapsed.
func parseVTT(data []byte) (string, error) {
	var sb strings.Builder
	var last string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "WEBVTT" ||
			strings.HasPrefix(line, "Kind:") || strings.HasPrefix(line, "Language:") ||
			strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "STYLE") ||
			strings.Contains(line, "-->") || isCueNumber(line) {
			continue
		}
		text := strings.TrimSpace(html.UnescapeString(tagRegex.ReplaceAllString(line, "")))
		if text == "" || text == last {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(text)
		last = text
	}
	return sb.String(), nil
}

func isCueNumber(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
