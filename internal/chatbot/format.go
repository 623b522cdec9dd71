package chatbot

import (
	"regexp"
	"strings"
)

var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

// Span is a run of text with uniform emphasis.
type Span struct {
	Text string `json:"text"`
	Bold bool   `json:"bold,omitempty"`
}

// Line is one rendered line of a reply.
type Line struct {
	Spans  []Span `json:"spans"`
	Indent bool   `json:"indent,omitempty"`
}

// Format splits reply into lines of bold and plain spans. Lines that start with
// "-" or "•" are list items and are marked for indentation.
func Format(reply string) []Line {
	raw := strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n")
	lines := make([]Line, 0, len(raw))
	for _, text := range raw {
		trimmed := strings.TrimLeft(text, " \t")
		lines = append(lines, Line{
			Spans:  splitBold(text),
			Indent: strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "•"),
		})
	}
	return lines
}

func splitBold(text string) []Span {
	spans := []Span{}
	last := 0
	for _, m := range boldPattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			spans = append(spans, Span{Text: text[last:m[0]]})
		}
		spans = append(spans, Span{Text: text[m[2]:m[3]], Bold: true})
		last = m[1]
	}
	if last < len(text) {
		spans = append(spans, Span{Text: text[last:]})
	}
	return spans
}
