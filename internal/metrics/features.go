// Package metrics derives size features from prompts and replies for telemetry.
package metrics

import (
	"strings"
	"unicode/utf8"

	"github.com/petasbytes/go-chat/internal/reply"
)

// Features holds basic local text features derived from an input string.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

// CountFeatures computes and returns byte, rune, word, and line counts for the input string.
func CountFeatures(s string) Features {
	return Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
		Lines: countLines(s),
	}
}

// countLines returns 0 for empty strings; otherwise 1 plus the number of '\n' runes.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return 1 + strings.Count(s, "\n")
}

// Map renders f as telemetry fields.
func (f Features) Map() map[string]any {
	return map[string]any{
		"bytes": f.Bytes,
		"runes": f.Runes,
		"words": f.Words,
		"lines": f.Lines,
	}
}

// ReplyShape counts the structure of a reply.
type ReplyShape struct {
	Items     int
	ItemTypes map[string]int
	Parts     int
	TextParts int
}

// CountReply summarises the items and content parts of r.
func CountReply(r reply.Reply) ReplyShape {
	s := ReplyShape{Items: len(r.Output), ItemTypes: map[string]int{}}
	for _, it := range r.Output {
		s.ItemTypes[it.Type]++
		s.Parts += len(it.Content)
		for _, p := range it.Content {
			if p.Text != "" {
				s.TextParts++
			}
		}
	}
	return s
}
