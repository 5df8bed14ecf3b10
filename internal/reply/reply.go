// Package reply models a structured model reply and extracts its text.
package reply

import (
	"strings"

	"github.com/openai/openai-go/v3/responses"
)

// Reply is the structured result of one remote exchange.
type Reply struct {
	// ID is the conversation handle issued for this exchange.
	ID string
	// PreviousID echoes the handle the request continued, empty when none.
	PreviousID string
	Output     []Item
}

// Item is one output item. Content is nil when the item carries no content parts.
type Item struct {
	Type    string
	Content []Part
}

// Part is one content part. Text is empty when the part carries no text.
type Part struct {
	Type string
	Text string
}

// FromResponse converts an SDK response into a Reply.
func FromResponse(resp *responses.Response) Reply {
	if resp == nil {
		return Reply{}
	}
	r := Reply{ID: resp.ID, PreviousID: resp.PreviousResponseID}
	if len(resp.Output) == 0 {
		return r
	}
	r.Output = make([]Item, 0, len(resp.Output))
	for _, o := range resp.Output {
		it := Item{Type: o.Type}
		if len(o.Content) > 0 {
			it.Content = make([]Part, 0, len(o.Content))
			for _, c := range o.Content {
				it.Content = append(it.Content, Part{Type: c.Type, Text: c.Text})
			}
		}
		r.Output = append(r.Output, it)
	}
	return r
}

// Fragments returns the non-empty text of every content part, in order.
func (r Reply) Fragments() []string {
	var out []string
	for _, it := range r.Output {
		for _, p := range it.Content {
			if p.Text != "" {
				out = append(out, p.Text)
			}
		}
	}
	return out
}

// Extract joins the reply's text fragments with newlines.
// ok is false when the reply holds no text at all.
func Extract(r Reply) (text string, ok bool) {
	frags := r.Fragments()
	if len(frags) == 0 {
		return "", false
	}
	return strings.Join(frags, "\n"), true
}
