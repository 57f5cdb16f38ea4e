package notify

import (
	"context"
	"fmt"
	"strings"
)

// Event types
const (
	EventProposalsCreated = "on_proposals_created"
	EventPromotion        = "on_promotion"
	EventFailure          = "on_failure"
)

// Entry is one line of a notification: a review or tracking item.
type Entry struct {
	Priority string
	Title    string
	URL      string
}

// Message is what the pipeline hands to every provider. Providers render it
// in their own markup.
type Message struct {
	Event   string
	Title   string
	Text    string
	Entries []Entry
}

// PlainText renders the message as markdown-ish text for chat providers.
func (m Message) PlainText() string {
	var b strings.Builder
	b.WriteString(m.Title)
	if m.Text != "" {
		b.WriteString("\n" + m.Text)
	}
	for _, e := range m.Entries {
		b.WriteString("\n" + e.line())
	}
	return b.String()
}

func (e Entry) line() string {
	prefix := ""
	if e.Priority != "" {
		prefix = "[" + e.Priority + "] "
	}
	if e.URL == "" {
		return "• " + prefix + e.Title
	}
	return fmt.Sprintf("• %s%s %s", prefix, e.Title, e.URL)
}

// Provider delivers a message to one destination.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
