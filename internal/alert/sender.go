// Package alert renders monitoring alerts into fixed-format chat messages
// and delivers them over the bot's transport. It is independent of the
// scripting core; the two only share the Messenger.
package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/opsbotio/jabberops/internal/xmpp"
)

// Alert describes one monitoring alert to deliver.
type Alert struct {
	Name      string
	Resource  string
	Condition string
	URL       string
}

// Body renders the chat message for a. The format is fixed; consumers that
// parse alert messages depend on it.
func (a Alert) Body() string {
	var b strings.Builder
	b.WriteString("Alert: ")
	b.WriteString(a.Name)
	b.WriteString("\nResource: ")
	b.WriteString(a.Resource)
	b.WriteString("\nCondition: ")
	b.WriteString(a.Condition)
	b.WriteString("\nURL: ")
	b.WriteString(a.URL)
	return b.String()
}

// Sender delivers alerts to chat recipients.
type Sender struct {
	messenger xmpp.Messenger
}

// NewSender creates a sender over messenger.
func NewSender(messenger xmpp.Messenger) *Sender {
	return &Sender{messenger: messenger}
}

// Send renders a and transmits it to recipient.
func (s *Sender) Send(ctx context.Context, recipient string, a Alert) error {
	if recipient == "" {
		return fmt.Errorf("alert recipient cannot be empty")
	}
	if err := s.messenger.Send(ctx, recipient, a.Body()); err != nil {
		return fmt.Errorf("failed to deliver alert %q: %w", a.Name, err)
	}
	return nil
}
