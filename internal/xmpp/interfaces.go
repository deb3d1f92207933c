// Package xmpp provides the chat transport the bot speaks over.
package xmpp

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected indicates an operation on a client with no live connection.
var ErrNotConnected = errors.New("not connected to server")

// EventKind discriminates inbound transport events.
type EventKind int

const (
	// EventMessage is an inbound chat message with a non-empty body.
	EventMessage EventKind = iota

	// EventNewConversation signals a peer opening a conversation (presence
	// subscription), before any message has arrived.
	EventNewConversation
)

// Event is one inbound transport occurrence. Conversation is the peer's
// bare JID and identifies the chat thread for the session registry.
type Event struct {
	Kind         EventKind
	Conversation string
	Text         string
	Timestamp    time.Time
}

// Messenger abstracts the chat channel the router, sweeper, and alert
// sender talk through.
type Messenger interface {
	// Send delivers text to the conversation's peer.
	Send(ctx context.Context, conversation string, text string) error

	// Subscribe returns the channel of inbound events. The channel closes
	// when the subscription ends (context canceled or connection lost).
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// Client is the low-level connection to the chat server. Implementations
// own exactly one connection; the process connects at startup and
// disconnects at shutdown.
type Client interface {
	// Connect dials the server and authenticates.
	Connect(ctx context.Context) error

	// Disconnect closes the connection. Idempotent; disconnecting unblocks
	// a pending Recv.
	Disconnect() error

	// Send transmits a chat message to jid.
	Send(jid string, text string) error

	// Recv blocks for the next inbound stanza. ok is false for stanzas of
	// no interest to the bot (receipts, presence updates, empty bodies).
	Recv() (event Event, ok bool, err error)
}
