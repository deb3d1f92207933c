package xmpp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	goxmpp "github.com/xmppo/go-xmpp"
)

// GoXMPPClient implements Client over github.com/xmppo/go-xmpp. It owns one
// server connection as an explicitly constructed object: main builds it,
// connects at startup, disconnects at shutdown, and hands it to whichever
// component needs to send.
type GoXMPPClient struct {
	opts   goxmpp.Options
	logger *slog.Logger

	mu   sync.Mutex
	conn *goxmpp.Client
}

var _ Client = (*GoXMPPClient)(nil)

// NewClient creates an unconnected client for the given server and account.
// host is "server:port"; jid is the bot's bare JID.
func NewClient(host, jid, password, resource string, useTLS bool) *GoXMPPClient {
	return &GoXMPPClient{
		opts: goxmpp.Options{
			Host:     host,
			User:     jid,
			Password: password,
			Resource: resource,
			NoTLS:    !useTLS,
			StartTLS: true,
			Session:  true,
		},
		logger: slog.Default().With(
			slog.String("component", "xmpp.client"),
		),
	}
}

// Connect implements Client.Connect. An existing connection is closed first,
// so Connect doubles as reconnect.
func (c *GoXMPPClient) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("connect aborted: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.WarnContext(ctx, "Failed to close stale connection",
				slog.Any("error", err),
			)
		}
		c.conn = nil
	}

	conn, err := c.opts.NewClient()
	if err != nil {
		return fmt.Errorf("failed to connect to %s as %s: %w", c.opts.Host, c.opts.User, err)
	}
	c.conn = conn

	c.logger.InfoContext(ctx, "Connected",
		slog.String("host", c.opts.Host),
		slog.String("jid", c.opts.User),
	)
	return nil
}

// Disconnect implements Client.Disconnect.
func (c *GoXMPPClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Send implements Client.Send.
func (c *GoXMPPClient) Send(jid string, text string) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	_, err := conn.Send(goxmpp.Chat{
		Remote: jid,
		Type:   "chat",
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send chat to %s: %w", jid, err)
	}
	return nil
}

// Recv implements Client.Recv. Chat bodies become EventMessage; presence
// subscription requests are approved and surfaced as EventNewConversation so
// the session for a new peer can be created eagerly.
func (c *GoXMPPClient) Recv() (Event, bool, error) {
	conn := c.current()
	if conn == nil {
		return Event{}, false, ErrNotConnected
	}

	stanza, err := conn.Recv()
	if err != nil {
		return Event{}, false, fmt.Errorf("failed to receive stanza: %w", err)
	}

	switch st := stanza.(type) {
	case goxmpp.Chat:
		if st.Type != "chat" || st.Text == "" {
			return Event{}, false, nil
		}
		return Event{
			Kind:         EventMessage,
			Conversation: BareJID(st.Remote),
			Text:         st.Text,
			Timestamp:    time.Now(),
		}, true, nil

	case goxmpp.Presence:
		if st.Type != "subscribe" {
			return Event{}, false, nil
		}
		conn.ApproveSubscription(st.From)
		return Event{
			Kind:         EventNewConversation,
			Conversation: BareJID(st.From),
			Timestamp:    time.Now(),
		}, true, nil
	}

	return Event{}, false, nil
}

func (c *GoXMPPClient) current() *goxmpp.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn
}

// BareJID strips the resource part from a full JID, yielding the stable
// conversation identity.
func BareJID(jid string) string {
	if i := strings.IndexByte(jid, '/'); i >= 0 {
		return jid[:i]
	}
	return jid
}
