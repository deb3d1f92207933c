package xmpp_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbotio/jabberops/internal/xmpp"
)

// scriptedClient replays a fixed sequence of receive results, then reports
// the connection as closed.
type scriptedClient struct {
	mu      sync.Mutex
	queue   []recvResult
	sendErr error
	sent    []string
}

type recvResult struct {
	event xmpp.Event
	ok    bool
}

var _ xmpp.Client = (*scriptedClient)(nil)

func (c *scriptedClient) Connect(context.Context) error { return nil }
func (c *scriptedClient) Disconnect() error             { return nil }

func (c *scriptedClient) Send(jid string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, jid+": "+text)
	return c.sendErr
}

func (c *scriptedClient) Recv() (xmpp.Event, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return xmpp.Event{}, false, errors.New("connection closed")
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	return next.event, next.ok, nil
}

func TestMessenger_Send(t *testing.T) {
	client := &scriptedClient{}
	messenger := xmpp.NewMessenger(client)

	require.NoError(t, messenger.Send(context.Background(), "alice@example.com", "hello"))
	assert.Equal(t, []string{"alice@example.com: hello"}, client.sent)
}

func TestMessenger_Send_Validation(t *testing.T) {
	client := &scriptedClient{}
	messenger := xmpp.NewMessenger(client)

	assert.Error(t, messenger.Send(context.Background(), "", "hello"))
	assert.Error(t, messenger.Send(context.Background(), "alice@example.com", ""))
	assert.Empty(t, client.sent)
}

func TestMessenger_Send_WrapsClientError(t *testing.T) {
	client := &scriptedClient{sendErr: errors.New("stream error")}
	messenger := xmpp.NewMessenger(client)

	err := messenger.Send(context.Background(), "alice@example.com", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream error")
}

func TestMessenger_Subscribe_DeliversAndFilters(t *testing.T) {
	client := &scriptedClient{
		queue: []recvResult{
			{event: xmpp.Event{Kind: xmpp.EventNewConversation, Conversation: "alice@example.com"}, ok: true},
			{ok: false}, // stanza of no interest, must be skipped
			{event: xmpp.Event{Kind: xmpp.EventMessage, Conversation: "alice@example.com", Text: "1+1"}, ok: true},
		},
	}
	messenger := xmpp.NewMessenger(client)

	events, err := messenger.Subscribe(context.Background())
	require.NoError(t, err)

	var received []xmpp.Event
	for event := range events {
		received = append(received, event)
	}

	// The channel closed after the connection went away.
	require.Len(t, received, 2)
	assert.Equal(t, xmpp.EventNewConversation, received[0].Kind)
	assert.Equal(t, xmpp.EventMessage, received[1].Kind)
	assert.Equal(t, "1+1", received[1].Text)
}

func TestMessenger_Subscribe_StopsOnCancel(t *testing.T) {
	// An endless stream of uninteresting stanzas keeps the loop busy.
	client := &endlessClient{}
	messenger := xmpp.NewMessenger(client)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := messenger.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-events:
		assert.False(t, open, "channel should close after cancellation")
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop on cancellation")
	}
}

// endlessClient produces uninteresting stanzas forever.
type endlessClient struct{}

var _ xmpp.Client = (*endlessClient)(nil)

func (c *endlessClient) Connect(context.Context) error { return nil }
func (c *endlessClient) Disconnect() error             { return nil }
func (c *endlessClient) Send(string, string) error     { return nil }

func (c *endlessClient) Recv() (xmpp.Event, bool, error) {
	time.Sleep(5 * time.Millisecond)
	return xmpp.Event{}, false, nil
}
