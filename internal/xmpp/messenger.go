package xmpp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// messenger implements Messenger over a Client.
type messenger struct {
	client Client
	logger *slog.Logger

	mu           sync.Mutex
	subscription *subscription
}

// subscription tracks an active receive loop.
type subscription struct {
	cancel context.CancelFunc
	outCh  chan Event
	done   chan struct{}
}

// NewMessenger creates a messenger over client.
func NewMessenger(client Client) Messenger {
	return &messenger{
		client: client,
		logger: slog.Default().With(
			slog.String("component", "xmpp.messenger"),
		),
	}
}

// Send implements Messenger.Send.
func (m *messenger) Send(ctx context.Context, conversation string, text string) error {
	if conversation == "" {
		return fmt.Errorf("conversation cannot be empty")
	}
	if text == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send aborted: %w", err)
	}

	if err := m.client.Send(conversation, text); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Subscribe implements Messenger.Subscribe. A previous subscription is torn
// down first; there is at most one receive loop per messenger.
func (m *messenger) Subscribe(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subscription != nil {
		m.subscription.cancel()
		<-m.subscription.done
		m.subscription = nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		cancel: cancel,
		outCh:  make(chan Event),
		done:   make(chan struct{}),
	}
	m.subscription = sub

	go m.runSubscription(subCtx, sub)

	return sub.outCh, nil
}

// runSubscription pumps client.Recv into the event channel until the
// context is canceled or the connection goes away. Recv only unblocks when
// the connection closes, so shutdown is: cancel the context, then disconnect
// the client.
func (m *messenger) runSubscription(ctx context.Context, sub *subscription) {
	defer close(sub.done)
	defer close(sub.outCh)

	for {
		if ctx.Err() != nil {
			return
		}

		event, ok, err := m.client.Recv()
		if err != nil {
			if ctx.Err() != nil {
				// Expected: disconnect during shutdown unblocked Recv.
				return
			}
			m.logger.ErrorContext(ctx, "Receive failed, ending subscription",
				slog.Any("error", err),
			)
			return
		}
		if !ok {
			continue
		}

		select {
		case sub.outCh <- event:
		case <-ctx.Done():
			return
		}
	}
}
