// Package router turns inbound transport events into script evaluations and
// replies. It is the sole consumer of the messenger's event channel and the
// only caller of Session.Evaluate.
package router

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/opsbotio/jabberops/internal/session"
	"github.com/opsbotio/jabberops/internal/xmpp"
)

// floodNotice is the reply for conversations exceeding the flood limit.
const floodNotice = "You are sending commands too quickly. Please wait a moment and try again."

// Router routes each inbound message to the sender's scripting session and
// sends the captured output back on the same conversation. Nothing the
// router does may escape as a failure; every error path is logged and
// swallowed.
type Router struct {
	registry  *session.Registry
	messenger xmpp.Messenger
	limiter   *Limiter
	logger    *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLimiter installs a per-conversation flood limiter.
func WithLimiter(limiter *Limiter) Option {
	return func(r *Router) {
		r.limiter = limiter
	}
}

// New creates a router over the given registry and messenger.
func New(registry *session.Registry, messenger xmpp.Messenger, opts ...Option) *Router {
	r := &Router{
		registry:  registry,
		messenger: messenger,
		logger: slog.Default().With(
			slog.String("component", "router"),
		),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consumes events until the channel closes or ctx is canceled, handling
// each on its own goroutine so a long-running script never delays other
// conversations. Run returns once all in-flight handlers have finished.
func (r *Router) Run(ctx context.Context, events <-chan xmpp.Event) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer r.recoverPanic(ctx, event.Conversation)

				switch event.Kind {
				case xmpp.EventNewConversation:
					r.OnNewConversation(ctx, event.Conversation)
				case xmpp.EventMessage:
					r.OnMessage(ctx, event.Conversation, event.Text)
				}
			}()
		}
	}
}

// OnMessage evaluates text in the conversation's session and replies with
// the captured output. Empty bodies are a no-op.
func (r *Router) OnMessage(ctx context.Context, conversation string, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	if r.limiter != nil && !r.limiter.Allow(conversation) {
		r.logger.WarnContext(ctx, "Flood limit exceeded",
			slog.String("conversation", conversation),
		)
		r.send(ctx, conversation, floodNotice)
		return
	}

	sess, err := r.registry.AccessOrCreate(conversation)
	if err != nil {
		// The message gets no reply; the next one retries creation.
		r.logger.ErrorContext(ctx, "Failed to create session",
			slog.String("conversation", conversation),
			slog.Any("error", err),
		)
		return
	}

	reply := sess.Evaluate(text)
	if reply == "" {
		r.logger.DebugContext(ctx, "Script produced no output",
			slog.String("conversation", conversation),
			slog.String("session_id", sess.ID()),
		)
		return
	}
	r.send(ctx, conversation, reply)
}

// OnNewConversation eagerly creates the session for a peer that just opened
// a conversation, so their first command does not pay construction cost.
// Creation failure is logged; the first message retries.
func (r *Router) OnNewConversation(ctx context.Context, conversation string) {
	sess, err := r.registry.AccessOrCreate(conversation)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create session for new conversation",
			slog.String("conversation", conversation),
			slog.Any("error", err),
		)
		return
	}
	r.logger.InfoContext(ctx, "Session created",
		slog.String("conversation", conversation),
		slog.String("session_id", sess.ID()),
	)
}

// send delivers a reply; a send failure only means the user does not see
// the output, so it is logged and dropped.
func (r *Router) send(ctx context.Context, conversation string, text string) {
	if err := r.messenger.Send(ctx, conversation, text); err != nil {
		r.logger.ErrorContext(ctx, "Failed to send reply",
			slog.String("conversation", conversation),
			slog.Any("error", err),
		)
	}
}

func (r *Router) recoverPanic(ctx context.Context, conversation string) {
	if v := recover(); v != nil {
		r.logger.ErrorContext(ctx, "PANIC while handling message",
			slog.String("conversation", conversation),
			slog.Any("panic", v),
			slog.String("stack_trace", string(debug.Stack())),
		)
	}
}
