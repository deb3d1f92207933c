package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultIdleTimeout is how long a session may sit idle before eviction.
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultWarnBefore is how long before eviction the expiry warning fires.
	DefaultWarnBefore = 5 * time.Minute

	// DefaultScanPeriod is the interval between sweeper scans.
	DefaultScanPeriod = 10 * time.Minute
)

// WarningSender delivers the pre-expiry notice on a conversation.
// xmpp.Messenger satisfies it.
type WarningSender interface {
	Send(ctx context.Context, conversation string, text string) error
}

// Sweeper periodically scans the registry, warns sessions approaching the
// idle timeout, and evicts the ones past it. Eviction is two-phase: the scan
// only collects candidates, and Registry.Evict re-checks the deadline under
// the session lock, so a session that became active between the two passes
// survives.
type Sweeper struct {
	registry    *Registry
	notifier    WarningSender
	idleTimeout time.Duration
	warnBefore  time.Duration
	scanPeriod  time.Duration
	warningText string
	logger      *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewSweeper creates a sweeper with the default timing constants.
func NewSweeper(registry *Registry, notifier WarningSender) *Sweeper {
	return NewSweeperWithTimeouts(registry, notifier, DefaultIdleTimeout, DefaultWarnBefore, DefaultScanPeriod)
}

// NewSweeperWithTimeouts creates a sweeper with custom timing. warnBefore
// must be shorter than idleTimeout.
func NewSweeperWithTimeouts(registry *Registry, notifier WarningSender, idleTimeout, warnBefore, scanPeriod time.Duration) *Sweeper {
	return &Sweeper{
		registry:    registry,
		notifier:    notifier,
		idleTimeout: idleTimeout,
		warnBefore:  warnBefore,
		scanPeriod:  scanPeriod,
		warningText: fmt.Sprintf("Your scripting session is going to expire in %s.", warnBefore),
		logger: slog.Default().With(
			slog.String("component", "session.sweeper"),
		),
	}
}

// Start begins the background scan loop. Starting an already running
// sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(sweepCtx)

	return nil
}

// Stop cancels the loop and blocks until it has exited. A scan in progress
// completes its current eviction before the loop terminates, so no session
// is left half-evicted.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// IsRunning reports whether the scan loop is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

func (s *Sweeper) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		if s.done != nil {
			close(s.done)
		}
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.scanPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Sweeper stopping")
			return

		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep is one scan cycle: warn everything inside the warning window, then
// evict everything past the timeout through the deadline re-check.
func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now()
	evictCutoff := now.Add(-s.idleTimeout)
	warnCutoff := now.Add(-(s.idleTimeout - s.warnBefore))

	var candidates []string
	s.registry.ForEach(func(conversation string, sess *Session) {
		lastAccess, warned := sess.idleSnapshot()
		switch {
		case !lastAccess.After(evictCutoff):
			// Do not evict inline while iterating; an evaluation may be
			// refreshing lastAccess right now.
			candidates = append(candidates, conversation)

		case !lastAccess.After(warnCutoff) && !warned:
			if !sess.markWarned(warnCutoff, evictCutoff) {
				return
			}
			// Send outside the session lock; delivery may block on the network.
			if err := s.notifier.Send(ctx, conversation, s.warningText); err != nil {
				s.logger.WarnContext(ctx, "Failed to send expiry warning",
					slog.String("conversation", conversation),
					slog.Any("error", err),
				)
			}
		}
	})

	evicted := 0
	for _, conversation := range candidates {
		if s.registry.Evict(conversation, evictCutoff) {
			evicted++
			s.logger.InfoContext(ctx, "Evicted idle session",
				slog.String("conversation", conversation),
			)
		}
	}

	if evicted > 0 {
		s.logger.DebugContext(ctx, "Sweep finished",
			slog.Int("evicted", evicted),
			slog.Int("remaining", s.registry.Len()),
		)
	}
}
