package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbotio/jabberops/internal/session"
)

// recordingNotifier captures expiry warnings.
type recordingNotifier struct {
	mu    sync.Mutex
	err   error
	sends []string
}

func (n *recordingNotifier) Send(_ context.Context, conversation string, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sends = append(n.sends, conversation)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.sends)
}

func TestSweeper_StartStop(t *testing.T) {
	registry := session.NewRegistry(&stubFactory{})
	sweeper := session.NewSweeperWithTimeouts(registry, &recordingNotifier{},
		time.Hour, time.Minute, 10*time.Millisecond)

	require.NoError(t, sweeper.Start(context.Background()))
	assert.True(t, sweeper.IsRunning())

	// Starting again is a no-op.
	require.NoError(t, sweeper.Start(context.Background()))

	sweeper.Stop()
	assert.False(t, sweeper.IsRunning())

	// Stopping a stopped sweeper is safe.
	sweeper.Stop()
}

func TestSweeper_WarnsOnceBeforeEviction(t *testing.T) {
	factory := &stubFactory{}
	registry := session.NewRegistry(factory)
	notifier := &recordingNotifier{}

	// Warning threshold is idleTimeout-warnBefore = 100ms; eviction is an
	// hour away, so many scans cross the warning window.
	sweeper := session.NewSweeperWithTimeouts(registry, notifier,
		time.Hour, time.Hour-100*time.Millisecond, 20*time.Millisecond)

	_, err := registry.AccessOrCreate("alice@example.com")
	require.NoError(t, err)

	require.NoError(t, sweeper.Start(context.Background()))
	defer sweeper.Stop()

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, notifier.count(), "exactly one warning per idle period, not one per scan tick")

	// Fresh activity re-arms the warning.
	_, err = registry.AccessOrCreate("alice@example.com")
	require.NoError(t, err)

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 2, notifier.count())
}

func TestSweeper_EvictsIdleSessions(t *testing.T) {
	factory := &stubFactory{}
	registry := session.NewRegistry(factory)
	notifier := &recordingNotifier{}

	sweeper := session.NewSweeperWithTimeouts(registry, notifier,
		150*time.Millisecond, 50*time.Millisecond, 20*time.Millisecond)

	before, err := registry.AccessOrCreate("alice@example.com")
	require.NoError(t, err)

	require.NoError(t, sweeper.Start(context.Background()))
	defer sweeper.Stop()

	require.Eventually(t, func() bool { return registry.Len() == 0 },
		time.Second, 10*time.Millisecond, "idle session should be evicted")

	// The warning fired before the eviction.
	assert.GreaterOrEqual(t, notifier.count(), 1)

	// A new message creates a brand-new session; interpreter state is gone.
	after, err := registry.AccessOrCreate("alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, before.ID(), after.ID())
}

func TestSweeper_DoesNotEvictActiveSession(t *testing.T) {
	factory := &stubFactory{}
	registry := session.NewRegistry(factory)

	sweeper := session.NewSweeperWithTimeouts(registry, &recordingNotifier{},
		100*time.Millisecond, 50*time.Millisecond, 10*time.Millisecond)

	sess, err := registry.AccessOrCreate("alice@example.com")
	require.NoError(t, err)

	require.NoError(t, sweeper.Start(context.Background()))
	defer sweeper.Stop()

	// Keep the session active well past several idle timeouts.
	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		again, err := registry.AccessOrCreate("alice@example.com")
		require.NoError(t, err)
		require.Equal(t, sess.ID(), again.ID(), "active session must never be evicted")
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, 1, registry.Len())
}

func TestSweeper_WarningFailureDoesNotAbortCycle(t *testing.T) {
	factory := &stubFactory{}
	registry := session.NewRegistry(factory)
	notifier := &recordingNotifier{err: errors.New("transport down")}

	sweeper := session.NewSweeperWithTimeouts(registry, notifier,
		150*time.Millisecond, 50*time.Millisecond, 20*time.Millisecond)

	_, err := registry.AccessOrCreate("alice@example.com")
	require.NoError(t, err)

	require.NoError(t, sweeper.Start(context.Background()))
	defer sweeper.Stop()

	// Eviction still happens even though every warning send fails.
	require.Eventually(t, func() bool { return registry.Len() == 0 },
		time.Second, 10*time.Millisecond)
}
