package cooldown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func allowed(results ...Result) []bool {
	out := make([]bool, len(results))
	for i, r := range results {
		out[i] = r.Allowed
	}
	return out
}

func TestFixedWindowAllowsMaxUsesThenDenies(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock.Now))
	window := 5 * time.Second

	first := l.Check("u1", "ping", window, 2)
	clock.Advance(time.Second)
	second := l.Check("u1", "ping", window, 2)
	clock.Advance(time.Second)
	third := l.Check("u1", "ping", window, 2)

	assert.Equal(t, []bool{true, true, false}, allowed(first, second, third))

	assert.Equal(t, Result{Allowed: true, RemainingSeconds: 0, RemainingUses: 1}, first)
	assert.Equal(t, Result{Allowed: true, RemainingSeconds: 4, RemainingUses: 0}, second)
	assert.Equal(t, Result{Allowed: false, RemainingSeconds: 3, RemainingUses: 0}, third)

	clock.Advance(3*time.Second + time.Millisecond)
	fourth := l.Check("u1", "ping", window, 2)
	assert.True(t, fourth.Allowed)
	assert.Equal(t, 1, fourth.RemainingUses)

	entry, ok := l.Lookup("u1", "ping")
	require.True(t, ok)
	assert.Equal(t, 1, entry.Uses)
	assert.Equal(t, clock.Now(), entry.WindowStart)
}

func TestWindowBoundaryIsStillActive(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock.Now))

	require.True(t, l.Check("u1", "ping", 3*time.Second, 1).Allowed)
	clock.Advance(3 * time.Second)

	res := l.Check("u1", "ping", 3*time.Second, 1)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.RemainingSeconds)
}

func TestRemainingSecondsRoundsUp(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock.Now))

	l.Check("u1", "ping", 3*time.Second, 1)
	clock.Advance(100 * time.Millisecond)

	res := l.Check("u1", "ping", 3*time.Second, 1)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3, res.RemainingSeconds)
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	require.True(t, l.Check("u1", "ping", time.Minute, 1).Allowed)

	assert.True(t, l.Check("u2", "ping", time.Minute, 1).Allowed)
	assert.True(t, l.Check("u1", "help", time.Minute, 1).Allowed)
	assert.False(t, l.Check("u1", "ping", time.Minute, 1).Allowed)
}

func TestNonPositiveMaxUsesAlwaysDenied(t *testing.T) {
	l := New()
	for _, max := range []int{0, -1} {
		res := l.Check("u1", "ping", 3*time.Second, max)
		assert.False(t, res.Allowed)
		assert.Equal(t, 3, res.RemainingSeconds)
	}
	assert.Equal(t, 0, l.Len())
}

func TestNonPositiveWindowAlwaysFresh(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		res := l.Check("u1", "ping", 0, 1)
		assert.True(t, res.Allowed)
		assert.Equal(t, 0, res.RemainingUses)
	}
}

func TestResetsAreIdempotent(t *testing.T) {
	l := New()
	l.Check("u1", "ping", time.Minute, 1)
	l.Check("u1", "help", time.Minute, 1)
	l.Check("u2", "ping", time.Minute, 1)
	l.Check("u3", "roll", time.Minute, 1)

	assert.Equal(t, 1, l.Reset("u1", "ping"))
	assert.Equal(t, 0, l.Reset("u1", "ping"))
	assert.Equal(t, 3, l.Len())
	assert.True(t, l.Check("u1", "ping", time.Minute, 1).Allowed)

	assert.Equal(t, 2, l.ResetCommand("ping"))
	assert.Equal(t, 0, l.ResetCommand("ping"))
	assert.Equal(t, 2, l.Len())

	assert.Equal(t, 1, l.ResetActor("u1"))
	assert.Equal(t, 0, l.ResetActor("u1"))
	assert.Equal(t, 1, l.Len())

	_, ok := l.Lookup("u3", "roll")
	assert.True(t, ok)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock.Now))

	l.Check("u1", "ping", 2*time.Second, 1)
	l.Check("u2", "ping", time.Minute, 1)
	clock.Advance(5 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
	_, ok := l.Lookup("u2", "ping")
	assert.True(t, ok)
}

func TestConcurrentChecksDoNotLoseUpdates(t *testing.T) {
	l := New()
	const callers = 64
	const maxUses = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("u1", "ping", time.Minute, maxUses).Allowed {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, maxUses, granted)
}

func TestRunCleanerStopsOnCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunCleaner(ctx, l, 10*time.Millisecond, nil) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
}
