// Package cooldown implements fixed-window per-(actor, command) usage limits.
//
// A window opens on the first use and admits maxUses calls; it resets
// discretely once it has elapsed. Bursts at window boundaries are allowed.
package cooldown

import (
	"sync"
	"time"
)

// Entry is the usage record of one actor for one command.
type Entry struct {
	WindowStart time.Time
	Uses        int
	Window      time.Duration
}

func (e *Entry) expired(now time.Time) bool {
	return now.Sub(e.WindowStart) > e.Window
}

// Result is the outcome of a Check.
type Result struct {
	Allowed          bool
	RemainingSeconds int
	RemainingUses    int
}

// Ledger is safe for concurrent use; every operation holds the ledger lock.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]map[string]*Entry // command -> actor -> entry
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New returns an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		entries: make(map[string]map[string]*Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check charges one use of command for actorID if the window allows it.
// maxUses <= 0 is always denied; window <= 0 always opens a fresh window.
func (l *Ledger) Check(actorID, command string, window time.Duration, maxUses int) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if maxUses <= 0 {
		return Result{Allowed: false, RemainingSeconds: ceilSeconds(window)}
	}

	actors, ok := l.entries[command]
	if !ok {
		actors = make(map[string]*Entry)
		l.entries[command] = actors
	}

	entry, ok := actors[actorID]
	if !ok || window <= 0 || now.Sub(entry.WindowStart) > window {
		actors[actorID] = &Entry{WindowStart: now, Uses: 1, Window: window}
		return Result{Allowed: true, RemainingSeconds: 0, RemainingUses: maxUses - 1}
	}

	remaining := ceilSeconds(entry.WindowStart.Add(window).Sub(now))
	if entry.Uses < maxUses {
		entry.Uses++
		entry.Window = window
		return Result{Allowed: true, RemainingSeconds: remaining, RemainingUses: maxUses - entry.Uses}
	}

	return Result{Allowed: false, RemainingSeconds: remaining, RemainingUses: 0}
}

// Reset deletes the entry of actorID for command.
func (l *Ledger) Reset(actorID, command string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	actors, ok := l.entries[command]
	if !ok {
		return 0
	}
	if _, ok := actors[actorID]; !ok {
		return 0
	}
	delete(actors, actorID)
	if len(actors) == 0 {
		delete(l.entries, command)
	}
	return 1
}

// ResetCommand deletes every entry of command.
func (l *Ledger) ResetCommand(command string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries[command])
	delete(l.entries, command)
	return n
}

// ResetActor deletes every entry of actorID across all commands.
func (l *Ledger) ResetActor(actorID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for command, actors := range l.entries {
		if _, ok := actors[actorID]; ok {
			delete(actors, actorID)
			n++
		}
		if len(actors) == 0 {
			delete(l.entries, command)
		}
	}
	return n
}

// Sweep drops expired entries and returns how many were removed.
func (l *Ledger) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for command, actors := range l.entries {
		for actorID, entry := range actors {
			if entry.expired(now) {
				delete(actors, actorID)
				n++
			}
		}
		if len(actors) == 0 {
			delete(l.entries, command)
		}
	}
	return n
}

// Len returns the number of tracked entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, actors := range l.entries {
		n += len(actors)
	}
	return n
}

// Lookup returns a copy of the entry for (actorID, command).
func (l *Ledger) Lookup(actorID, command string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[command][actorID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
