package core

// run_limiter.go admits roster runs into a fixed number of slots.
//
// Rosters are processed one at a time by default. A run that finds every
// slot taken queues for up to maxWait before failing with ErrTooManyRuns.
// The limiter remembers what each slot is doing so /api/status can show it
// and shutdown can wait for the last run to finish.

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"
)

// ErrTooManyRuns is returned when all run slots are occupied and the wait
// timeout expires. Clients should retry after a short delay.
var ErrTooManyRuns = errors.New("too many runs in progress, please try again later")

// DefaultMaxConcurrentRuns is the default limit for parallel runs.
const DefaultMaxConcurrentRuns = 1

// DefaultRunWait is how long to wait for a slot before rejecting.
const DefaultRunWait = 10 * time.Second

// ActiveRun describes a run holding a slot.
type ActiveRun struct {
	Source   string    `json:"source"`
	Since    time.Time `json:"since"`
	QueuedMS int64     `json:"queuedMs"`
}

// RunLimiterStatus is a snapshot of the limiter's state.
type RunLimiterStatus struct {
	Active        int         `json:"active"`
	Waiting       int         `json:"waiting"`
	Available     int         `json:"available"`
	MaxConcurrent int         `json:"maxConcurrent"`
	Running       []ActiveRun `json:"running"`
}

// RunLimiter hands out run slots.
type RunLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu      sync.Mutex
	nextID  uint64
	running map[uint64]ActiveRun
	waiting int
	idle    chan struct{} // closed while no run holds a slot
}

// NewRunLimiter creates a limiter that allows at most maxConcurrent
// simultaneous runs.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultRunWait
	}
	idle := make(chan struct{})
	close(idle)

	return &RunLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		running: make(map[uint64]ActiveRun),
		idle:    idle,
	}
}

// Admit waits for a slot for a run reading source. It returns how long the
// run queued and a release func that must be called exactly once when the
// run is done.
func (l *RunLimiter) Admit(ctx context.Context, source string) (release func(), queued time.Duration, err error) {
	start := time.Now()

	l.mu.Lock()
	l.waiting++
	l.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
	case <-waitCtx.Done():
		l.mu.Lock()
		l.waiting--
		l.mu.Unlock()
		if ctx.Err() != nil {
			return nil, time.Since(start), ctx.Err()
		}
		return nil, time.Since(start), ErrTooManyRuns
	}

	queued = time.Since(start)

	l.mu.Lock()
	l.waiting--
	l.nextID++
	id := l.nextID
	if len(l.running) == 0 {
		l.idle = make(chan struct{})
	}
	l.running[id] = ActiveRun{Source: source, Since: time.Now(), QueuedMS: queued.Milliseconds()}
	l.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { l.release(id) }) }, queued, nil
}

func (l *RunLimiter) release(id uint64) {
	l.mu.Lock()
	delete(l.running, id)
	if len(l.running) == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	<-l.slots
}

// Status returns the current limiter state, running runs oldest first.
func (l *RunLimiter) Status() RunLimiterStatus {
	l.mu.Lock()
	running := slices.SortedFunc(maps.Values(l.running), func(a, b ActiveRun) int {
		return a.Since.Compare(b.Since)
	})
	waiting := l.waiting
	l.mu.Unlock()

	return RunLimiterStatus{
		Active:        len(running),
		Waiting:       waiting,
		Available:     cap(l.slots) - len(running),
		MaxConcurrent: cap(l.slots),
		Running:       running,
	}
}

// WaitForDrain blocks until no run holds a slot or ctx is done.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
