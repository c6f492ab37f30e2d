// Package trace keeps a bounded in-memory record of recent handler runs for
// the HTTP API and for tests that assert on dispatch.
package trace

import (
	"sync"
	"time"

	"roombot/internal/clock"
	"roombot/internal/command"
	"roombot/internal/engine"

	"github.com/google/uuid"
)

// DefaultCapacity is how many invocations a Recorder keeps.
const DefaultCapacity = 200

// Recorder is safe for concurrent use.
type Recorder struct {
	mu       sync.RWMutex
	clock    clock.Clock
	capacity int
	entries  []Invocation
	next     int
	full     bool
	stats    map[string]HandlerStats
}

// NewRecorder creates a recorder holding up to capacity invocations
func NewRecorder(capacity int, clk clock.Clock) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &Recorder{
		clock:    clk,
		capacity: capacity,
		entries:  make([]Invocation, capacity),
		stats:    make(map[string]HandlerStats),
	}
}

// Start opens an invocation for handler running cmd. The returned value is
// passed back to Finish.
func (r *Recorder) Start(handler string, cmd *command.Command) Invocation {
	return Invocation{
		ID:        uuid.NewString(),
		Handler:   handler,
		Verb:      cmd.Verb(),
		Room:      cmd.Room(),
		UserID:    cmd.UserID(),
		UserName:  cmd.UserName(),
		StartedAt: r.clock.Now(),
	}
}

// Finish records inv with the requests the run issued and its outcome
func (r *Recorder) Finish(inv Invocation, requests []engine.RequestKind, err error) Invocation {
	inv.FinishedAt = r.clock.Now()
	inv.Requests = make([]string, len(requests))
	for i, kind := range requests {
		inv.Requests[i] = kind.String()
	}
	if err != nil {
		inv.Error = err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = inv
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}

	stats := r.stats[inv.Handler]
	stats.Runs++
	if inv.Failed() {
		stats.Failures++
	}
	stats.LastRun = inv.FinishedAt
	r.stats[inv.Handler] = stats

	return inv
}

// Recent returns up to limit invocations, newest first. limit <= 0 returns
// everything held.
func (r *Recorder) Recent(limit int) []Invocation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := r.next
	if r.full {
		count = r.capacity
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]Invocation, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.next - 1 - i + r.capacity) % r.capacity
		out = append(out, r.entries[idx])
	}
	return out
}

// Stats returns a copy of the per-handler totals
func (r *Recorder) Stats() map[string]HandlerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]HandlerStats, len(r.stats))
	for k, v := range r.stats {
		stats[k] = v
	}
	return stats
}

// Now exposes the recorder's clock for callers rendering ages
func (r *Recorder) Now() time.Time {
	return r.clock.Now()
}
