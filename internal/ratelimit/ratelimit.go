// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit implements per-endpoint sliding-window admission control
// for the external APIs consulted by the PDF finder.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// pollInterval is how often AwaitSlot re-checks a full window.
const pollInterval = 100 * time.Millisecond

// Limiter admits at most maxRequests calls per endpoint within a rolling
// window. The check and the record are a single atomic step under the
// mutex, so concurrent callers can never over-admit.
type Limiter struct {
	window      time.Duration
	maxRequests int

	mu      sync.Mutex
	entries map[string][]time.Time

	// now is replaceable for tests with synthetic clocks.
	now func() time.Time
}

// New returns a limiter allowing maxRequests admissions per window.
func New(window time.Duration, maxRequests int) *Limiter {
	return &Limiter{
		window:      window,
		maxRequests: maxRequests,
		entries:     make(map[string][]time.Time),
		now:         time.Now,
	}
}

// Admit reports whether a call to endpoint may proceed now. On admission it
// records the current time; on refusal it has no side effects beyond
// evicting expired timestamps.
func (l *Limiter) Admit(endpoint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.evict(endpoint, now)

	if len(kept) >= l.maxRequests {
		l.entries[endpoint] = kept
		return false
	}

	l.entries[endpoint] = append(kept, now)
	return true
}

// AwaitSlot polls Admit until it succeeds or ctx is cancelled. The caller's
// goroutine sleeps between polls; other tasks are unaffected.
func (l *Limiter) AwaitSlot(ctx context.Context, endpoint string) error {
	for {
		if l.Admit(endpoint) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// TimeUntilSlot returns how long until the oldest in-window admission
// expires. ok is false when a slot is available immediately. Read-only.
func (l *Limiter) TimeUntilSlot(endpoint string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var valid []time.Time
	for _, t := range l.entries[endpoint] {
		if now.Sub(t) < l.window {
			valid = append(valid, t)
		}
	}

	if len(valid) < l.maxRequests {
		return 0, false
	}

	oldest := valid[0]
	for _, t := range valid[1:] {
		if t.Before(oldest) {
			oldest = t
		}
	}
	return l.window - now.Sub(oldest), true
}

// evict drops timestamps that fell outside the window. Caller holds the lock.
func (l *Limiter) evict(endpoint string, now time.Time) []time.Time {
	kept := l.entries[endpoint][:0]
	for _, t := range l.entries[endpoint] {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	return kept
}

// Registry holds the per-source limiters. Each source gets its own Limiter
// instance, so the sources never contend on one lock; the registry is
// constructed once and passed by reference (no package-level singletons).
type Registry struct {
	Unpaywall       *Limiter
	SemanticScholar *Limiter
	Arxiv           *Limiter
}

// NewRegistry returns limiters tuned to each API's published etiquette:
// Unpaywall allows 100k/day so 70/min is comfortable; Semantic Scholar
// allows 100 per 5 minutes without a key; arXiv asks for one request every
// 3 seconds.
func NewRegistry() *Registry {
	return &Registry{
		Unpaywall:       New(time.Minute, 70),
		SemanticScholar: New(5*time.Minute, 100),
		Arxiv:           New(3*time.Second, 1),
	}
}
