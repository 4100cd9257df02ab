// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ratelimit

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests march time forward deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(window time.Duration, max int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(window, max)
	l.now = clock.now
	return l, clock
}

func TestAdmitUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(time.Minute, 3)

	assert.True(t, l.Admit("api"))
	assert.True(t, l.Admit("api"))
	assert.True(t, l.Admit("api"))
	assert.False(t, l.Admit("api"), "fourth call in window must be refused")
}

func TestAdmitWindowSlides(t *testing.T) {
	l, clock := newTestLimiter(time.Minute, 2)

	require.True(t, l.Admit("api"))
	clock.advance(30 * time.Second)
	require.True(t, l.Admit("api"))
	require.False(t, l.Admit("api"))

	// First admission expires at t+60s; the second is still inside.
	clock.advance(31 * time.Second)
	assert.True(t, l.Admit("api"))
	assert.False(t, l.Admit("api"))
}

func TestAdmitEndpointsIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Minute, 1)

	assert.True(t, l.Admit("arxiv"))
	assert.True(t, l.Admit("unpaywall"), "endpoints must not share budgets")
	assert.False(t, l.Admit("arxiv"))
}

func TestRefusalHasNoSideEffects(t *testing.T) {
	l, clock := newTestLimiter(time.Minute, 1)

	require.True(t, l.Admit("api"))
	for i := 0; i < 10; i++ {
		require.False(t, l.Admit("api"))
	}

	// Refused calls must not extend the window.
	clock.advance(61 * time.Second)
	assert.True(t, l.Admit("api"))
}

func TestTimeUntilSlot(t *testing.T) {
	l, clock := newTestLimiter(time.Minute, 2)

	d, ok := l.TimeUntilSlot("api")
	assert.False(t, ok, "empty window has a free slot")
	assert.Zero(t, d)

	require.True(t, l.Admit("api"))
	clock.advance(10 * time.Second)
	require.True(t, l.Admit("api"))

	d, ok = l.TimeUntilSlot("api")
	require.True(t, ok)
	assert.Equal(t, 50*time.Second, d, "oldest admission frees up 50s from now")

	// TimeUntilSlot is read-only: asking repeatedly changes nothing.
	d2, ok2 := l.TimeUntilSlot("api")
	assert.True(t, ok2)
	assert.Equal(t, d, d2)
}

// TestAdmitWindowInvariantRandomized drives the limiter through a long
// random sequence of admissions and clock jumps, checking after every step
// that no trailing window ever holds more than the configured maximum, and
// that a free slot is never refused.
func TestAdmitWindowInvariantRandomized(t *testing.T) {
	const (
		window = time.Minute
		max    = 5
		steps  = 5000
	)

	l, clock := newTestLimiter(window, max)
	rng := rand.New(rand.NewSource(42))

	inWindow := func(admitted []time.Time) int {
		n := 0
		for _, ts := range admitted {
			if clock.t.Sub(ts) < window {
				n++
			}
		}
		return n
	}

	var admitted []time.Time
	for i := 0; i < steps; i++ {
		clock.advance(time.Duration(rng.Intn(15000)) * time.Millisecond)

		before := inWindow(admitted)
		ok := l.Admit("api")
		require.Equal(t, before < max, ok,
			"step %d: %d admissions in window, admit returned %v", i, before, ok)

		if ok {
			admitted = append(admitted, clock.t)
		}
		require.LessOrEqual(t, inWindow(admitted), max,
			"step %d: trailing window over budget", i)
	}
	require.NotEmpty(t, admitted)
}

func TestAwaitSlotImmediate(t *testing.T) {
	l, _ := newTestLimiter(time.Minute, 1)

	err := l.AwaitSlot(context.Background(), "api")
	assert.NoError(t, err)
}

func TestAwaitSlotContextCancelled(t *testing.T) {
	l, _ := newTestLimiter(time.Hour, 1)
	require.True(t, l.Admit("api"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.AwaitSlot(ctx, "api")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRegistryBudgets(t *testing.T) {
	r := NewRegistry()

	require.NotNil(t, r.Unpaywall)
	require.NotNil(t, r.SemanticScholar)
	require.NotNil(t, r.Arxiv)

	assert.Equal(t, time.Minute, r.Unpaywall.window)
	assert.Equal(t, 70, r.Unpaywall.maxRequests)
	assert.Equal(t, 5*time.Minute, r.SemanticScholar.window)
	assert.Equal(t, 100, r.SemanticScholar.maxRequests)
	assert.Equal(t, 3*time.Second, r.Arxiv.window)
	assert.Equal(t, 1, r.Arxiv.maxRequests)
}
