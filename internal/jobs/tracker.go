// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package jobs tracks background operations through their lifecycle and
// pushes progress notifications to whoever is listening.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/marginalia/internal/vault"
	"github.com/pdiddy/marginalia/pkg/types"
)

// Notifier receives job updates. Implementations must not block; delivery
// is best-effort and a dropped update never fails the job itself.
type Notifier interface {
	Notify(update types.JobUpdate)
}

// Tracker drives the job state machine on top of the vault job repo:
// pending -> running -> {completed, failed, cancelled}, where the terminal
// states are also reachable straight from pending. Invalid transitions
// are rejected at the storage layer, so two goroutines racing to finish the
// same job cannot both win.
type Tracker struct {
	repo     *vault.JobRepo
	notifier Notifier
}

// New returns a tracker. notifier may be nil for fire-and-forget callers.
func New(repo *vault.JobRepo, notifier Notifier) *Tracker {
	return &Tracker{repo: repo, notifier: notifier}
}

// Submit creates a pending job of the given kind. Duplicate submissions for
// the same kind and citekey are rejected while one is still active.
func (t *Tracker) Submit(ctx context.Context, kind types.JobKind, citekey string) (*types.Job, error) {
	if citekey != "" {
		active, err := t.repo.HasActiveJob(ctx, kind, citekey)
		if err != nil {
			return nil, err
		}
		if active {
			return nil, fmt.Errorf("%s job already active for %s", kind, citekey)
		}
	}

	job := types.NewJob(kind, citekey)
	if err := t.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	t.notify(types.JobUpdate{JobID: job.ID, Status: types.JobPending})
	return job, nil
}

// Start transitions a pending job to running. Starting an already-running
// or terminal job is a no-op that returns false.
func (t *Tracker) Start(ctx context.Context, id string) (bool, error) {
	ok, err := t.repo.MarkRunning(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		t.notify(types.JobUpdate{JobID: id, Status: types.JobRunning})
	}
	return ok, nil
}

// Progress records a progress milestone on a running job with an optional
// source label and human-readable message. Values are clamped to [0, 100]
// and never move backwards.
func (t *Tracker) Progress(ctx context.Context, id string, pct int, source, message string) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	if err := t.repo.UpdateProgress(ctx, id, pct); err != nil {
		return err
	}

	t.notify(types.JobUpdate{
		JobID:    id,
		Status:   types.JobRunning,
		Progress: pct,
		Source:   source,
		Message:  message,
	})
	return nil
}

// Complete finishes a pending or running job at 100 percent.
func (t *Tracker) Complete(ctx context.Context, id string) error {
	ok, err := t.repo.Complete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s is not active", id)
	}
	t.notify(types.JobUpdate{JobID: id, Status: types.JobCompleted, Progress: 100})
	return nil
}

// Fail finishes a pending or running job with an error message.
func (t *Tracker) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	ok, err := t.repo.Fail(ctx, id, msg)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s is not active", id)
	}
	t.notify(types.JobUpdate{JobID: id, Status: types.JobFailed, Error: msg})
	return nil
}

// Cancel moves a pending or running job to cancelled. Returns false when
// the job already reached a terminal state, which callers treat as "too
// late" rather than an error.
func (t *Tracker) Cancel(ctx context.Context, id string) (bool, error) {
	ok, err := t.repo.Cancel(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		t.notify(types.JobUpdate{JobID: id, Status: types.JobCancelled})
	}
	return ok, nil
}

// Get returns the current job record, or (nil, nil) when absent.
func (t *Tracker) Get(ctx context.Context, id string) (*types.Job, error) {
	return t.repo.Get(ctx, id)
}

// List returns all jobs, newest first.
func (t *Tracker) List(ctx context.Context) ([]*types.Job, error) {
	return t.repo.List(ctx)
}

// ListActive returns pending and running jobs.
func (t *Tracker) ListActive(ctx context.Context) ([]*types.Job, error) {
	return t.repo.ListActive(ctx)
}

// Cleanup drops terminal jobs older than the retention window.
func (t *Tracker) Cleanup(ctx context.Context, retainFor time.Duration) (int64, error) {
	return t.repo.Cleanup(ctx, retainFor)
}

func (t *Tracker) notify(update types.JobUpdate) {
	if t.notifier == nil {
		return
	}
	t.notifier.Notify(update)
}

// ChannelNotifier delivers updates over a buffered channel, dropping them
// when the consumer falls behind.
type ChannelNotifier struct {
	ch chan types.JobUpdate
}

// NewChannelNotifier returns a notifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	return &ChannelNotifier{ch: make(chan types.JobUpdate, buffer)}
}

// Updates is the receive side of the notifier.
func (n *ChannelNotifier) Updates() <-chan types.JobUpdate { return n.ch }

// Notify sends without blocking; a full buffer drops the update.
func (n *ChannelNotifier) Notify(update types.JobUpdate) {
	select {
	case n.ch <- update:
	default:
		log.Debug().Str("job", update.JobID).Msg("dropping job update, buffer full")
	}
}

// LogNotifier writes updates to the structured log. Useful for CLI runs
// where nobody holds a channel.
type LogNotifier struct{}

// Notify logs the update at info level.
func (LogNotifier) Notify(update types.JobUpdate) {
	ev := log.Info().
		Str("job", update.JobID).
		Str("status", string(update.Status)).
		Int("progress", update.Progress)
	if update.Source != "" {
		ev = ev.Str("source", update.Source)
	}
	if update.Error != "" {
		ev = ev.Str("error", update.Error)
	}
	ev.Msg(update.Message)
}
