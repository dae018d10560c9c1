// Package jobs runs migration tasks asynchronously, one at a time.
//
// The engine's batch operations are not safe to run concurrently (the
// audit execution id and the module-id look-ahead both assume a single
// active run), so the runner exposes exactly one task slot. Status and
// free-text progress are persisted through a key-value store and polled
// by the caller instead of pushed.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrBusy is returned by Submit while a task is scheduled or running.
var ErrBusy = errors.New("previous task has not finished yet")

// Task statuses persisted by the runner.
const (
	StatusScheduled = "scheduled"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Keys used in the status store.
const (
	KeyName     = "task_name"
	KeyStatus   = "task_status"
	KeyProgress = "task_progress"
)

// StatusStore persists task status and progress between polls.
type StatusStore interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}

// Work is one unit of background work. It reports coarse progress
// through the callback (once per table or module, not per row).
type Work func(ctx context.Context, progress func(string)) error

// Future resolves when the submitted work finishes.
type Future struct {
	done   chan error
	cancel context.CancelFunc
}

// C yields the work's final error (nil on success) exactly once.
func (f *Future) C() <-chan error {
	return f.done
}

// Stop cancels the running work's context. The work itself decides at
// which granularity it honors cancellation.
func (f *Future) Stop() {
	f.cancel()
}

// Runner is the single-slot task runner.
type Runner struct {
	status  StatusStore
	log     *zap.SugaredLogger
	mainCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	active bool
	wg     sync.WaitGroup
}

func NewRunner(status StatusStore) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		status:  status,
		log:     zap.S().Named("jobs"),
		mainCtx: ctx,
		cancel:  cancel,
	}
}

// Submit schedules one task. It fails with ErrBusy while a previous
// task has not finished; finished tasks free the slot.
func (r *Runner) Submit(ctx context.Context, name string, w Work) (*Future, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return nil, ErrBusy
	}
	// The slot may also be held by a run from a previous process that
	// never finished; the persisted status is authoritative then.
	current, err := r.status.Get(ctx, KeyStatus)
	if err != nil {
		return nil, err
	}
	if current == StatusScheduled || current == StatusRunning {
		return nil, ErrBusy
	}

	if err := r.status.Set(ctx, KeyName, name); err != nil {
		return nil, err
	}
	if err := r.status.Set(ctx, KeyStatus, StatusScheduled); err != nil {
		return nil, err
	}
	if err := r.status.Set(ctx, KeyProgress, ""); err != nil {
		return nil, err
	}

	r.active = true
	workCtx, workCancel := context.WithCancel(r.mainCtx)
	f := &Future{done: make(chan error, 1), cancel: workCancel}

	r.wg.Add(1)
	go r.run(workCtx, name, w, f)
	return f, nil
}

func (r *Runner) run(ctx context.Context, name string, w Work, f *Future) {
	defer r.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("task %s panicked: %v", name, rec)
			r.log.Errorw("task panicked", "task", name, "panic", rec)
			r.finish(name, StatusFailed, err.Error())
			f.done <- err
		}
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
	}()

	// Status writes below use the background context: the work context
	// may already be canceled and the final status must still land.
	if err := r.status.Set(context.Background(), KeyStatus, StatusRunning); err != nil {
		r.log.Errorw("failed to persist task status", "error", err)
	}
	r.log.Infow("task started", "task", name)

	progress := func(p string) {
		if err := r.status.Set(context.Background(), KeyProgress, p); err != nil {
			r.log.Errorw("failed to persist task progress", "error", err)
		}
	}

	err := w(ctx, progress)
	if err != nil {
		r.log.Errorw("task failed", "task", name, "error", err)
		r.finish(name, StatusFailed, err.Error())
	} else {
		r.log.Infow("task completed", "task", name)
		r.finish(name, StatusCompleted, "")
	}
	f.done <- err
}

func (r *Runner) finish(name, status, progress string) {
	ctx := context.Background()
	if err := r.status.Set(ctx, KeyStatus, status); err != nil {
		r.log.Errorw("failed to persist final task status", "task", name, "error", err)
	}
	if progress != "" {
		if err := r.status.Set(ctx, KeyProgress, progress); err != nil {
			r.log.Errorw("failed to persist final task progress", "task", name, "error", err)
		}
	}
}

// Status returns the persisted (name, status, progress) triple.
func (r *Runner) Status(ctx context.Context) (string, string, string, error) {
	name, err := r.status.Get(ctx, KeyName)
	if err != nil {
		return "", "", "", err
	}
	status, err := r.status.Get(ctx, KeyStatus)
	if err != nil {
		return "", "", "", err
	}
	progress, err := r.status.Get(ctx, KeyProgress)
	if err != nil {
		return "", "", "", err
	}
	return name, status, progress, nil
}

// Close cancels any running work and waits for it to drain.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}
