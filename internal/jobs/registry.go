// Package jobs tracks the live and terminal state of every job: status,
// numeric progress, optional message. The registry enforces the
// lifecycle invariants, backings only hold records.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getherald/herald/internal/model"
)

// Backing holds job records for a Registry. Implementations are called
// with the registry lock held and need no synchronization of their own.
type Backing interface {
	Put(ctx context.Context, job model.Job) error
	// Get returns ok=false when no record exists for id.
	Get(ctx context.Context, id string) (job model.Job, ok bool, err error)
	// DeleteTerminalBefore removes terminal jobs finished before cutoff
	// and reports how many went away. Running jobs are never touched.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Registry serializes all job-state mutations. Status moves
// running -> completed or running -> failed, each exactly once, and
// progress never decreases while running.
type Registry struct {
	mu      sync.RWMutex
	backing Backing
}

func NewRegistry(backing Backing) *Registry {
	return &Registry{backing: backing}
}

// Create allocates a fresh job id and inserts the record as running
// with zero progress. UUIDv7 ids carry a time-ordered component plus
// random bits, so collisions over a process lifetime are negligible.
func (r *Registry) Create(ctx context.Context, tenantID, transform string) (model.Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return model.Job{}, fmt.Errorf("allocating job id: %w", err)
	}

	job := model.Job{
		ID:        id.String(),
		TenantID:  tenantID,
		Transform: transform,
		Status:    model.StatusRunning,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.backing.Put(ctx, job); err != nil {
		return model.Job{}, fmt.Errorf("storing job %s: %w", job.ID, err)
	}
	return job, nil
}

// Get returns a snapshot of the job or model.ErrUnknownJob.
func (r *Registry) Get(ctx context.Context, id string) (model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok, err := r.backing.Get(ctx, id)
	if err != nil {
		return model.Job{}, fmt.Errorf("loading job %s: %w", id, err)
	}
	if !ok {
		return model.Job{}, fmt.Errorf("job %s: %w", id, model.ErrUnknownJob)
	}
	return job, nil
}

// UpdateProgress records a checkpoint. Out-of-range values are
// model.ErrInvalidProgress, terminal jobs model.ErrJobFinished. A value
// below the recorded one is a misbehaving work function: the report is
// logged and dropped, the recorded maximum stays.
func (r *Registry) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("progress %d for job %s: %w", progress, id, model.ErrInvalidProgress)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok, err := r.backing.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("job %s: %w", id, model.ErrUnknownJob)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s: %w", id, model.ErrJobFinished)
	}
	if progress < job.Progress {
		slog.WarnContext(ctx, "progress went backwards: keeping recorded value",
			"job_id", id, "recorded", job.Progress, "reported", progress)
		return nil
	}

	job.Progress = progress
	job.Message = message
	if err := r.backing.Put(ctx, job); err != nil {
		return fmt.Errorf("storing job %s: %w", id, err)
	}
	return nil
}

// MarkCompleted transitions the job to completed and pins progress to
// 100. A second terminal transition is model.ErrJobFinished.
func (r *Registry) MarkCompleted(ctx context.Context, id string) error {
	return r.finish(ctx, id, func(job *model.Job) {
		job.Status = model.StatusCompleted
		job.Progress = 100
	})
}

// MarkFailed transitions the job to failed, keeping the last recorded
// progress and storing message for status queries.
func (r *Registry) MarkFailed(ctx context.Context, id, message string) error {
	return r.finish(ctx, id, func(job *model.Job) {
		job.Status = model.StatusFailed
		job.Message = message
	})
}

func (r *Registry) finish(ctx context.Context, id string, transition func(*model.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok, err := r.backing.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("job %s: %w", id, model.ErrUnknownJob)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s: %w", id, model.ErrJobFinished)
	}

	transition(&job)
	job.FinishedAt = time.Now().UTC()
	if err := r.backing.Put(ctx, job); err != nil {
		return fmt.Errorf("storing job %s: %w", id, err)
	}
	return nil
}

// EvictBefore removes terminal jobs finished before cutoff. Running
// jobs survive regardless of age.
func (r *Registry) EvictBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.backing.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("evicting jobs: %w", err)
	}
	return n, nil
}
