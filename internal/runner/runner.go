// Package runner accepts transform submissions and drives each job
// through execution, the terminal transition, and callback delivery.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/getherald/herald/internal/bus"
	"github.com/getherald/herald/internal/deliver"
	"github.com/getherald/herald/internal/jobs"
	"github.com/getherald/herald/internal/log"
	"github.com/getherald/herald/internal/model"
	"github.com/getherald/herald/internal/secrets"
	"github.com/getherald/herald/internal/transform"
)

type Runner struct {
	registry   *jobs.Registry
	transforms *transform.Registry
	secrets    secrets.Store
	sender     deliver.Sender
	events     *bus.Publisher

	wg sync.WaitGroup
}

// New wires the runner. events may be nil to disable lifecycle
// notifications.
func New(registry *jobs.Registry, transforms *transform.Registry, store secrets.Store, sender deliver.Sender, events *bus.Publisher) *Runner {
	return &Runner{
		registry:   registry,
		transforms: transforms,
		secrets:    store,
		sender:     sender,
		events:     events,
	}
}

// Accepted is the submission receipt: the job id to poll and the
// transform's duration hint.
type Accepted struct {
	JobID            string `json:"job_id"`
	EstimatedSeconds int    `json:"estimated_seconds"`
}

// Submit validates the request, registers a running job, and starts a
// goroutine executing it. Validation failures are model.ErrInvalidInput
// or model.ErrUnknownTenant and leave no job behind. Submit does not
// wait for the work, poll the registry or wait for the callback.
func (r *Runner) Submit(ctx context.Context, req model.TransformRequest) (Accepted, error) {
	tr, err := r.validate(ctx, req)
	if err != nil {
		return Accepted{}, err
	}

	job, err := r.registry.Create(ctx, req.TenantID, req.Transform)
	if err != nil {
		return Accepted{}, err
	}
	r.publish(ctx, jobEvent(bus.EventAccepted, job))

	// The job must keep running after the submission request is done,
	// so the execution context drops cancellation but keeps values.
	bgCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go r.execute(bgCtx, job, tr, req)

	return Accepted{JobID: job.ID, EstimatedSeconds: tr.EstimatedSeconds()}, nil
}

func (r *Runner) validate(ctx context.Context, req model.TransformRequest) (transform.Transform, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("tenant id is empty: %w", model.ErrInvalidInput)
	}
	tr, ok := r.transforms.Lookup(req.Transform)
	if !ok {
		return nil, fmt.Errorf("unknown transform %q: %w", req.Transform, model.ErrInvalidInput)
	}
	if !slices.Contains(tr.Kinds(), req.Entity.Kind) {
		return nil, fmt.Errorf("transform %q does not accept entity kind %q: %w",
			req.Transform, req.Entity.Kind, model.ErrInvalidInput)
	}
	if req.Entity.Value == "" {
		return nil, fmt.Errorf("entity value is empty: %w", model.ErrInvalidInput)
	}
	if err := deliver.ValidateURL(req.CallbackURL); err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrInvalidInput)
	}
	// The secret check gives submitters fast feedback. Delivery
	// resolves again at send time, a revocation in between suppresses
	// the callback.
	if _, err := r.secrets.Resolve(ctx, req.TenantID); err != nil {
		return nil, err
	}
	return tr, nil
}

func (r *Runner) execute(ctx context.Context, job model.Job, tr transform.Transform, req model.TransformRequest) {
	defer r.wg.Done()

	ctx = log.ContextAttrs(ctx,
		slog.String("job_id", job.ID),
		slog.String("tenant_id", job.TenantID),
		slog.String("transform", job.Transform),
	)
	slog.InfoContext(ctx, "job started", slog.String("entity", req.Entity.Value))

	progress := func(percent int, message string) error {
		if err := r.registry.UpdateProgress(ctx, job.ID, percent, message); err != nil {
			return err
		}
		event := jobEvent(bus.EventProgress, job)
		event.Progress = percent
		r.publish(ctx, event)
		return nil
	}

	result, runErr := tr.Run(ctx, req, progress)

	var payload model.CallbackPayload
	var event string
	if runErr != nil {
		slog.ErrorContext(ctx, "transform failed", "error", runErr)
		if err := r.registry.MarkFailed(ctx, job.ID, runErr.Error()); err != nil {
			slog.ErrorContext(ctx, "recording job failure", "error", err)
			return
		}
		payload = model.FailurePayload(job.ID, runErr)
		event = bus.EventFailed
	} else {
		if err := r.registry.MarkCompleted(ctx, job.ID); err != nil {
			slog.ErrorContext(ctx, "recording job completion", "error", err)
			return
		}
		payload = model.SuccessPayload(job.ID, result)
		event = bus.EventCompleted
	}
	r.publish(ctx, jobEvent(event, job))

	// Delivery problems never rewrite the job outcome, the registry
	// stays the source of truth for status queries.
	switch err := r.sender.Send(ctx, req.CallbackURL, req.TenantID, payload); {
	case deliver.Suppressed(err):
		slog.InfoContext(ctx, "callback suppressed, tenant secret revoked")
		r.publish(ctx, jobEvent(bus.EventSuppressed, job))
	case err != nil:
		slog.ErrorContext(ctx, "callback delivery failed", "error", err)
		r.publish(ctx, jobEvent(bus.EventDeliveryFailed, job))
	default:
		slog.InfoContext(ctx, "job finished", slog.String("status", string(payload.Status)))
		r.publish(ctx, jobEvent(bus.EventDelivered, job))
	}
}

func jobEvent(typ string, job model.Job) bus.Event {
	return bus.Event{
		Type:      typ,
		JobID:     job.ID,
		TenantID:  job.TenantID,
		Transform: job.Transform,
	}
}

// publish stamps and sends one lifecycle event. Failures are logged,
// they never feed back into the job outcome.
func (r *Runner) publish(ctx context.Context, event bus.Event) {
	event.At = time.Now().UTC()
	if err := r.events.Publish(event); err != nil {
		slog.WarnContext(ctx, "publishing lifecycle event", "event", event.Type, "error", err)
	}
}

// Wait blocks until every in-flight job has executed and delivered.
func (r *Runner) Wait() {
	r.wg.Wait()
}
