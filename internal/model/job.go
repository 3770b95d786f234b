package model

import (
	"context"
	"time"
)

// JobStatus is the lifecycle state of a job. Transitions are
// running -> completed or running -> failed, each at most once.
type JobStatus string

const (
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one asynchronous unit of work. Registry reads hand out value
// copies, so holders never observe concurrent mutation.
type Job struct {
	ID         string
	TenantID   string
	Transform  string
	Status     JobStatus
	Progress   int
	Message    string
	CreatedAt  time.Time
	FinishedAt time.Time // zero until a terminal transition
}

// Entity is the subject a transform operates on, e.g. {ip 8.8.8.8}.
type Entity struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Entity kinds transforms can declare.
const (
	KindIP   = "ip"
	KindHost = "host"
)

// TransformRequest is the caller-supplied work payload. Config is
// opaque to the core and passed through to the work function verbatim.
type TransformRequest struct {
	TenantID    string
	Transform   string
	Entity      Entity
	Config      map[string]any
	CallbackURL string
}

// ProgressFunc is the sink a work function reports checkpoints through.
// Percent must stay in [0,100] and non-decreasing; a terminal job or an
// out-of-range value makes the sink return an error the work function
// may ignore.
type ProgressFunc func(percent int, message string) error

// Work is the pluggable domain logic a job executes. Kinds lists the
// entity kinds Run accepts; EstimatedSeconds is the duration hint echoed
// to submitters.
type Work interface {
	Name() string
	Kinds() []string
	EstimatedSeconds() int
	Run(ctx context.Context, req TransformRequest, progress ProgressFunc) (any, error)
}
