package jobs

import (
	"context"
	"time"

	"github.com/getherald/herald/internal/model"
)

// Memory backs a Registry with a plain map. For tests and single
// process dev runs, records vanish on restart.
type Memory struct {
	jobs map[string]model.Job
}

func NewMemory() *Memory {
	return &Memory{
		jobs: make(map[string]model.Job),
	}
}

func (m *Memory) Put(_ context.Context, job model.Job) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (model.Job, bool, error) {
	job, ok := m.jobs[id]
	return job, ok, nil
}

func (m *Memory) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int, error) {
	var n int
	for id, job := range m.jobs {
		if job.Status.Terminal() && job.FinishedAt.Before(cutoff) {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}
