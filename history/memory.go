package history

import (
	"context"
	"sync"

	"github.com/execq/execq"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// Memory is an in-memory history store for tests and development.
// Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*job.Job
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory history store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*job.Job)}
}

// WriteHistory records a snapshot of the job, replacing any earlier one.
func (m *Memory) WriteHistory(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *j
	m.records[j.ID.String()] = &cp
	return nil
}

// ReadHistory returns the last recorded snapshot for the id.
func (m *Memory) ReadHistory(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.records[jobID.String()]
	if !ok {
		return nil, execq.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// Len returns the number of recorded snapshots.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
