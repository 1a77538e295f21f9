// Package memory provides a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
//
// A single mutex serializes every compound transition, which trivially
// satisfies the per-job atomicity contract: no claim, cancel, or complete
// can interleave with another transition on any job.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/execq/execq"
	"github.com/execq/execq/history"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// Compile-time interface checks.
var (
	_ job.Store     = (*Store)(nil)
	_ history.Store = (*Store)(nil)
)

// Store keeps the pending queue and the record map behind one mutex.
// The queue-iff-pending invariant is maintained by mutating both under
// the same critical section.
type Store struct {
	mu sync.Mutex

	jobs    map[string]*job.Job
	pending []string // FIFO queue of job ids, head at index 0
	hist    map[string]*job.Job

	closed bool
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs: make(map[string]*job.Job),
		hist: make(map[string]*job.Job),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is open.
func (m *Store) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return execq.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Subsequent operations fail with
// execq.ErrStoreClosed.
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// EnqueueJob inserts the record and appends its id to the queue as one
// unit.
func (m *Store) EnqueueJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return execq.ErrStoreClosed
	}

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return execq.ErrJobAlreadyExists
	}

	cp := *j
	m.jobs[key] = &cp
	m.pending = append(m.pending, key)
	return nil
}

// ClaimJob pops the queue head and flips the record to running. Heads
// whose record is no longer pending are discarded and the next is tried.
func (m *Store) ClaimJob(_ context.Context) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, execq.ErrStoreClosed
	}

	now := time.Now().UTC()

	for len(m.pending) > 0 {
		key := m.pending[0]
		m.pending = m.pending[1:]

		j, ok := m.jobs[key]
		if !ok || j.Status != job.StatusPending {
			// Stale entry: the record was cancelled (or removed by a
			// retention sweep) after enqueue. Skip it.
			continue
		}

		j.Status = job.StatusRunning
		n := now
		j.StartedAt = &n
		j.Version++
		j.UpdatedAt = now

		// Return a copy so callers can mutate without racing the store.
		cp := *j
		return &cp, nil
	}

	return nil, nil
}

// CancelJob applies the cancellation state machine under the store lock.
func (m *Store) CancelJob(_ context.Context, jobID id.JobID) (job.CancelOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", execq.ErrStoreClosed
	}

	key := jobID.String()
	j, ok := m.jobs[key]
	if !ok {
		return "", execq.ErrJobNotFound
	}

	switch j.Status {
	case job.StatusCancelled:
		return job.CancelAlreadyCancelled, nil
	case job.StatusSucceeded, job.StatusFailed:
		return job.CancelAlreadyCompleted, nil
	}

	// Remove from the queue if still pending there. Absence means a claim
	// already popped it (the job is running).
	inQueue := false
	for i, pid := range m.pending {
		if pid == key {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			inQueue = true
			break
		}
	}

	now := time.Now().UTC()
	j.Status = job.StatusCancelled
	j.CancelledAt = &now
	j.Version++
	j.UpdatedAt = now

	if inQueue {
		return job.CancelledFromQueue, nil
	}
	return job.CancelledRunning, nil
}

// CompleteJob records the terminal outcome. Cancelled wins: a job
// cancelled while running keeps its status and only the output is stored.
func (m *Store) CompleteJob(_ context.Context, jobID id.JobID, outcome job.Outcome, output string) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, execq.ErrStoreClosed
	}

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, execq.ErrJobNotFound
	}

	now := time.Now().UTC()

	switch j.Status {
	case job.StatusCancelled:
		// Informational only; the cancellation stands.
		j.Output = output
		j.UpdatedAt = now
	case job.StatusRunning:
		j.Status = outcome.Status()
		j.FinishedAt = &now
		j.Output = output
		j.Version++
		j.UpdatedAt = now
	default:
		return nil, execq.ErrInvalidTransition
	}

	cp := *j
	return &cp, nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, execq.ErrStoreClosed
	}

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, execq.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// ListJobsByStatus returns jobs matching the given status, oldest first.
func (m *Store) ListJobsByStatus(_ context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, execq.ErrStoreClosed
	}

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.Status != status {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		if !result[i].CreatedAt.Equal(result[k].CreatedAt) {
			return result[i].CreatedAt.Before(result[k].CreatedAt)
		}
		// K-sortable ids break creation-time ties deterministically.
		return result[i].ID.String() < result[k].ID.String()
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// QueueLen returns the number of ids in the pending queue.
func (m *Store) QueueLen(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, execq.ErrStoreClosed
	}
	return int64(len(m.pending)), nil
}

// CountJobs returns the number of records with the given status, or all
// records when status is empty.
func (m *Store) CountJobs(_ context.Context, status job.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, execq.ErrStoreClosed
	}

	if status == "" {
		return int64(len(m.jobs)), nil
	}

	var count int64
	for _, j := range m.jobs {
		if j.Status == status {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// History Store
// ──────────────────────────────────────────────────

// WriteHistory records a snapshot of the job, replacing any earlier one.
func (m *Store) WriteHistory(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return execq.ErrStoreClosed
	}

	cp := *j
	m.hist[j.ID.String()] = &cp
	return nil
}

// ReadHistory returns the last recorded snapshot for the id.
func (m *Store) ReadHistory(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, execq.ErrStoreClosed
	}

	j, ok := m.hist[jobID.String()]
	if !ok {
		return nil, execq.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}
