// SPDX-License-Identifier: MIT

// Package jobs runs transforms asynchronously with bounded concurrency and
// keeps their results available for a retention window.
package jobs

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/log"
	"github.com/photonlab/abel/internal/metrics"
	"github.com/photonlab/abel/internal/transform"
)

// State is the lifecycle state of a job.
type State string

const (
	StateQueued   State = "queued"
	StateRunning  State = "running"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateCanceled State = "canceled"
)

// Job is a snapshot of one transform job. Result is only set once the job
// is done and until the retention window expires.
type Job struct {
	ID        string
	Method    string
	Direction string
	Rows      int
	Cols      int
	State     State
	Error     string
	Created   time.Time
	Started   time.Time
	Finished  time.Time
	Result    *mat.Dense
}

// Options configures a Manager.
type Options struct {
	Workers int           // max concurrent transforms, 0 = number of CPUs
	TTL     time.Duration // how long finished jobs are retained, 0 = an hour
	History History       // optional persistent job history
	Clock   func() time.Time
}

// Manager owns the job table and the worker pool.
type Manager struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	reg     *transform.Registry
	sem     chan struct{}
	ttl     time.Duration
	history History
	clock   func() time.Time

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager returns a running manager. Close must be called to drain it.
func NewManager(reg *transform.Registry, opts Options) *Manager {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		jobs:    make(map[string]*Job),
		reg:     reg,
		sem:     make(chan struct{}, workers),
		ttl:     ttl,
		history: opts.History,
		clock:   clock,
		rootCtx: ctx,
		cancel:  cancel,
	}

	m.wg.Add(1)
	go m.janitor()

	return m
}

// Submit queues a transform of img and returns the job snapshot.
func (m *Manager) Submit(img *mat.Dense, opts transform.Options) Job {
	rows, cols := img.Dims()
	job := &Job{
		ID:        uuid.NewString(),
		Method:    opts.Method,
		Direction: string(opts.Direction),
		Rows:      rows,
		Cols:      cols,
		State:     StateQueued,
		Created:   m.clock(),
	}
	if job.Method == "" {
		job.Method = "basex"
	}
	if job.Direction == "" {
		job.Direction = string(transform.Inverse)
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	// Snapshot while holding the lock; once the worker starts the job is
	// shared and may be mutated at any time.
	snapshot := *job
	m.mu.Unlock()

	metrics.JobStarted()
	m.wg.Add(1)
	go m.run(job.ID, img, opts)

	return snapshot
}

func (m *Manager) run(id string, img *mat.Dense, opts transform.Options) {
	defer m.wg.Done()

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-m.rootCtx.Done():
		m.finish(id, StateCanceled, nil, m.rootCtx.Err())
		return
	}

	ctx := log.ContextWithJobID(m.rootCtx, id)
	logger := log.WithComponentFromContext(ctx, "jobs")

	m.mu.Lock()
	if job, ok := m.jobs[id]; ok {
		job.State = StateRunning
		job.Started = m.clock()
	}
	m.mu.Unlock()

	result, err := transform.Apply(ctx, m.reg, img, opts)
	if err != nil {
		logger.Error().
			Err(err).
			Str(log.FieldMethod, opts.Method).
			Msg("transform job failed")
		state := StateFailed
		if ctx.Err() != nil {
			state = StateCanceled
		}
		m.finish(id, state, nil, err)
		return
	}

	logger.Info().
		Str(log.FieldMethod, opts.Method).
		Str(log.FieldDirection, string(opts.Direction)).
		Msg("transform job complete")
	m.finish(id, StateDone, result, nil)
}

func (m *Manager) finish(id string, state State, result *mat.Dense, err error) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if ok {
		job.State = state
		job.Finished = m.clock()
		job.Result = result
		if err != nil {
			job.Error = err.Error()
		}
	}
	var snapshot Job
	if ok {
		snapshot = *job
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	metrics.JobFinished(string(state))

	if m.history != nil {
		if herr := m.history.Record(context.Background(), snapshot); herr != nil {
			logger := log.WithComponent("jobs")
			logger.Warn().Err(herr).Str(log.FieldJobID, id).Msg("failed to record job history")
		}
	}
}

// Get returns a snapshot of the job with the given ID.
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshots of all retained jobs, without results.
func (m *Manager) List() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		snapshot.Result = nil
		out = append(out, snapshot)
	}
	return out
}

// janitor prunes finished jobs past the retention window.
func (m *Manager) janitor() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := m.clock().Add(-m.ttl)
			m.mu.Lock()
			for id, job := range m.jobs {
				if job.State == StateQueued || job.State == StateRunning {
					continue
				}
				if job.Finished.Before(cutoff) {
					delete(m.jobs, id)
				}
			}
			m.mu.Unlock()
		case <-m.rootCtx.Done():
			return
		}
	}
}

// Close cancels pending work and waits for running jobs to settle.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
