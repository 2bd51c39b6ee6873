// pkg/server/jobs/memory.go
package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultQueueSize bounds pending jobs when no size is given.
const DefaultQueueSize = 100

// maxRecords caps the finished jobs remembered for Get.
const maxRecords = 1000

// MemoryManager is an in-memory implementation of Manager.
// It processes jobs using a worker pool with configurable concurrency.
type MemoryManager struct {
	concurrency int
	queue       chan Job
	workers     []int
	wg          sync.WaitGroup
	cancelFunc  context.CancelFunc

	mu      sync.RWMutex
	started bool
	records map[string]*Record
	order   []string

	active    atomic.Int32
	processed atomic.Int64
	now       func() time.Time
}

// NewMemoryManager creates a new in-memory job manager.
// concurrency controls the number of worker goroutines and defaults to 4;
// queueSize bounds pending jobs and defaults to DefaultQueueSize.
func NewMemoryManager(concurrency int, queueSize ...int) *MemoryManager {
	if concurrency <= 0 {
		concurrency = 4
	}
	size := DefaultQueueSize
	if len(queueSize) > 0 && queueSize[0] > 0 {
		size = queueSize[0]
	}
	return &MemoryManager{
		concurrency: concurrency,
		queue:       make(chan Job, size),
		records:     make(map[string]*Record),
		now:         time.Now,
	}
}

// Start spawns the worker goroutines.
func (m *MemoryManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("job manager already started")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel

	m.workers = m.workers[:0]
	for i := 0; i < m.concurrency; i++ {
		m.workers = append(m.workers, i)
		m.wg.Add(1)
		go m.worker(workerCtx, i)
	}

	m.started = true
	log.Info().
		Str("component", "jobs").
		Int("workers", m.concurrency).
		Msg("Job manager started")
	return nil
}

// Stop cancels running jobs and waits for workers to exit.
func (m *MemoryManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.started = false
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Str("component", "jobs").Msg("Job manager stopped gracefully")
		return nil
	case <-ctx.Done():
		log.Warn().Str("component", "jobs").Msg("Job manager shutdown timed out")
		return ctx.Err()
	}
}

// Submit queues job. An empty ID is replaced with a fresh UUID.
func (m *MemoryManager) Submit(job Job) (string, error) {
	if job.Run == nil {
		return "", fmt.Errorf("job %q has no work function", job.Type)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return "", ErrNotRunning
	}

	select {
	case m.queue <- job:
	default:
		return "", ErrQueueFull
	}
	m.records[job.ID] = &Record{ID: job.ID, Type: job.Type, State: StateQueued, SubmittedAt: m.now().UTC()}
	m.order = append(m.order, job.ID)
	m.evictLocked()
	return job.ID, nil
}

// Get returns a copy of the job record.
func (m *MemoryManager) Get(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Status returns current queue statistics.
func (m *MemoryManager) Status() Status {
	return Status{
		Workers:    m.concurrency,
		QueueDepth: len(m.queue),
		ActiveJobs: int(m.active.Load()),
		Processed:  m.processed.Load(),
	}
}

// evictLocked forgets the oldest finished jobs beyond maxRecords.
func (m *MemoryManager) evictLocked() {
	if len(m.order) <= maxRecords {
		return
	}
	kept := m.order[:0]
	excess := len(m.order) - maxRecords
	for _, id := range m.order {
		if excess > 0 && m.records[id].Done() {
			delete(m.records, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

func (m *MemoryManager) update(id string, fn func(*Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		fn(rec)
	}
}

// worker processes jobs from the queue until the context is canceled.
func (m *MemoryManager) worker(ctx context.Context, id int) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.queue:
			m.process(ctx, id, job)
		}
	}
}

func (m *MemoryManager) process(ctx context.Context, workerID int, job Job) {
	m.active.Add(1)
	defer m.active.Add(-1)

	started := m.now().UTC()
	m.update(job.ID, func(r *Record) {
		r.State = StateRunning
		r.StartedAt = &started
	})
	logger := log.With().
		Str("component", "jobs").
		Int("worker_id", workerID).
		Str("job_id", job.ID).
		Str("job_type", job.Type).
		Logger()
	logger.Debug().Msg("Processing job")

	result, err := runSafely(ctx, job.Run)

	finished := m.now().UTC()
	m.update(job.ID, func(r *Record) {
		r.FinishedAt = &finished
		r.Result = result
		if err != nil {
			r.State = StateFailed
			r.Error = err.Error()
			return
		}
		r.State = StateFinished
	})
	m.processed.Add(1)

	if err != nil {
		logger.Warn().Err(err).Dur("duration", finished.Sub(started)).Msg("Job failed")
		return
	}
	logger.Info().Dur("duration", finished.Sub(started)).Msg("Job finished")
}

func runSafely(ctx context.Context, fn Func) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx)
}
