package jobs

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("job queue is full")
	// ErrNotRunning is returned by Submit before Start or after Stop.
	ErrNotRunning = errors.New("job manager is not running")
)

// Manager defines the interface for background job processing.
type Manager interface {
	// Start begins processing jobs in the background.
	Start(ctx context.Context) error

	// Stop cancels in-flight jobs and waits for workers to exit or for the
	// context to expire.
	Stop(ctx context.Context) error

	// Submit queues job and returns its id.
	Submit(job Job) (string, error)

	// Get returns a snapshot of a submitted job.
	Get(id string) (Record, bool)

	// Status returns current queue statistics.
	Status() Status
}

// Func is the work a job performs. Its result is kept on the job record.
type Func func(ctx context.Context) (any, error)

// Job represents a unit of work to be processed.
type Job struct {
	ID   string
	Type string
	Run  Func
}

// State is the lifecycle position of a job.
type State string

const (
	StateQueued   State = "queued"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateFailed   State = "error"
)

// Record is the externally visible state of a job.
type Record struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	State       State      `json:"state"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (r Record) Done() bool {
	return r.State == StateFinished || r.State == StateFailed
}

// Status holds job manager statistics.
type Status struct {
	Workers    int   `json:"workers"`
	QueueDepth int   `json:"queue_depth"`
	ActiveJobs int   `json:"active_jobs"`
	Processed  int64 `json:"processed"`
}
