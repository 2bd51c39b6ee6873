package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewMemoryManager(t *testing.T) {
	mgr := NewMemoryManager(4)

	require.NotNil(t, mgr)
	require.Equal(t, 4, mgr.concurrency)
	require.NotNil(t, mgr.queue)
	require.Equal(t, DefaultQueueSize, cap(mgr.queue))
}

func TestNewMemoryManager_DefaultConcurrency(t *testing.T) {
	require.Equal(t, 4, NewMemoryManager(0).concurrency, "Should default to 4 when concurrency is 0")
	require.Equal(t, 4, NewMemoryManager(-1).concurrency, "Should default to 4 when concurrency is negative")
	require.Equal(t, 7, cap(NewMemoryManager(1, 7).queue))
}

func TestMemoryManager_StartStop(t *testing.T) {
	mgr := NewMemoryManager(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, mgr.Start(ctx))
	require.Len(t, mgr.workers, 2)
	require.Error(t, mgr.Start(ctx), "second start must fail")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, mgr.Stop(stopCtx))
	require.NoError(t, mgr.Stop(stopCtx), "stopping twice is a no-op")
}

func TestMemoryManager_GracefulShutdown(t *testing.T) {
	mgr := NewMemoryManager(2)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, mgr.Start(ctx))
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer stopCancel()
	require.NoError(t, mgr.Stop(stopCtx))
}

func TestMemoryManager_SubmitRequiresStart(t *testing.T) {
	mgr := NewMemoryManager(1)
	_, err := mgr.Submit(Job{Type: "noop", Run: func(context.Context) (any, error) { return nil, nil }})
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestMemoryManager_SubmitRunsJob(t *testing.T) {
	mgr := startManager(t, 2, 10)

	id, err := mgr.Submit(Job{Type: "host_lookup", Run: func(context.Context) (any, error) {
		return map[string]string{"ip": "192.0.2.1"}, nil
	}})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec := waitDone(t, mgr, id)
	require.Equal(t, StateFinished, rec.State)
	require.Equal(t, "host_lookup", rec.Type)
	require.Equal(t, map[string]string{"ip": "192.0.2.1"}, rec.Result)
	require.NotNil(t, rec.StartedAt)
	require.NotNil(t, rec.FinishedAt)
	require.EqualValues(t, 1, mgr.Status().Processed)
}

func TestMemoryManager_FailedAndPanickingJobs(t *testing.T) {
	mgr := startManager(t, 1, 10)

	failID, err := mgr.Submit(Job{Type: "fail", Run: func(context.Context) (any, error) {
		return nil, errors.New("upstream unavailable")
	}})
	require.NoError(t, err)
	panicID, err := mgr.Submit(Job{Type: "panic", Run: func(context.Context) (any, error) {
		panic("boom")
	}})
	require.NoError(t, err)

	failed := waitDone(t, mgr, failID)
	require.Equal(t, StateFailed, failed.State)
	require.Equal(t, "upstream unavailable", failed.Error)

	panicked := waitDone(t, mgr, panicID)
	require.Equal(t, StateFailed, panicked.State)
	require.Contains(t, panicked.Error, "boom")
}

func TestMemoryManager_QueueFull(t *testing.T) {
	mgr := startManager(t, 1, 1)

	release := make(chan struct{})
	var once sync.Once
	t.Cleanup(func() { once.Do(func() { close(release) }) })
	block := func(ctx context.Context) (any, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, nil
	}

	first, err := mgr.Submit(Job{Type: "block", Run: block})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		rec, _ := mgr.Get(first)
		return rec.State == StateRunning
	}, time.Second, 5*time.Millisecond)

	_, err = mgr.Submit(Job{Type: "block", Run: block})
	require.NoError(t, err, "one job fits in the queue")
	_, err = mgr.Submit(Job{Type: "block", Run: block})
	require.ErrorIs(t, err, ErrQueueFull)

	once.Do(func() { close(release) })
}

func TestMemoryManager_GetUnknown(t *testing.T) {
	_, ok := NewMemoryManager(1).Get("missing")
	require.False(t, ok)
}

func startManager(t *testing.T, workers, queue int) *MemoryManager {
	t.Helper()
	mgr := NewMemoryManager(workers, queue)
	require.NoError(t, mgr.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mgr.Stop(ctx)
	})
	return mgr
}

func waitDone(t *testing.T, mgr *MemoryManager, id string) Record {
	t.Helper()
	var rec Record
	require.Eventually(t, func() bool {
		var ok bool
		rec, ok = mgr.Get(id)
		return ok && rec.Done()
	}, 2*time.Second, 5*time.Millisecond)
	return rec
}
