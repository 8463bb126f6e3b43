package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func newTestQueue(t *testing.T, cfg Config) (*Queue, *[]time.Duration) {
	t.Helper()
	q := NewQueue(cfg, nopLogger{})

	var mu sync.Mutex
	sleeps := []time.Duration{}
	q.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
		return nil
	}
	t.Cleanup(func() { _ = q.Close() })
	return q, &sleeps
}

func TestEnqueueAndProcess(t *testing.T) {
	q, _ := newTestQueue(t, Config{Workers: 2, MaxAttempts: 3, BackoffBase: time.Second})

	done := make(chan Job, 1)
	q.Register("noop", func(ctx context.Context, job Job) error {
		done <- job
		return nil
	})
	require.NoError(t, q.Start(context.Background()))

	id, err := q.Enqueue(context.Background(), "noop", map[string]string{"k": "v"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	select {
	case job := <-done:
		assert.Equal(t, id, job.ID)
		assert.Equal(t, 1, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never processed")
	}
}

func TestRetryBackoffSchedule(t *testing.T) {
	q, sleeps := newTestQueue(t, Config{Workers: 1, MaxAttempts: 3, BackoffBase: 2 * time.Second})

	attempts := make(chan int, 3)
	q.Register("flaky", func(ctx context.Context, job Job) error {
		attempts <- job.Attempt
		return errors.New("boom")
	})

	exhausted := make(chan error, 1)
	q.OnExhausted(func(ctx context.Context, job Job, err error) {
		exhausted <- err
	})
	require.NoError(t, q.Start(context.Background()))

	_, err := q.Enqueue(context.Background(), "flaky", nil)
	require.NoError(t, err)

	select {
	case err := <-exhausted:
		require.EqualError(t, err, "boom")
	case <-time.After(2 * time.Second):
		t.Fatal("exhaustion hook never fired")
	}

	// Three attempts, doubling backoff between them.
	assert.Len(t, attempts, 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)

	failed := q.FailedJobs()
	require.Len(t, failed, 1)
	assert.Equal(t, JobStatusFailed, failed[0].Status)
	assert.Equal(t, 3, failed[0].Attempts)
}

func TestSucceedsAfterRetry(t *testing.T) {
	q, sleeps := newTestQueue(t, Config{Workers: 1, MaxAttempts: 3, BackoffBase: 2 * time.Second})

	done := make(chan struct{}, 1)
	var once sync.Once
	failFirst := true
	q.Register("recovering", func(ctx context.Context, job Job) error {
		if failFirst {
			failFirst = false
			return errors.New("transient")
		}
		once.Do(func() { close(done) })
		return nil
	})
	require.NoError(t, q.Start(context.Background()))

	_, err := q.Enqueue(context.Background(), "recovering", nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never recovered")
	}

	assert.Equal(t, []time.Duration{2 * time.Second}, *sleeps)

	// Poll briefly: the record lands right after the handler returns.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(q.CompletedJobs()) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	completed := q.CompletedJobs()
	require.Len(t, completed, 1)
	assert.Equal(t, JobStatusSucceeded, completed[0].Status)
	assert.Equal(t, 2, completed[0].Attempts)
	assert.Empty(t, q.FailedJobs())
}

func TestCompletedHistoryRetention(t *testing.T) {
	q, _ := newTestQueue(t, Config{Workers: 1, MaxAttempts: 1, BackoffBase: time.Second, CompletedHistory: 2, FailedHistory: 2})

	var wg sync.WaitGroup
	q.Register("noop", func(ctx context.Context, job Job) error {
		wg.Done()
		return nil
	})
	require.NoError(t, q.Start(context.Background()))

	wg.Add(3)
	var lastId string
	for i := 0; i < 3; i++ {
		id, err := q.Enqueue(context.Background(), "noop", i)
		require.NoError(t, err)
		lastId = id
	}
	wg.Wait()

	// Records land right after the handlers return; wait for the last one.
	var records []JobRecord
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		records = q.CompletedJobs()
		if len(records) == 2 && records[len(records)-1].ID == lastId {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Len(t, records, 2)
	assert.Equal(t, lastId, records[len(records)-1].ID)
}

func TestCloseWaitsForInFlightJobs(t *testing.T) {
	q, _ := newTestQueue(t, Config{Workers: 1, MaxAttempts: 1, BackoffBase: time.Second})

	started := make(chan struct{})
	release := make(chan struct{})
	q.Register("slow", func(ctx context.Context, job Job) error {
		close(started)
		<-release
		return nil
	})
	require.NoError(t, q.Start(context.Background()))

	_, err := q.Enqueue(context.Background(), "slow", nil)
	require.NoError(t, err)
	<-started

	closed := make(chan struct{})
	go func() {
		_ = q.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a job was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close never returned")
	}

	require.Len(t, q.CompletedJobs(), 1)
}

func TestUnknownJobTypeGoesToFailedHistory(t *testing.T) {
	q, _ := newTestQueue(t, Config{Workers: 1, MaxAttempts: 3, BackoffBase: time.Second})
	require.NoError(t, q.Start(context.Background()))

	_, err := q.Enqueue(context.Background(), "nobody-handles-this", nil)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(q.FailedJobs()) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	failed := q.FailedJobs()
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Error, "no handler")
}
