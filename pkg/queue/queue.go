package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"agro-assistant-be/internal/pkg/logger"
)

const jobsTopic = "jobs"

type Config struct {
	Workers          int
	MaxAttempts      int
	BackoffBase      time.Duration
	CompletedHistory int
	FailedHistory    int
}

func DefaultConfig() Config {
	return Config{
		Workers:          5,
		MaxAttempts:      3,
		BackoffBase:      2 * time.Second,
		CompletedHistory: 100,
		FailedHistory:    500,
	}
}

// Queue is an in-process job queue: a watermill gochannel transport
// feeding a bounded worker pool with per-job retry and backoff.
type Queue struct {
	pubsub *gochannel.GoChannel
	cfg    Config
	log    logger.ILogger

	// sleep is swapped out in tests to observe the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	handlers    map[string]Handler
	onExhausted ExhaustedFunc
	completed   *ring
	failed      *ring

	started bool
	wg      sync.WaitGroup
}

func NewQueue(cfg Config, log logger.ILogger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.CompletedHistory <= 0 {
		cfg.CompletedHistory = 100
	}
	if cfg.FailedHistory <= 0 {
		cfg.FailedHistory = 500
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, newWatermillAdapter(log))

	return &Queue{
		pubsub:    pubsub,
		cfg:       cfg,
		log:       log,
		sleep:     sleepCtx,
		handlers:  make(map[string]Handler),
		completed: newRing(cfg.CompletedHistory),
		failed:    newRing(cfg.FailedHistory),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register binds a handler to a job type. Must be called before Start.
func (q *Queue) Register(jobType string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// OnExhausted sets the hook that fires after a job's last attempt fails.
func (q *Queue) OnExhausted(fn ExhaustedFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onExhausted = fn
}

// Enqueue publishes a job and returns its id immediately.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Payload:    body,
		EnqueuedAt: time.Now(),
	}
	envelope, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), envelope)
	if err := q.pubsub.Publish(jobsTopic, msg); err != nil {
		return "", fmt.Errorf("failed to publish job: %w", err)
	}

	q.log.Debug("queue", "job enqueued", map[string]interface{}{
		"job_id": job.ID,
		"type":   jobType,
	})
	return job.ID, nil
}

// Start subscribes to the transport and launches the worker pool.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue already started")
	}
	q.started = true
	q.mu.Unlock()

	messages, err := q.pubsub.Subscribe(ctx, jobsTopic)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, messages)
	}

	q.log.Info("queue", "workers started", map[string]interface{}{
		"workers": q.cfg.Workers,
	})
	return nil
}

// Close stops the transport and waits for in-flight jobs to finish.
func (q *Queue) Close() error {
	err := q.pubsub.Close()
	q.wg.Wait()
	return err
}

func (q *Queue) worker(ctx context.Context, messages <-chan *message.Message) {
	defer q.wg.Done()

	for msg := range messages {
		q.process(ctx, msg)
		// At-least-once delivery is satisfied by our own retry loop;
		// the message itself is always acked.
		msg.Ack()
	}
}

func (q *Queue) process(ctx context.Context, msg *message.Message) {
	var job Job
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		q.log.Error("queue", "discarding undecodable job", map[string]interface{}{
			"error":      err.Error(),
			"message_id": msg.UUID,
		})
		return
	}

	q.mu.Lock()
	handler, ok := q.handlers[job.Type]
	exhausted := q.onExhausted
	q.mu.Unlock()

	if !ok {
		q.log.Error("queue", "no handler for job type", map[string]interface{}{
			"job_id": job.ID,
			"type":   job.Type,
		})
		q.record(q.failed, job, q.cfg.MaxAttempts, fmt.Errorf("no handler for job type %s", job.Type))
		return
	}

	var lastErr error
	for attempt := 1; attempt <= q.cfg.MaxAttempts; attempt++ {
		job.Attempt = attempt
		lastErr = handler(ctx, job)
		if lastErr == nil {
			q.record(q.completed, job, attempt, nil)
			return
		}

		q.log.Warn("queue", "job attempt failed", map[string]interface{}{
			"job_id":  job.ID,
			"type":    job.Type,
			"attempt": attempt,
			"error":   lastErr.Error(),
		})

		if attempt < q.cfg.MaxAttempts {
			backoff := q.cfg.BackoffBase << (attempt - 1)
			if err := q.sleep(ctx, backoff); err != nil {
				lastErr = err
				break
			}
		}
	}

	q.record(q.failed, job, job.Attempt, lastErr)
	if exhausted != nil {
		exhausted(ctx, job, lastErr)
	}
}

func (q *Queue) record(r *ring, job Job, attempts int, err error) {
	status := JobStatusSucceeded
	errText := ""
	if err != nil {
		status = JobStatusFailed
		errText = err.Error()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	r.add(JobRecord{
		ID:         job.ID,
		Type:       job.Type,
		Status:     status,
		Attempts:   attempts,
		Error:      errText,
		FinishedAt: time.Now(),
	})
}

// CompletedJobs returns the retained history of successful jobs.
func (q *Queue) CompletedJobs() []JobRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed.snapshot()
}

// FailedJobs returns the retained history of exhausted jobs.
func (q *Queue) FailedJobs() []JobRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failed.snapshot()
}
