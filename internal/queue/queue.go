package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrQueueClosed = errors.New("job queue is closed")
)

// Job is the unit handed from the dispatcher to the worker pool. Attempt is
// 1-based.
type Job struct {
	TaskID     string    `json:"task_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`

	// msg is the JetStream delivery the job was decoded from, if any.
	msg *nats.Msg
}

func NewJob(taskID string, attempt int) Job {
	return Job{
		TaskID:     taskID,
		Attempt:    attempt,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Next is the job for the following attempt.
func (j Job) Next() Job {
	return NewJob(j.TaskID, j.Attempt+1)
}

// Queue delivers jobs at least once. Every dequeued job is settled with either
// Ack or Retry.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error

	// Dequeue blocks until a job is available, ctx is done or the queue is
	// closed.
	Dequeue(ctx context.Context) (Job, error)

	// Ack settles a job that needs no further attempts.
	Ack(ctx context.Context, job Job) error

	// Retry settles a job and delivers its next attempt once delay has
	// elapsed.
	Retry(ctx context.Context, job Job, delay time.Duration) error

	Close() error
}

func encodeJob(job Job) ([]byte, error) {
	return json.Marshal(job)
}

func decodeJob(data []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, err
	}
	if job.TaskID == "" {
		return Job{}, errors.New("job without task id")
	}
	return job, nil
}
