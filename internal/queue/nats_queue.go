package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

const fetchWait = 2 * time.Second

var errNoDelivery = errors.New("job was not received from JetStream")

// NatsQueue keeps every job in a JetStream work-queue stream until it is
// settled. Retries are negative acks with a delay, so a pending retry survives
// a restart; redeliveries count as attempts.
type NatsQueue struct {
	js      nats.JetStreamContext
	sub     *nats.Subscription
	subject string
	closed  atomic.Bool
}

// NewNatsQueue ensures the stream and a durable pull consumer exist and binds
// to it. ackWait must outlast a single attempt, otherwise JetStream redelivers
// jobs that are still being handled.
func NewNatsQueue(nc *nats.Conn, stream, subject string, ackWait time.Duration) (*NatsQueue, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("JetStream: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      stream,
		Subjects:  []string{subject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("JetStream AddStream: %w", err)
	}

	durable := stream + "_workers"
	consumer := &nats.ConsumerConfig{
		Durable:       durable,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       ackWait,
		FilterSubject: subject,
	}
	_, err = js.AddConsumer(stream, consumer)
	if errors.Is(err, nats.ErrConsumerNameAlreadyInUse) {
		_, err = js.UpdateConsumer(stream, consumer)
	}
	if err != nil {
		return nil, fmt.Errorf("JetStream AddConsumer: %w", err)
	}

	sub, err := js.PullSubscribe(subject, durable, nats.BindStream(stream))
	if err != nil {
		return nil, fmt.Errorf("JetStream PullSubscribe: %w", err)
	}

	return &NatsQueue{js: js, sub: sub, subject: subject}, nil
}

func (n *NatsQueue) Enqueue(ctx context.Context, job Job) error {
	if n.closed.Load() {
		return ErrQueueClosed
	}

	payload, err := encodeJob(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	if _, err := n.js.Publish(n.subject, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("enqueue task %s: publish failed: %w", job.TaskID, err)
	}
	return nil
}

func (n *NatsQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		if n.closed.Load() {
			return Job{}, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}

		fetchCtx, cancel := context.WithTimeout(ctx, fetchWait)
		msgs, err := n.sub.Fetch(1, nats.Context(fetchCtx))
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return Job{}, err
			}
			return Job{}, fmt.Errorf("JetStream Fetch: %w", err)
		}

		for _, msg := range msgs {
			job, err := decodeJob(msg.Data)
			if err != nil {
				_ = msg.Term()
				return Job{}, fmt.Errorf("decode job: %w", err)
			}

			meta, err := msg.Metadata()
			if err != nil {
				return Job{}, fmt.Errorf("JetStream Metadata: %w", err)
			}
			job.Attempt += int(meta.NumDelivered) - 1
			job.msg = msg
			return job, nil
		}
	}
}

func (n *NatsQueue) Ack(ctx context.Context, job Job) error {
	if job.msg == nil {
		return errNoDelivery
	}
	if err := job.msg.Ack(nats.Context(ctx)); err != nil {
		return fmt.Errorf("JetStream Ack: %w", err)
	}
	return nil
}

// Retry asks JetStream to redeliver the same message after delay. The
// redelivery carries the next attempt number through its delivery count.
func (n *NatsQueue) Retry(ctx context.Context, job Job, delay time.Duration) error {
	if job.msg == nil {
		return errNoDelivery
	}
	if err := job.msg.NakWithDelay(delay, nats.Context(ctx)); err != nil {
		return fmt.Errorf("JetStream Nak: %w", err)
	}
	return nil
}

func (n *NatsQueue) Close() error {
	if n.closed.Swap(true) {
		return nil
	}
	return n.sub.Drain()
}
