package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/rueidis"
)

// promoteScript moves due members of the delayed set onto the ready list in
// one step so two dequeuers never push the same job.
var promoteScript = rueidis.NewLuaScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
	if redis.call('ZREM', KEYS[1], member) == 1 then
		redis.call('RPUSH', KEYS[2], member)
	end
end
return #due
`)

const (
	promoteBatchSize = 50
	blockSeconds     = 1
)

type RedisQueue struct {
	client     rueidis.Client
	key        string
	delayedKey string
	closed     atomic.Bool
}

func NewRedisQueue(client rueidis.Client, queueKey string) *RedisQueue {
	return &RedisQueue{
		client:     client,
		key:        queueKey,
		delayedKey: queueKey + ":delayed",
	}
}

func (r *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if r.closed.Load() {
		return ErrQueueClosed
	}

	payload, err := encodeJob(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	cmd := r.client.B().Rpush().Key(r.key).Element(string(payload)).Build()
	return r.client.Do(ctx, cmd).Error()
}

// Ack is a no-op: BLPOP already removed the job from the list.
func (r *RedisQueue) Ack(context.Context, Job) error {
	return nil
}

// Retry parks the next attempt in the delayed set until it is due.
func (r *RedisQueue) Retry(ctx context.Context, job Job, delay time.Duration) error {
	if r.closed.Load() {
		return ErrQueueClosed
	}

	next := job.Next()
	if delay <= 0 {
		return r.Enqueue(ctx, next)
	}

	payload, err := encodeJob(next)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	due := time.Now().Add(delay).UnixMilli()
	cmd := r.client.B().Zadd().Key(r.delayedKey).ScoreMember().ScoreMember(float64(due), string(payload)).Build()
	return r.client.Do(ctx, cmd).Error()
}

func (r *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		if r.closed.Load() {
			return Job{}, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}

		if err := r.promoteDue(ctx); err != nil {
			return Job{}, fmt.Errorf("promote delayed jobs: %w", err)
		}

		cmd := r.client.B().Blpop().Key(r.key).Timeout(blockSeconds).Build()
		values, err := r.client.Do(ctx, cmd).AsStrSlice()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				continue
			}
			return Job{}, err
		}
		if len(values) != 2 {
			continue
		}

		job, err := decodeJob([]byte(values[1]))
		if err != nil {
			return Job{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}

func (r *RedisQueue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return promoteScript.Exec(ctx, r.client,
		[]string{r.delayedKey, r.key},
		[]string{now, strconv.Itoa(promoteBatchSize)},
	).Error()
}

// Close stops dequeuing. The redis client is owned by the caller.
func (r *RedisQueue) Close() error {
	r.closed.Store(true)
	return nil
}
