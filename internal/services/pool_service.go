package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"insightforge.com/insightforge/internal/metrics"
	"insightforge.com/insightforge/internal/queue"
)

const (
	maxRetryDelay     = 60 * time.Second
	dequeueErrorPause = 500 * time.Millisecond
	settleTimeout     = 5 * time.Second
)

var errAttemptsExhausted = errors.New("attempts exhausted")

type JobHandler interface {
	Handle(ctx context.Context, job queue.Job) error
	HandleFinalFailure(ctx context.Context, job queue.Job, cause error)
}

type PoolConfig struct {
	Workers        int
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
}

// PoolService pulls jobs off the queue with a fixed number of workers and owns
// the retry policy.
type PoolService struct {
	queue   queue.Queue
	handler JobHandler
	cfg     PoolConfig
	logger  *zap.Logger

	wg         sync.WaitGroup
	stopPull   context.CancelFunc
	jobsCtx    context.Context
	cancelJobs context.CancelFunc
}

func NewPoolService(q queue.Queue, handler JobHandler, cfg PoolConfig, logger *zap.Logger) *PoolService {
	pullCtx, stopPull := context.WithCancel(context.Background())
	jobsCtx, cancelJobs := context.WithCancel(context.Background())

	p := &PoolService{
		queue:      q,
		handler:    handler,
		cfg:        cfg,
		logger:     logger,
		stopPull:   stopPull,
		jobsCtx:    jobsCtx,
		cancelJobs: cancelJobs,
	}

	for i := 1; i <= cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(pullCtx, i)
	}

	return p
}

func (p *PoolService) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	p.logger.Debug("worker started", zap.Int("worker_id", workerID))

	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrQueueClosed) {
				break
			}
			p.logger.Warn("dequeue failed", zap.Int("worker_id", workerID), zap.Error(err))

			select {
			case <-ctx.Done():
			case <-time.After(dequeueErrorPause):
			}
			continue
		}

		p.handleJob(workerID, job)
	}

	p.logger.Debug("worker stopped", zap.Int("worker_id", workerID))
}

func (p *PoolService) handleJob(workerID int, job queue.Job) {
	if job.Attempt < 1 {
		job.Attempt = 1
	}

	if job.Attempt > p.cfg.MaxAttempts {
		p.logger.Warn("job delivered past the attempt limit",
			zap.String("task_id", job.TaskID),
			zap.Int("attempt", job.Attempt),
		)
		p.finalFailure(job, fmt.Errorf("%w: delivery %d of %d", errAttemptsExhausted, job.Attempt, p.cfg.MaxAttempts))
		return
	}

	ctx, cancel := context.WithTimeout(p.jobsCtx, p.cfg.AttemptTimeout)
	defer cancel()

	p.logger.Info("processing job",
		zap.Int("worker_id", workerID),
		zap.String("task_id", job.TaskID),
		zap.Int("attempt", job.Attempt),
	)

	err := p.handler.Handle(ctx, job)
	switch {
	case err == nil:
		metrics.Jobs.WithLabelValues(metrics.OutcomeSuccess).Inc()
		p.ack(job)

	case errors.Is(err, ErrJobSkipped):
		metrics.Jobs.WithLabelValues(metrics.OutcomeSkipped).Inc()
		p.logger.Info("job skipped", zap.String("task_id", job.TaskID), zap.Error(err))
		p.ack(job)

	case job.Attempt < p.cfg.MaxAttempts:
		p.retry(job, err)

	default:
		p.finalFailure(job, err)
	}
}

func (p *PoolService) retry(job queue.Job, cause error) {
	delay := RetryDelay(p.cfg.RetryBackoff, job.Attempt)

	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if err := p.queue.Retry(ctx, job, delay); err != nil {
		p.logger.Error("retry could not be scheduled",
			zap.String("task_id", job.TaskID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
		p.finalFailure(job, cause)
		return
	}

	metrics.Jobs.WithLabelValues(metrics.OutcomeRetry).Inc()
	p.logger.Warn("job failed, retry scheduled",
		zap.String("task_id", job.TaskID),
		zap.Int("attempt", job.Attempt),
		zap.Int("next_attempt", job.Attempt+1),
		zap.Duration("delay", delay),
		zap.Error(cause),
	)
}

func (p *PoolService) finalFailure(job queue.Job, cause error) {
	metrics.Jobs.WithLabelValues(metrics.OutcomeFinalFailure).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()

	p.handler.HandleFinalFailure(ctx, job, cause)
	p.ack(job)
}

func (p *PoolService) ack(job queue.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if err := p.queue.Ack(ctx, job); err != nil {
		p.logger.Warn("job could not be acknowledged, it may be delivered again",
			zap.String("task_id", job.TaskID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
	}
}

// RetryDelay is the exponential backoff before attempt+1: base doubled per
// completed attempt, capped at one minute.
func RetryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 1 {
		return 0
	}

	delay := min(base, maxRetryDelay)
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

// Shutdown stops pulling new jobs and waits for in-flight ones. When ctx
// expires first the remaining jobs are cancelled.
func (p *PoolService) Shutdown(ctx context.Context) {
	p.stopPull()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down cleanly")
	case <-ctx.Done():
		p.cancelJobs()
		<-done
		p.logger.Warn("worker pool shutdown timed out, in-flight jobs cancelled")
	}
	p.cancelJobs()
}
