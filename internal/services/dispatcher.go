package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"insightforge.com/insightforge/internal/constants"
	"insightforge.com/insightforge/internal/metrics"
	model "insightforge.com/insightforge/internal/models"
	"insightforge.com/insightforge/internal/queue"
	repository "insightforge.com/insightforge/internal/repositories"
)

const bookkeepingTimeout = 10 * time.Second

// ErrAlreadyDispatched is returned when the task was queued before.
var ErrAlreadyDispatched = errors.New("task already dispatched")

// Dispatcher hands persisted tasks to the job queue. A task is queued at most
// once; retries are scheduled by the pool on the queue itself.
type Dispatcher struct {
	repo   *repository.TaskRepository
	queue  queue.Queue
	logger *zap.Logger
}

func NewDispatcher(repo *repository.TaskRepository, q queue.Queue, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		repo:   repo,
		queue:  q,
		logger: logger,
	}
}

// Dispatch enqueues the first attempt for task. When the queue rejects the job
// the task is marked failed, the failure is audited and the enqueue error is
// returned.
func (d *Dispatcher) Dispatch(ctx context.Context, task *model.Task) error {
	err := d.enqueue(ctx, task)
	if err == nil {
		metrics.Dispatches.WithLabelValues(metrics.OutcomeSuccess).Inc()
		d.logger.Info("task dispatched", zap.String("task_id", task.TaskID))
		return nil
	}
	if errors.Is(err, ErrAlreadyDispatched) {
		return err
	}
	return d.fail(ctx, task, err)
}

// Redispatch enqueues a task that was persisted but never handed to the queue.
// A rejected job leaves the task pending and untouched for a later attempt.
func (d *Dispatcher) Redispatch(ctx context.Context, task *model.Task) error {
	if err := d.enqueue(ctx, task); err != nil {
		if !errors.Is(err, ErrAlreadyDispatched) {
			metrics.Dispatches.WithLabelValues(metrics.OutcomeFailure).Inc()
			d.logger.Warn("task redispatch failed, task left pending",
				zap.String("task_id", task.TaskID),
				zap.Error(err),
			)
		}
		return err
	}

	metrics.Dispatches.WithLabelValues(metrics.OutcomeSuccess).Inc()
	d.logger.Info("task redispatched", zap.String("task_id", task.TaskID))
	return nil
}

// enqueue marks the task queued, audits it and pushes attempt 1 in one
// transaction. A rejected job rolls back both writes, and workers refuse to
// claim a task that is not marked queued.
func (d *Dispatcher) enqueue(ctx context.Context, task *model.Task) error {
	err := d.repo.Transaction(ctx, func(tx *repository.TaskRepository) error {
		if err := tx.MarkQueued(ctx, task, time.Now()); err != nil {
			return err
		}
		err := tx.AppendLog(ctx, task, constants.EventTaskQueued, "Task queued for processing", map[string]interface{}{
			"attempt": 1,
		})
		if err != nil {
			return fmt.Errorf("write queue log: %w", err)
		}
		return d.queue.Enqueue(ctx, queue.NewJob(task.TaskID, 1))
	})
	if err == nil {
		return nil
	}

	task.QueuedAt = nil
	if errors.Is(err, repository.ErrTaskQueued) {
		return fmt.Errorf("%w: %s", ErrAlreadyDispatched, task.TaskID)
	}
	return err
}

func (d *Dispatcher) fail(ctx context.Context, task *model.Task, cause error) error {
	metrics.Dispatches.WithLabelValues(metrics.OutcomeFailure).Inc()
	d.logger.Error("task dispatch failed",
		zap.String("task_id", task.TaskID),
		zap.Error(cause),
	)

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	message := fmt.Sprintf("failed to dispatch task: %v", cause)
	err := d.repo.Transaction(bctx, func(tx *repository.TaskRepository) error {
		if err := tx.MarkFailed(bctx, task, message); err != nil {
			return err
		}
		return tx.AppendLog(bctx, task, constants.EventTaskDispatchFailed, "Failed to dispatch task to queue", map[string]string{
			"error": cause.Error(),
		})
	})
	if err != nil {
		d.logger.Error("failed to record dispatch failure",
			zap.String("task_id", task.TaskID),
			zap.Error(err),
		)
	}

	return fmt.Errorf("dispatch task %s: %w", task.TaskID, cause)
}
