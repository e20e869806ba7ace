package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	repository "insightforge.com/insightforge/internal/repositories"
)

const sweepBatchSize = 50

// StaleTaskSweeper re-dispatches tasks that were persisted but never handed to
// the queue, e.g. after a crash between task creation and enqueue. Tasks
// already waiting in the queue are left alone.
type StaleTaskSweeper struct {
	repo       *repository.TaskRepository
	dispatcher *Dispatcher
	interval   time.Duration
	staleAfter time.Duration
	logger     *zap.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewStaleTaskSweeper(
	repo *repository.TaskRepository,
	dispatcher *Dispatcher,
	interval time.Duration,
	staleAfter time.Duration,
	logger *zap.Logger,
) *StaleTaskSweeper {
	return &StaleTaskSweeper{
		repo:       repo,
		dispatcher: dispatcher,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

func (s *StaleTaskSweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *StaleTaskSweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("requeue: sweep failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}
	}
}

// SweepOnce dispatches one batch of undispatched pending tasks and returns how
// many were queued. It stops at the first enqueue failure since the queue is
// most likely unavailable; the tasks stay pending for the next sweep.
func (s *StaleTaskSweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.staleAfter)

	tasks, err := s.repo.ListUndispatched(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	queued := 0
	for i := range tasks {
		task := &tasks[i]
		err := s.dispatcher.Redispatch(ctx, task)
		if errors.Is(err, ErrAlreadyDispatched) {
			continue
		}
		if err != nil {
			s.logger.Warn("requeue: enqueue failed, stopping batch",
				zap.String("task_id", task.TaskID),
				zap.Error(err),
			)
			return queued, nil
		}
		queued++
	}

	if queued > 0 {
		s.logger.Info("requeue: undispatched tasks queued", zap.Int("count", queued))
	}
	return queued, nil
}

func (s *StaleTaskSweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
}
