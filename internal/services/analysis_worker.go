package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"insightforge.com/insightforge/internal/clients"
	"insightforge.com/insightforge/internal/constants"
	"insightforge.com/insightforge/internal/metrics"
	model "insightforge.com/insightforge/internal/models"
	"insightforge.com/insightforge/internal/queue"
	repository "insightforge.com/insightforge/internal/repositories"
)

// ErrJobSkipped marks deliveries that must not be retried: unknown tasks,
// duplicate deliveries of an attempt and tasks that already have a callback
// outcome.
var ErrJobSkipped = errors.New("job skipped")

type AnalysisService interface {
	Analyze(ctx context.Context, req clients.AnalyzeRequest) (*clients.AnalyzeResponse, error)
}

type AnalysisWorker struct {
	repo          *repository.TaskRepository
	ai            AnalysisService
	webhookURL    string
	webhookSecret string
	logger        *zap.Logger
}

func NewAnalysisWorker(
	repo *repository.TaskRepository,
	ai AnalysisService,
	webhookURL string,
	webhookSecret string,
	logger *zap.Logger,
) *AnalysisWorker {
	return &AnalysisWorker{
		repo:          repo,
		ai:            ai,
		webhookURL:    webhookURL,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Handle runs a single attempt: claim the attempt, submit the task to the AI
// service and record the outcome. The task stays in processing on success;
// the result webhook completes it.
func (w *AnalysisWorker) Handle(ctx context.Context, job queue.Job) error {
	task, err := w.repo.FindByTaskID(ctx, job.TaskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return fmt.Errorf("%w: task %s not found", ErrJobSkipped, job.TaskID)
		}
		return fmt.Errorf("load task %s: %w", job.TaskID, err)
	}

	if err := w.start(ctx, task, job.Attempt); err != nil {
		return err
	}

	req := clients.AnalyzeRequest{
		TaskID:        task.TaskID,
		Data:          []byte(task.DataPayload),
		TaskType:      string(task.TaskType),
		WebhookURL:    w.webhookURL,
		WebhookSecret: w.webhookSecret,
	}
	if task.ModelVersion != nil {
		req.ModelVersion = *task.ModelVersion
	}

	started := time.Now()
	resp, err := w.ai.Analyze(ctx, req)
	if err != nil {
		metrics.AIRequestDuration.WithLabelValues(metrics.OutcomeFailure).Observe(time.Since(started).Seconds())
		return w.recordAttemptFailure(ctx, task, job, err)
	}
	metrics.AIRequestDuration.WithLabelValues(metrics.OutcomeSuccess).Observe(time.Since(started).Seconds())

	if err := w.repo.AppendLog(ctx, task, constants.EventAIRequestSuccess, "AI service request success", resp.Body); err != nil {
		w.logger.Error("failed to write success log",
			zap.String("task_id", task.TaskID),
			zap.Error(err),
		)
	}

	w.logger.Info("task accepted by ai service",
		zap.String("task_id", task.TaskID),
		zap.Int("attempt", job.Attempt),
		zap.Int("status_code", resp.StatusCode),
	)
	return nil
}

func (w *AnalysisWorker) start(ctx context.Context, task *model.Task, attempt int) error {
	err := w.repo.Transaction(ctx, func(tx *repository.TaskRepository) error {
		if err := tx.ClaimAttempt(ctx, task, attempt, time.Now().UTC()); err != nil {
			return err
		}
		return tx.AppendLog(ctx, task, constants.EventProcessingStarted, "Task processing started", map[string]int{
			"attempt": attempt,
		})
	})

	if errors.Is(err, repository.ErrAttemptClaimed) {
		w.logger.Info("skipping duplicate or finalized delivery",
			zap.String("task_id", task.TaskID),
			zap.Int("attempt", attempt),
		)
		return fmt.Errorf("%w: %v", ErrJobSkipped, err)
	}
	if err != nil {
		return fmt.Errorf("start task %s: %w", task.TaskID, err)
	}
	return nil
}

// recordAttemptFailure persists the failed attempt and returns the cause so
// the pool can decide on a retry. The attempt context may already be expired,
// so bookkeeping runs on a detached one.
func (w *AnalysisWorker) recordAttemptFailure(ctx context.Context, task *model.Task, job queue.Job, cause error) error {
	w.logger.Warn("ai service request failed",
		zap.String("task_id", task.TaskID),
		zap.Int("attempt", job.Attempt),
		zap.Error(cause),
	)

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	err := w.repo.Transaction(bctx, func(tx *repository.TaskRepository) error {
		if err := tx.MarkFailed(bctx, task, cause.Error()); err != nil {
			return err
		}
		return tx.AppendLog(bctx, task, constants.EventAIRequestFailed, "AI service request failed: "+cause.Error(), map[string]interface{}{
			"attempt": job.Attempt,
			"error":   cause.Error(),
		})
	})

	if errors.Is(err, repository.ErrTaskFinalized) {
		return fmt.Errorf("%w: task %s finalized by callback", ErrJobSkipped, task.TaskID)
	}
	if err != nil {
		w.logger.Error("failed to record attempt failure",
			zap.String("task_id", task.TaskID),
			zap.Error(err),
		)
	}

	return fmt.Errorf("analyze task %s: %w", task.TaskID, cause)
}

// HandleFinalFailure runs once retries are exhausted and records the terminal
// outcome. Tasks that already have a callback outcome are left untouched.
func (w *AnalysisWorker) HandleFinalFailure(ctx context.Context, job queue.Job, cause error) {
	task, err := w.repo.FindByTaskID(ctx, job.TaskID)
	if err != nil {
		w.logger.Error("final failure for unknown task",
			zap.String("task_id", job.TaskID),
			zap.Error(err),
		)
		return
	}

	message := cause.Error()
	err = w.repo.Transaction(ctx, func(tx *repository.TaskRepository) error {
		if err := tx.MarkFailed(ctx, task, message); err != nil {
			return err
		}
		return tx.AppendLog(ctx, task, constants.EventTaskFailedFinal,
			fmt.Sprintf("Task failed permanently after %d attempts: %s", job.Attempt, message),
			map[string]interface{}{
				"attempts": job.Attempt,
				"error":    message,
			},
		)
	})

	switch {
	case errors.Is(err, repository.ErrTaskFinalized):
		w.logger.Info("final failure ignored, callback already recorded", zap.String("task_id", task.TaskID))
	case err != nil:
		w.logger.Error("failed to record final failure",
			zap.String("task_id", task.TaskID),
			zap.Error(err),
		)
	default:
		w.logger.Error("task failed permanently",
			zap.String("task_id", task.TaskID),
			zap.Int("attempts", job.Attempt),
			zap.Error(cause),
		)
	}
}
