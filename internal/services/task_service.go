package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"insightforge.com/insightforge/internal/constants"
	apperrors "insightforge.com/insightforge/internal/errors"
	"insightforge.com/insightforge/internal/metrics"
	model "insightforge.com/insightforge/internal/models"
	repository "insightforge.com/insightforge/internal/repositories"
)

type TaskDispatcher interface {
	Dispatch(ctx context.Context, task *model.Task) error
}

type TaskService struct {
	repo       *repository.TaskRepository
	dispatcher TaskDispatcher
	logger     *zap.Logger
}

type CreateTaskInput struct {
	TaskType     constants.TaskType
	Data         json.RawMessage
	ModelVersion string
}

type CallbackInput struct {
	TaskID       string
	Status       constants.TaskStatus
	Result       json.RawMessage
	ErrorMessage *string
	RawBody      []byte
}

func NewTaskService(repo *repository.TaskRepository, dispatcher TaskDispatcher, logger *zap.Logger) *TaskService {
	return &TaskService{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// CreateTask persists a pending task and dispatches it. When dispatch fails
// the created task is still returned together with an error wrapping
// ErrDispatchFailed.
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*model.Task, error) {
	task, err := s.repo.CreateTask(ctx, repository.CreateTaskParams{
		TaskType:     input.TaskType,
		DataPayload:  datatypes.JSON(input.Data),
		ModelVersion: input.ModelVersion,
	})
	if err != nil {
		return nil, err
	}

	metrics.TasksSubmitted.WithLabelValues(string(task.TaskType)).Inc()
	s.logger.Info("task created",
		zap.String("task_id", task.TaskID),
		zap.String("task_type", string(task.TaskType)),
	)

	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		return task, fmt.Errorf("%w: %w", apperrors.ErrDispatchFailed, err)
	}

	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.repo.FindByTaskIDWithResult(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

// HandleCallback applies the outcome reported by the AI service. Only the
// first callback for a task is applied; later ones are audited and rejected
// with ErrTaskAlreadyFinalized.
func (s *TaskService) HandleCallback(ctx context.Context, input CallbackInput) error {
	task, err := s.repo.FindByTaskID(ctx, input.TaskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			metrics.Callbacks.WithLabelValues("unknown_task").Inc()
			s.logger.Warn("callback for unknown task", zap.String("task_id", input.TaskID))
			return apperrors.ErrTaskNotFound
		}
		return err
	}

	err = s.repo.Transaction(ctx, func(tx *repository.TaskRepository) error {
		return s.applyCallback(ctx, tx, task, input)
	})

	if errors.Is(err, repository.ErrTaskFinalized) {
		metrics.Callbacks.WithLabelValues("rejected").Inc()
		s.logger.Warn("duplicate callback rejected",
			zap.String("task_id", task.TaskID),
			zap.String("status", string(input.Status)),
		)
		if logErr := s.repo.AppendLog(ctx, task, constants.EventTaskCallbackRejected,
			"Callback rejected: task already finalized", input.RawBody); logErr != nil {
			s.logger.Error("failed to write rejection log", zap.String("task_id", task.TaskID), zap.Error(logErr))
		}
		return apperrors.ErrTaskAlreadyFinalized
	}
	if err != nil {
		return fmt.Errorf("apply callback for task %s: %w", task.TaskID, err)
	}

	metrics.Callbacks.WithLabelValues(string(input.Status)).Inc()
	s.logger.Info("callback applied",
		zap.String("task_id", task.TaskID),
		zap.String("status", string(input.Status)),
	)
	return nil
}

func (s *TaskService) applyCallback(ctx context.Context, tx *repository.TaskRepository, task *model.Task, input CallbackInput) error {
	if err := tx.ApplyCallback(ctx, task, input.Status, input.ErrorMessage, time.Now().UTC()); err != nil {
		return err
	}

	if err := tx.AppendLog(ctx, task, constants.EventCallbackReceived, "Callback received from AI service", input.RawBody); err != nil {
		return err
	}

	if input.Status == constants.StatusCompleted {
		if _, err := tx.CreateResult(ctx, task, datatypes.JSON(input.Result)); err != nil {
			return err
		}
		return tx.AppendLog(ctx, task, constants.EventTaskCompleted, "Task completed successfully", nil)
	}

	description := "Task failed"
	if input.ErrorMessage != nil && *input.ErrorMessage != "" {
		description += ": " + *input.ErrorMessage
	}
	return tx.AppendLog(ctx, task, constants.EventTaskFailed, description, nil)
}
