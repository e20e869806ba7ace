package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"insightforge.com/insightforge/internal/constants"
	model "insightforge.com/insightforge/internal/models"
)

type TaskRepository struct {
	db *gorm.DB
}

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrTaskFinalized  = errors.New("task already finalized")
	ErrAttemptClaimed = errors.New("attempt already claimed")
	ErrTaskQueued     = errors.New("task already queued")
)

type CreateTaskParams struct {
	TaskType     constants.TaskType
	DataPayload  datatypes.JSON
	ModelVersion string
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Transaction runs fn against a repository bound to a single database
// transaction. Any error returned by fn rolls the whole unit back.
func (r *TaskRepository) Transaction(ctx context.Context, fn func(tx *TaskRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TaskRepository{db: tx})
	})
}

func (r *TaskRepository) CreateTask(ctx context.Context, params CreateTaskParams) (*model.Task, error) {
	task := &model.Task{
		TaskID:      uuid.NewString(),
		TaskType:    params.TaskType,
		DataPayload: params.DataPayload,
		Status:      constants.StatusPending,
	}
	if params.ModelVersion != "" {
		mv := params.ModelVersion
		task.ModelVersion = &mv
	}

	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return task, nil
}

func (r *TaskRepository) FindByTaskID(ctx context.Context, taskID string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, "task_id = ?", taskID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) FindByTaskIDWithResult(ctx context.Context, taskID string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Preload("Result").First(&task, "task_id = ?", taskID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// ListUndispatched returns pending tasks that were created before olderThan
// and never handed to the queue, oldest first.
func (r *TaskRepository) ListUndispatched(ctx context.Context, olderThan time.Time, limit int) ([]model.Task, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	var tasks []model.Task
	query := r.db.WithContext(ctx).
		Where("status = ? AND attempts = 0 AND queued_at IS NULL AND created_at <= ?", constants.StatusPending, olderThan).
		Order("created_at asc").Limit(limit)

	if err := query.Find(&tasks).Error; err != nil {
		return nil, err
	}

	return tasks, nil
}

// MarkQueued records that the first job for task was handed to the queue. A
// task is queued at most once; ErrTaskQueued is returned otherwise.
func (r *TaskRepository) MarkQueued(ctx context.Context, task *model.Task, queuedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status = ? AND attempts = 0 AND queued_at IS NULL", task.ID, constants.StatusPending).
		Updates(map[string]interface{}{
			"queued_at":  queuedAt,
			"updated_at": queuedAt,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTaskQueued
	}

	task.QueuedAt = &queuedAt
	return nil
}

// ClaimAttempt moves the task into processing for the given attempt number.
// It fails with ErrAttemptClaimed when the attempt (or a later one) was
// already started, a callback outcome has been recorded or the task was never
// marked queued.
func (r *TaskRepository) ClaimAttempt(ctx context.Context, task *model.Task, attempt int, startedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND queued_at IS NOT NULL AND completed_at IS NULL AND attempts < ?", task.ID, attempt).
		Updates(map[string]interface{}{
			"status":     constants.StatusProcessing,
			"attempts":   attempt,
			"started_at": startedAt,
			"updated_at": startedAt,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAttemptClaimed
	}

	task.Status = constants.StatusProcessing
	task.Attempts = attempt
	task.StartedAt = &startedAt
	return nil
}

// MarkFailed records a worker-side failure. Tasks that already carry a
// callback outcome are left untouched and ErrTaskFinalized is returned.
func (r *TaskRepository) MarkFailed(ctx context.Context, task *model.Task, message string) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND completed_at IS NULL", task.ID).
		Updates(map[string]interface{}{
			"status":        constants.StatusFailed,
			"error_message": message,
			"updated_at":    now,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTaskFinalized
	}

	task.Status = constants.StatusFailed
	task.ErrorMessage = &message
	return nil
}

// ApplyCallback stores the outcome reported by the AI service. Only the first
// callback for a task is applied.
func (r *TaskRepository) ApplyCallback(ctx context.Context, task *model.Task, status constants.TaskStatus, errorMessage *string, completedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND completed_at IS NULL", task.ID).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMessage,
			"completed_at":  completedAt,
			"updated_at":    completedAt,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTaskFinalized
	}

	task.Status = status
	task.ErrorMessage = errorMessage
	task.CompletedAt = &completedAt
	return nil
}

func (r *TaskRepository) CreateResult(ctx context.Context, task *model.Task, data datatypes.JSON) (*model.Result, error) {
	result := &model.Result{
		AnalysisTaskID: task.ID,
		ResultData:     data,
	}

	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrTaskFinalized
		}
		return nil, fmt.Errorf("create result: %w", err)
	}

	return result, nil
}

func (r *TaskRepository) FindResult(ctx context.Context, task *model.Task) (*model.Result, error) {
	var result model.Result
	err := r.db.WithContext(ctx).First(&result, "analysis_task_id = ?", task.ID).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AppendLog writes an audit entry. details may be nil, raw JSON bytes or any
// value encodable as JSON.
func (r *TaskRepository) AppendLog(
	ctx context.Context,
	task *model.Task,
	event constants.EventType,
	description string,
	details interface{},
) error {
	encoded, err := toJSON(details)
	if err != nil {
		return fmt.Errorf("encode log details: %w", err)
	}

	entry := &model.TaskLog{
		AnalysisTaskID: task.ID,
		EventType:      event,
		Description:    description,
		Details:        encoded,
	}

	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *TaskRepository) ListLogs(ctx context.Context, task *model.Task) ([]model.TaskLog, error) {
	var logs []model.TaskLog
	err := r.db.WithContext(ctx).
		Where("analysis_task_id = ?", task.ID).
		Order("id asc").
		Find(&logs).Error
	return logs, err
}

func toJSON(v interface{}) (datatypes.JSON, error) {
	switch d := v.(type) {
	case nil:
		return nil, nil
	case datatypes.JSON:
		return d, nil
	case json.RawMessage:
		return datatypes.JSON(d), nil
	case []byte:
		if !json.Valid(d) {
			return json.Marshal(map[string]string{"raw": string(d)})
		}
		return datatypes.JSON(d), nil
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		return datatypes.JSON(b), nil
	}
}
