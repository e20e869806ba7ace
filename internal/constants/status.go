package constants

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// IsCallbackStatus reports whether s may be reported by the AI service callback.
func IsCallbackStatus(s TaskStatus) bool {
	return s == StatusCompleted || s == StatusFailed
}
