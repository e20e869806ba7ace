package constants

// EventType tags an audit entry in task_logs.
type EventType string

const (
	EventTaskQueued           EventType = "TASK_QUEUED"
	EventTaskDispatchFailed   EventType = "TASK_DISPATCH_FAILED"
	EventProcessingStarted    EventType = "TASK_PROCESSING_STARTED"
	EventAIRequestSuccess     EventType = "AI_SERVICE_REQUEST_SUCCESS"
	EventAIRequestFailed      EventType = "AI_SERVICE_REQUEST_FAILED"
	EventTaskFailedFinal      EventType = "TASK_FAILED_FINAL"
	EventCallbackReceived     EventType = "AI_SERVICE_CALLBACK_RECEIVED"
	EventTaskCompleted        EventType = "TASK_COMPLETED"
	EventTaskFailed           EventType = "TASK_FAILED"
	EventTaskCallbackRejected EventType = "TASK_CALLBACK_REJECTED"
)
