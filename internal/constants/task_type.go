package constants

type TaskType string

const (
	TaskTypeSentimentAnalysis      TaskType = "sentiment_analysis"
	TaskTypeNamedEntityRecognition TaskType = "named_entity_recognition"
)

var supportedTaskTypes = map[TaskType]struct{}{
	TaskTypeSentimentAnalysis:      {},
	TaskTypeNamedEntityRecognition: {},
}

func IsSupportedTaskType(t TaskType) bool {
	_, ok := supportedTaskTypes[t]
	return ok
}
