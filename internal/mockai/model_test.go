package mockai

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredict_Sentiment(t *testing.T) {
	m := NewModel("v2")

	tests := []struct {
		text string
		want string
	}{
		{"I love it", "Positive"},
		{"This is GREAT", "Positive"},
		{"awful service", "Negative"},
		{"這個很棒", "Positive"},
		{"品質很差", "Negative"},
		{"it arrived on tuesday", "Neutral"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			data, _ := json.Marshal(map[string]string{"text": tt.text})
			result, err := m.Predict(data, taskTypeSentiment)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result["sentiment"])
			assert.Equal(t, "Sentiment Model v2", result["model_info"])

			score, ok := result["score"].(float64)
			require.True(t, ok)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.Less(t, score, 1.0)
		})
	}
}

func TestPredict_ScoreIsStable(t *testing.T) {
	m := NewModel("v1")
	data := json.RawMessage(`{"text":"same input"}`)

	first, err := m.Predict(data, taskTypeSentiment)
	require.NoError(t, err)
	second, err := m.Predict(data, taskTypeSentiment)
	require.NoError(t, err)

	assert.Equal(t, first["score"], second["score"])
}

func TestPredict_Entities(t *testing.T) {
	m := NewModel("v1")

	result, err := m.Predict(json.RawMessage(`{"text":"張三 visited 台灣 and met Apple and Apple and Bob"}`), taskTypeNER)
	require.NoError(t, err)

	assert.Equal(t, []Entity{
		{Text: "台灣", Type: "LOCATION"},
		{Text: "張三", Type: "PERSON"},
		{Text: "Apple", Type: "ORGANIZATION"},
		{Text: "Bob", Type: "MISC"},
	}, result["entities"])
}

func TestPredict_InvalidInput(t *testing.T) {
	m := NewModel("v1")

	for _, data := range []string{`{}`, `{"text":""}`, `{"text":42}`, `[1,2]`} {
		_, err := m.Predict(json.RawMessage(data), taskTypeSentiment)
		assert.ErrorIs(t, err, ErrMissingText, data)
	}

	_, err := m.Predict(json.RawMessage(`{"text":"hello"}`), "translation")
	assert.True(t, errors.Is(err, ErrUnsupportedTaskType))
}
