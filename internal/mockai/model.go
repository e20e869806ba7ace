package mockai

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

var (
	ErrMissingText         = errors.New("input data must contain a 'text' field (string)")
	ErrUnsupportedTaskType = errors.New("unsupported task_type")
)

const (
	taskTypeSentiment = "sentiment_analysis"
	taskTypeNER       = "named_entity_recognition"
)

var (
	positiveKeywords = []string{"positive", "great", "good", "excellent", "love", "好", "棒"}
	negativeKeywords = []string{"negative", "bad", "terrible", "awful", "hate", "壞", "差"}

	knownEntities = map[string]string{
		"蘋果":     "ORGANIZATION",
		"台灣":     "LOCATION",
		"張三":     "PERSON",
		"Apple":  "ORGANIZATION",
		"Taiwan": "LOCATION",
	}
)

type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Model is a keyword based stand-in for a real analysis model.
type Model struct {
	Version string
}

func NewModel(version string) *Model {
	return &Model{Version: version}
}

func (m *Model) Predict(data json.RawMessage, taskType string) (map[string]interface{}, error) {
	var payload struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Text == nil || *payload.Text == "" {
		return nil, ErrMissingText
	}
	text := *payload.Text

	switch taskType {
	case taskTypeSentiment:
		return map[string]interface{}{
			"sentiment":  sentiment(text),
			"score":      score(text),
			"model_info": fmt.Sprintf("Sentiment Model %s", m.Version),
		}, nil
	case taskTypeNER:
		return map[string]interface{}{
			"entities":   entities(text),
			"model_info": fmt.Sprintf("NER Model %s", m.Version),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTaskType, taskType)
	}
}

func sentiment(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, positiveKeywords):
		return "Positive"
	case containsAny(lower, negativeKeywords):
		return "Negative"
	default:
		return "Neutral"
	}
}

// score is stable for a given text so repeated runs agree.
func score(text string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	return float64(h.Sum32()%100) / 100
}

func entities(text string) []Entity {
	found := make([]Entity, 0)
	seen := make(map[string]struct{})

	add := func(token, kind string) {
		if _, ok := seen[token]; ok {
			return
		}
		seen[token] = struct{}{}
		found = append(found, Entity{Text: token, Type: kind})
	}

	for _, keyword := range []string{"蘋果", "台灣", "張三"} {
		if strings.Contains(text, keyword) {
			add(keyword, knownEntities[keyword])
		}
	}

	for _, token := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		first := []rune(token)[0]
		if !unicode.IsUpper(first) {
			continue
		}
		if kind, ok := knownEntities[token]; ok {
			add(token, kind)
			continue
		}
		add(token, "MISC")
	}

	return found
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
