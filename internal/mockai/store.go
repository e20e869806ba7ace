package mockai

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/rueidis"
)

var ErrRecordNotFound = errors.New("task not found or expired")

// Record is what the service remembers about a submitted task.
type Record struct {
	Status       string                 `json:"status"`
	TaskType     string                 `json:"task_type"`
	ModelVersion string                 `json:"model_version"`
	DataPayload  json.RawMessage        `json:"data_payload,omitempty"`
	Result       map[string]interface{} `json:"result,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

type Store interface {
	Save(ctx context.Context, taskID string, record Record) error
	Get(ctx context.Context, taskID string) (Record, error)
}

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		records: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Save(_ context.Context, taskID string, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[taskID] = memoryEntry{record: record, expiresAt: time.Now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[taskID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.records, taskID)
		return Record{}, ErrRecordNotFound
	}
	return entry.record, nil
}

type RedisStore struct {
	client rueidis.Client
	ttl    time.Duration
}

func NewRedisStore(client rueidis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, taskID string, record Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	cmd := s.client.B().Set().Key(recordKey(taskID)).Value(string(payload)).ExSeconds(int64(s.ttl.Seconds())).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (Record, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(recordKey(taskID)).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return Record{}, err
	}
	return record, nil
}

func recordKey(taskID string) string {
	return "task:" + taskID
}
