package mockai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"insightforge.com/insightforge/internal/webhook"
)

type receivedCallback struct {
	payload   CallbackPayload
	signature string
	body      []byte
}

func newCallbackReceiver(t *testing.T) (string, <-chan receivedCallback) {
	ch := make(chan receivedCallback, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload CallbackPayload
		_ = json.Unmarshal(body, &payload)
		ch <- receivedCallback{
			payload:   payload,
			signature: r.Header.Get(webhook.HeaderSignature),
			body:      body,
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/api/analysis/result", ch
}

func newTestServer(t *testing.T, cfg Config) (*echo.Echo, *MemoryStore) {
	store := NewMemoryStore(time.Hour)
	s := NewServer(NewModel("v1.0"), store, cfg, zaptest.NewLogger(t))
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	e := echo.New()
	s.Register(e)
	return e, store
}

func postAnalyze(e *echo.Echo, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func waitCallback(t *testing.T, ch <-chan receivedCallback) receivedCallback {
	select {
	case cb := <-ch:
		return cb
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not delivered")
		return receivedCallback{}
	}
}

func TestAnalyze_PostsSignedCallback(t *testing.T) {
	webhookURL, callbacks := newCallbackReceiver(t)
	e, _ := newTestServer(t, Config{})

	rec := postAnalyze(e, map[string]interface{}{
		"task_id":        "task-1",
		"data":           map[string]string{"text": "excellent support"},
		"task_type":      "sentiment_analysis",
		"model_version":  "v3",
		"webhook_url":    webhookURL,
		"webhook_secret": "request-secret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cb := waitCallback(t, callbacks)
	assert.True(t, webhook.Verify("request-secret", cb.body, cb.signature))
	assert.Equal(t, "task-1", cb.payload.TaskID)
	assert.Equal(t, "completed", cb.payload.Status)
	assert.Equal(t, "v3", cb.payload.ModelVersion)
	assert.Equal(t, "Positive", cb.payload.Result["sentiment"])
	assert.Nil(t, cb.payload.ErrorMessage)
}

func TestAnalyze_FallbackSecretAndStringData(t *testing.T) {
	webhookURL, callbacks := newCallbackReceiver(t)
	e, _ := newTestServer(t, Config{FallbackSecret: "fallback-secret"})

	rec := postAnalyze(e, map[string]interface{}{
		"task_id":     "task-2",
		"data":        `{"text":"Apple opened in Taiwan"}`,
		"task_type":   "named_entity_recognition",
		"webhook_url": webhookURL,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cb := waitCallback(t, callbacks)
	assert.True(t, webhook.Verify("fallback-secret", cb.body, cb.signature))
	assert.Equal(t, "completed", cb.payload.Status)
	assert.Equal(t, "v1.0", cb.payload.ModelVersion)
	assert.Len(t, cb.payload.Result["entities"], 2)
}

func TestAnalyze_ReportsFailure(t *testing.T) {
	webhookURL, callbacks := newCallbackReceiver(t)
	e, store := newTestServer(t, Config{})

	rec := postAnalyze(e, map[string]interface{}{
		"task_id":        "task-3",
		"data":           map[string]string{"text": "hello"},
		"task_type":      "translation",
		"webhook_url":    webhookURL,
		"webhook_secret": "request-secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	cb := waitCallback(t, callbacks)
	assert.Equal(t, "failed", cb.payload.Status)
	require.NotNil(t, cb.payload.ErrorMessage)
	assert.Contains(t, *cb.payload.ErrorMessage, "unsupported task_type")

	record, err := store.Get(context.Background(), "task-3")
	require.NoError(t, err)
	assert.Equal(t, "failed", record.Status)
}

func TestAnalyze_RejectsInvalidRequest(t *testing.T) {
	e, _ := newTestServer(t, Config{})

	rec := postAnalyze(e, map[string]interface{}{
		"task_id":   "task-4",
		"task_type": "sentiment_analysis",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestResult_LooksUpStore(t *testing.T) {
	e, store := newTestServer(t, Config{})
	require.NoError(t, store.Save(context.Background(), "task-5", Record{Status: "completed", TaskType: "sentiment_analysis"}))

	req := httptest.NewRequest(http.MethodGet, "/result/task-5", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var record Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "completed", record.Status)

	req = httptest.NewRequest(http.MethodGet, "/result/missing", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMemoryStore_Expires(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	require.NoError(t, store.Save(context.Background(), "task-6", Record{Status: "processing"}))

	time.Sleep(30 * time.Millisecond)
	_, err := store.Get(context.Background(), "task-6")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
