package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBody = 64 << 10

type AnalyzeRequest struct {
	TaskID        string          `json:"task_id"`
	Data          json.RawMessage `json:"data"`
	TaskType      string          `json:"task_type"`
	ModelVersion  string          `json:"model_version"`
	WebhookURL    string          `json:"webhook_url"`
	WebhookSecret string          `json:"webhook_secret"`
}

type AnalyzeResponse struct {
	StatusCode int
	Body       []byte
}

// StatusError is returned when the AI service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai service responded with status %d: %s", e.StatusCode, e.Body)
}

type AnalysisClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAnalysisClient(baseURL string, timeout time.Duration) *AnalysisClient {
	return &AnalysisClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze submits a job to the AI service. A successful response only means
// the job was accepted; the outcome arrives later through the result webhook.
func (c *AnalysisClient) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call ai service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read ai service response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return &AnalyzeResponse{StatusCode: resp.StatusCode, Body: body}, nil
}
