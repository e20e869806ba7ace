package mockai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"insightforge.com/insightforge/internal/webhook"
)

const callbackTimeout = 10 * time.Second

var validate = validator.New()

type AnalyzeRequest struct {
	TaskID        string          `json:"task_id" validate:"required"`
	Data          json.RawMessage `json:"data" validate:"required"`
	TaskType      string          `json:"task_type" validate:"required"`
	ModelVersion  string          `json:"model_version"`
	WebhookURL    string          `json:"webhook_url" validate:"required,url"`
	WebhookSecret string          `json:"webhook_secret"`
}

type CallbackPayload struct {
	TaskID       string                 `json:"task_id"`
	Status       string                 `json:"status"`
	Result       map[string]interface{} `json:"result"`
	ErrorMessage *string                `json:"error_message"`
	ModelVersion string                 `json:"model_version"`
}

type Config struct {
	Delay          time.Duration
	FallbackSecret string
}

// Server imitates the external AI service: it accepts analyze requests,
// runs the keyword model in the background and posts a signed callback.
type Server struct {
	model      *Model
	store      Store
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(model *Model, store Store, cfg Config, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		model:      model,
		store:      store,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: callbackTimeout},
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/", s.Health)
	e.POST("/analyze", s.Analyze)
	e.GET("/result/:task_id", s.Result)
}

func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "InsightForge AI Service is running"})
}

func (s *Server) Analyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid JSON payload")
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if req.ModelVersion == "" {
		req.ModelVersion = s.model.Version
	}

	data := decodeData(req.Data)
	err := s.store.Save(c.Request().Context(), req.TaskID, Record{
		Status:       "processing",
		TaskType:     req.TaskType,
		ModelVersion: req.ModelVersion,
		DataPayload:  data,
	})
	if err != nil {
		s.logger.Error("failed to store task", zap.String("task_id", req.TaskID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "AI service internal error: store unavailable")
	}

	s.logger.Info("task received",
		zap.String("task_id", req.TaskID),
		zap.String("task_type", req.TaskType),
		zap.String("model_version", req.ModelVersion),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.process(req, data)
	}()

	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("analysis accepted, the result will be posted to %s", req.WebhookURL),
		"task_id": req.TaskID,
	})
}

func (s *Server) Result(c echo.Context) error {
	record, err := s.store.Get(c.Request().Context(), c.Param("task_id"))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, ErrRecordNotFound.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, record)
}

func (s *Server) process(req AnalyzeRequest, data json.RawMessage) {
	select {
	case <-time.After(s.cfg.Delay):
	case <-s.ctx.Done():
		return
	}

	payload := CallbackPayload{
		TaskID:       req.TaskID,
		ModelVersion: req.ModelVersion,
	}
	record := Record{
		TaskType:     req.TaskType,
		ModelVersion: req.ModelVersion,
		DataPayload:  data,
	}

	result, err := s.model.Predict(data, req.TaskType)
	if err != nil {
		msg := fmt.Sprintf("invalid input data or task type: %v", err)
		payload.Status = "failed"
		payload.ErrorMessage = &msg
		record.Status = "failed"
		record.Error = msg
		s.logger.Warn("task failed", zap.String("task_id", req.TaskID), zap.String("error", msg))
	} else {
		payload.Status = "completed"
		payload.Result = result
		record.Status = "completed"
		record.Result = result
		s.logger.Info("task processed", zap.String("task_id", req.TaskID))
	}

	if err := s.store.Save(s.ctx, req.TaskID, record); err != nil {
		s.logger.Error("failed to store result", zap.String("task_id", req.TaskID), zap.Error(err))
	}

	secret := req.WebhookSecret
	if secret == "" {
		secret = s.cfg.FallbackSecret
	}
	if err := s.sendCallback(req.WebhookURL, secret, payload); err != nil {
		s.logger.Error("callback failed", zap.String("task_id", req.TaskID), zap.Error(err))
	}
}

func (s *Server) sendCallback(url, secret string, payload CallbackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(webhook.HeaderSignature, webhook.Sign(secret, body))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback responded with status %d", resp.StatusCode)
	}

	s.logger.Info("callback delivered",
		zap.String("task_id", payload.TaskID),
		zap.Int("status_code", resp.StatusCode),
	)
	return nil
}

// Shutdown cancels pending work and waits for background processing to stop.
func (s *Server) Shutdown(ctx context.Context) {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// decodeData accepts data either as a JSON value or as a string holding JSON.
func decodeData(raw json.RawMessage) json.RawMessage {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil && json.Valid([]byte(encoded)) {
		return json.RawMessage(encoded)
	}
	return raw
}
