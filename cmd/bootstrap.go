package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"insightforge.com/insightforge/internal/clients"
	config "insightforge.com/insightforge/internal/configs"
	"insightforge.com/insightforge/internal/queue"
	repository "insightforge.com/insightforge/internal/repositories"
	"insightforge.com/insightforge/internal/services"
)

// natsAckMargin covers the bookkeeping that follows an attempt before the job
// is settled.
const natsAckMargin = 30 * time.Second

func loadConfig() (config.Config, *zap.Logger) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment variables")
	}

	cfg := config.Load()

	logger, err := config.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	return cfg, logger
}

// newQueue builds the configured queue driver. The returned close function
// releases the driver and its client connection.
func newQueue(cfg config.Config) (queue.Queue, func(), error) {
	switch cfg.QueueDriver {
	case config.QueueDriverMemory:
		q := queue.NewMemoryQueue(cfg.QueueSize)
		return q, func() { _ = q.Close() }, nil

	case config.QueueDriverRedis:
		client := config.NewRedisClient(cfg.RedisAddr)
		q := queue.NewRedisQueue(client, cfg.RedisQueueKey)
		return q, func() {
			_ = q.Close()
			client.Close()
		}, nil

	case config.QueueDriverNats:
		nc := config.NewNatsConnection(cfg.NatsURL)
		q, err := queue.NewNatsQueue(nc, cfg.NatsStream, cfg.NatsSubject, cfg.AttemptTimeout()+natsAckMargin)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return q, func() {
			_ = q.Close()
			nc.Close()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported queue driver %q", cfg.QueueDriver)
	}
}

func newPool(cfg config.Config, repo *repository.TaskRepository, q queue.Queue, logger *zap.Logger) *services.PoolService {
	aiClient := clients.NewAnalysisClient(cfg.AIServiceURL, time.Duration(cfg.AIServiceTimeoutSeconds)*time.Second)
	worker := services.NewAnalysisWorker(repo, aiClient, cfg.WebhookURL(), cfg.WebhookSecret, logger)

	return services.NewPoolService(q, worker, services.PoolConfig{
		Workers:        cfg.Workers,
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout(),
		RetryBackoff:   cfg.RetryBackoff(),
	}, logger)
}
