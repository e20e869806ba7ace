package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "insightforge.com/insightforge/internal/configs"
	repository "insightforge.com/insightforge/internal/repositories"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the worker pool only",
	Long:  "Consumes analysis jobs from the shared redis or nats queue and forwards them to the AI service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadConfig()
		defer func() { _ = logger.Sync() }()

		if cfg.QueueDriver == config.QueueDriverMemory {
			return errors.New("the worker command needs QUEUE_DRIVER=redis or QUEUE_DRIVER=nats")
		}

		database := config.NewDatabaseClient(cfg.DBDriver, cfg.DatabaseDSN)
		taskRepo := repository.NewTaskRepository(database)

		q, closeQueue, err := newQueue(cfg)
		if err != nil {
			return err
		}
		defer closeQueue()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		poolService := newPool(cfg, taskRepo, q, logger)
		logger.Info("worker pool started",
			zap.Int("workers", cfg.Workers),
			zap.String("queue_driver", cfg.QueueDriver),
		)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		poolService.Shutdown(shutdownCtx)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
