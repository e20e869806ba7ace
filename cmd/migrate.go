package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "insightforge.com/insightforge/internal/configs"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadConfig()
		defer func() { _ = logger.Sync() }()

		db, err := config.OpenDatabase(cfg.DBDriver, cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		if err := config.Migrate(db); err != nil {
			return err
		}

		logger.Info("database schema is up to date", zap.String("driver", cfg.DBDriver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
