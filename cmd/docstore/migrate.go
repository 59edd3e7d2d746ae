package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/docstore/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Применить миграции хранилища метаданных",
	Long: `Применяет SQL-миграции к базе из DS_DB_DRIVER / DS_DB_PATH / DS_DB_DSN
и завершается. Повторный запуск ничего не меняет.`,
	RunE: runMigrate,
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	return database.Migrate(cfg, logger)
}
