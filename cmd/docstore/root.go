package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/docstore/internal/config"
)

// rootCmd — корневая команда. Без подкоманды запускает HTTP-сервер.
var rootCmd = &cobra.Command{
	Use:   "docstore",
	Short: "docstore — сервис загрузки и выдачи документов",
	Long: `docstore принимает документы через multipart-загрузку, хранит их на диске,
а метаданные — в SQLite или PostgreSQL.

Конфигурация задаётся переменными окружения (PORT, DS_*).
Без подкоманды выполняется serve.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute выполняет корневую команду и завершает процесс с кодом 1 при ошибке.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig загружает конфигурацию и настраивает логгер с выводом в logOut.
func loadConfig(logOut io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка конфигурации: %w", err)
	}
	return cfg, config.SetupLogger(cfg, logOut), nil
}
