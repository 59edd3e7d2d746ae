package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/docstore/internal/service"
)

var reconcileFailOnIssues bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Сверить файлы на диске с метаданными",
	Long: `Выполняет один цикл сверки директории загрузок с хранилищем метаданных
и печатает результат в JSON. Расхождения не исправляются.

Examples:
  # Сверка с выводом отчёта
  docstore reconcile

  # Код возврата 1 при найденных расхождениях
  docstore reconcile --fail-on-issues`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileFailOnIssues, "fail-on-issues", false,
		"Завершаться с ошибкой при найденных расхождениях")
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	reconciler := service.NewReconcileService(st.blobs, st.db.Repo, st.walEngine, 0, logger)
	result, _, err := reconciler.RunOnce(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if reconcileFailOnIssues && len(result.Issues) > 0 {
		return errors.New("обнаружены расхождения")
	}
	return nil
}
