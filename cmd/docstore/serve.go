package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/docstore/internal/api/handlers"
	"github.com/bigkaa/goartstore/docstore/internal/api/middleware"
	"github.com/bigkaa/goartstore/docstore/internal/api/openapi"
	"github.com/bigkaa/goartstore/docstore/internal/config"
	"github.com/bigkaa/goartstore/docstore/internal/server"
	"github.com/bigkaa/goartstore/docstore/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP-сервер",
	Long: `Запускает HTTP-сервер docstore.

Перед стартом применяет миграции и восстанавливает незавершённые
операции из журнала. Останавливается по SIGINT/SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(os.Stdout)
	if err != nil {
		return err
	}

	logger.Info("docstore запускается",
		slog.String("service_id", cfg.ServiceID),
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("db_driver", cfg.DBDriver),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Инициализация компонентов ---

	// 1. Хранилища
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилищ", slog.String("error", err.Error()))
		return err
	}
	defer st.Close()

	// 2. Восстановление по журналу: до приёма запросов
	if _, err := service.NewRecoveryService(st.blobs, st.db.Repo, st.walEngine, logger).Run(ctx); err != nil {
		logger.Error("Ошибка восстановления журнала", slog.String("error", err.Error()))
		return err
	}

	count, err := st.db.Repo.Count(ctx)
	if err != nil {
		logger.Error("Ошибка подсчёта файлов", slog.String("error", err.Error()))
		return err
	}
	middleware.FilesTotal.Set(float64(count))
	logger.Info("Хранилище метаданных готово", slog.Int("files", count))

	// 3. Сервисы
	uploadSvc := service.NewUploadService(st.blobs, st.db.Repo, st.walEngine, logger)
	downloadSvc := service.NewDownloadService(st.blobs, st.db.Repo, logger)
	deleteSvc := service.NewDeleteService(st.blobs, st.db.Repo, st.walEngine, cfg.DeleteConcurrency, logger)

	// 4. Фоновые процессы
	reconcileSvc := service.NewReconcileService(st.blobs, st.db.Repo, st.walEngine, cfg.ReconcileInterval, logger)
	if cfg.ReconcileInterval > 0 {
		reconcileSvc.Start(ctx)
		defer reconcileSvc.Stop()
	}

	if dephealthSvc := startDephealth(ctx, cfg, st, logger); dephealthSvc != nil {
		defer dephealthSvc.Stop()
	}

	// 5. Handlers
	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI", slog.String("error", err.Error()))
		return err
	}
	docHandler, err := openapi.Handler(doc)
	if err != nil {
		return fmt.Errorf("ошибка сериализации OpenAPI: %w", err)
	}

	router := server.NewRouter(cfg, logger, server.Handlers{
		Files: handlers.NewFilesHandler(uploadSvc, downloadSvc, deleteSvc, cfg.MultipartMemory, logger),
		Health: handlers.NewHealthHandler(cfg.UploadDir, cfg.WALDir, st.db.Repo, func() (int64, int64, int64, error) {
			return getDiskUsage(cfg.UploadDir)
		}),
		Maintenance: handlers.NewMaintenanceHandler(reconcileSvc, logger),
		OpenAPI:     docHandler,
	})

	// 6. HTTP-сервер
	if err := server.New(cfg, logger, router).Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Остановка фоновых процессов...")
	return nil
}

// startDephealth запускает мониторинг PostgreSQL. Для SQLite и при ошибках
// возвращает nil: сервис работает без мониторинга зависимостей.
func startDephealth(ctx context.Context, cfg *config.Config, st *storageSet, logger *slog.Logger) *service.DephealthService {
	if cfg.DBDriver != config.DriverPostgres {
		return nil
	}

	dephealthSvc, err := service.NewDephealthService(
		cfg.ServiceID,
		st.db.SQLDB,
		cfg.DBDSN,
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		return nil
	}

	if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		return nil
	}

	logger.Info("topologymetrics запущен",
		slog.String("check_interval", cfg.DephealthCheckInterval.String()),
	)
	return dephealthSvc
}
