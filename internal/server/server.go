// Пакет server — HTTP-сервер docstore: маршруты, middleware, TLS
// и graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/bigkaa/goartstore/docstore/internal/api/errors"
	"github.com/bigkaa/goartstore/docstore/internal/api/handlers"
	"github.com/bigkaa/goartstore/docstore/internal/api/middleware"
	"github.com/bigkaa/goartstore/docstore/internal/config"
)

// Handlers — набор обработчиков, монтируемых в роутер.
type Handlers struct {
	Files       *handlers.FilesHandler
	Health      *handlers.HealthHandler
	Maintenance *handlers.MaintenanceHandler
	// OpenAPI отдаёт документ на /openapi.json (nil — маршрут не монтируется)
	OpenAPI http.Handler
}

// NewRouter собирает chi-роутер со всеми endpoints docstore.
func NewRouter(cfg *config.Config, logger *slog.Logger, h Handlers) http.Handler {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(chimw.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	router.Route("/upload", func(r chi.Router) {
		r.Post("/", h.Files.Upload)
		r.Delete("/", h.Files.DeleteAll)
		// Скачивание без id
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			apierrors.NotFound(w, "Не указан идентификатор файла")
		})
		r.Get("/{id}", h.Files.Download)
		r.Delete("/{id}", h.Files.DeleteOne)
	})

	router.Post("/maintenance/reconcile", h.Maintenance.Reconcile)
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())
	if h.OpenAPI != nil {
		router.Handle("/openapi.json", h.OpenAPI)
	}

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Маршрут не найден")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeBadRequest, "Метод не поддерживается", "")
	})

	return router
}

// Server — HTTP-сервер docstore.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер поверх готового роутера.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if cfg.TLSEnabled() {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и блокируется до отмены ctx (сигнал завершения)
// или ошибки сервера. При отмене ctx выполняется graceful shutdown
// с таймаутом DS_SHUTDOWN_TIMEOUT.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSEnabled()),
		)

		var err error
		if s.cfg.TLSEnabled() {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Получен сигнал завершения")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
