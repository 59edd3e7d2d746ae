// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/goartstore/docstore/internal/config"
)

const (
	statusOK       = "ok"
	statusFail     = "fail"
	statusDegraded = "degraded"
)

// pingTimeout — таймаут проверки хранилища метаданных.
const pingTimeout = 2 * time.Second

// Pinger — проверка доступности хранилища метаданных.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DiskUsageFunc возвращает ёмкость диска директории загрузок в байтах.
type DiskUsageFunc func() (total, used, available int64, err error)

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// uploadDir — директория загрузок (проверка записи)
	uploadDir string
	// walDir — директория журнала (проверка записи)
	walDir string
	// store — хранилище метаданных (nil — проверка не выполняется)
	store Pinger
	// diskUsage — ёмкость диска загрузок (nil — не сообщается)
	diskUsage DiskUsageFunc
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(uploadDir, walDir string, store Pinger, diskUsage DiskUsageFunc) *HealthHandler {
	return &HealthHandler{
		version:   config.Version,
		uploadDir: uploadDir,
		walDir:    walDir,
		store:     store,
		diskUsage: diskUsage,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    statusOK,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "docstore",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Недоступность директории загрузок или хранилища метаданных — 503.
// Недоступность журнала — degraded: операции продолжают работать без него.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := statusOK
	httpStatus := http.StatusOK

	uploadsCheck := checkWritable(h.uploadDir, "Директория загрузок недоступна для записи: ")
	storeCheck := h.checkStore(r.Context())
	walCheck := checkWritable(h.walDir, "Директория журнала недоступна для записи: ")

	if h.diskUsage != nil && uploadsCheck["status"] == statusOK {
		if total, _, available, err := h.diskUsage(); err == nil {
			uploadsCheck["total_bytes"] = total
			uploadsCheck["available_bytes"] = available
		}
	}

	if uploadsCheck["status"] != statusOK || storeCheck["status"] != statusOK {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	} else if walCheck["status"] != statusOK {
		overallStatus = statusDegraded
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "docstore",
		"checks": map[string]any{
			"uploads":        uploadsCheck,
			"wal":            walCheck,
			"metadata_store": storeCheck,
		},
	})
}

// checkStore проверяет доступность хранилища метаданных.
func (h *HealthHandler) checkStore(ctx context.Context) map[string]any {
	if h.store == nil {
		return map[string]any{"status": statusOK, "message": "Проверка не настроена"}
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Хранилище метаданных недоступно: " + err.Error(),
		}
	}
	return map[string]any{"status": statusOK}
}

// checkWritable проверяет возможность записи в директорию.
func checkWritable(dir, failPrefix string) map[string]any {
	if dir == "" {
		return map[string]any{"status": statusOK, "message": "Проверка не настроена"}
	}

	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": failPrefix + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{"status": statusOK}
}
