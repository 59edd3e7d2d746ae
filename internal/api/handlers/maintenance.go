// maintenance.go — обработчик POST /maintenance/reconcile.
// Делегирует reconciliation в ReconcileService.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/docstore/internal/api/errors"
	"github.com/bigkaa/goartstore/docstore/internal/service"
)

// ReconcileRunner — интерфейс для запуска reconciliation.
// Позволяет тестировать handler без полного ReconcileService.
type ReconcileRunner interface {
	// RunOnce выполняет один цикл reconciliation.
	// Возвращает результат и флаг "уже выполняется".
	RunOnce(ctx context.Context) (*service.ReconcileResult, bool, error)
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	reconciler ReconcileRunner
	logger     *slog.Logger
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(reconciler ReconcileRunner, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		reconciler: reconciler,
		logger:     logger.With(slog.String("component", "maintenance_handler")),
	}
}

// Reconcile обрабатывает POST /maintenance/reconcile.
// Запускает синхронный цикл reconciliation и возвращает результат.
// Если reconciliation уже выполняется — 409 RECONCILE_IN_PROGRESS.
func (h *MaintenanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, inProgress, err := h.reconciler.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("Ошибка reconciliation", slog.String("error", err.Error()))
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.CodeInternalError,
			"Ошибка выполнения reconciliation", err.Error())
		return
	}
	if inProgress {
		apierrors.ReconcileInProgress(w, "Reconciliation уже выполняется")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
