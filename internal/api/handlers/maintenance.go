// maintenance.go — обработчик POST /maintenance/reconcile и выдача OpenAPI документа.
package handlers

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/file-organizer/internal/api/errors"
	"github.com/bigkaa/goartstore/file-organizer/internal/api/generated"
	"github.com/bigkaa/goartstore/file-organizer/internal/service"
)

// ReconcileRunner — интерфейс для запуска сверки.
// Позволяет тестировать handler без полного ReconcileService.
type ReconcileRunner interface {
	// RunOnce выполняет один проход сверки.
	// Возвращает service.ErrReconcileInProgress, если проход уже идёт.
	RunOnce(ctx context.Context) (*generated.ReconcileResponse, error)
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	reconciler ReconcileRunner
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(reconciler ReconcileRunner) *MaintenanceHandler {
	return &MaintenanceHandler{reconciler: reconciler}
}

// Reconcile обрабатывает POST /maintenance/reconcile.
// Запускает синхронный проход сверки и возвращает отчёт.
func (h *MaintenanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrReconcileInProgress) {
			apierrors.Conflict(w, "Reconciliation already in progress")
			return
		}
		apierrors.InternalError(w, "Reconciliation failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetOpenAPI обрабатывает GET /openapi.json.
func (h *MaintenanceHandler) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	swagger, err := generated.GetSwagger()
	if err != nil {
		apierrors.InternalError(w, "Failed to load API document: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, swagger)
}
