// handler.go — APIHandler реализует generated.ServerInterface,
// делегируя вызовы в отдельные handler'ы по доменам.
package handlers

import (
	"net/http"

	"github.com/bigkaa/goartstore/file-organizer/internal/api/generated"
)

// APIHandler — единая реализация ServerInterface, собирающая
// все доменные handlers в один объект.
type APIHandler struct {
	files       *FilesHandler
	query       *QueryHandler
	maintenance *MaintenanceHandler
	health      *HealthHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	files *FilesHandler,
	query *QueryHandler,
	maintenance *MaintenanceHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		files:       files,
		query:       query,
		maintenance: maintenance,
		health:      health,
	}
}

// --- Files ---

func (h *APIHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	h.files.UploadFiles(w, r)
}

func (h *APIHandler) ClearFiles(w http.ResponseWriter, r *http.Request) {
	h.files.ClearFiles(w, r)
}

// --- Query ---

func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.query.GetStats(w, r)
}

func (h *APIHandler) DownloadAll(w http.ResponseWriter, r *http.Request) {
	h.query.DownloadAll(w, r)
}

func (h *APIHandler) DownloadCategory(w http.ResponseWriter, r *http.Request, category string) {
	h.query.DownloadCategory(w, r, category)
}

// --- Maintenance ---

func (h *APIHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.maintenance.Reconcile(w, r)
}

func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	h.maintenance.GetOpenAPI(w, r)
}

// --- Health ---

func (h *APIHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.health.GetHealth(w, r)
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ generated.ServerInterface = (*APIHandler)(nil)
