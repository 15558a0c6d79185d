// health.go — обработчики health endpoints: /health для клиентов
// и /health/live, /health/ready для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/goartstore/file-organizer/internal/api/generated"
	"github.com/bigkaa/goartstore/file-organizer/internal/config"
	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// StoreReadinessChecker — проверка доступности хранилища записей.
type StoreReadinessChecker interface {
	CheckReady() (status string, message string)
}

// DependencyHealth — состояние внешних зависимостей (topologymetrics).
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler реализует /health, /health/live, /health/ready.
type HealthHandler struct {
	version   string
	startedAt time.Time
	organized string
	uploads   string
	store     StoreReadinessChecker
	deps      DependencyHealth
	now       func() time.Time
}

// NewHealthHandler создаёт обработчик health endpoints.
// Пробная запись идёт в uploadDir: корень раскладки обходит сверка,
// и посторонний файл в нём стал бы orphaned_file.
// store и deps могут быть nil.
func NewHealthHandler(organizedDir, uploadDir string, store StoreReadinessChecker, deps DependencyHealth) *HealthHandler {
	return &HealthHandler{
		version:   config.Version,
		startedAt: time.Now(),
		organized: organizedDir,
		uploads:   uploadDir,
		store:     store,
		deps:      deps,
		now:       time.Now,
	}
}

// GetHealth обрабатывает GET /health. Всегда 200.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	writeJSON(w, http.StatusOK, generated.HealthResponse{
		Status:    "OK",
		Timestamp: model.FormatTime(now),
		Uptime:    now.Sub(h.startedAt).Seconds(),
	})
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "file-organizer",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: хранилище записей, файловую систему, зависимости.
// Недоступная критичная проверка — 503, некритичная — "degraded".
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	checks := map[string]any{}

	if h.store != nil {
		status, message := h.store.CheckReady()
		checks["store"] = map[string]any{"status": status, "message": message}
		if status != "ok" {
			overallStatus = statusFail
			httpStatus = http.StatusServiceUnavailable
		}
	}

	fsCheck := h.checkFilesystem()
	checks["filesystem"] = fsCheck
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	if h.deps != nil {
		deps := h.deps.Health()
		checks["dependencies"] = deps
		for _, healthy := range deps {
			if !healthy && overallStatus != statusFail {
				overallStatus = "degraded"
			}
		}
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "file-organizer",
		"checks":    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkFilesystem проверяет, что корень раскладки доступен, а директория
// загрузок принимает запись. Отсутствующий корень создаётся при первой
// загрузке, поэтому проверяется ближайший существующий родитель.
func (h *HealthHandler) checkFilesystem() map[string]any {
	if h.organized == "" && h.uploads == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	if h.organized != "" {
		info, err := os.Stat(nearestExisting(h.organized))
		if err == nil && !info.IsDir() {
			err = fmt.Errorf("%s не является директорией", h.organized)
		}
		if err != nil {
			return map[string]any{
				"status":  statusFail,
				"message": "Корень раскладки недоступен: " + err.Error(),
			}
		}
	}

	if h.uploads != "" {
		f, err := os.CreateTemp(nearestExisting(h.uploads), ".health_check-*")
		if err != nil {
			return map[string]any{
				"status":  statusFail,
				"message": "Директория недоступна для записи: " + err.Error(),
			}
		}
		_ = f.Close()
		_ = os.Remove(f.Name())
	}

	return map[string]any{
		"status": "ok",
	}
}

// nearestExisting возвращает path или ближайшего существующего родителя.
func nearestExisting(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
