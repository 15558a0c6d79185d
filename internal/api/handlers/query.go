// query.go — статистика и выгрузка архивов.
package handlers

import (
	"context"
	"log/slog"
	"mime"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/file-organizer/internal/api/errors"
	"github.com/bigkaa/goartstore/file-organizer/internal/api/generated"
	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
	"github.com/bigkaa/goartstore/file-organizer/internal/service"
)

// StatsProvider — источник агрегированной статистики.
type StatsProvider interface {
	Get(ctx context.Context) (*model.Stats, error)
}

// ArchivePreparer — подготовка архива к выгрузке.
type ArchivePreparer interface {
	Prepare(ctx context.Context, category *string) (*service.Archive, error)
}

// QueryHandler — обработчик endpoints чтения.
type QueryHandler struct {
	stats    StatsProvider
	exporter ArchivePreparer
	logger   *slog.Logger
}

// NewQueryHandler создаёт обработчик статистики и выгрузки.
func NewQueryHandler(stats StatsProvider, exporter ArchivePreparer, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		stats:    stats,
		exporter: exporter,
		logger:   logger.With(slog.String("component", "query_handler")),
	}
}

// GetStats обрабатывает GET /stats.
func (h *QueryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Get(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения статистики", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Failed to get statistics")
		return
	}

	resp := generated.StatsResponse{
		TotalFiles: st.TotalFiles,
		TotalSize:  st.TotalSize,
		Categories: make(map[string]generated.CategoryStats, len(st.Categories)),
	}
	for label, cs := range st.Categories {
		resp.Categories[label] = generated.CategoryStats{Count: cs.Count, Size: cs.Size}
	}
	if st.LastOrganized != nil {
		last := model.FormatTime(*st.LastOrganized)
		resp.LastOrganized = &last
	}

	writeJSON(w, http.StatusOK, resp)
}

// DownloadAll обрабатывает GET /download.
func (h *QueryHandler) DownloadAll(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, nil)
}

// DownloadCategory обрабатывает GET /download/{category}.
func (h *QueryHandler) DownloadCategory(w http.ResponseWriter, r *http.Request, category string) {
	h.download(w, r, &category)
}

// download отдаёт архив потоком. Ошибка до первого байта — 500 JSON,
// ошибка после начала передачи обрывает соединение.
func (h *QueryHandler) download(w http.ResponseWriter, r *http.Request, category *string) {
	archive, err := h.exporter.Prepare(r.Context(), category)
	if err != nil {
		apierrors.InternalError(w, "Download failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": archive.Filename,
	}))
	w.WriteHeader(http.StatusOK)

	written, err := archive.WriteTo(w)
	if err != nil {
		h.logger.Error("Выгрузка архива прервана",
			slog.String("archive", archive.Filename),
			slog.Int64("written", written),
			slog.String("error", err.Error()),
		)
		panic(http.ErrAbortHandler)
	}

	h.logger.Debug("Архив выгружен",
		slog.String("archive", archive.Filename),
		slog.Int("files", archive.Len()),
		slog.Int64("bytes", written),
	)
}
