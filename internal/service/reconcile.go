// reconcile.go — сверка записей хранилища с файлами на диске.
//
// Обнаруживает проблемы:
//   - missing_file: запись есть, файла нет
//   - orphaned_file: файл в папках категорий без записи
//   - size_mismatch: размер файла не совпадает с записью
//
// Только отчёт, без исправлений. Запускается по запросу
// и, если задан FO_RECONCILE_INTERVAL, периодическим тикером.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-organizer/internal/api/generated"
	"github.com/bigkaa/goartstore/file-organizer/internal/api/middleware"
	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
	"github.com/bigkaa/goartstore/file-organizer/internal/repository"
	"github.com/bigkaa/goartstore/file-organizer/internal/storage/layout"
)

// ErrReconcileInProgress — сверка уже выполняется.
var ErrReconcileInProgress = errors.New("сверка уже выполняется")

// reconcileDurationSeconds — длительность выполнения сверки.
var reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "fo_reconcile_duration_seconds",
	Help:    "Длительность выполнения сверки в секундах",
	Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
})

// ReconcileService — сверка записей и файлов.
type ReconcileService struct {
	repo     repository.FileRepository
	layout   *layout.Layout
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(
	repo repository.FileRepository,
	l *layout.Layout,
	interval time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		repo:     repo,
		layout:   l,
		interval: interval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает периодическую сверку. При interval <= 0 ничего не делает.
func (rs *ReconcileService) Start(ctx context.Context) {
	if rs.interval <= 0 {
		return
	}
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})

	go rs.run(rsCtx)

	rs.logger.Info("Периодическая сверка запущена",
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает периодическую сверку и ждёт завершения цикла.
func (rs *ReconcileService) Stop() {
	if rs.cancel == nil {
		return
	}
	rs.cancel()
	<-rs.done
	rs.logger.Info("Периодическая сверка остановлена")
}

// IsInProgress возвращает true, если сверка выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

func (rs *ReconcileService) run(ctx context.Context) {
	defer close(rs.done)

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := rs.RunOnce(ctx); err != nil && !errors.Is(err, ErrReconcileInProgress) {
				rs.logger.Error("Ошибка периодической сверки", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce выполняет один проход сверки.
// Если сверка уже идёт — ErrReconcileInProgress.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*generated.ReconcileResponse, error) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, ErrReconcileInProgress
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	startedAt := time.Now().UTC()
	rs.logger.Info("Сверка начата")

	records, err := rs.repo.List(ctx, nil)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("reconcile", "error").Inc()
		return nil, fmt.Errorf("получение записей: %w", err)
	}

	issues, err := rs.reconcile(records)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("reconcile", "error").Inc()
		return nil, err
	}

	completedAt := time.Now().UTC()
	duration := completedAt.Sub(startedAt)

	summary := generated.ReconcileSummary{}
	broken := 0
	for _, issue := range issues {
		switch issue.Type {
		case generated.MissingFile:
			summary.MissingFiles++
			broken++
		case generated.SizeMismatch:
			summary.SizeMismatches++
			broken++
		case generated.OrphanedFile:
			summary.OrphanedFiles++
		}
	}
	summary.Ok = len(records) - broken

	reconcileDurationSeconds.Observe(duration.Seconds())
	middleware.ReconcileIssues.WithLabelValues(string(generated.MissingFile)).Set(float64(summary.MissingFiles))
	middleware.ReconcileIssues.WithLabelValues(string(generated.OrphanedFile)).Set(float64(summary.OrphanedFiles))
	middleware.ReconcileIssues.WithLabelValues(string(generated.SizeMismatch)).Set(float64(summary.SizeMismatches))
	middleware.ReconcileLastRun.Set(float64(completedAt.Unix()))
	middleware.OperationsTotal.WithLabelValues("reconcile", "success").Inc()

	rs.logger.Info("Сверка завершена",
		slog.Int("records_checked", len(records)),
		slog.Int("issues", len(issues)),
		slog.Int("ok", summary.Ok),
		slog.Duration("duration", duration),
	)

	return &generated.ReconcileResponse{
		StartedAt:      startedAt,
		CompletedAt:    completedAt,
		RecordsChecked: len(records),
		Issues:         issues,
		Summary:        summary,
	}, nil
}

// reconcile сравнивает записи с содержимым корня разложенных файлов.
func (rs *ReconcileService) reconcile(records []*model.FileRecord) ([]generated.ReconcileIssue, error) {
	issues := []generated.ReconcileIssue{}

	// Файлы на диске: путь → размер
	onDisk := make(map[string]int64)
	err := rs.layout.Walk(func(path string, size int64) error {
		onDisk[filepath.Clean(path)] = size
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("обход директории %s: %w", rs.layout.OrganizedDir(), err)
	}

	known := make(map[string]struct{}, len(records))
	for _, rec := range records {
		path := filepath.Clean(rec.Path)
		known[path] = struct{}{}
		id := rec.ID

		size, ok := onDisk[path]
		if !ok {
			// Файл может лежать вне корня (смена FO_ORGANIZED_DIR)
			if s, statErr := rs.layout.Stat(path); statErr == nil {
				size, ok = s, true
			}
		}
		if !ok {
			issues = append(issues, generated.ReconcileIssue{
				Type:     generated.MissingFile,
				RecordId: &id,
				Path:     rec.Path,
				Message:  "Запись без файла на диске",
			})
			continue
		}
		if size != rec.Size {
			issues = append(issues, generated.ReconcileIssue{
				Type:     generated.SizeMismatch,
				RecordId: &id,
				Path:     rec.Path,
				Message:  fmt.Sprintf("Размер на диске %d, в записи %d", size, rec.Size),
			})
		}
	}

	var orphans []string
	for path := range onDisk {
		if _, ok := known[path]; !ok {
			orphans = append(orphans, path)
		}
	}
	slices.Sort(orphans)
	for _, path := range orphans {
		issues = append(issues, generated.ReconcileIssue{
			Type:    generated.OrphanedFile,
			Path:    path,
			Message: "Файл на диске без записи",
		})
	}

	return issues, nil
}
