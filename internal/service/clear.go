// clear.go — очистка хранилища и восстановление по журналу после сбоя.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bigkaa/goartstore/file-organizer/internal/api/middleware"
	"github.com/bigkaa/goartstore/file-organizer/internal/repository"
	"github.com/bigkaa/goartstore/file-organizer/internal/storage/journal"
	"github.com/bigkaa/goartstore/file-organizer/internal/storage/layout"
)

// ClearService — удаление всех файлов и записей.
type ClearService struct {
	layout  *layout.Layout
	repo    repository.FileRepository
	journal *journal.Journal
	stats   *StatsService
	mirror  Mirror
	logger  *slog.Logger
}

// NewClearService создаёт сервис очистки. mirror может быть nil.
func NewClearService(
	l *layout.Layout,
	repo repository.FileRepository,
	j *journal.Journal,
	stats *StatsService,
	mirror Mirror,
	logger *slog.Logger,
) *ClearService {
	return &ClearService{
		layout:  l,
		repo:    repo,
		journal: j,
		stats:   stats,
		mirror:  mirror,
		logger:  logger.With(slog.String("component", "clear_service")),
	}
}

// Clear удаляет папки файлов и все записи.
//
// Поток: журнал clear → удаление директорий (ошибки только в лог) →
// DeleteAll → Commit → сброс кэша → очистка зеркала.
// Оба шага идемпотентны, незавершённая очистка повторяется при старте.
func (s *ClearService) Clear(ctx context.Context) error {
	entry, err := s.journal.Begin(journal.OpClear)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("clear", "error").Inc()
		return fmt.Errorf("журнал: %w", err)
	}
	return s.run(ctx, entry.TransactionID)
}

func (s *ClearService) run(ctx context.Context, txID string) error {
	if err := s.layout.RemoveTrees(); err != nil {
		s.logger.Warn("Ошибка удаления директорий",
			slog.String("tx_id", txID),
			slog.String("error", err.Error()),
		)
	}

	deleted, err := s.repo.DeleteAll(ctx)
	if err != nil {
		// Запись журнала закрывается: повтор при старте не должен
		// удалить файлы, загруженные после этой ошибки
		if rbErr := s.journal.Rollback(txID); rbErr != nil {
			s.logger.Error("Ошибка отката журнала",
				slog.String("tx_id", txID),
				slog.String("error", rbErr.Error()),
			)
		}
		middleware.OperationsTotal.WithLabelValues("clear", "error").Inc()
		s.logger.Error("Ошибка удаления записей",
			slog.String("tx_id", txID),
			slog.String("error", err.Error()),
		)
		return err
	}

	if err := s.journal.Commit(txID); err != nil {
		s.logger.Error("Ошибка коммита журнала (данные удалены)",
			slog.String("tx_id", txID),
			slog.String("error", err.Error()),
		)
	}
	s.stats.Invalidate()
	if s.mirror != nil {
		s.mirror.Clear()
	}

	middleware.OperationsTotal.WithLabelValues("clear", "success").Inc()
	s.logger.Info("Хранилище очищено",
		slog.String("tx_id", txID),
		slog.Int64("records", deleted),
	)
	return nil
}

// RecoveryService — разбор незавершённых операций журнала при старте.
type RecoveryService struct {
	layout  *layout.Layout
	repo    repository.FileRepository
	journal *journal.Journal
	clear   *ClearService
	logger  *slog.Logger
}

// NewRecoveryService создаёт сервис восстановления.
func NewRecoveryService(
	l *layout.Layout,
	repo repository.FileRepository,
	j *journal.Journal,
	clear *ClearService,
	logger *slog.Logger,
) *RecoveryService {
	return &RecoveryService{
		layout:  l,
		repo:    repo,
		journal: j,
		clear:   clear,
		logger:  logger.With(slog.String("component", "recovery")),
	}
}

// RecoveryResult — итог восстановления.
type RecoveryResult struct {
	// RolledBack — откаченные пачки загрузки
	RolledBack int
	// Completed — пачки, записи которых уже сохранены
	Completed int
	// Cleared — повторённые очистки
	Cleared int
	// Cleaned — удалённые завершённые записи журнала
	Cleaned int
}

// Recover обрабатывает pending-записи журнала:
//   - upload_batch без сохранённых записей — файлы пачки удаляются;
//   - upload_batch с сохранёнными записями — запись журнала коммитится;
//   - clear — очистка выполняется повторно.
//
// Затем удаляет завершённые записи журнала.
func (s *RecoveryService) Recover(ctx context.Context) (*RecoveryResult, error) {
	pending, err := s.journal.RecoverPending()
	if err != nil {
		return nil, fmt.Errorf("чтение журнала: %w", err)
	}

	res := &RecoveryResult{}
	for _, entry := range pending {
		switch entry.Operation {
		case journal.OpUploadBatch:
			stored, err := s.batchStored(ctx, entry.Paths)
			if err != nil {
				return res, err
			}
			if stored {
				if err := s.journal.Commit(entry.TransactionID); err != nil {
					return res, fmt.Errorf("коммит журнала %s: %w", entry.TransactionID, err)
				}
				res.Completed++
				continue
			}
			for _, p := range entry.Paths {
				if err := s.layout.Remove(p); err != nil {
					s.logger.Warn("Не удалось удалить файл незавершённой пачки",
						slog.String("path", p),
						slog.String("error", err.Error()),
					)
				}
			}
			if err := s.journal.Rollback(entry.TransactionID); err != nil {
				return res, fmt.Errorf("откат журнала %s: %w", entry.TransactionID, err)
			}
			res.RolledBack++
			s.logger.Info("Незавершённая пачка откачена",
				slog.String("tx_id", entry.TransactionID),
				slog.Int("files", len(entry.Paths)),
			)

		case journal.OpClear:
			if err := s.clear.run(ctx, entry.TransactionID); err != nil {
				return res, fmt.Errorf("повтор очистки %s: %w", entry.TransactionID, err)
			}
			res.Cleared++

		default:
			s.logger.Warn("Неизвестная операция в журнале",
				slog.String("tx_id", entry.TransactionID),
				slog.String("operation", string(entry.Operation)),
			)
		}
	}

	cleaned, err := s.journal.CleanCompleted()
	if err != nil {
		return res, fmt.Errorf("очистка журнала: %w", err)
	}
	res.Cleaned = cleaned

	if len(pending) > 0 {
		s.logger.Info("Восстановление по журналу завершено",
			slog.Int("rolled_back", res.RolledBack),
			slog.Int("completed", res.Completed),
			slog.Int("cleared", res.Cleared),
		)
	}
	return res, nil
}

// batchStored сообщает, сохранены ли записи пачки. InsertBatch атомарен,
// поэтому достаточно найти запись хотя бы для одного пути.
func (s *RecoveryService) batchStored(ctx context.Context, paths []string) (bool, error) {
	if len(paths) == 0 {
		return false, nil
	}
	records, err := s.repo.List(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("получение записей: %w", err)
	}
	want := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		want[filepath.Clean(p)] = struct{}{}
	}
	for _, rec := range records {
		if _, ok := want[filepath.Clean(rec.Path)]; ok {
			return true, nil
		}
	}
	return false, nil
}
