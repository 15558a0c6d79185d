// Пакет service — бизнес-логика File Organizer.
// organize.go — приём загруженных файлов и раскладка по категориям.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/file-organizer/internal/api/middleware"
	"github.com/bigkaa/goartstore/file-organizer/internal/domain/category"
	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
	"github.com/bigkaa/goartstore/file-organizer/internal/repository"
	"github.com/bigkaa/goartstore/file-organizer/internal/storage/journal"
	"github.com/bigkaa/goartstore/file-organizer/internal/storage/layout"
)

var (
	// ErrNoFiles — в запросе нет ни одного файла.
	ErrNoFiles = errors.New("файлы не переданы")
	// ErrTooManyFiles — превышено количество файлов в запросе.
	ErrTooManyFiles = errors.New("превышено количество файлов")
	// ErrFileTooLarge — файл больше допустимого размера.
	ErrFileTooLarge = errors.New("размер файла превышает лимит")
)

// defaultFolder — папка для файлов без расширения.
const defaultFolder = "other"

// Mirror — внешняя копия разложенных файлов. Вызовы не блокируют
// запрос и не возвращают ошибок.
type Mirror interface {
	Put(key, localPath, contentType string)
	Clear()
}

// Upload — файл, принятый во временную директорию.
type Upload struct {
	// OriginalName — имя файла от клиента
	OriginalName string
	// Mimetype — Content-Type части multipart
	Mimetype string
	// Filename — временное имя files-<ms>-<rand><.ext>
	Filename string
	// TempPath — путь временного файла
	TempPath string
	// Size — размер в байтах
	Size int64
}

// OrganizeService — раскладка пачки загруженных файлов.
type OrganizeService struct {
	layout  *layout.Layout
	table   *category.Table
	repo    repository.FileRepository
	journal *journal.Journal
	stats   *StatsService
	mirror  Mirror
	logger  *slog.Logger
	now     func() time.Time
}

// NewOrganizeService создаёт сервис раскладки. mirror может быть nil.
func NewOrganizeService(
	l *layout.Layout,
	table *category.Table,
	repo repository.FileRepository,
	j *journal.Journal,
	stats *StatsService,
	mirror Mirror,
	logger *slog.Logger,
) *OrganizeService {
	return &OrganizeService{
		layout:  l,
		table:   table,
		repo:    repo,
		journal: j,
		stats:   stats,
		mirror:  mirror,
		logger:  logger.With(slog.String("component", "organize_service")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Stage принимает поток файла во временную директорию.
// Превышение maxSize возвращает ErrFileTooLarge.
func (s *OrganizeService) Stage(r io.Reader, originalName, contentType string, maxSize int64) (*Upload, error) {
	staged, err := s.layout.Stage(r, originalName, maxSize)
	if err != nil {
		if errors.Is(err, layout.ErrTooLarge) {
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("приём файла %q: %w", originalName, err)
	}
	return &Upload{
		OriginalName: originalName,
		Mimetype:     detectContentType(contentType),
		Filename:     staged.Filename,
		TempPath:     staged.TempPath,
		Size:         staged.Size,
	}, nil
}

// Discard удаляет временные файлы. Ошибки только логируются.
func (s *OrganizeService) Discard(uploads []*Upload) {
	for _, u := range uploads {
		if err := s.layout.Remove(u.TempPath); err != nil {
			s.logger.Warn("Не удалось удалить временный файл",
				slog.String("path", u.TempPath),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Organize раскладывает пачку файлов по папкам категорий и сохраняет записи.
//
// Поток:
//  1. Журнал: Begin(upload_batch)
//  2. Для каждого файла: расширение → категория → папка → занятие имени →
//     запись пути в журнал → перемещение
//  3. InsertBatch — все записи одной транзакцией
//  4. Журнал: Commit, сброс кэша статистики, зеркало
//
// При ошибке перемещённые и оставшиеся временные файлы удаляются,
// журнал откатывается. Пачка сохраняется целиком или не сохраняется вовсе.
func (s *OrganizeService) Organize(ctx context.Context, uploads []*Upload) (*model.OrganizeResult, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}

	if err := s.layout.EnsureOrganizedRoot(); err != nil {
		s.Discard(uploads)
		return nil, s.fail(err)
	}

	entry, err := s.journal.Begin(journal.OpUploadBatch)
	if err != nil {
		s.Discard(uploads)
		return nil, s.fail(fmt.Errorf("журнал: %w", err))
	}

	var claimed []string
	rollback := func() {
		s.removePaths(claimed)
		s.Discard(uploads)
		if rbErr := s.journal.Rollback(entry.TransactionID); rbErr != nil {
			s.logger.Error("Ошибка отката журнала",
				slog.String("tx_id", entry.TransactionID),
				slog.String("error", rbErr.Error()),
			)
		}
	}

	records := make([]*model.FileRecord, 0, len(uploads))
	infos := make([]model.CategoryInfo, 0, len(uploads))
	for _, u := range uploads {
		ext := category.ExtensionOf(u.OriginalName)
		info := s.table.Lookup(ext)
		if info.Folder == "" {
			info.Folder = defaultFolder
		}

		dst, err := s.place(entry.TransactionID, u, info.Folder, &claimed)
		if err != nil {
			rollback()
			return nil, s.fail(err)
		}

		records = append(records, &model.FileRecord{
			ID:           uuid.New().String(),
			OriginalName: u.OriginalName,
			Filename:     u.Filename,
			Size:         u.Size,
			Mimetype:     u.Mimetype,
			Path:         dst,
			Extension:    ext,
			Category:     info.Category,
			CreatedAt:    s.now(),
		})
		infos = append(infos, info)
	}

	if err := s.repo.InsertBatch(ctx, records); err != nil {
		rollback()
		return nil, s.fail(fmt.Errorf("сохранение записей: %w", err))
	}

	if err := s.journal.Commit(entry.TransactionID); err != nil {
		// Записи уже сохранены, коммит журнала — best effort
		s.logger.Error("Ошибка коммита журнала (данные сохранены)",
			slog.String("tx_id", entry.TransactionID),
			slog.String("error", err.Error()),
		)
	}
	s.stats.Invalidate()

	var total int64
	for i, rec := range records {
		if s.mirror != nil {
			s.mirror.Put(infos[i].Folder+"/"+filepath.Base(rec.Path), rec.Path, rec.Mimetype)
		}
		middleware.FilesOrganizedTotal.WithLabelValues(rec.Category).Inc()
		total += rec.Size
	}
	middleware.BytesOrganizedTotal.Add(float64(total))
	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()

	s.logger.Info("Пачка файлов разложена",
		slog.String("tx_id", entry.TransactionID),
		slog.Int("files", len(records)),
		slog.Int64("size", total),
	)

	return groupRecords(records, infos), nil
}

// place занимает имя в папке категории и перемещает туда временный файл.
// Занятый путь попадает в журнал до перемещения.
func (s *OrganizeService) place(txID string, u *Upload, folder string, claimed *[]string) (string, error) {
	dir, err := s.layout.EnsureFolder(folder)
	if err != nil {
		return "", err
	}
	dst, err := s.layout.Claim(dir, u.OriginalName)
	if err != nil {
		return "", err
	}
	*claimed = append(*claimed, dst)

	if err := s.journal.AddPath(txID, dst); err != nil {
		return "", fmt.Errorf("журнал: %w", err)
	}
	if err := s.layout.MoveInto(u.TempPath, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// removePaths удаляет файлы пачки. Ошибки только логируются.
func (s *OrganizeService) removePaths(paths []string) {
	for _, p := range paths {
		if err := s.layout.Remove(p); err != nil {
			s.logger.Warn("Не удалось удалить файл пачки",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *OrganizeService) fail(err error) error {
	middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
	s.logger.Error("Ошибка раскладки пачки", slog.String("error", err.Error()))
	return err
}

// groupRecords группирует записи по меткам категорий в порядке
// первого появления.
func groupRecords(records []*model.FileRecord, infos []model.CategoryInfo) *model.OrganizeResult {
	res := &model.OrganizeResult{}
	index := make(map[string]*model.CategoryGroup)
	for i, rec := range records {
		g, ok := index[rec.Category]
		if !ok {
			g = &model.CategoryGroup{Info: infos[i]}
			index[rec.Category] = g
			res.Groups = append(res.Groups, g)
		}
		g.Files = append(g.Files, rec)
	}
	return res
}

// detectContentType нормализует Content-Type части multipart.
// Если не указан — application/octet-stream.
func detectContentType(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	// Убираем параметры (charset и т.д.)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
