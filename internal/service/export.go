// export.go — выгрузка разложенных файлов zip-архивом.
// Архив пишется потоком через klauspost/compress/zip с Deflate
// максимального уровня.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
	"github.com/bigkaa/goartstore/file-organizer/internal/repository"
)

// Archive — подготовленный к записи архив.
// Все файлы проверены на существование до первого байта ответа.
type Archive struct {
	// Filename — имя для Content-Disposition
	Filename string
	entries  []*model.FileRecord
}

// Len возвращает количество файлов в архиве.
func (a *Archive) Len() int {
	return len(a.entries)
}

// ExportService — формирование архивов.
type ExportService struct {
	repo   repository.FileRepository
	logger *slog.Logger
}

// NewExportService создаёт сервис выгрузки.
func NewExportService(repo repository.FileRepository, logger *slog.Logger) *ExportService {
	return &ExportService{
		repo:   repo,
		logger: logger.With(slog.String("component", "export_service")),
	}
}

// Prepare выбирает записи (все или одной категории) и проверяет,
// что каждый файл на месте. Отсутствующий файл — ошибка.
func (s *ExportService) Prepare(ctx context.Context, cat *string) (*Archive, error) {
	records, err := s.repo.List(ctx, cat)
	if err != nil {
		return nil, fmt.Errorf("получение записей: %w", err)
	}

	for _, rec := range records {
		info, err := os.Stat(rec.Path)
		if err != nil {
			return nil, fmt.Errorf("file not found: %s", rec.Path)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("not a regular file: %s", rec.Path)
		}
	}

	name := "all-organized-files.zip"
	if cat != nil {
		name = *cat + "-files.zip"
	}
	return &Archive{Filename: name, entries: records}, nil
}

// WriteTo пишет архив в w. Элементы идут в порядке записей
// с именами <folder>/<имя файла>.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, rec := range a.entries {
		if err := addEntry(zw, rec); err != nil {
			return cw.n, err
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("завершение архива: %w", err)
	}
	return cw.n, nil
}

// EntryName возвращает имя элемента архива для записи.
func EntryName(rec *model.FileRecord) string {
	folder := filepath.Base(filepath.Dir(rec.Path))
	return folder + "/" + filepath.Base(rec.Path)
}

func addEntry(zw *zip.Writer, rec *model.FileRecord) error {
	f, err := os.Open(rec.Path)
	if err != nil {
		return fmt.Errorf("открытие %s: %w", rec.Path, err)
	}
	defer f.Close()

	hdr := &zip.FileHeader{
		Name:     EntryName(rec),
		Method:   zip.Deflate,
		Modified: rec.CreatedAt,
	}
	hdr.SetMode(0o644)

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("заголовок %s: %w", hdr.Name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("запись %s: %w", hdr.Name, err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
