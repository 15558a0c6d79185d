// files.go — HTTP handlers загрузки и очистки файлов.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/goartstore/file-organizer/internal/api/errors"
	"github.com/bigkaa/goartstore/file-organizer/internal/api/generated"
	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
	"github.com/bigkaa/goartstore/file-organizer/internal/service"
)

const (
	// filesField — имя поля multipart с файлами
	filesField = "files"
	// maxFieldSize — предел размера текстового поля формы
	maxFieldSize = 1 << 10
	// formOverhead — запас на заголовки частей и текстовые поля
	formOverhead = 1 << 20
)

// Organizer — раскладка загруженных файлов.
type Organizer interface {
	Stage(r io.Reader, originalName, contentType string, maxSize int64) (*service.Upload, error)
	Discard(uploads []*service.Upload)
	Organize(ctx context.Context, uploads []*service.Upload) (*model.OrganizeResult, error)
}

// Clearer — удаление всех файлов и записей.
type Clearer interface {
	Clear(ctx context.Context) error
}

// FilesHandler — обработчик загрузки и очистки.
type FilesHandler struct {
	organizer   Organizer
	arranger    *service.Arranger
	clearer     Clearer
	maxFileSize int64
	maxFiles    int
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(
	organizer Organizer,
	arranger *service.Arranger,
	clearer Clearer,
	maxFileSize int64,
	maxFiles int,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		organizer:   organizer,
		arranger:    arranger,
		clearer:     clearer,
		maxFileSize: maxFileSize,
		maxFiles:    maxFiles,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// uploadRejection — отказ на этапе приёма multipart.
type uploadRejection struct {
	status  int
	message string
}

func (e *uploadRejection) Error() string { return e.message }

// UploadFiles обрабатывает POST /upload.
// Multipart form: files (1..maxFiles), sortBy, sortOrder, minSize, maxSize.
func (h *FilesHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxFiles)*h.maxFileSize+formOverhead)

	uploads, fields, err := h.receive(r)
	if err != nil {
		h.organizer.Discard(uploads)
		var rej *uploadRejection
		if errors.As(err, &rej) {
			apierrors.WriteError(w, rej.status, rej.message)
			return
		}
		apierrors.InternalError(w, "File upload failed: "+err.Error())
		return
	}

	// Неизвестный sortBy/sortOrder — 400; несортированный ответ не отдаётся.
	opts, err := service.ParseArrangeOptions(fields["sortBy"], fields["sortOrder"], fields["minSize"], fields["maxSize"])
	if err != nil {
		h.organizer.Discard(uploads)
		apierrors.ValidationError(w, err.Error())
		return
	}

	result, err := h.organizer.Organize(r.Context(), uploads)
	if err != nil {
		if errors.Is(err, service.ErrNoFiles) {
			apierrors.ValidationError(w, "No files uploaded")
			return
		}
		apierrors.InternalError(w, "File upload failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toUploadResponse(h.arranger.Arrange(result, opts)))
}

// receive читает части multipart по мере поступления. Файлы из поля files
// сразу пишутся во временную директорию, текстовые поля собираются в map.
// При ошибке возвращает уже принятые файлы для удаления.
func (h *FilesHandler) receive(r *http.Request) ([]*service.Upload, map[string]string, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, &uploadRejection{http.StatusBadRequest, "Invalid multipart form: " + err.Error()}
	}

	var uploads []*service.Upload
	fields := make(map[string]string)

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return uploads, fields, nil
		}
		if err != nil {
			// NextPart читает только тело запроса
			return uploads, nil, rejectBody(err)
		}

		if part.FileName() == "" {
			value, err := readField(part)
			_ = part.Close()
			if err != nil {
				return uploads, nil, err
			}
			fields[part.FormName()] = value
			continue
		}

		if part.FormName() != filesField {
			_ = part.Close()
			return uploads, nil, &uploadRejection{http.StatusBadRequest, "Unexpected field: " + part.FormName()}
		}
		if len(uploads) >= h.maxFiles {
			_ = part.Close()
			return uploads, nil, &uploadRejection{http.StatusBadRequest, "Too many files"}
		}

		u, err := h.organizer.Stage(bodyReader{part}, part.FileName(), part.Header.Get("Content-Type"), h.maxFileSize)
		_ = part.Close()
		if err != nil {
			var bodyErr *bodyReadError
			switch {
			case errors.Is(err, service.ErrFileTooLarge):
				return uploads, nil, &uploadRejection{http.StatusRequestEntityTooLarge, "File too large"}
			case errors.As(err, &bodyErr):
				return uploads, nil, rejectBody(bodyErr.err)
			}
			// Ошибка записи на диск
			return uploads, nil, err
		}
		uploads = append(uploads, u)
	}
}

// readField читает текстовое поле формы не длиннее maxFieldSize.
func readField(part io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
	if err != nil {
		return "", rejectBody(err)
	}
	if len(data) > maxFieldSize {
		return "", &uploadRejection{http.StatusBadRequest, "Form field too large"}
	}
	return strings.TrimSpace(string(data)), nil
}

// bodyReadError помечает ошибку чтения тела запроса, чтобы отличить
// её от ошибки записи временного файла.
type bodyReadError struct{ err error }

func (e *bodyReadError) Error() string { return e.err.Error() }
func (e *bodyReadError) Unwrap() error { return e.err }

// bodyReader оборачивает часть multipart; io.EOF проходит без изменений.
type bodyReader struct{ r io.Reader }

func (b bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF { //nolint:errorlint // io.Reader возвращает io.EOF как есть
		err = &bodyReadError{err}
	}
	return n, err
}

// rejectBody превращает ошибку чтения тела в ответ клиенту:
// превышение лимита тела — 413, остальное — битая форма.
func rejectBody(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &uploadRejection{http.StatusRequestEntityTooLarge, "File too large"}
	}
	return &uploadRejection{http.StatusBadRequest, "Invalid multipart form: " + err.Error()}
}

// ClearFiles обрабатывает DELETE /clear.
func (h *FilesHandler) ClearFiles(w http.ResponseWriter, r *http.Request) {
	if err := h.clearer.Clear(r.Context()); err != nil {
		apierrors.InternalError(w, "Failed to clear files: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, generated.ClearResponse{
		Success: true,
		Message: "All files cleared successfully",
	})
}

// toUploadResponse формирует ответ загрузки. Группы идут в порядке
// первого появления категории, статистика считается после фильтрации.
func toUploadResponse(res *model.OrganizeResult) uploadResponse {
	var organized organizedGroups
	for _, g := range res.Groups {
		files := make([]generated.FileEntry, 0, len(g.Files))
		for _, f := range g.Files {
			files = append(files, toFileEntry(f))
		}
		organized.set(g.Info.Category, generated.CategoryGroup{
			Info:  toCategoryInfo(g.Info),
			Files: files,
		})
	}

	return uploadResponse{
		Success:   true,
		Organized: organized,
		Statistics: generated.UploadStatistics{
			TotalFiles:       res.TotalFiles(),
			TotalSize:        res.TotalSize(),
			Categories:       len(res.Groups),
			CategoriesDetail: res.Categories(),
		},
	}
}

func toFileEntry(f *model.FileRecord) generated.FileEntry {
	created := model.FormatTime(f.CreatedAt)
	return generated.FileEntry{
		Id:           f.ID,
		OriginalName: f.OriginalName,
		Filename:     f.Filename,
		Size:         f.Size,
		Mimetype:     f.Mimetype,
		Path:         f.Path,
		Extension:    f.Extension,
		Category:     f.Category,
		CreatedAt:    created,
		LastModified: created,
	}
}

func toCategoryInfo(info model.CategoryInfo) generated.CategoryInfo {
	return generated.CategoryInfo{
		Category: info.Category,
		Color:    info.Color,
		Icon:     info.Icon,
		Folder:   info.Folder,
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
