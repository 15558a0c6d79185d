// Пакет layout — раскладка файлов на диске.
// Две корневые директории: uploadDir для приёма (временные файлы)
// и organizedDir с подпапками категорий. Имя в папке категории
// занимается атомарно (O_CREATE|O_EXCL), существующие файлы
// никогда не перезаписываются.
package layout

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrTooLarge — размер принимаемого файла превысил лимит.
var ErrTooLarge = errors.New("размер файла превышает лимит")

// maxClaimAttempts — предел перебора суффиксов " (n)" при занятом имени.
const maxClaimAttempts = 10000

// Layout — управление директориями хранения.
type Layout struct {
	// organizedDir — корень разложенных файлов (FO_ORGANIZED_DIR)
	organizedDir string
	// uploadDir — директория временных файлов приёма (FO_UPLOAD_DIR)
	uploadDir string
}

// Staged — принятый во временную директорию файл.
type Staged struct {
	// Filename — временное имя: files-<ms>-<rand><.ext>
	Filename string
	// TempPath — полный путь временного файла
	TempPath string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт Layout. Директории не создаются до первого обращения.
func New(organizedDir, uploadDir string) *Layout {
	return &Layout{
		organizedDir: filepath.Clean(organizedDir),
		uploadDir:    filepath.Clean(uploadDir),
	}
}

// OrganizedDir возвращает корень разложенных файлов.
func (l *Layout) OrganizedDir() string {
	return l.organizedDir
}

// UploadDir возвращает директорию приёма.
func (l *Layout) UploadDir() string {
	return l.uploadDir
}

// EnsureUploadDir создаёт директорию приёма (идемпотентно).
func (l *Layout) EnsureUploadDir() error {
	if err := os.MkdirAll(l.uploadDir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию приёма %s: %w", l.uploadDir, err)
	}
	return nil
}

// EnsureOrganizedRoot создаёт корень разложенных файлов (идемпотентно).
func (l *Layout) EnsureOrganizedRoot() error {
	if err := os.MkdirAll(l.organizedDir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", l.organizedDir, err)
	}
	return nil
}

// EnsureFolder создаёт папку категории и возвращает её путь.
func (l *Layout) EnsureFolder(folder string) (string, error) {
	dir := filepath.Join(l.organizedDir, folder)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("не удалось создать папку категории %s: %w", dir, err)
	}
	return dir, nil
}

// Stage записывает поток во временный файл директории приёма.
// maxSize > 0 ограничивает размер: при превышении файл удаляется
// и возвращается ErrTooLarge.
//
// Паттерн: запись → fsync → close. При ошибке файл удаляется.
func (l *Layout) Stage(r io.Reader, originalName string, maxSize int64) (*Staged, error) {
	if err := l.EnsureUploadDir(); err != nil {
		return nil, err
	}

	name := tempName(originalName)
	path := filepath.Join(l.uploadDir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	src := r
	if maxSize > 0 {
		src = io.LimitReader(r, maxSize+1)
	}

	size, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}
	if maxSize > 0 && size > maxSize {
		f.Close()
		os.Remove(path)
		return nil, ErrTooLarge
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	return &Staged{Filename: name, TempPath: path, Size: size}, nil
}

// Claim занимает имя в папке категории и возвращает путь назначения.
// Имя создаётся пустым файлом с O_EXCL; если оно занято, пробуются
// "<stem> (1)<ext>", "<stem> (2)<ext>" и так далее.
func (l *Layout) Claim(dir, originalName string) (string, error) {
	name := SafeName(originalName)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxClaimAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = stem + " (" + strconv.Itoa(i) + ")" + ext
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if err == nil {
			if err := f.Close(); err != nil {
				os.Remove(path)
				return "", fmt.Errorf("ошибка закрытия файла %s: %w", path, err)
			}
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("не удалось занять имя %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("не удалось подобрать свободное имя для %s в %s", name, dir)
}

// MoveInto перемещает временный файл на занятое через Claim место.
// Между разными файловыми системами выполняется копирование.
func (l *Layout) MoveInto(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("ошибка перемещения %s: %w", src, err)
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления временного файла %s: %w", src, err)
	}
	return nil
}

// Remove удаляет файл. Отсутствующий файл ошибкой не считается.
func (l *Layout) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", path, err)
	}
	return nil
}

// RemoveTrees рекурсивно удаляет корень разложенных файлов и директорию
// приёма. Ошибки обеих операций собираются через errors.Join.
func (l *Layout) RemoveTrees() error {
	var errs []error
	for _, dir := range []string{l.organizedDir, l.uploadDir} {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("ошибка удаления %s: %w", dir, err))
		}
	}
	return errors.Join(errs...)
}

// Stat возвращает размер существующего обычного файла.
func (l *Layout) Stat(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s не является обычным файлом", path)
	}
	return info.Size(), nil
}

// Walk обходит обычные файлы под корнем разложенных файлов.
// Отсутствующий корень означает пустое дерево.
func (l *Layout) Walk(fn func(path string, size int64) error) error {
	err := filepath.WalkDir(l.organizedDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == l.organizedDir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		return fn(path, info.Size())
	})
	if err != nil {
		return fmt.Errorf("ошибка обхода %s: %w", l.organizedDir, err)
	}
	return nil
}

// SafeName возвращает базовое имя файла, пригодное для записи в папку:
// без компонентов пути и управляющих символов.
func SafeName(originalName string) string {
	name := originalName
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

// tempName генерирует временное имя: files-<unixMillis>-<rand 0..1e9><.ext>.
func tempName(originalName string) string {
	ext := filepath.Ext(SafeName(originalName))
	return fmt.Sprintf("files-%d-%d%s", time.Now().UnixMilli(), rand.IntN(1_000_000_000), ext)
}

// copyFile копирует содержимое src в уже существующий dst с fsync.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("ошибка открытия %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("ошибка открытия %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("ошибка копирования в %s: %w", dst, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}
	return nil
}
