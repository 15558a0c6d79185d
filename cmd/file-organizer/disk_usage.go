// disk_usage.go — информация об ёмкости диска под корнем раскладки.
// Платформозависимый код для Unix-подобных систем.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

// getDiskUsage возвращает total и available в байтах для файловой системы path.
func getDiskUsage(path string) (total, available int64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, fmt.Errorf("ошибка statfs %s: %w", path, err)
	}

	total = int64(stat.Blocks) * int64(stat.Bsize)
	available = int64(stat.Bavail) * int64(stat.Bsize)
	return total, available, nil
}

// logDiskUsage пишет в лог ёмкость диска и предупреждает, если свободного
// места меньше, чем на одну максимальную загрузку.
func logDiskUsage(logger *slog.Logger, dir string, maxUpload int64) {
	// Корень раскладки может ещё не существовать: берём ближайший родитель
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	total, available, err := getDiskUsage(dir)
	if err != nil {
		logger.Warn("Не удалось получить ёмкость диска", slog.String("error", err.Error()))
		return
	}

	attrs := []any{
		slog.String("path", dir),
		slog.Int64("total_bytes", total),
		slog.Int64("available_bytes", available),
	}
	if available < maxUpload {
		logger.Warn("Свободного места меньше максимального размера загрузки",
			append(attrs, slog.Int64("max_upload_bytes", maxUpload))...)
		return
	}
	logger.Info("Ёмкость диска", attrs...)
}
