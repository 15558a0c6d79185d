// Пакет model — доменные модели File Organizer.
// FileRecord — единственная персистентная сущность: метаданные одного
// разложенного по категориям файла.
package model

import (
	"time"
)

// TimeLayout — формат временных меток в API и в хранилище
// (ISO-8601, UTC, миллисекунды).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FileRecord — запись о файле. Создаётся при загрузке сразу после
// успешного перемещения файла и больше не изменяется.
type FileRecord struct {
	// ID — уникальный идентификатор записи (UUID v4)
	ID string
	// OriginalName — имя файла, переданное клиентом
	OriginalName string
	// Filename — временное имя, присвоенное при приёме (files-<ms>-<rand>.<ext>)
	Filename string
	// Size — размер файла в байтах
	Size int64
	// Mimetype — Content-Type, заявленный клиентом
	Mimetype string
	// Path — итоговое расположение на диске: <organized>/<folder>/<storedName>
	Path string
	// Extension — расширение в нижнем регистре, без точки
	Extension string
	// Category — метка категории из таблицы классификации
	Category string
	// CreatedAt — время создания записи (UTC)
	CreatedAt time.Time
}

// CategoryInfo — описание категории из таблицы классификации.
type CategoryInfo struct {
	Category string `json:"category" yaml:"category"`
	Color    string `json:"color" yaml:"color"`
	Icon     string `json:"icon" yaml:"icon"`
	Folder   string `json:"folder" yaml:"folder"`
}

// FormatTime форматирует время для API-ответов и хранения.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
