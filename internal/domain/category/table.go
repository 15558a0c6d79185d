// Пакет category — таблица классификации файлов по расширению.
//
// Таблица статическая: встроенные записи плюс необязательные
// переопределения из YAML, загружаемые один раз при старте.
// После построения таблица не изменяется, поэтому одно и то же
// расширение всегда даёт одну и ту же категорию.
package category

import (
	"strings"

	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
)

// Значения по умолчанию для неизвестных расширений.
const (
	FallbackColor = "#34495E"
	FallbackIcon  = "📄"
)

// Цвета и иконки групп встроенных расширений.
const (
	colorImage        = "#FF6B6B"
	colorDocument     = "#4ECDC4"
	colorSpreadsheet  = "#45B7D1"
	colorPresentation = "#F39C12"
	colorVideo        = "#9B59B6"
	colorAudio        = "#E74C3C"
	colorArchive      = "#95A5A6"
	colorCode         = "#2ECC71"

	iconImage        = "🖼"
	iconDocument     = "📄"
	iconSpreadsheet  = "📊"
	iconPresentation = "📽"
	iconVideo        = "🎥"
	iconAudio        = "🎵"
	iconArchive      = "📦"
	iconCode         = "💻"
)

// builtinGroups — встроенные расширения, сгруппированные по цвету и иконке.
// Для каждого расширения category = UPPER(ext), folder = ext.
var builtinGroups = []struct {
	color, icon string
	exts        []string
}{
	{colorImage, iconImage, []string{"jpg", "jpeg", "png", "gif", "svg", "webp"}},
	{colorDocument, iconDocument, []string{"pdf", "doc", "docx", "txt", "rtf"}},
	{colorSpreadsheet, iconSpreadsheet, []string{"xls", "xlsx", "csv"}},
	{colorPresentation, iconPresentation, []string{"ppt", "pptx"}},
	{colorVideo, iconVideo, []string{"mp4", "avi", "mov", "wmv", "mkv"}},
	{colorAudio, iconAudio, []string{"mp3", "wav", "flac", "aac"}},
	{colorArchive, iconArchive, []string{"zip", "rar", "7z", "tar"}},
	{colorCode, iconCode, []string{"js", "html", "css", "py", "java", "cpp", "c"}},
}

// Table — таблица классификации. Безопасна для конкурентного чтения.
type Table struct {
	entries map[string]model.CategoryInfo
}

// NewTable создаёт таблицу со встроенными записями.
func NewTable() *Table {
	t := &Table{entries: make(map[string]model.CategoryInfo, 40)}
	for _, g := range builtinGroups {
		for _, ext := range g.exts {
			t.entries[ext] = model.CategoryInfo{
				Category: strings.ToUpper(ext),
				Color:    g.color,
				Icon:     g.icon,
				Folder:   ext,
			}
		}
	}
	return t
}

// Lookup возвращает описание категории для расширения.
// Тотальная функция: для неизвестного расширения строится запасная
// категория UPPER(ext) с папкой lower(ext).
func (t *Table) Lookup(ext string) model.CategoryInfo {
	ext = strings.ToLower(ext)
	if info, ok := t.entries[ext]; ok {
		return info
	}
	return Fallback(ext)
}

// Known сообщает, есть ли расширение в таблице явно.
func (t *Table) Known(ext string) bool {
	_, ok := t.entries[strings.ToLower(ext)]
	return ok
}

// Len возвращает количество явных записей.
func (t *Table) Len() int {
	return len(t.entries)
}

// Fallback строит запасную категорию для неизвестного расширения.
func Fallback(ext string) model.CategoryInfo {
	return model.CategoryInfo{
		Category: strings.ToUpper(ext),
		Color:    FallbackColor,
		Icon:     FallbackIcon,
		Folder:   strings.ToLower(ext),
	}
}

// ExtensionOf извлекает расширение из имени файла: нижний регистр, без точки.
// Для имён без расширения и dot-файлов вида ".env" возвращает "".
func ExtensionOf(name string) string {
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 {
		return ""
	}
	return strings.ToLower(base[dot+1:])
}
