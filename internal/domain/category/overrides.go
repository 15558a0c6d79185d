package category

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// overrideFile — формат YAML-файла переопределений.
type overrideFile struct {
	Categories []overrideEntry `yaml:"categories"`
}

type overrideEntry struct {
	Extensions []string `yaml:"extensions"`
	Category   string   `yaml:"category"`
	Color      string   `yaml:"color"`
	Icon       string   `yaml:"icon"`
	Folder     string   `yaml:"folder"`
}

// LoadTable создаёт таблицу со встроенными записями и применяет
// переопределения из YAML-файла. Пустой path — только встроенные записи.
func LoadTable(path string) (*Table, error) {
	t := NewTable()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение файла категорий %s: %w", path, err)
	}
	if err := t.ApplyYAML(data); err != nil {
		return nil, fmt.Errorf("файл категорий %s: %w", path, err)
	}
	return t, nil
}

// ApplyYAML добавляет или заменяет записи таблицы.
// Неизвестные ключи и записи без расширений — ошибка.
// Вызывается только до начала обслуживания запросов.
func (t *Table) ApplyYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f overrideFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("разбор YAML: %w", err)
	}

	for i, e := range f.Categories {
		if len(e.Extensions) == 0 {
			return fmt.Errorf("запись %d: не указаны extensions", i)
		}
		for _, raw := range e.Extensions {
			ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
			if ext == "" {
				return fmt.Errorf("запись %d: пустое расширение", i)
			}
			info := Fallback(ext)
			if e.Category != "" {
				info.Category = e.Category
			}
			if e.Color != "" {
				info.Color = e.Color
			}
			if e.Icon != "" {
				info.Icon = e.Icon
			}
			if e.Folder != "" {
				if strings.ContainsAny(e.Folder, `/\`) || e.Folder == "." || e.Folder == ".." {
					return fmt.Errorf("запись %d: недопустимое имя папки %q", i, e.Folder)
				}
				info.Folder = e.Folder
			}
			t.entries[ext] = info
		}
	}
	return nil
}
