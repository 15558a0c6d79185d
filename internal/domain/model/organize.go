package model

import "time"

// CategoryGroup — файлы одной категории в ответе на загрузку.
type CategoryGroup struct {
	Info  CategoryInfo
	Files []*FileRecord
}

// OrganizeResult — результат обработки одной пачки загруженных файлов.
// Groups упорядочены по первому появлению категории в пачке.
type OrganizeResult struct {
	Groups []*CategoryGroup
}

// TotalFiles возвращает количество файлов во всех группах.
func (r *OrganizeResult) TotalFiles() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Files)
	}
	return n
}

// TotalSize возвращает суммарный размер файлов во всех группах.
func (r *OrganizeResult) TotalSize() int64 {
	var n int64
	for _, g := range r.Groups {
		for _, f := range g.Files {
			n += f.Size
		}
	}
	return n
}

// Categories возвращает метки категорий в порядке появления.
func (r *OrganizeResult) Categories() []string {
	labels := make([]string, 0, len(r.Groups))
	for _, g := range r.Groups {
		labels = append(labels, g.Info.Category)
	}
	return labels
}

// CategoryStats — агрегат по одной категории.
type CategoryStats struct {
	Count int
	Size  int64
}

// Stats — агрегированная статистика по всем записям.
type Stats struct {
	TotalFiles int
	TotalSize  int64
	Categories map[string]CategoryStats
	// LastOrganized — максимальный CreatedAt; nil, если записей нет
	LastOrganized *time.Time
}
