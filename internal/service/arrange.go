// arrange.go — подготовка ответа на загрузку: фильтр по размеру
// и сортировка файлов внутри каждой категории.
package service

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
)

// ErrInvalidParameter — некорректный параметр сортировки или фильтра.
var ErrInvalidParameter = errors.New("invalid parameter")

// SortField — поле сортировки файлов в категории.
type SortField string

const (
	SortByName SortField = "name"
	SortBySize SortField = "size"
	SortByType SortField = "type"
	SortByDate SortField = "date"
)

// ArrangeOptions — параметры фильтра и сортировки ответа на загрузку.
type ArrangeOptions struct {
	SortBy SortField
	Desc   bool
	// MinSizeKB — нижняя граница в килобайтах; nil — не задана
	MinSizeKB *float64
	// MaxSizeMB — верхняя граница в мегабайтах; nil — не задана
	MaxSizeMB *float64
}

// ParseArrangeOptions разбирает значения полей формы sortBy, sortOrder,
// minSize, maxSize. Пустые значения — значения по умолчанию.
func ParseArrangeOptions(sortBy, sortOrder, minSize, maxSize string) (ArrangeOptions, error) {
	opts := ArrangeOptions{SortBy: SortByName}

	switch SortField(strings.TrimSpace(sortBy)) {
	case "", SortByName:
	case SortBySize:
		opts.SortBy = SortBySize
	case SortByType:
		opts.SortBy = SortByType
	case SortByDate:
		opts.SortBy = SortByDate
	default:
		return opts, fmt.Errorf("%w: sortBy must be one of name, size, type, date", ErrInvalidParameter)
	}

	switch strings.TrimSpace(sortOrder) {
	case "", "asc":
	case "desc":
		opts.Desc = true
	default:
		return opts, fmt.Errorf("%w: sortOrder must be asc or desc", ErrInvalidParameter)
	}

	var err error
	if opts.MinSizeKB, err = parseBound("minSize", minSize); err != nil {
		return opts, err
	}
	if opts.MaxSizeMB, err = parseBound("maxSize", maxSize); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseBound(name, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidParameter, name)
	}
	return &v, nil
}

// keep сообщает, попадает ли размер в заданный диапазон (границы включительно).
func (o ArrangeOptions) keep(size int64) bool {
	s := float64(size)
	if o.MinSizeKB != nil && s < *o.MinSizeKB*1024 {
		return false
	}
	if o.MaxSizeMB != nil && s > *o.MaxSizeMB*1024*1024 {
		return false
	}
	return true
}

// Arranger применяет фильтр и сортировку с учётом локали.
type Arranger struct {
	locale language.Tag
}

// NewArranger создаёт Arranger для локали сравнения строк.
func NewArranger(locale language.Tag) *Arranger {
	return &Arranger{locale: locale}
}

// Arrange возвращает новый результат: в каждой группе оставлены файлы
// из диапазона размеров и отсортированы по выбранному полю.
// Порядок групп и сами группы (даже опустевшие) сохраняются.
// Сортировка стабильная.
func (a *Arranger) Arrange(res *model.OrganizeResult, opts ArrangeOptions) *model.OrganizeResult {
	// collate.Collator не потокобезопасен — создаётся на каждый вызов
	col := collate.New(a.locale)

	out := &model.OrganizeResult{Groups: make([]*model.CategoryGroup, 0, len(res.Groups))}
	for _, g := range res.Groups {
		files := make([]*model.FileRecord, 0, len(g.Files))
		for _, f := range g.Files {
			if opts.keep(f.Size) {
				files = append(files, f)
			}
		}

		slices.SortStableFunc(files, func(x, y *model.FileRecord) int {
			c := compareBy(col, opts.SortBy, x, y)
			if opts.Desc {
				return -c
			}
			return c
		})

		out.Groups = append(out.Groups, &model.CategoryGroup{Info: g.Info, Files: files})
	}
	return out
}

func compareBy(col *collate.Collator, field SortField, x, y *model.FileRecord) int {
	switch field {
	case SortBySize:
		return cmp.Compare(x.Size, y.Size)
	case SortByType:
		return col.CompareString(x.Extension, y.Extension)
	case SortByDate:
		return x.CreatedAt.Compare(y.CreatedAt)
	default:
		return col.CompareString(x.OriginalName, y.OriginalName)
	}
}
