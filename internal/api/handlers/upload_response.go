package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bigkaa/goartstore/file-organizer/internal/api/generated"
)

// uploadResponse — тело ответа POST /upload. Совпадает с
// generated.UploadResponse, но сохраняет порядок категорий.
type uploadResponse struct {
	Success    bool                       `json:"success"`
	Organized  organizedGroups            `json:"organized"`
	Statistics generated.UploadStatistics `json:"statistics"`
}

// organizedGroups — объект "organized": категории сериализуются
// в порядке первого появления в пачке.
type organizedGroups struct {
	keys   []string
	groups map[string]generated.CategoryGroup
}

// set добавляет или заменяет группу; новая категория встаёт в конец.
func (o *organizedGroups) set(category string, group generated.CategoryGroup) {
	if o.groups == nil {
		o.groups = make(map[string]generated.CategoryGroup)
	}
	if _, ok := o.groups[category]; !ok {
		o.keys = append(o.keys, category)
	}
	o.groups[category] = group
}

func (o organizedGroups) get(category string) (generated.CategoryGroup, bool) {
	g, ok := o.groups[category]
	return g, ok
}

// MarshalJSON записывает категории в порядке добавления.
func (o organizedGroups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(o.groups[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON восстанавливает группы вместе с их порядком.
func (o *organizedGroups) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if tok, err := dec.Token(); err != nil {
		return err
	} else if tok != json.Delim('{') {
		return fmt.Errorf("organized: ожидался объект, получено %v", tok)
	}
	o.keys = nil
	o.groups = make(map[string]generated.CategoryGroup)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var g generated.CategoryGroup
		if err := dec.Decode(&g); err != nil {
			return err
		}
		o.set(key, g)
	}
	_, err := dec.Token()
	return err
}
