package handlers

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
)

func TestUploadResponse_CategoryOrder(t *testing.T) {
	group := func(label string) *model.CategoryGroup {
		return &model.CategoryGroup{
			Info: model.CategoryInfo{Category: label, Folder: strings.ToLower(label)},
			Files: []*model.FileRecord{{
				ID:           label + "-1",
				OriginalName: "f." + strings.ToLower(label),
				Size:         1,
				Category:     label,
				CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			}},
		}
	}
	// Порядок первого появления не совпадает с алфавитным
	res := &model.OrganizeResult{Groups: []*model.CategoryGroup{group("ZIP"), group("CSV"), group("AVI")}}

	body, err := json.Marshal(toUploadResponse(res))
	require.NoError(t, err)

	text := string(body)
	zip, csv, avi := strings.Index(text, `"ZIP":`), strings.Index(text, `"CSV":`), strings.Index(text, `"AVI":`)
	require.True(t, zip >= 0 && csv >= 0 && avi >= 0, text)
	assert.Less(t, zip, csv)
	assert.Less(t, csv, avi)

	var decoded uploadResponse
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, []string{"ZIP", "CSV", "AVI"}, decoded.Organized.keys)
	assert.Equal(t, []string{"ZIP", "CSV", "AVI"}, decoded.Statistics.CategoriesDetail)

	csvGroup, ok := decoded.Organized.get("CSV")
	require.True(t, ok)
	assert.Equal(t, "csv", csvGroup.Info.Folder)
	assert.Equal(t, "CSV-1", csvGroup.Files[0].Id)
}

func TestUploadResponse_EmptyOrganized(t *testing.T) {
	body, err := json.Marshal(toUploadResponse(&model.OrganizeResult{}))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"organized":{}`)

	var decoded uploadResponse
	assert.Error(t, json.Unmarshal([]byte(`{"organized":[]}`), &decoded))
}
