package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/file-organizer/internal/database"
	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRecord(name, ext, category string, size int64, created time.Time) *model.FileRecord {
	return &model.FileRecord{
		ID:           uuid.New().String(),
		OriginalName: name,
		Filename:     fmt.Sprintf("files-%d-1.%s", created.UnixMilli(), ext),
		Size:         size,
		Mimetype:     "application/octet-stream",
		Path:         filepath.Join("organized", ext, name),
		Extension:    ext,
		Category:     category,
		CreatedAt:    created,
	}
}

func newSQLiteRepo(t *testing.T) FileRepository {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteFileRepository(db)
}

// runRepositoryContract проверяет общее поведение любой реализации FileRepository.
func runRepositoryContract(t *testing.T, repo FileRepository) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 123_000_000, time.UTC)

	t.Run("пустое хранилище", func(t *testing.T) {
		all, err := repo.List(ctx, nil)
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)
	})

	first := []*model.FileRecord{
		newRecord("b.png", "png", "PNG", 50, base),
		newRecord("a.pdf", "pdf", "PDF", 10, base.Add(time.Second)),
	}
	second := []*model.FileRecord{
		newRecord("c.png", "png", "PNG", 70, base.Add(2*time.Second)),
	}

	t.Run("вставка и порядок выдачи", func(t *testing.T) {
		require.NoError(t, repo.InsertBatch(ctx, first))
		require.NoError(t, repo.InsertBatch(ctx, second))

		all, err := repo.List(ctx, nil)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "b.png", all[0].OriginalName)
		assert.Equal(t, "a.pdf", all[1].OriginalName)
		assert.Equal(t, "c.png", all[2].OriginalName)

		got := all[0]
		want := first[0]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Filename, got.Filename)
		assert.Equal(t, want.Size, got.Size)
		assert.Equal(t, want.Mimetype, got.Mimetype)
		assert.Equal(t, want.Path, got.Path)
		assert.Equal(t, want.Extension, got.Extension)
		assert.Equal(t, want.Category, got.Category)
		assert.Equal(t, model.FormatTime(want.CreatedAt), model.FormatTime(got.CreatedAt))
	})

	t.Run("фильтр по категории", func(t *testing.T) {
		png := "PNG"
		list, err := repo.List(ctx, &png)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b.png", list[0].OriginalName)
		assert.Equal(t, "c.png", list[1].OriginalName)

		missing := "NOPE"
		list, err = repo.List(ctx, &missing)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("пачка атомарна", func(t *testing.T) {
		dup := newRecord("d.txt", "txt", "TXT", 1, base.Add(3*time.Second))
		dup.ID = first[0].ID
		batch := []*model.FileRecord{newRecord("e.txt", "txt", "TXT", 1, base), dup}

		err := repo.InsertBatch(ctx, batch)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConflict), "ожидалась ErrConflict, получено %v", err)

		txt := "TXT"
		list, err := repo.List(ctx, &txt)
		require.NoError(t, err)
		assert.Empty(t, list, "ни одна запись неудачной пачки не должна сохраниться")
	})

	t.Run("удаление всех записей", func(t *testing.T) {
		n, err := repo.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		n, err = repo.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		all, err := repo.List(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}

func TestSQLiteFileRepository(t *testing.T) {
	runRepositoryContract(t, newSQLiteRepo(t))
}

func TestSQLiteFileRepository_EmptyBatch(t *testing.T) {
	repo := newSQLiteRepo(t)
	require.NoError(t, repo.InsertBatch(context.Background(), nil))
}

func TestSQLiteFileRepository_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	db, err := database.OpenSQLite(ctx, path, discardLogger())
	require.NoError(t, err)
	rec := newRecord("x.csv", "csv", "CSV", 5, time.Now().UTC())
	require.NoError(t, NewSQLiteFileRepository(db).InsertBatch(ctx, []*model.FileRecord{rec}))
	require.NoError(t, db.Close())

	// Повторное открытие применяет миграции повторно (ErrNoChange) и видит данные
	db, err = database.OpenSQLite(ctx, path, discardLogger())
	require.NoError(t, err)
	defer db.Close()

	all, err := NewSQLiteFileRepository(db).List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, rec.ID, all[0].ID)
}
