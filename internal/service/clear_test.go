package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
	"github.com/bigkaa/goartstore/file-organizer/internal/storage/journal"
)

func TestClear_RemovesFilesAndRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.organize.Organize(ctx, []*Upload{env.stage(t, "a.png", "1"), env.stage(t, "b.txt", "2")})
	require.NoError(t, err)
	// Незавершённый приём тоже удаляется
	env.stage(t, "pending.bin", "3")

	require.NoError(t, env.clear.Clear(ctx))

	_, err = os.Stat(env.layout.OrganizedDir())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(env.layout.UploadDir())
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, env.repo.records)
	assert.Equal(t, 1, env.mirror.clears)

	// Повторная очистка идемпотентна
	require.NoError(t, env.clear.Clear(ctx))
}

func TestClear_StoreErrorClosesJournal(t *testing.T) {
	env := newTestEnv(t)
	env.repo.deleteErr = assert.AnError

	err := env.clear.Clear(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, env.mirror.clears)

	pending, err := env.journal.RecoverPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRecover_RollsBackPendingUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Имитация сбоя: файл перемещён, запись не сохранена
	dir, err := env.layout.EnsureFolder("png")
	require.NoError(t, err)
	orphan := filepath.Join(dir, "half.png")
	require.NoError(t, os.WriteFile(orphan, []byte("x"), 0o640))

	entry, err := env.journal.Begin(journal.OpUploadBatch)
	require.NoError(t, err)
	require.NoError(t, env.journal.AddPath(entry.TransactionID, orphan))

	res, err := env.recovery.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RolledBack)
	assert.Equal(t, 1, res.Cleaned)

	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))

	pending, err := env.journal.RecoverPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRecover_CommitsStoredBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dir, err := env.layout.EnsureFolder("txt")
	require.NoError(t, err)
	path := filepath.Join(dir, "kept.txt")
	require.NoError(t, os.WriteFile(path, []byte("ok"), 0o640))

	entry, err := env.journal.Begin(journal.OpUploadBatch)
	require.NoError(t, err)
	require.NoError(t, env.journal.AddPath(entry.TransactionID, path))
	// Сбой между InsertBatch и коммитом журнала
	require.NoError(t, env.repo.InsertBatch(ctx, []*model.FileRecord{{ID: "r1", Path: path, Size: 2, Category: "TXT"}}))

	res, err := env.recovery.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.Zero(t, res.RolledBack)

	_, err = os.Stat(path)
	assert.NoError(t, err, "файл сохранённой пачки остаётся")
}

func TestRecover_RerunsPendingClear(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.organize.Organize(ctx, []*Upload{env.stage(t, "a.png", "1")})
	require.NoError(t, err)

	_, err = env.journal.Begin(journal.OpClear)
	require.NoError(t, err)

	res, err := env.recovery.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cleared)
	assert.Empty(t, env.repo.records)

	_, err = os.Stat(env.layout.OrganizedDir())
	assert.True(t, os.IsNotExist(err))
}

func TestRecover_NothingPending(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.recovery.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RecoveryResult{}, *res)
}
