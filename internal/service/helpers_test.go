package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/file-organizer/internal/domain/category"
	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
	"github.com/bigkaa/goartstore/file-organizer/internal/repository"
	"github.com/bigkaa/goartstore/file-organizer/internal/storage/journal"
	"github.com/bigkaa/goartstore/file-organizer/internal/storage/layout"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memRepo — FileRepository в памяти.
type memRepo struct {
	mu        sync.Mutex
	records   []*model.FileRecord
	insertErr error
	listErr   error
	deleteErr error
	listCalls int
}

func (m *memRepo) InsertBatch(_ context.Context, records []*model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, r := range records {
		for _, existing := range m.records {
			if existing.ID == r.ID {
				return repository.ErrConflict
			}
		}
	}
	for _, r := range records {
		c := *r
		m.records = append(m.records, &c)
	}
	return nil
}

func (m *memRepo) List(_ context.Context, cat *string) ([]*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*model.FileRecord, 0, len(m.records))
	for _, r := range m.records {
		if cat != nil && r.Category != *cat {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (m *memRepo) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	n := int64(len(m.records))
	m.records = nil
	return n, nil
}

func (m *memRepo) Ping(_ context.Context) error {
	return nil
}

func (m *memRepo) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// fakeMirror запоминает вызовы зеркала.
type fakeMirror struct {
	mu     sync.Mutex
	keys   []string
	clears int
}

func (f *fakeMirror) Put(key, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
}

func (f *fakeMirror) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
}

// testEnv — собранные сервисы поверх временной директории.
type testEnv struct {
	root     string
	layout   *layout.Layout
	journal  *journal.Journal
	repo     *memRepo
	mirror   *fakeMirror
	stats    *StatsService
	organize *OrganizeService
	clear    *ClearService
	recovery *RecoveryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	logger := discardLogger()

	l := layout.New(filepath.Join(root, "organized"), filepath.Join(root, "Uploads"))
	j, err := journal.New(filepath.Join(root, ".journal"), logger)
	require.NoError(t, err)

	repo := &memRepo{}
	mirror := &fakeMirror{}
	stats := NewStatsService(repo, 0, logger)
	clr := NewClearService(l, repo, j, stats, mirror, logger)

	return &testEnv{
		root:     root,
		layout:   l,
		journal:  j,
		repo:     repo,
		mirror:   mirror,
		stats:    stats,
		organize: NewOrganizeService(l, category.NewTable(), repo, j, stats, mirror, logger),
		clear:    clr,
		recovery: NewRecoveryService(l, repo, j, clr, logger),
	}
}

// stage принимает файл с заданным именем и содержимым.
func (e *testEnv) stage(t *testing.T, name, content string) *Upload {
	t.Helper()
	u, err := e.organize.Stage(strings.NewReader(content), name, "text/plain; charset=utf-8", 1<<20)
	require.NoError(t, err)
	return u
}

// listDir возвращает имена файлов директории (пусто, если её нет).
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
