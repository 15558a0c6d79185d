package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/file-organizer/internal/api/generated"
)

func TestReconcileRunOnce_NoIssues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.organize.Organize(ctx, []*Upload{env.stage(t, "a.png", "123"), env.stage(t, "b.txt", "4")})
	require.NoError(t, err)

	rs := NewReconcileService(env.repo, env.layout, 0, discardLogger())
	report, err := rs.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.RecordsChecked)
	assert.Empty(t, report.Issues)
	assert.Equal(t, generated.ReconcileSummary{Ok: 2}, report.Summary)
	assert.False(t, report.CompletedAt.Before(report.StartedAt))
}

func TestReconcileRunOnce_DetectsIssues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.organize.Organize(ctx, []*Upload{
		env.stage(t, "missing.png", "123"),
		env.stage(t, "resized.txt", "4"),
		env.stage(t, "fine.csv", "5"),
	})
	require.NoError(t, err)

	require.NoError(t, os.Remove(res.Groups[0].Files[0].Path))
	require.NoError(t, os.WriteFile(res.Groups[1].Files[0].Path, []byte("longer"), 0o640))
	stray := filepath.Join(env.layout.OrganizedDir(), "txt", "stray.txt")
	require.NoError(t, os.WriteFile(stray, []byte("?"), 0o640))

	rs := NewReconcileService(env.repo, env.layout, 0, discardLogger())
	report, err := rs.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.RecordsChecked)
	assert.Equal(t, generated.ReconcileSummary{Ok: 1, MissingFiles: 1, OrphanedFiles: 1, SizeMismatches: 1}, report.Summary)

	byType := make(map[generated.ReconcileIssueType]generated.ReconcileIssue)
	for _, issue := range report.Issues {
		byType[issue.Type] = issue
	}
	require.Contains(t, byType, generated.MissingFile)
	require.NotNil(t, byType[generated.MissingFile].RecordId)
	assert.Equal(t, res.Groups[0].Files[0].ID, *byType[generated.MissingFile].RecordId)
	assert.Equal(t, stray, byType[generated.OrphanedFile].Path)
	assert.Nil(t, byType[generated.OrphanedFile].RecordId)
	assert.Equal(t, res.Groups[1].Files[0].Path, byType[generated.SizeMismatch].Path)
}

func TestReconcileRunOnce_StoreError(t *testing.T) {
	env := newTestEnv(t)
	env.repo.listErr = assert.AnError

	rs := NewReconcileService(env.repo, env.layout, 0, discardLogger())
	_, err := rs.RunOnce(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, rs.IsInProgress())
}

func TestReconcileRunOnce_InProgress(t *testing.T) {
	env := newTestEnv(t)
	rs := NewReconcileService(env.repo, env.layout, 0, discardLogger())

	rs.mu.Lock()
	rs.inProcess = true
	rs.mu.Unlock()

	_, err := rs.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrReconcileInProgress)
}

func TestReconcile_StartStop(t *testing.T) {
	env := newTestEnv(t)
	rs := NewReconcileService(env.repo, env.layout, 20*time.Millisecond, discardLogger())

	rs.Start(context.Background())
	assert.Eventually(t, func() bool { return env.repo.calls() > 0 }, 2*time.Second, 10*time.Millisecond)
	rs.Stop()
}

func TestReconcile_StartDisabled(t *testing.T) {
	env := newTestEnv(t)
	rs := NewReconcileService(env.repo, env.layout, 0, discardLogger())

	rs.Start(context.Background())
	rs.Stop()
	assert.Zero(t, env.repo.calls())
}
