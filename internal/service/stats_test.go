package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
)

func TestComputeStats(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	st := ComputeStats([]*model.FileRecord{
		{Category: "PNG", Size: 10, CreatedAt: t1},
		{Category: "PDF", Size: 5, CreatedAt: t2},
		{Category: "PNG", Size: 7, CreatedAt: t1},
	})

	assert.Equal(t, 3, st.TotalFiles)
	assert.Equal(t, int64(22), st.TotalSize)
	assert.Equal(t, model.CategoryStats{Count: 2, Size: 17}, st.Categories["PNG"])
	assert.Equal(t, model.CategoryStats{Count: 1, Size: 5}, st.Categories["PDF"])
	require.NotNil(t, st.LastOrganized)
	assert.True(t, st.LastOrganized.Equal(t2))
}

func TestComputeStats_Empty(t *testing.T) {
	st := ComputeStats(nil)
	assert.Zero(t, st.TotalFiles)
	assert.Zero(t, st.TotalSize)
	assert.NotNil(t, st.Categories)
	assert.Empty(t, st.Categories)
	assert.Nil(t, st.LastOrganized)
}

func TestStatsService_CacheAndInvalidate(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	svc := NewStatsService(repo, time.Minute, discardLogger())

	st, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.TotalFiles)

	_, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls(), "второй вызов должен попасть в кэш")

	require.NoError(t, repo.InsertBatch(ctx, []*model.FileRecord{{ID: "1", Category: "TXT", Size: 3, CreatedAt: time.Now().UTC()}}))
	svc.Invalidate()

	st, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalFiles)
	assert.Equal(t, 2, repo.calls())
}

func TestStatsService_NoCache(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	svc := NewStatsService(repo, 0, discardLogger())

	for range 3 {
		_, err := svc.Get(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, repo.calls())
}

func TestStats_FreshAfterUploadAndClear(t *testing.T) {
	env := newTestEnv(t)
	env.stats = NewStatsService(env.repo, time.Hour, discardLogger())
	env.organize.stats = env.stats
	env.clear.stats = env.stats
	ctx := context.Background()

	st, err := env.stats.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.TotalFiles)

	_, err = env.organize.Organize(ctx, []*Upload{env.stage(t, "a.csv", "a,b")})
	require.NoError(t, err)

	st, err = env.stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalFiles)
	assert.Equal(t, int64(3), st.Categories["CSV"].Size)

	require.NoError(t, env.clear.Clear(ctx))

	st, err = env.stats.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.TotalFiles)
	assert.Nil(t, st.LastOrganized)
}
