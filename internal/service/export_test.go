package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		assert.Equal(t, zip.Deflate, f.Method)
		out[f.Name] = string(body)
	}
	return out
}

func TestExport_AllAndCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.organize.Organize(ctx, []*Upload{
		env.stage(t, "a.png", "png-data"),
		env.stage(t, "notes.txt", "hello"),
		env.stage(t, "notes.txt", "again"),
	})
	require.NoError(t, err)

	svc := NewExportService(env.repo, discardLogger())

	archive, err := svc.Prepare(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "all-organized-files.zip", archive.Filename)
	assert.Equal(t, 3, archive.Len())

	var buf bytes.Buffer
	n, err := archive.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	entries := readZip(t, buf.Bytes())
	assert.Equal(t, map[string]string{
		"png/a.png":         "png-data",
		"txt/notes.txt":     "hello",
		"txt/notes (1).txt": "again",
	}, entries)

	txt := "TXT"
	archive, err = svc.Prepare(ctx, &txt)
	require.NoError(t, err)
	assert.Equal(t, "TXT-files.zip", archive.Filename)

	buf.Reset()
	_, err = archive.WriteTo(&buf)
	require.NoError(t, err)
	assert.Len(t, readZip(t, buf.Bytes()), 2)
}

func TestExport_Empty(t *testing.T) {
	env := newTestEnv(t)
	svc := NewExportService(env.repo, discardLogger())

	missing := "NOPE"
	archive, err := svc.Prepare(context.Background(), &missing)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = archive.WriteTo(&buf)
	require.NoError(t, err)
	assert.Empty(t, readZip(t, buf.Bytes()), "пустой, но корректный архив")
}

func TestExport_MissingFileAbortsBeforeWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.organize.Organize(ctx, []*Upload{env.stage(t, "gone.pdf", "x")})
	require.NoError(t, err)
	require.NoError(t, os.Remove(res.Groups[0].Files[0].Path))

	_, err = NewExportService(env.repo, discardLogger()).Prepare(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestExport_StoreError(t *testing.T) {
	env := newTestEnv(t)
	env.repo.listErr = assert.AnError

	_, err := NewExportService(env.repo, discardLogger()).Prepare(context.Background(), nil)
	assert.ErrorIs(t, err, assert.AnError)
}
