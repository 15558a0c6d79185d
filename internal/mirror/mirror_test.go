package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op, key, path string
}

// fakeStore записывает вызовы; block задерживает первый Upload.
type fakeStore struct {
	mu      sync.Mutex
	calls   []call
	failPut error
	block   chan struct{}
}

func (f *fakeStore) Upload(_ context.Context, key, localPath, _ string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "put", key: key, path: localPath})
	return f.failPut
}

func (f *fakeStore) RemovePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "clear", key: prefix})
	return nil
}

func (f *fakeStore) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMirror_OrderPreserved(t *testing.T) {
	store := &fakeStore{}
	m := NewWithStore(store, "", 16, testLogger())

	m.Put("png/a.png", "/data/png/a.png", "image/png")
	m.Clear()
	m.Put("txt/b.txt", "/data/txt/b.txt", "text/plain")

	require.NoError(t, m.Close(context.Background()))
	assert.Equal(t, []call{
		{op: "put", key: "png/a.png", path: "/data/png/a.png"},
		{op: "clear", key: ""},
		{op: "put", key: "txt/b.txt", path: "/data/txt/b.txt"},
	}, store.snapshot())
}

func TestMirror_Prefix(t *testing.T) {
	store := &fakeStore{}
	m := NewWithStore(store, "organizer", 4, testLogger())

	m.Put("pdf/doc.pdf", "/data/pdf/doc.pdf", "application/pdf")
	m.Clear()

	require.NoError(t, m.Close(context.Background()))
	calls := store.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "organizer/pdf/doc.pdf", calls[0].key)
	assert.Equal(t, "organizer", calls[1].key)
}

func TestMirror_ErrorDoesNotStopWorker(t *testing.T) {
	store := &fakeStore{failPut: errors.New("s3 недоступен")}
	m := NewWithStore(store, "", 4, testLogger())

	m.Put("a", "/a", "")
	m.Put("b", "/b", "")

	require.NoError(t, m.Close(context.Background()))
	assert.Len(t, store.snapshot(), 2)
}

func TestMirror_DropsWhenQueueFull(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	m := NewWithStore(store, "", 1, testLogger())

	m.Put("first", "/1", "")
	// Ждём, пока воркер заберёт первое задание и заблокируется
	assert.Eventually(t, func() bool { return len(m.jobs) == 0 }, time.Second, 5*time.Millisecond)
	m.Put("second", "/2", "")
	m.Put("third", "/3", "")

	close(store.block)
	require.NoError(t, m.Close(context.Background()))

	calls := store.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].key)
	assert.Equal(t, "second", calls[1].key)
}

func TestMirror_CloseTwiceAndPutAfterClose(t *testing.T) {
	store := &fakeStore{}
	m := NewWithStore(store, "", 4, testLogger())

	require.NoError(t, m.Close(context.Background()))
	require.NoError(t, m.Close(context.Background()))

	m.Put("late", "/late", "")
	assert.Empty(t, store.snapshot())
}

func TestMirror_CloseTimeout(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	m := NewWithStore(store, "", 4, testLogger())
	m.Put("stuck", "/stuck", "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(store.block)
	require.NoError(t, m.Close(context.Background()))
}

func TestNewS3Store_InvalidEndpoint(t *testing.T) {
	_, err := NewS3Store(S3Config{Endpoint: "localhost:9000/bucket/path", Bucket: "b"})
	assert.Error(t, err)
}
