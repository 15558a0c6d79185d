// Пакет mirror — асинхронное зеркалирование разложенных файлов в S3.
// Задания выполняются одним воркером строго в порядке поступления,
// поэтому очистка не обгоняет ранее поставленные загрузки.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/file-organizer/internal/api/middleware"
)

const (
	defaultQueueSize = 256
	jobTimeout       = 5 * time.Minute
)

// ObjectStore — операции объектного хранилища, используемые зеркалом.
type ObjectStore interface {
	Upload(ctx context.Context, key, localPath, contentType string) error
	RemovePrefix(ctx context.Context, prefix string) error
}

type jobKind int

const (
	jobPut jobKind = iota
	jobClear
)

type job struct {
	kind        jobKind
	key         string
	localPath   string
	contentType string
}

// Mirror — очередь заданий зеркалирования.
type Mirror struct {
	store  ObjectStore
	prefix string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan job
	done   chan struct{}
}

// New создаёт зеркало поверх S3, проверяет бакет и запускает воркер.
func New(ctx context.Context, cfg S3Config, prefix string, logger *slog.Logger) (*Mirror, error) {
	store, err := NewS3Store(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return NewWithStore(store, prefix, defaultQueueSize, logger), nil
}

// NewWithStore создаёт зеркало поверх произвольного хранилища.
func NewWithStore(store ObjectStore, prefix string, queueSize int, logger *slog.Logger) *Mirror {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	m := &Mirror{
		store:  store,
		prefix: prefix,
		logger: logger.With(slog.String("component", "mirror")),
		jobs:   make(chan job, queueSize),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

// Put ставит в очередь загрузку файла под ключом key.
// При переполнении очереди задание отбрасывается.
func (m *Mirror) Put(key, localPath, contentType string) {
	m.enqueue(job{kind: jobPut, key: m.objectKey(key), localPath: localPath, contentType: contentType})
}

// Clear ставит в очередь удаление всех объектов под префиксом.
func (m *Mirror) Clear() {
	m.enqueue(job{kind: jobClear})
}

// Close прекращает приём заданий и дожидается обработки очереди
// либо отмены ctx.
func (m *Mirror) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.jobs)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("очередь зеркала не обработана: %w", ctx.Err())
	}
}

func (m *Mirror) objectKey(key string) string {
	if m.prefix == "" {
		return key
	}
	return m.prefix + "/" + key
}

func (m *Mirror) enqueue(j job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.Warn("Зеркало закрыто, задание отброшено", slog.String("key", j.key))
		return
	}
	select {
	case m.jobs <- j:
	default:
		middleware.OperationsTotal.WithLabelValues(j.operation(), "dropped").Inc()
		m.logger.Warn("Очередь зеркала переполнена, задание отброшено",
			slog.String("operation", j.operation()),
			slog.String("key", j.key),
		)
	}
}

func (m *Mirror) run() {
	defer close(m.done)
	for j := range m.jobs {
		m.process(j)
	}
}

func (m *Mirror) process(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	var err error
	switch j.kind {
	case jobPut:
		err = m.store.Upload(ctx, j.key, j.localPath, j.contentType)
	case jobClear:
		err = m.store.RemovePrefix(ctx, m.prefix)
	}

	if err != nil {
		middleware.OperationsTotal.WithLabelValues(j.operation(), "error").Inc()
		m.logger.Error("Ошибка зеркалирования",
			slog.String("operation", j.operation()),
			slog.String("key", j.key),
			slog.String("error", err.Error()),
		)
		return
	}
	middleware.OperationsTotal.WithLabelValues(j.operation(), "success").Inc()
	m.logger.Debug("Задание зеркала выполнено",
		slog.String("operation", j.operation()),
		slog.String("key", j.key),
	)
}

func (j job) operation() string {
	if j.kind == jobClear {
		return "mirror_clear"
	}
	return "mirror_put"
}
