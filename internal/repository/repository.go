// Пакет repository — слой доступа к записям о файлах.
// Две реализации FileRepository: PostgreSQL (pgx) и SQLite (database/sql).
// Все запросы — чистый SQL, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
)

// ErrConflict — конфликт уникальности (запись с таким ID уже есть).
var ErrConflict = errors.New("конфликт — запись уже существует")

// FileRepository — хранилище записей о файлах.
// Порядок выдачи записей — порядок вставки.
type FileRepository interface {
	// InsertBatch сохраняет все записи в одной транзакции: либо все, либо ни одной.
	InsertBatch(ctx context.Context, records []*model.FileRecord) error
	// List возвращает записи; category != nil — только записи с этой меткой.
	List(ctx context.Context, category *string) ([]*model.FileRecord, error)
	// DeleteAll удаляет все записи и возвращает их количество.
	DeleteAll(ctx context.Context) (int64, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}

// DBTX — интерфейс выполнения SQL-запросов pgx.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner позволяет выполнять операции в транзакции PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается, при успехе — коммитится.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
