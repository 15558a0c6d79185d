package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
)

const sqliteSelectFiles = `
	SELECT id, original_name, filename, size, mimetype, path, extension, category, created_at
	FROM files`

// sqliteFileRepo — реализация FileRepository для встроенного SQLite.
// created_at хранится как Unix-время в миллисекундах.
type sqliteFileRepo struct {
	db *sql.DB
}

// NewSQLiteFileRepository создаёт репозиторий записей поверх *sql.DB (драйвер sqlite3).
func NewSQLiteFileRepository(db *sql.DB) FileRepository {
	return &sqliteFileRepo{db: db}
}

func (r *sqliteFileRepo) InsertBatch(ctx context.Context, records []*model.FileRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // откат после коммита — no-op

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (id, original_name, filename, size, mimetype, path, extension, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for _, f := range records {
		if _, err := stmt.ExecContext(ctx,
			f.ID, f.OriginalName, f.Filename, f.Size, f.Mimetype,
			f.Path, f.Extension, f.Category, f.CreatedAt.UnixMilli(),
		); err != nil {
			if isSQLiteConstraint(err) {
				return fmt.Errorf("%w: %v", ErrConflict, err)
			}
			return fmt.Errorf("ошибка вставки записи: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", err)
	}
	return nil
}

func (r *sqliteFileRepo) List(ctx context.Context, category *string) ([]*model.FileRecord, error) {
	query := sqliteSelectFiles + ` ORDER BY seq`
	var args []any
	if category != nil {
		query = sqliteSelectFiles + ` WHERE category = ? ORDER BY seq`
		args = append(args, *category)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка записей: %w", err)
	}
	defer rows.Close()

	result := make([]*model.FileRecord, 0)
	for rows.Next() {
		f := &model.FileRecord{}
		var createdMs int64
		if err := rows.Scan(
			&f.ID, &f.OriginalName, &f.Filename, &f.Size, &f.Mimetype,
			&f.Path, &f.Extension, &f.Category, &createdMs,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		f.CreatedAt = time.UnixMilli(createdMs).UTC()
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *sqliteFileRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files`)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления записей: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения количества удалённых записей: %w", err)
	}
	return n, nil
}

func (r *sqliteFileRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// isSQLiteConstraint проверяет нарушение ограничения уникальности SQLite.
func isSQLiteConstraint(err error) bool {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
