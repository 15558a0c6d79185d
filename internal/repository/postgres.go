package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
)

const pgSelectFiles = `
	SELECT id, original_name, filename, size, mimetype, path, extension, category, created_at
	FROM files`

// pgFileRepo — реализация FileRepository для PostgreSQL.
type pgFileRepo struct {
	pool *pgxpool.Pool
	db   DBTX
	tx   *TxRunner
}

// NewPostgresFileRepository создаёт репозиторий записей поверх пула pgx.
func NewPostgresFileRepository(pool *pgxpool.Pool) FileRepository {
	return &pgFileRepo{pool: pool, db: pool, tx: NewTxRunner(pool)}
}

func (r *pgFileRepo) InsertBatch(ctx context.Context, records []*model.FileRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO files (id, original_name, filename, size, mimetype, path, extension, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, f := range records {
			batch.Queue(query,
				f.ID, f.OriginalName, f.Filename, f.Size, f.Mimetype,
				f.Path, f.Extension, f.Category, f.CreatedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range records {
			if _, err := br.Exec(); err != nil {
				br.Close()
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: %v", ErrConflict, err)
				}
				return fmt.Errorf("ошибка вставки записи: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("ошибка завершения пакета вставки: %w", err)
		}
		return nil
	})
}

func (r *pgFileRepo) List(ctx context.Context, category *string) ([]*model.FileRecord, error) {
	query := pgSelectFiles + ` ORDER BY seq`
	var args []any
	if category != nil {
		query = pgSelectFiles + ` WHERE category = $1 ORDER BY seq`
		args = append(args, *category)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка записей: %w", err)
	}
	defer rows.Close()

	result := make([]*model.FileRecord, 0)
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.ID, &f.OriginalName, &f.Filename, &f.Size, &f.Mimetype,
			&f.Path, &f.Extension, &f.Category, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		f.CreatedAt = f.CreatedAt.UTC()
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *pgFileRepo) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM files`)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления записей: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgFileRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
