// store.go — выбор и открытие хранилища записей (SQLite или PostgreSQL).
package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/file-organizer/internal/config"
	"github.com/bigkaa/goartstore/file-organizer/internal/database"
	"github.com/bigkaa/goartstore/file-organizer/internal/repository"
)

// recordStore — открытое хранилище записей.
type recordStore struct {
	repo      repository.FileRepository
	readiness *database.ReadinessChecker
	// pgDB — *sql.DB поверх pgxpool для topologymetrics; nil для SQLite
	pgDB  *sql.DB
	close func()
}

// openStore открывает хранилище по FO_STORE и применяет миграции.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*recordStore, error) {
	if cfg.Store == config.StorePostgres {
		if err := database.Migrate(cfg, logger); err != nil {
			return nil, err
		}
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		// Проверка здоровья PostgreSQL идёт через тот же пул соединений
		pgDB := stdlib.OpenDBFromPool(pool)
		repo := repository.NewPostgresFileRepository(pool)
		return &recordStore{
			repo:      repo,
			readiness: database.NewReadinessChecker("PostgreSQL", repo.Ping),
			pgDB:      pgDB,
			close: func() {
				pgDB.Close()
				pool.Close()
			},
		}, nil
	}

	db, err := database.OpenSQLite(ctx, cfg.SQLitePath, logger)
	if err != nil {
		return nil, err
	}
	repo := repository.NewSQLiteFileRepository(db)
	return &recordStore{
		repo:      repo,
		readiness: database.NewReadinessChecker("SQLite", repo.Ping),
		close:     func() { db.Close() },
	}, nil
}
