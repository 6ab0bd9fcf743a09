package dbkeeper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/drstein77/productcatalog/internal/storage"
	"github.com/golang-migrate/migrate"
	"github.com/golang-migrate/migrate/database/postgres"
	_ "github.com/golang-migrate/migrate/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// DBKeeper keeps key-value records in the kv_store table.
type DBKeeper struct {
	pool *pgxpool.Pool
	log  Log
}

// NewDBKeeper connects to the database and applies the migrations found in migrationsDir.
func NewDBKeeper(ctx context.Context, dsn func() string, migrationsDir string, log Log) (*DBKeeper, error) {
	addr := dsn()
	if addr == "" {
		return nil, errors.New("database dsn is empty")
	}

	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if err := migrateUp(config.ConnConfig, migrationsDir, log); err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	log.Info("Connected!")

	return &DBKeeper{
		pool: pool,
		log:  log,
	}, nil
}

func migrateUp(connConfig *pgx.ConnConfig, migrationsDir string, log Log) error {
	sqlDB := stdlib.OpenDB(*connConfig)
	defer sqlDB.Close()

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	abs, err := filepath.Abs(migrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(abs), "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("Migrations applied", zap.String("dir", abs))
	return nil
}

func (kp *DBKeeper) Get(ctx context.Context, key string) (string, bool, error) {
	if kp.pool == nil {
		return "", false, fmt.Errorf("database connection pool is nil")
	}

	var value string
	err := kp.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		kp.log.Error("Failed to read key", zap.String("key", key), zap.Error(err))
		return "", false, fmt.Errorf("failed to read key: %w", err)
	}
	return value, true, nil
}

// Update locks the row for key, applies fn and writes the result in one transaction.
func (kp *DBKeeper) Update(ctx context.Context, key string, fn func(string, bool) (string, error)) (err error) {
	if kp.pool == nil {
		return fmt.Errorf("database connection pool is nil")
	}

	tx, err := kp.pool.Begin(ctx)
	if err != nil {
		kp.log.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				kp.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
			}
		}
	}()

	// the row may not exist yet; take an advisory lock on the key so two
	// first writers do not race past the FOR UPDATE
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("failed to lock key: %w", err)
	}

	var current string
	ok := true
	if scanErr := tx.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1 FOR UPDATE`, key).Scan(&current); scanErr != nil {
		if !errors.Is(scanErr, pgx.ErrNoRows) {
			err = fmt.Errorf("failed to read key: %w", scanErr)
			return err
		}
		ok = false
	}

	next, err := fn(current, ok)
	if errors.Is(err, storage.ErrNoChange) {
		return tx.Rollback(ctx)
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, next)
	if err != nil {
		err = fmt.Errorf("failed to write key: %w", err)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		err = fmt.Errorf("failed to commit transaction: %w", err)
		return err
	}
	return nil
}

func (kp *DBKeeper) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := kp.pool.Ping(ctx); err != nil {
		kp.log.Error("Database ping failed", zap.Error(err))
		return false
	}

	return true
}

func (kp *DBKeeper) Close() bool {
	if kp.pool != nil {
		kp.pool.Close()
		kp.log.Info("Database connection pool closed")
		return true
	}
	kp.log.Info("Attempted to close a nil database connection pool")
	return false
}
