package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/romanzh1/rpsc-study-coach/internal/models"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

type Options struct {
	Driver  string
	DSN     string
	MaxIdle int
	MaxOpen int
}

// DB is the relational store behind models.Repository. The same code runs on
// Postgres (pgx) and SQLite (modernc), only placeholders and migrations differ.
type DB struct {
	db     *sqlx.DB
	tx     *sqlx.Tx
	driver string
	bind   int
	psql   squirrel.StatementBuilderType
}

func NewDB(opts Options) (*DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverPostgres
	}

	var (
		placeholder squirrel.PlaceholderFormat
		bind        int
	)
	switch opts.Driver {
	case DriverPostgres:
		placeholder, bind = squirrel.Dollar, sqlx.DOLLAR
	case DriverSQLite:
		placeholder, bind = squirrel.Question, sqlx.QUESTION
	default:
		return nil, fmt.Errorf("unsupported database driver (driver: %s)", opts.Driver)
	}

	db, err := sqlx.Connect(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to database (driver: %s): %w", opts.Driver, err)
	}

	if opts.Driver == DriverSQLite {
		// a single connection serialises writers; sqlite locks the whole file anyway
		db.SetMaxOpenConns(1)
		if _, err = db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			return nil, fmt.Errorf("set sqlite busy timeout: %w", err)
		}
	} else {
		db.SetMaxIdleConns(opts.MaxIdle)
		db.SetMaxOpenConns(opts.MaxOpen)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Minute * 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{
		db:     db,
		driver: opts.Driver,
		bind:   bind,
		psql:   squirrel.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

func (r *DB) Close() error {
	return r.db.Close()
}

func (r *DB) Driver() string {
	return r.driver
}

func (r *DB) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *DB) migrations() (string, error) {
	goose.SetBaseFS(migrationsFS)

	dialect, dir := "postgres", "migrations/postgres"
	if r.driver == DriverSQLite {
		dialect, dir = "sqlite3", "migrations/sqlite"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return "", fmt.Errorf("set goose dialect (dialect: %s): %w", dialect, err)
	}

	return dir, nil
}

func (r *DB) Reset() error {
	dir, err := r.migrations()
	if err != nil {
		return err
	}

	if err = goose.Reset(r.db.DB, dir); err != nil {
		return fmt.Errorf("reset migrations (dir: %s): %w", dir, err)
	}

	return nil
}

func (r *DB) Up() error {
	dir, err := r.migrations()
	if err != nil {
		return err
	}

	if err = goose.Up(r.db.DB, dir); err != nil {
		return fmt.Errorf("run migrations (dir: %s): %w", dir, err)
	}

	return nil
}

func (r *DB) Begin(ctx context.Context) (*DB, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	return &DB{
		db:     r.db,
		tx:     tx,
		driver: r.driver,
		bind:   r.bind,
		psql:   r.psql,
	}, nil
}

func (r *DB) Commit() error {
	if r.tx == nil {
		return fmt.Errorf("no active transaction to commit")
	}
	return r.tx.Commit()
}

func (r *DB) Rollback() error {
	if r.tx == nil {
		return fmt.Errorf("no active transaction to rollback")
	}
	return r.tx.Rollback()
}

// RunInTx runs fn against a transactional copy of the store. Nested calls
// reuse the outer transaction.
func (r *DB) RunInTx(ctx context.Context, fn func(models.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	txRepo, err := r.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = txRepo.Rollback()
			panic(p)
		}
	}()

	if err = fn(txRepo); err != nil {
		_ = txRepo.Rollback()
		return err
	}

	if err = txRepo.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *DB) executor() sqlx.ExtContext {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// rebind converts a raw query written with '?' placeholders to the driver's format.
func (r *DB) rebind(query string) string {
	return sqlx.Rebind(r.bind, query)
}

func (r *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.executor().ExecContext(ctx, query, args...)
}

func (r *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.executor().QueryContext(ctx, query, args...)
}

func (r *DB) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return r.executor().QueryRowxContext(ctx, query, args...)
}

func (r *DB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, r.executor(), dest, query, args...)
}

func (r *DB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, r.executor(), dest, query, args...)
}
