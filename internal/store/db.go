package store

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/cesargomez89/flixetl/internal/constants"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// dbOps is the query surface shared by the pool and an open transaction.
type dbOps interface {
	sqlx.ExtContext
}

type DB struct {
	dbOps
	root   *sqlx.DB
	Driver string
}

// Open connects to driver ("sqlite" or "postgres") and applies the schema.
func Open(driver, dsn string) (*DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case constants.DriverSQLite:
		db, err = sqlx.Open("sqlite", sqliteDSN(dsn))
	case constants.DriverPostgres:
		db, err = sqlx.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	for _, stmt := range schemaFor(driver) {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &DB{dbOps: db, root: db, Driver: driver}, nil
}

func NewSQLiteDB(dsn string) (*DB, error) {
	return Open(constants.DriverSQLite, dsn)
}

// sqliteDSN attaches the connection pragmas so every pooled connection gets them.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)&_pragma=foreign_keys(1)"
}

func (db *DB) Close() error {
	return db.root.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.root.PingContext(ctx)
}

// RunInTx runs fn against a transaction-bound DB and commits when fn returns nil.
func (db *DB) RunInTx(ctx context.Context, fn func(tx *DB) error) error {
	tx, err := db.root.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txDB := &DB{
		dbOps:  tx,
		root:   db.root,
		Driver: db.Driver,
	}

	if err := fn(txDB); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, db.dbOps, dest, db.Rebind(query), args...)
}

func (db *DB) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, db.dbOps, dest, db.Rebind(query), args...)
}

func (db *DB) exec(ctx context.Context, query string, args ...any) error {
	_, err := db.ExecContext(ctx, db.Rebind(query), args...)
	return err
}
