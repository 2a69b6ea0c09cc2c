package store

import (
	"strings"

	"github.com/cesargomez89/flixetl/internal/constants"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS movies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	type TEXT,
	released_year INTEGER,
	runtime_minutes INTEGER,
	imdb_rating REAL,
	netflix_id INTEGER,
	cancelled BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_movies_title ON movies(title);

CREATE TABLE IF NOT EXISTS movie_categories (
	movie_id INTEGER NOT NULL REFERENCES movies(id),
	category_id INTEGER NOT NULL REFERENCES categories(id),
	PRIMARY KEY (movie_id, category_id)
);

CREATE TABLE IF NOT EXISTS companies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_prices (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume INTEGER NOT NULL,
	trade_time TEXT NOT NULL,
	trade_time_mills BIGINT NOT NULL,
	company_id INTEGER NOT NULL REFERENCES companies(id)
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id TEXT PRIMARY KEY,
	force BOOLEAN NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS task_runs (
	run_id TEXT NOT NULL REFERENCES pipeline_runs(id) ON DELETE CASCADE,
	task TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	error TEXT,
	started_at DATETIME,
	finished_at DATETIME,
	PRIMARY KEY (run_id, task)
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS build_lease (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	run_id TEXT NOT NULL,
	holder TEXT NOT NULL,
	acquired_at BIGINT NOT NULL,
	expires_at BIGINT NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS categories (
	id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS movies (
	id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	title TEXT NOT NULL,
	type TEXT,
	released_year INTEGER,
	runtime_minutes INTEGER,
	imdb_rating DOUBLE PRECISION,
	netflix_id BIGINT,
	cancelled BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_movies_title ON movies(title);

CREATE TABLE IF NOT EXISTS movie_categories (
	movie_id BIGINT NOT NULL REFERENCES movies(id),
	category_id BIGINT NOT NULL REFERENCES categories(id),
	PRIMARY KEY (movie_id, category_id)
);

CREATE TABLE IF NOT EXISTS companies (
	id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	symbol TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_prices (
	id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	open DOUBLE PRECISION NOT NULL,
	high DOUBLE PRECISION NOT NULL,
	low DOUBLE PRECISION NOT NULL,
	close DOUBLE PRECISION NOT NULL,
	volume BIGINT NOT NULL,
	trade_time TEXT NOT NULL,
	trade_time_mills BIGINT NOT NULL,
	company_id BIGINT NOT NULL REFERENCES companies(id)
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id TEXT PRIMARY KEY,
	force BOOLEAN NOT NULL DEFAULT FALSE,
	status TEXT NOT NULL,
	error TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS task_runs (
	run_id TEXT NOT NULL REFERENCES pipeline_runs(id) ON DELETE CASCADE,
	task TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	error TEXT,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ,
	PRIMARY KEY (run_id, task)
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS build_lease (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	run_id TEXT NOT NULL,
	holder TEXT NOT NULL,
	acquired_at BIGINT NOT NULL,
	expires_at BIGINT NOT NULL
);
`

// catalogTables lists the reloadable tables, children first.
var catalogTables = []string{
	constants.MovieCategoriesTable,
	constants.StockPricesTable,
	constants.CompaniesTable,
	constants.MoviesTable,
	constants.CategoriesTable,
}

func schemaFor(driver string) []string {
	schema := sqliteSchema
	if driver == constants.DriverPostgres {
		schema = postgresSchema
	}

	var stmts []string
	for _, s := range strings.Split(schema, ";") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
