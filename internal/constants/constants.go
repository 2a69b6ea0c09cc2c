// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort        = "8080"
	DefaultDBDriver    = "sqlite"
	DefaultDBDSN       = "flixetl.db"
	DefaultDataDir     = "etl/datasets"
	DefaultBatchSize   = 10000
	DefaultConcurrency = 4
	DefaultHTTPTimeout = 5 * time.Minute
	DefaultRetryCount  = 3
	DefaultRetryBase   = 1 * time.Second
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36"
	MaxRunHistory      = 20
	BuildLeaseTTL      = 2 * time.Minute
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Database tables, listed children first.
const (
	MovieCategoriesTable = "movie_categories"
	StockPricesTable     = "stock_prices"
	CompaniesTable       = "companies"
	MoviesTable          = "movies"
	CategoriesTable      = "categories"
	PipelineRunsTable    = "pipeline_runs"
	TaskRunsTable        = "task_runs"
	SettingsTable        = "settings"
)

// Task kinds understood by the pipeline dispatcher.
const (
	KindFetchGzip      = "fetch_gzip"
	KindFetchJSON      = "fetch_json"
	KindScrapeHeadings = "scrape_headings"
	KindCleanIMDb      = "clean_imdb_titles"
	KindCleanNetflix   = "clean_netflix_titles"
	KindCleanStock     = "clean_stock"
	KindLoadDatabase   = "load_database"
)

// Dataset sentinels and labels
const (
	NullSentinel     = `\N`
	CategoryOther    = "Other"
	TypeMovie        = "movie"
	TypeSeries       = "tvSeries"
	MinReleaseYear   = 1980
	HeadingsSelector = ".article-list__heading"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// File suffixes used while staging downloads
const (
	ExtTemp = ".tmp"
	ExtGzip = ".gz"
)
