package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/flixetl/internal/domain"
)

// bulkChunk bounds the rows per multi-row insert so statements stay under the
// driver's bind parameter limit.
const bulkChunk = 500

type MovieCategory struct {
	MovieID    int64 `db:"movie_id"`
	CategoryID int64 `db:"category_id"`
}

type Counts struct {
	Movies          int64 `json:"movies" db:"movies"`
	Categories      int64 `json:"categories" db:"categories"`
	MovieCategories int64 `json:"movie_categories" db:"movie_categories"`
	Companies       int64 `json:"companies" db:"companies"`
	StockPrices     int64 `json:"stock_prices" db:"stock_prices"`
}

// ClearCatalog deletes every reloadable row, children before parents, in one
// transaction. Nothing is deleted when any table fails.
func (db *DB) ClearCatalog(ctx context.Context) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		for _, table := range catalogTables {
			if err := tx.exec(ctx, "DELETE FROM "+table); err != nil {
				return &domain.ClearError{Table: table, Err: err}
			}
		}
		return nil
	})
}

func (db *DB) InsertCompany(ctx context.Context, c *domain.Company) error {
	return db.get(ctx, &c.ID, `INSERT INTO companies (symbol, name) VALUES (?, ?) RETURNING id`, c.Symbol, c.Name)
}

func (db *DB) InsertStockPrices(ctx context.Context, prices []domain.StockPrice) error {
	query := `INSERT INTO stock_prices (open, high, low, close, volume, trade_time, trade_time_mills, company_id)
		VALUES (:open, :high, :low, :close, :volume, :trade_time, :trade_time_mills, :company_id)`

	for start := 0; start < len(prices); start += bulkChunk {
		end := min(start+bulkChunk, len(prices))
		if _, err := sqlx.NamedExecContext(ctx, db.dbOps, query, prices[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) InsertCategory(ctx context.Context, name string) (int64, error) {
	var id int64
	err := db.get(ctx, &id, `INSERT INTO categories (name) VALUES (?) RETURNING id`, name)
	return id, err
}

func (db *DB) InsertMovie(ctx context.Context, m *domain.Movie) error {
	query := `INSERT INTO movies (title, type, released_year, runtime_minutes, imdb_rating, netflix_id, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`
	return db.get(ctx, &m.ID, query,
		m.Title, m.Type, m.ReleasedYear, m.RuntimeMinutes, m.IMDbRating, m.NetflixID, m.Cancelled)
}

func (db *DB) InsertMovieCategories(ctx context.Context, links []MovieCategory) error {
	query := `INSERT INTO movie_categories (movie_id, category_id) VALUES (:movie_id, :category_id)`

	for start := 0; start < len(links); start += bulkChunk {
		end := min(start+bulkChunk, len(links))
		if _, err := sqlx.NamedExecContext(ctx, db.dbOps, query, links[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) CatalogCounts(ctx context.Context) (*Counts, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM movies) AS movies,
		(SELECT COUNT(*) FROM categories) AS categories,
		(SELECT COUNT(*) FROM movie_categories) AS movie_categories,
		(SELECT COUNT(*) FROM companies) AS companies,
		(SELECT COUNT(*) FROM stock_prices) AS stock_prices`

	counts := &Counts{}
	err := db.get(ctx, counts, query)
	return counts, err
}

func (db *DB) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var cats []domain.Category
	err := db.selectAll(ctx, &cats, `SELECT id, name FROM categories ORDER BY id`)
	return cats, err
}

// ListMovies pages through movies by id, categories attached.
func (db *DB) ListMovies(ctx context.Context, limit, offset int) ([]*domain.Movie, error) {
	query := `SELECT id, title, type, released_year, runtime_minutes, imdb_rating, netflix_id, cancelled
		FROM movies ORDER BY id LIMIT ? OFFSET ?`

	var movies []*domain.Movie
	if err := db.selectAll(ctx, &movies, query, limit, offset); err != nil {
		return nil, err
	}
	return movies, db.attachCategories(ctx, movies)
}

// FindMovies returns every movie with exactly this title.
func (db *DB) FindMovies(ctx context.Context, title string) ([]*domain.Movie, error) {
	query := `SELECT id, title, type, released_year, runtime_minutes, imdb_rating, netflix_id, cancelled
		FROM movies WHERE title = ? ORDER BY id`

	var movies []*domain.Movie
	if err := db.selectAll(ctx, &movies, query, title); err != nil {
		return nil, err
	}
	return movies, db.attachCategories(ctx, movies)
}

func (db *DB) attachCategories(ctx context.Context, movies []*domain.Movie) error {
	if len(movies) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.Movie, len(movies))
	ids := make([]int64, 0, len(movies))
	for _, m := range movies {
		m.Categories = []string{}
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	query, args, err := sqlx.In(`SELECT mc.movie_id, c.name
		FROM movie_categories mc
		JOIN categories c ON c.id = mc.category_id
		WHERE mc.movie_id IN (?)
		ORDER BY mc.movie_id, c.id`, ids)
	if err != nil {
		return fmt.Errorf("build category query: %w", err)
	}

	var rows []struct {
		MovieID int64  `db:"movie_id"`
		Name    string `db:"name"`
	}
	if err := db.selectAll(ctx, &rows, query, args...); err != nil {
		return err
	}
	for _, r := range rows {
		if m := byID[r.MovieID]; m != nil {
			m.Categories = append(m.Categories, r.Name)
		}
	}
	return nil
}

func (db *DB) GetCompany(ctx context.Context, symbol string) (*domain.Company, error) {
	c := &domain.Company{}
	if err := db.get(ctx, c, `SELECT id, symbol, name FROM companies WHERE symbol = ?`, symbol); err != nil {
		return nil, err
	}
	return c, nil
}

func (db *DB) ListStockPrices(ctx context.Context, companyID int64) ([]domain.StockPrice, error) {
	query := `SELECT id, company_id, open, high, low, close, volume, trade_time, trade_time_mills
		FROM stock_prices WHERE company_id = ? ORDER BY id`

	var prices []domain.StockPrice
	err := db.selectAll(ctx, &prices, query, companyID)
	return prices, err
}
