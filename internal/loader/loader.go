// Package loader replaces the relational catalog with the contents of the
// cleaned artifacts.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cesargomez89/flixetl/internal/constants"
	"github.com/cesargomez89/flixetl/internal/domain"
	"github.com/cesargomez89/flixetl/internal/match"
	"github.com/cesargomez89/flixetl/internal/normalize"
	"github.com/cesargomez89/flixetl/internal/store"
)

// Load stages reported in LoadError.
const (
	StageClear   = "clear"
	StageInputs  = "inputs"
	StageStock   = "stock"
	StageTitles  = "titles"
	StageResidue = "residue"
)

// Inputs names the cleaned artifacts to load.
type Inputs struct {
	Titles  string
	Netflix string
	Stock   string
}

type LoadResult struct {
	Movies        int           `json:"movies"`
	Matched       int           `json:"matched"`
	Residue       int           `json:"residue"`
	Categories    int           `json:"categories"`
	StockPrices   int           `json:"stock_prices"`
	Batches       int           `json:"batches"`
	AmbiguousKeys int           `json:"ambiguous_keys"`
	Duration      time.Duration `json:"duration"`
}

type Loader struct {
	DB        *store.DB
	BatchSize int
	Logger    *slog.Logger
}

func New(db *store.DB, batchSize int, logger *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = constants.DefaultBatchSize
	}
	return &Loader{DB: db, BatchSize: batchSize, Logger: logger}
}

// Load clears the catalog and reloads it: the company and its price bars,
// then the IMDb titles in batches joined against Netflix, then the Netflix
// titles no IMDb row matched. Each batch commits on its own; the first failing
// batch aborts the load.
func (l *Loader) Load(ctx context.Context, in Inputs) (*LoadResult, error) {
	start := time.Now()
	logger := l.logger()
	res := &LoadResult{}

	netflixFile, err := os.Open(in.Netflix)
	if err != nil {
		return nil, &domain.LoadError{Stage: StageInputs, Batch: -1, Err: err}
	}
	netflix, err := normalize.ReadNetflix(in.Netflix, netflixFile)
	netflixFile.Close()
	if err != nil {
		return nil, err
	}

	stockFile, err := os.Open(in.Stock)
	if err != nil {
		return nil, &domain.LoadError{Stage: StageInputs, Batch: -1, Err: err}
	}
	chart, err := normalize.ReadStock(in.Stock, stockFile)
	stockFile.Close()
	if err != nil {
		return nil, err
	}

	titlesFile, err := os.Open(in.Titles)
	if err != nil {
		return nil, &domain.LoadError{Stage: StageInputs, Batch: -1, Err: err}
	}
	defer titlesFile.Close()
	titles, err := normalize.NewIMDbReader(in.Titles, titlesFile)
	if err != nil {
		return nil, err
	}

	if err := l.DB.ClearCatalog(ctx); err != nil {
		return nil, err
	}
	logger.Info("Catalog cleared")

	n, err := l.loadStock(ctx, chart)
	if err != nil {
		return nil, &domain.LoadError{Stage: StageStock, Batch: -1, Err: err}
	}
	res.StockPrices = n
	logger.Info("Stock data loaded", "symbol", chart.Symbol, "prices", n)

	matcher := match.NewMatcher(netflix)
	res.AmbiguousKeys = matcher.Ambiguous()
	if res.AmbiguousKeys > 0 {
		logger.Warn("Netflix titles share match keys, first in source order wins", "keys", res.AmbiguousKeys)
	}
	cache := newCategoryCache()

	for batch := 0; ; batch++ {
		if err := ctx.Err(); err != nil {
			return nil, &domain.LoadError{Stage: StageTitles, Batch: batch, Err: err}
		}

		rows, err := titles.Next(l.BatchSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.LoadError{Stage: StageTitles, Batch: batch, Err: err}
		}

		batchStart := time.Now()
		movies := make([]*domain.Movie, 0, len(rows))
		for _, row := range rows {
			m, err := imdbMovie(row)
			if err != nil {
				return nil, &domain.LoadError{Stage: StageTitles, Batch: batch, Err: err}
			}
			if n, ok := matcher.Match(row); ok {
				m.NetflixID = n.NetflixID
				m.Cancelled = n.Cancelled
				res.Matched++
			}
			movies = append(movies, m)
		}

		if err := l.insertBatch(ctx, movies, cache); err != nil {
			return nil, &domain.LoadError{Stage: StageTitles, Batch: batch, Err: err}
		}
		res.Movies += len(movies)
		res.Batches++
		logger.Info("Batch loaded", "batch", batch, "rows", len(movies), "duration", time.Since(batchStart))
	}

	residue := matcher.Residue()
	if len(residue) > 0 {
		movies := make([]*domain.Movie, 0, len(residue))
		for _, n := range residue {
			movies = append(movies, residueMovie(n))
		}
		if err := l.insertBatch(ctx, movies, cache); err != nil {
			return nil, &domain.LoadError{Stage: StageResidue, Batch: res.Batches, Err: err}
		}
		res.Movies += len(movies)
		res.Batches++
	}
	res.Residue = len(residue)
	res.Categories = cache.size()
	res.Duration = time.Since(start)

	logger.Info("Load complete",
		"movies", res.Movies,
		"matched", res.Matched,
		"residue", res.Residue,
		"categories", res.Categories,
		"duration", res.Duration)
	return res, nil
}

func (l *Loader) loadStock(ctx context.Context, chart *domain.StockChart) (int, error) {
	prices := make([]domain.StockPrice, 0, len(chart.PriceBars))
	err := l.DB.RunInTx(ctx, func(tx *store.DB) error {
		company := &domain.Company{Symbol: chart.Symbol, Name: chart.Name}
		if err := tx.InsertCompany(ctx, company); err != nil {
			return fmt.Errorf("insert company: %w", err)
		}
		for _, bar := range chart.PriceBars {
			prices = append(prices, stockPrice(company.ID, bar))
		}
		return tx.InsertStockPrices(ctx, prices)
	})
	if err != nil {
		return 0, err
	}
	return len(prices), nil
}

// insertBatch writes movies and their category links in one transaction.
// Categories created inside a rolled back batch are forgotten.
func (l *Loader) insertBatch(ctx context.Context, movies []*domain.Movie, cache *categoryCache) error {
	err := l.DB.RunInTx(ctx, func(tx *store.DB) error {
		var links []store.MovieCategory
		for _, m := range movies {
			if err := tx.InsertMovie(ctx, m); err != nil {
				return fmt.Errorf("insert movie %q: %w", m.Title, err)
			}
			for _, name := range m.Categories {
				id, err := cache.resolve(ctx, tx, name)
				if err != nil {
					return fmt.Errorf("insert category %q: %w", name, err)
				}
				links = append(links, store.MovieCategory{MovieID: m.ID, CategoryID: id})
			}
		}
		return tx.InsertMovieCategories(ctx, links)
	})
	if err != nil {
		cache.rollback()
		return err
	}
	cache.commit()
	return nil
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func imdbMovie(row domain.IMDbTitle) (*domain.Movie, error) {
	year := normalize.ParseNullInt(row.StartYear)
	if year == nil && !normalize.IsNull(row.StartYear) {
		return nil, &domain.NormalizationError{File: "titles", Field: "startYear", Value: row.StartYear, Err: errors.New("not an integer")}
	}
	return &domain.Movie{
		Title:          strings.TrimSpace(row.PrimaryTitle),
		Type:           row.TitleType,
		ReleasedYear:   year,
		RuntimeMinutes: normalize.ParseNullInt(row.RuntimeMinutes),
		IMDbRating:     normalize.ParseNullFloat(row.AverageRating),
		Categories:     categoryNames(row.Genres),
	}, nil
}

func residueMovie(n domain.NetflixTitle) *domain.Movie {
	return &domain.Movie{
		Title:        n.Title,
		Type:         n.Type,
		ReleasedYear: normalize.ParseNullInt(n.TitleReleased),
		NetflixID:    n.NetflixID,
		Cancelled:    true,
		Categories:   categoryNames(n.Category),
	}
}

// categoryNames splits an artifact category column, keeping first occurrences.
func categoryNames(raw string) []string {
	parts := normalize.SplitList(raw)
	seen := make(map[string]bool, len(parts))
	out := parts[:0]
	for _, p := range parts {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func stockPrice(companyID int64, bar domain.PriceBar) domain.StockPrice {
	p := domain.StockPrice{CompanyID: companyID}
	if bar.Open != nil {
		p.Open = *bar.Open
	}
	if bar.High != nil {
		p.High = *bar.High
	}
	if bar.Low != nil {
		p.Low = *bar.Low
	}
	if bar.Close != nil {
		p.Close = *bar.Close
	}
	if bar.Volume != nil {
		p.Volume = *bar.Volume
	}
	if bar.TradeTime != nil {
		p.TradeTime = *bar.TradeTime
	}
	if bar.TradeTimeInMills != nil {
		p.TradeTimeMills = *bar.TradeTimeInMills
	}
	return p
}
