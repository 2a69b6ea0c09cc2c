package tasks

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/cesargomez89/flixetl/internal/domain"
	"github.com/cesargomez89/flixetl/internal/fetch"
	"github.com/cesargomez89/flixetl/internal/loader"
	"github.com/cesargomez89/flixetl/internal/normalize"
	"github.com/cesargomez89/flixetl/internal/storage"
	"github.com/cesargomez89/flixetl/internal/store"
)

// FetchHandler downloads params.url into the first output.
type FetchHandler struct {
	Fetcher *fetch.Fetcher
	Gzip    bool
}

func (h *FetchHandler) Handle(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	url, err := param(task, "url")
	if err != nil {
		return err
	}
	if err := paths(task, 0, 1); err != nil {
		return err
	}

	var n int64
	if h.Gzip {
		n, err = h.Fetcher.DownloadGzip(ctx, url, task.Outputs[0])
	} else {
		n, err = h.Fetcher.DownloadJSON(ctx, url, task.Outputs[0])
	}
	if err != nil {
		return err
	}
	logger.Info("Source staged", "path", task.Outputs[0], "bytes", n)
	return nil
}

// ScrapeHandler writes the headings of params.url to a single-column CSV.
type ScrapeHandler struct {
	Fetcher *fetch.Fetcher
}

func (h *ScrapeHandler) Handle(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	url, err := param(task, "url")
	if err != nil {
		return err
	}
	if err := paths(task, 0, 1); err != nil {
		return err
	}

	headings, err := h.Fetcher.ScrapeHeadings(ctx, url, optionalParam(task, "selector"))
	if err != nil {
		return err
	}
	if err := fetch.WriteHeadingsCSV(task.Outputs[0], headings); err != nil {
		return err
	}
	logger.Info("Headings staged", "path", task.Outputs[0], "count", len(headings))
	return nil
}

// CleanIMDbHandler joins the titles and ratings dumps (inputs 0 and 1).
type CleanIMDbHandler struct {
	Vocabulary func(ctx context.Context) (*normalize.Vocabulary, error)
}

func (h *CleanIMDbHandler) Handle(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	if err := paths(task, 2, 1); err != nil {
		return err
	}
	vocab, err := h.Vocabulary(ctx)
	if err != nil {
		return err
	}

	titles, err := os.Open(task.Inputs[0])
	if err != nil {
		return err
	}
	defer titles.Close()
	ratings, err := os.Open(task.Inputs[1])
	if err != nil {
		return err
	}
	defer ratings.Close()

	var stats normalize.IMDbStats
	err = storage.WriteAtomic(task.Outputs[0], func(w io.Writer) error {
		var cleanErr error
		stats, cleanErr = normalize.CleanIMDb(titles, ratings, w, vocab)
		return cleanErr
	})
	if err != nil {
		return err
	}

	logger.Info("IMDb titles cleaned",
		"read", stats.Read,
		"written", stats.Written,
		"dropped_type", stats.DroppedType,
		"dropped_genre", stats.DroppedGenre,
		"dropped_year", stats.DroppedYear,
		"dropped_rating", stats.DroppedRating,
	)
	return nil
}

// CleanNetflixHandler cleans the originals list (input 0) and flags the
// titles named in the cancelled list (input 1).
type CleanNetflixHandler struct {
	Vocabulary func(ctx context.Context) (*normalize.Vocabulary, error)
}

func (h *CleanNetflixHandler) Handle(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	if err := paths(task, 2, 1); err != nil {
		return err
	}
	vocab, err := h.Vocabulary(ctx)
	if err != nil {
		return err
	}

	originals, err := os.Open(task.Inputs[0])
	if err != nil {
		return err
	}
	defer originals.Close()
	cancelled, err := os.Open(task.Inputs[1])
	if err != nil {
		return err
	}
	defer cancelled.Close()

	titles, stats, err := normalize.CleanNetflix(originals, cancelled, vocab)
	if err != nil {
		return err
	}
	err = storage.WriteAtomic(task.Outputs[0], func(w io.Writer) error {
		return normalize.WriteNetflix(w, titles)
	})
	if err != nil {
		return err
	}

	logger.Info("Netflix titles cleaned",
		"read", stats.Read,
		"written", stats.Written,
		"cancelled", stats.Cancelled,
		"dropped_limited", stats.DroppedLimited,
		"dropped_genre", stats.DroppedGenre,
	)
	return nil
}

type CleanStockHandler struct{}

func (h *CleanStockHandler) Handle(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	if err := paths(task, 1, 1); err != nil {
		return err
	}

	raw, err := os.Open(task.Inputs[0])
	if err != nil {
		return err
	}
	defer raw.Close()

	chart, err := normalize.CleanStock(raw)
	if err != nil {
		return err
	}
	err = storage.WriteAtomic(task.Outputs[0], func(w io.Writer) error {
		return normalize.WriteStock(w, chart)
	})
	if err != nil {
		return err
	}

	logger.Info("Stock data cleaned", "symbol", chart.Symbol, "bars", len(chart.PriceBars))
	return nil
}

// LoadHandler reloads the catalog from the cleaned titles, Netflix and stock
// artifacts, in that input order.
type LoadHandler struct {
	DB        *store.DB
	BatchSize int
}

func (h *LoadHandler) Handle(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	if err := paths(task, 3, 0); err != nil {
		return err
	}

	res, err := loader.New(h.DB, h.BatchSize, logger).Load(ctx, loader.Inputs{
		Titles:  task.Inputs[0],
		Netflix: task.Inputs[1],
		Stock:   task.Inputs[2],
	})
	if err != nil {
		return err
	}

	logger.Info("Catalog loaded",
		"movies", res.Movies,
		"matched", res.Matched,
		"residue", res.Residue,
		"categories", res.Categories,
		"stock_prices", res.StockPrices,
		"batches", res.Batches,
	)
	return nil
}
