// Package tasks binds the pipeline's task kinds to the fetchers, normalizers
// and loader.
package tasks

import (
	"context"
	"fmt"

	"github.com/cesargomez89/flixetl/internal/constants"
	"github.com/cesargomez89/flixetl/internal/domain"
	"github.com/cesargomez89/flixetl/internal/fetch"
	"github.com/cesargomez89/flixetl/internal/normalize"
	"github.com/cesargomez89/flixetl/internal/pipeline"
	"github.com/cesargomez89/flixetl/internal/store"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Fetcher   *fetch.Fetcher
	DB        *store.DB
	Settings  *store.SettingsRepo
	BatchSize int
}

// Register installs a handler for every built-in task kind.
func Register(d *pipeline.Dispatcher, deps Deps) {
	vocab := &vocabularySource{settings: deps.Settings}

	d.Register(constants.KindFetchGzip, &FetchHandler{Fetcher: deps.Fetcher, Gzip: true})
	d.Register(constants.KindFetchJSON, &FetchHandler{Fetcher: deps.Fetcher})
	d.Register(constants.KindScrapeHeadings, &ScrapeHandler{Fetcher: deps.Fetcher})
	d.Register(constants.KindCleanIMDb, &CleanIMDbHandler{Vocabulary: vocab.load})
	d.Register(constants.KindCleanNetflix, &CleanNetflixHandler{Vocabulary: vocab.load})
	d.Register(constants.KindCleanStock, &CleanStockHandler{})
	d.Register(constants.KindLoadDatabase, &LoadHandler{DB: deps.DB, BatchSize: deps.BatchSize})
}

// vocabularySource resolves the category vocabulary for a clean task: the
// stored override when one is set, the built-in table otherwise.
type vocabularySource struct {
	settings *store.SettingsRepo
}

func (v *vocabularySource) load(ctx context.Context) (*normalize.Vocabulary, error) {
	if v.settings == nil {
		return normalize.DefaultVocabulary(), nil
	}
	raw, err := v.settings.Get(ctx, store.SettingCategoryMap)
	if err != nil {
		return nil, fmt.Errorf("failed to read category map: %w", err)
	}
	if raw == "" {
		return normalize.DefaultVocabulary(), nil
	}
	vocab, err := normalize.ParseVocabulary([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("stored category map: %w", err)
	}
	return vocab, nil
}

func param(task *domain.Task, key string) (string, error) {
	v, ok := task.Params[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrMissingParam, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", domain.ErrMissingParam, key)
	}
	return s, nil
}

func optionalParam(task *domain.Task, key string) string {
	s, _ := task.Params[key].(string)
	return s
}

// paths checks that the task declares at least n inputs and m outputs.
func paths(task *domain.Task, n, m int) error {
	if len(task.Inputs) < n {
		return fmt.Errorf("%w: %s needs %d inputs, has %d", domain.ErrMissingParam, task.Kind, n, len(task.Inputs))
	}
	if len(task.Outputs) < m {
		return fmt.Errorf("%w: %s needs %d outputs, has %d", domain.ErrMissingParam, task.Kind, m, len(task.Outputs))
	}
	return nil
}
