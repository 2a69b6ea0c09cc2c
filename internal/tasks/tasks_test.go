package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/cesargomez89/flixetl/internal/domain"
	"github.com/cesargomez89/flixetl/internal/fetch"
	"github.com/cesargomez89/flixetl/internal/httpclient"
	"github.com/cesargomez89/flixetl/internal/logger"
	"github.com/cesargomez89/flixetl/internal/pipeline"
	"github.com/cesargomez89/flixetl/internal/store"
)

const (
	titlesTSV = "tconst\ttitleType\tprimaryTitle\toriginalTitle\tisAdult\tstartYear\tendYear\truntimeMinutes\tgenres\n" +
		"tt0386676\ttvSeries\tThe Office (US)\tThe Office\t0\t2005\t2013\t22\tComedy\n" +
		"tt5071412\ttvSeries\tOzark\tOzark\t0\t2017\t2022\t60\tCrime,Drama\n"

	ratingsTSV = "tconst\taverageRating\tnumVotes\n" +
		"tt0386676\t8.9\t700000\n" +
		"tt5071412\t8.5\t300000\n"

	originalsJSON = `[
		{"title": "Ozark", "type": "TV", "titlereleased": "2017", "netflixid": 80117552, "category": "Drama", "date_released": "2017-07-21"},
		{"title": "Cancelled Show X", "type": "TV", "titlereleased": "2019", "netflixid": 81000001, "category": null, "date_released": null}
	]`

	cancelledHTML = `<html><body>
		<h2 class="article-list__heading">'Cancelled Show X'</h2>
		<h2 class="article-list__heading">Sense8</h2>
	</body></html>`

	stockJSON = `{"data": {"chartData": {"timeRange": "5Y", "symbol": "NFLX",
		"allSymbols": [{"name": "Netflix Inc", "symbol": "NFLX"}],
		"priceBars": [{"open": "1.0", "high": 2.5, "low": "0.5", "close": "2.0", "volume": "1000", "tradeTime": "20200101000000", "tradeTimeinMills": "1577836800000"}]}}}`
)

func gzipped(data string) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(data))
	zw.Close()
	return buf.Bytes()
}

func sourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/title.basics.tsv.gz", func(w http.ResponseWriter, r *http.Request) {
		w.Write(gzipped(titlesTSV))
	})
	mux.HandleFunc("/title.ratings.tsv.gz", func(w http.ResponseWriter, r *http.Request) {
		w.Write(gzipped(ratingsTSV))
	})
	mux.HandleFunc("/originals.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(originalsJSON))
	})
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(stockJSON))
	})
	mux.HandleFunc("/cancelled", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(cancelledHTML))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func pipelineYAML(base string) string {
	return fmt.Sprintf(`
tasks:
  gather_imdb_ratings:
    kind: fetch_gzip
    outputs: [imdb_ratings.tsv]
    params: {url: %[1]s/title.ratings.tsv.gz}
  gather_imdb_titles:
    kind: fetch_gzip
    outputs: [imdb_titles.tsv]
    params: {url: %[1]s/title.basics.tsv.gz}
  gather_netflix_titles:
    kind: fetch_json
    outputs: [netflix_originals.json]
    params: {url: %[1]s/originals.json}
  gather_netflix_stock_data:
    kind: fetch_json
    outputs: [netflix_stock_data.json]
    params: {url: %[1]s/graphql}
  scrape_headings:
    outputs: [netflix_cancelled_shows.csv]
    params: {url: %[1]s/cancelled}
  clean_imdb_titles:
    upstream: [gather_imdb_titles, gather_imdb_ratings]
    inputs: [imdb_titles.tsv, imdb_ratings.tsv]
    outputs: [imdb_titles_cleaned.csv]
  clean_netflix_titles:
    upstream: [gather_netflix_titles, scrape_headings]
    inputs: [netflix_originals.json, netflix_cancelled_shows.csv]
    outputs: [netflix_originals_cleaned.json]
  clean_netflix_stock_data:
    kind: clean_stock
    upstream: [gather_netflix_stock_data]
    inputs: [netflix_stock_data.json]
    outputs: [netflix_stock_data_cleaned.json]
  load_database:
    upstream: [clean_imdb_titles, clean_netflix_titles, clean_netflix_stock_data]
    inputs: [imdb_titles_cleaned.csv, netflix_originals_cleaned.json, netflix_stock_data_cleaned.json]
`, base)
}

type env struct {
	db       *store.DB
	dbPath   string
	settings *store.SettingsRepo
	runner   *pipeline.Runner
	dataDir  string
}

func setup(t *testing.T) *env {
	t.Helper()
	server := sourceServer(t)
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "datasets")

	dbPath := filepath.Join(dir, "etl.db")
	db, err := store.NewSQLiteDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	spec, err := pipeline.Parse([]byte(pipelineYAML(server.URL)), dataDir)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dag, err := pipeline.FromSpec(spec)
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}

	log := logger.Discard()
	client := httpclient.NewClient(httpclient.Options{Timeout: 5 * time.Second, RetryBase: time.Millisecond})
	settings := store.NewSettingsRepo(db)

	d := pipeline.NewDispatcher()
	Register(d, Deps{
		Fetcher:   fetch.New(client, log.Logger),
		DB:        db,
		Settings:  settings,
		BatchSize: 1,
	})

	runner, err := pipeline.NewRunner(dag, d, pipeline.Options{Recorder: db, Lease: db, Logger: log})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return &env{db: db, dbPath: dbPath, settings: settings, runner: runner, dataDir: dataDir}
}

func findOne(t *testing.T, db *store.DB, title string) *domain.Movie {
	t.Helper()
	movies, err := db.FindMovies(context.Background(), title)
	if err != nil || len(movies) != 1 {
		t.Fatalf("expected one %q, got %d (%v)", title, len(movies), err)
	}
	return movies[0]
}

func TestBuild_EndToEnd(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	run, err := e.runner.Build(ctx, false)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if run.Status != domain.RunStatusSucceeded {
		for _, tr := range run.Tasks {
			if tr.Error != nil {
				t.Logf("%s: %s", tr.Task, *tr.Error)
			}
		}
		t.Fatalf("expected succeeded build, got %s", run.Status)
	}

	for _, name := range []string{"imdb_titles.tsv", "imdb_titles_cleaned.csv", "netflix_cancelled_shows.csv"} {
		if _, err := os.Stat(filepath.Join(e.dataDir, name)); err != nil {
			t.Errorf("expected artifact %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(e.dataDir, "imdb_titles.tsv.gz")); !os.IsNotExist(err) {
		t.Error("gzip archive should be removed after extraction")
	}

	counts, _ := e.db.CatalogCounts(ctx)
	if counts.Movies != 3 || counts.Companies != 1 || counts.StockPrices != 1 {
		t.Errorf("unexpected catalog %+v", counts)
	}

	office := findOne(t, e.db, "The Office (US)")
	if office.NetflixID != nil || office.Cancelled {
		t.Errorf("The Office is not a Netflix original: %+v", office)
	}

	ozark := findOne(t, e.db, "Ozark")
	if ozark.NetflixID == nil || *ozark.NetflixID != 80117552 || ozark.Cancelled {
		t.Errorf("Ozark should match its Netflix record: %+v", ozark)
	}
	if !reflect.DeepEqual(ozark.Categories, []string{"Drama", "Crime"}) {
		t.Errorf("unexpected Ozark categories %v", ozark.Categories)
	}

	x := findOne(t, e.db, "Cancelled Show X")
	if !x.Cancelled || x.IMDbRating != nil {
		t.Errorf("unmatched Netflix title should be cancelled: %+v", x)
	}

	stored, err := e.db.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if stored.Status != domain.RunStatusSucceeded || len(stored.Tasks) != 9 {
		t.Errorf("run history should be recorded: %+v", stored)
	}
}

func TestBuild_CachedRebuild(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	if _, err := e.runner.Build(ctx, false); err != nil {
		t.Fatal(err)
	}
	first, _ := e.db.CatalogCounts(ctx)

	run, _ := e.runner.Build(ctx, false)
	for _, tr := range run.Tasks {
		if tr.Task == "load_database" {
			if tr.Status != domain.TaskStatusSucceeded {
				t.Errorf("load_database declares no outputs and always runs, got %s", tr.Status)
			}
			continue
		}
		if tr.Reason != domain.SkipReasonCached {
			t.Errorf("%s should be cached, got %s %q", tr.Task, tr.Status, tr.Reason)
		}
	}

	second, _ := e.db.CatalogCounts(ctx)
	if *first != *second {
		t.Errorf("rebuild changed the catalog: %+v vs %+v", *first, *second)
	}
}

func TestBuild_CategoryOverride(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	err := e.settings.Set(ctx, store.SettingCategoryMap, `[{"category": "Serious", "keywords": ["crime", "drama"]}]`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.runner.Build(ctx, true); err != nil {
		t.Fatal(err)
	}

	ozark := findOne(t, e.db, "Ozark")
	if !reflect.DeepEqual(ozark.Categories, []string{"Serious"}) {
		t.Errorf("stored vocabulary should be used, got %v", ozark.Categories)
	}
	office := findOne(t, e.db, "The Office (US)")
	if !reflect.DeepEqual(office.Categories, []string{"Other"}) {
		t.Errorf("unmatched genres should fall back to Other, got %v", office.Categories)
	}
}

func TestBuild_LeaseHeldByAnotherProcess(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	other, err := store.NewSQLiteDB(e.dbPath)
	if err != nil {
		t.Fatalf("Failed to open second handle: %v", err)
	}
	defer other.Close()

	live := &domain.PipelineRun{ID: "serve-run", Status: domain.RunStatusRunning, StartedAt: time.Now().UTC()}
	if err := other.AcquireLease(ctx, live.ID, time.Minute); err != nil {
		t.Fatalf("AcquireLease failed: %v", err)
	}
	other.CreateRun(ctx, live)

	if err := e.db.ResetStuckRuns(ctx); err != nil {
		t.Fatalf("ResetStuckRuns failed: %v", err)
	}
	if _, err := e.runner.Build(ctx, true); !errors.Is(err, domain.ErrBuildInProgress) {
		t.Fatalf("expected ErrBuildInProgress while another process builds, got %v", err)
	}

	got, _ := e.db.GetRun(ctx, live.ID)
	if got.Status != domain.RunStatusRunning {
		t.Errorf("live run of the other process should stay running, got %s", got.Status)
	}
	counts, _ := e.db.CatalogCounts(ctx)
	if counts.Movies != 0 {
		t.Errorf("rejected build must not load, got %d movies", counts.Movies)
	}

	other.ReleaseLease(ctx, live.ID)
	run, err := e.runner.Build(ctx, true)
	if err != nil || run.Status != domain.RunStatusSucceeded {
		t.Fatalf("build should proceed once the lease is released: %v", err)
	}
	if lease, _ := e.db.CurrentLease(ctx); lease != nil {
		t.Errorf("lease should be released after the build, got %+v", lease)
	}
}

func TestBuild_BadStoredVocabularyFailsCleaning(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.settings.Set(ctx, store.SettingCategoryMap, `{"not": "a list"}`)

	run, _ := e.runner.Build(ctx, true)
	if run.Task("clean_imdb_titles").Status != domain.TaskStatusFailed {
		t.Errorf("expected clean_imdb_titles to fail, got %s", run.Task("clean_imdb_titles").Status)
	}
	if run.Task("load_database").Reason != domain.SkipReasonUpstream {
		t.Errorf("load_database should be skipped, got %+v", run.Task("load_database"))
	}
	if run.Task("clean_netflix_stock_data").Status != domain.TaskStatusSucceeded {
		t.Error("stock cleaning does not depend on the vocabulary")
	}
}

func TestParam(t *testing.T) {
	task := &domain.Task{Kind: "fetch_json", Params: map[string]any{"url": "http://x", "n": 3, "empty": ""}}

	if v, err := param(task, "url"); err != nil || v != "http://x" {
		t.Errorf("param(url) = %q, %v", v, err)
	}
	for _, key := range []string{"missing", "n", "empty"} {
		if _, err := param(task, key); !errors.Is(err, domain.ErrMissingParam) {
			t.Errorf("param(%s): expected ErrMissingParam, got %v", key, err)
		}
	}

	if err := paths(task, 0, 1); !errors.Is(err, domain.ErrMissingParam) {
		t.Errorf("expected missing output error, got %v", err)
	}
}
