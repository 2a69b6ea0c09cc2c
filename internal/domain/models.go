package domain

import (
	"time"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusSkipped   TaskStatus = "skipped"
)

// Reasons attached to a skipped task. A task whose direct upstream failed is
// skipped as upstream failed; tasks further down are unreachable.
const (
	SkipReasonCached      = "cached"
	SkipReasonUpstream    = "upstream failed"
	SkipReasonUnreachable = "unreachable"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Task is a named unit of work in the pipeline DAG.
type Task struct {
	Name     string         `json:"name" yaml:"-"`
	Kind     string         `json:"kind" yaml:"kind"`
	Upstream []string       `json:"upstream" yaml:"upstream"`
	Inputs   []string       `json:"inputs,omitempty" yaml:"inputs"`
	Outputs  []string       `json:"outputs,omitempty" yaml:"outputs"`
	Params   map[string]any `json:"params,omitempty" yaml:"params"`
}

// TaskRun is the persisted outcome of one task inside one pipeline run.
type TaskRun struct {
	RunID      string     `json:"run_id" db:"run_id"`
	Task       string     `json:"task" db:"task"`
	Status     TaskStatus `json:"status" db:"status"`
	Reason     string     `json:"reason,omitempty" db:"reason"`
	Error      *string    `json:"error,omitempty" db:"error"`
	StartedAt  *time.Time `json:"started_at,omitempty" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// Usable reports whether downstream tasks may consume this task's outputs:
// it ran successfully or its outputs were already fresh.
func (t *TaskRun) Usable() bool {
	return t.Status == TaskStatusSucceeded ||
		(t.Status == TaskStatusSkipped && t.Reason == SkipReasonCached)
}

// PipelineRun is one invocation of the orchestrator.
type PipelineRun struct {
	ID         string     `json:"id" db:"id"`
	Force      bool       `json:"force" db:"force"`
	Status     RunStatus  `json:"status" db:"status"`
	Error      *string    `json:"error,omitempty" db:"error"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	Tasks      []*TaskRun `json:"tasks,omitempty" db:"-"`
}

// IMDbTitle is one row of the cleaned IMDb titles artifact.
type IMDbTitle struct {
	TConst         string
	TitleType      string
	PrimaryTitle   string
	StartYear      string
	RuntimeMinutes string
	Genres         string
	TitleKey       string
	AverageRating  string
}

// NetflixTitle is one record of the cleaned Netflix originals artifact.
type NetflixTitle struct {
	Title         string `json:"title"`
	Type          string `json:"type"`
	TitleReleased string `json:"titlereleased"`
	NetflixID     *int64 `json:"netflixid"`
	Category      string `json:"category"`
	DateReleased  string `json:"date_released"`
	TitleKey      string `json:"title_cleaned"`
	Cancelled     bool   `json:"cancelled"`
}

// PriceBar is one cleaned stock quote bar. Nil fields were absent or unparseable upstream.
type PriceBar struct {
	Open             *float64 `json:"open"`
	High             *float64 `json:"high"`
	Low              *float64 `json:"low"`
	Close            *float64 `json:"close"`
	Volume           *int64   `json:"volume"`
	TradeTime        *string  `json:"tradeTime"`
	TradeTimeInMills *int64   `json:"tradeTimeinMills"`
}

// StockChart is the cleaned stock artifact.
type StockChart struct {
	TimeRange string     `json:"timeRange"`
	Symbol    string     `json:"symbol"`
	Name      string     `json:"name"`
	PriceBars []PriceBar `json:"priceBars"`
}

type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Movie is a persisted title, matched or not, with its categories.
type Movie struct {
	ID             int64    `json:"id" db:"id"`
	Title          string   `json:"title" db:"title"`
	Type           string   `json:"type" db:"type"`
	ReleasedYear   *int64   `json:"released_year" db:"released_year"`
	RuntimeMinutes *int64   `json:"runtime_minutes" db:"runtime_minutes"`
	IMDbRating     *float64 `json:"imdb_rating" db:"imdb_rating"`
	NetflixID      *int64   `json:"netflix_id" db:"netflix_id"`
	Cancelled      bool     `json:"cancelled" db:"cancelled"`
	Categories     []string `json:"categories" db:"-"`
}

type Company struct {
	ID     int64  `json:"id" db:"id"`
	Symbol string `json:"symbol" db:"symbol"`
	Name   string `json:"name" db:"name"`
}

type StockPrice struct {
	ID             int64   `json:"id" db:"id"`
	CompanyID      int64   `json:"company_id" db:"company_id"`
	Open           float64 `json:"open" db:"open"`
	High           float64 `json:"high" db:"high"`
	Low            float64 `json:"low" db:"low"`
	Close          float64 `json:"close" db:"close"`
	Volume         int64   `json:"volume" db:"volume"`
	TradeTime      string  `json:"trade_time" db:"trade_time"`
	TradeTimeMills int64   `json:"trade_time_mills" db:"trade_time_mills"`
}

// Task returns the outcome of the named task, or nil.
func (r *PipelineRun) Task(name string) *TaskRun {
	for _, t := range r.Tasks {
		if t.Task == name {
			return t
		}
	}
	return nil
}
