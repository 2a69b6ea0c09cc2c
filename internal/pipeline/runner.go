// Package pipeline declares, validates and executes the ETL task graph.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cesargomez89/flixetl/internal/constants"
	"github.com/cesargomez89/flixetl/internal/domain"
	"github.com/cesargomez89/flixetl/internal/logger"
	"github.com/cesargomez89/flixetl/internal/storage"
)

// Recorder persists run history.
type Recorder interface {
	CreateRun(ctx context.Context, run *domain.PipelineRun) error
	SaveTaskRun(ctx context.Context, tr *domain.TaskRun) error
	FinishRun(ctx context.Context, id string, status domain.RunStatus, errMsg *string) error
}

// Lease serializes builds across every process sharing one store.
type Lease interface {
	AcquireLease(ctx context.Context, runID string, ttl time.Duration) error
	RenewLease(ctx context.Context, runID string, ttl time.Duration) error
	ReleaseLease(ctx context.Context, runID string) error
}

// pruner is implemented by recorders that can trim old history.
type pruner interface {
	PruneRuns(ctx context.Context, keep int) error
}

type Options struct {
	Recorder    Recorder
	Lease       Lease
	LeaseTTL    time.Duration
	Logger      *logger.Logger
	Concurrency int
	KeepRuns    int
}

// Runner executes a DAG. Only one build runs at a time in the process, and
// with a Lease only one across processes.
type Runner struct {
	dag         *DAG
	dispatcher  *Dispatcher
	recorder    Recorder
	lease       Lease
	leaseTTL    time.Duration
	logger      *logger.Logger
	concurrency int
	keepRuns    int

	buildMu sync.Mutex
	wg      sync.WaitGroup

	stateMu sync.RWMutex
	status  map[string]domain.TaskStatus
	last    *domain.PipelineRun
}

// NewRunner checks that every task kind has a handler.
func NewRunner(dag *DAG, dispatcher *Dispatcher, opts Options) (*Runner, error) {
	for _, name := range dag.Names() {
		kind := dag.Task(name).Kind
		if !dispatcher.Has(kind) {
			return nil, fmt.Errorf("%w: %s (task %s)", domain.ErrUnknownKind, kind, name)
		}
	}

	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = constants.DefaultConcurrency
	}
	if opts.KeepRuns <= 0 {
		opts.KeepRuns = constants.MaxRunHistory
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = constants.BuildLeaseTTL
	}

	r := &Runner{
		dag:         dag,
		dispatcher:  dispatcher,
		recorder:    opts.Recorder,
		lease:       opts.Lease,
		leaseTTL:    opts.LeaseTTL,
		logger:      opts.Logger.WithComponent("pipeline"),
		concurrency: opts.Concurrency,
		keepRuns:    opts.KeepRuns,
		status:      make(map[string]domain.TaskStatus),
	}
	for _, name := range dag.Names() {
		r.status[name] = domain.TaskStatusPending
	}
	return r, nil
}

// Build runs the pipeline to completion. Task failures are reported in the
// returned run, not as an error. With force set, no task is skipped as cached.
func (r *Runner) Build(ctx context.Context, force bool) (*domain.PipelineRun, error) {
	if !r.buildMu.TryLock() {
		return nil, domain.ErrBuildInProgress
	}
	defer r.buildMu.Unlock()

	id := uuid.New().String()
	release, err := r.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	return r.build(ctx, id, force), nil
}

// Start launches a build in the background and returns its run id.
func (r *Runner) Start(ctx context.Context, force bool) (string, error) {
	if !r.buildMu.TryLock() {
		return "", domain.ErrBuildInProgress
	}

	id := uuid.New().String()
	release, err := r.acquire(ctx, id)
	if err != nil {
		r.buildMu.Unlock()
		return "", err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.buildMu.Unlock()
		defer release()
		r.build(context.WithoutCancel(ctx), id, force)
	}()
	return id, nil
}

// acquire takes the cross-process lease for run id and keeps it renewed until
// the returned release func is called.
func (r *Runner) acquire(ctx context.Context, id string) (func(), error) {
	if r.lease == nil {
		return func() {}, nil
	}
	if err := r.lease.AcquireLease(ctx, id, r.leaseTTL); err != nil {
		if errors.Is(err, domain.ErrBuildInProgress) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to acquire build lease: %w", err)
	}

	log := r.logger.WithRun(id)
	bg := context.WithoutCancel(ctx)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(max(r.leaseTTL/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := r.lease.RenewLease(bg, id, r.leaseTTL); err != nil {
					log.Warn("Failed to renew build lease", "error", err)
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
		if err := r.lease.ReleaseLease(bg, id); err != nil {
			log.Warn("Failed to release build lease", "error", err)
		}
	}, nil
}

// Wait blocks until background builds finish.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Status returns the status of every task in the current or last build.
func (r *Runner) Status() map[string]domain.TaskStatus {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()

	out := make(map[string]domain.TaskStatus, len(r.status))
	for k, v := range r.status {
		out[k] = v
	}
	return out
}

// LastRun returns the most recent finished build, or nil.
func (r *Runner) LastRun() *domain.PipelineRun {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.last
}

func (r *Runner) Running() bool {
	if r.buildMu.TryLock() {
		r.buildMu.Unlock()
		return false
	}
	return true
}

func (r *Runner) DAG() *DAG {
	return r.dag
}

func (r *Runner) build(ctx context.Context, id string, force bool) *domain.PipelineRun {
	log := r.logger.WithRun(id)
	run := &domain.PipelineRun{
		ID:        id,
		Force:     force,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	results := make(map[string]*domain.TaskRun, len(r.dag.tasks))
	for _, name := range r.dag.Order() {
		tr := &domain.TaskRun{RunID: id, Task: name, Status: domain.TaskStatusPending}
		results[name] = tr
		run.Tasks = append(run.Tasks, tr)
	}

	r.stateMu.Lock()
	for name := range r.status {
		r.status[name] = domain.TaskStatusPending
	}
	r.stateMu.Unlock()

	if r.recorder != nil {
		if err := r.recorder.CreateRun(ctx, run); err != nil {
			log.Warn("Failed to record run", "error", err)
		}
	}
	log.Info("Build started", "force", force, "tasks", len(run.Tasks))

	var mu sync.Mutex
	reran := make(map[string]bool)

	for _, level := range r.dag.Levels() {
		g := new(errgroup.Group)
		g.SetLimit(r.concurrency)

		for _, name := range level {
			task := r.dag.Task(name)
			tr := results[name]

			if up := r.blockedBy(task, results); up != "" {
				reason := domain.SkipReasonUpstream
				if results[up].Status == domain.TaskStatusSkipped {
					reason = domain.SkipReasonUnreachable
				}
				r.finish(ctx, tr, domain.TaskStatusSkipped, reason, nil)
				log.Warn("Task skipped", "task", name, "reason", reason, "upstream", up)
				continue
			}

			mu.Lock()
			upstreamRan := false
			for _, up := range task.Upstream {
				upstreamRan = upstreamRan || reran[up]
			}
			mu.Unlock()

			if !force && !upstreamRan && !storage.Outdated(task.Outputs, task.Inputs) {
				r.finish(ctx, tr, domain.TaskStatusSkipped, domain.SkipReasonCached, nil)
				log.Info("Task skipped", "task", name, "reason", domain.SkipReasonCached)
				continue
			}

			g.Go(func() error {
				err := r.runTask(ctx, task, tr, log)
				if err == nil {
					mu.Lock()
					reran[task.Name] = true
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	var failed []string
	for _, tr := range run.Tasks {
		if tr.Status == domain.TaskStatusFailed {
			failed = append(failed, tr.Task)
		}
	}

	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = domain.RunStatusSucceeded
	if len(failed) > 0 {
		run.Status = domain.RunStatusFailed
		msg := fmt.Sprintf("failed tasks: %v", failed)
		run.Error = &msg
	}

	if r.recorder != nil {
		if err := r.recorder.FinishRun(ctx, id, run.Status, run.Error); err != nil {
			log.Warn("Failed to record run result", "error", err)
		}
		if p, ok := r.recorder.(pruner); ok {
			if err := p.PruneRuns(ctx, r.keepRuns); err != nil {
				log.Warn("Failed to prune run history", "error", err)
			}
		}
	}

	r.stateMu.Lock()
	r.last = run
	r.stateMu.Unlock()

	log.Info("Build finished", "status", run.Status, "duration", now.Sub(run.StartedAt))
	return run
}

// blockedBy returns an upstream whose outputs are unusable, preferring one
// that failed in this build, or "".
func (r *Runner) blockedBy(task *domain.Task, results map[string]*domain.TaskRun) string {
	blocked := ""
	for _, up := range task.Upstream {
		tr := results[up]
		if tr.Usable() {
			continue
		}
		if tr.Status == domain.TaskStatusFailed {
			return up
		}
		if blocked == "" {
			blocked = up
		}
	}
	return blocked
}

func (r *Runner) runTask(ctx context.Context, task *domain.Task, tr *domain.TaskRun, runLog *logger.Logger) (err error) {
	log := runLog.WithTask(task.Name, task.Kind)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Panic in task", "panic", rec)
			err = fmt.Errorf("panic: %v", rec)
			r.finish(ctx, tr, domain.TaskStatusFailed, "", err)
		}
	}()

	started := time.Now().UTC()
	tr.StartedAt = &started
	r.setStatus(ctx, tr, domain.TaskStatusRunning)
	log.Info("Task started")

	if err = ctx.Err(); err == nil {
		err = r.dispatcher.Dispatch(ctx, task, log.Logger)
	}
	if err != nil {
		var te *domain.TaskError
		if !errors.As(err, &te) {
			err = &domain.TaskError{Task: task.Name, Err: err}
		}
		log.Error("Task failed", "error", err, "duration", time.Since(started), "blocked", r.dag.Downstream(task.Name))
		r.finish(ctx, tr, domain.TaskStatusFailed, "", err)
		return err
	}

	log.Info("Task succeeded", "duration", time.Since(started))
	r.finish(ctx, tr, domain.TaskStatusSucceeded, "", nil)
	return nil
}

func (r *Runner) setStatus(ctx context.Context, tr *domain.TaskRun, status domain.TaskStatus) {
	r.stateMu.Lock()
	tr.Status = status
	r.status[tr.Task] = status
	r.stateMu.Unlock()

	if r.recorder != nil {
		if err := r.recorder.SaveTaskRun(ctx, tr); err != nil {
			r.logger.Warn("Failed to record task", "task", tr.Task, "error", err)
		}
	}
}

func (r *Runner) finish(ctx context.Context, tr *domain.TaskRun, status domain.TaskStatus, reason string, err error) {
	now := time.Now().UTC()
	r.stateMu.Lock()
	tr.Reason = reason
	tr.FinishedAt = &now
	if err != nil {
		msg := err.Error()
		tr.Error = &msg
	}
	r.stateMu.Unlock()
	r.setStatus(ctx, tr, status)
}
