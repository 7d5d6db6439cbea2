// Package aggregate fans list and stats queries out over every registered
// project. A project whose store cannot be read is reported alongside the
// results and never fails the whole query.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/leeovery/gittask/internal/registry"
	"github.com/leeovery/gittask/internal/resolve"
	"github.com/leeovery/gittask/internal/store"
	"github.com/leeovery/gittask/internal/task"
)

// DefaultWorkers is the number of projects read concurrently.
const DefaultWorkers = 4

// ProjectLister is the part of the registry the engine reads.
type ProjectLister interface {
	Projects() ([]registry.Project, error)
}

// Item is one task tagged with the project it came from.
type Item struct {
	Label string
	Path  string
	Task  task.Task
}

// QualifiedID returns the item's "label:id" identifier.
func (i Item) QualifiedID() string {
	return resolve.Qualify(i.Label, i.Task.ID)
}

// ListResult is the merged output of List.
type ListResult struct {
	Items  []Item
	Errors []*task.ProjectError
}

// ProjectStats holds the counts of one project that answered.
type ProjectStats struct {
	Label string
	Path  string
	Stats task.Stats
}

// StatsResult is the merged output of Stats. Totals sum PerProject only.
type StatsResult struct {
	PerProject []ProjectStats
	Totals     task.Stats
	Errors     []*task.ProjectError
}

// Engine runs queries across the projects of a registry.
type Engine struct {
	projects  ProjectLister
	workers   int
	logger    *slog.Logger
	storeOpts []store.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds how many projects are read at once. Values below one
// read projects one at a time.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = max(n, 1)
	}
}

// WithLogger sets the engine's logger; it is also handed to each store.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStoreOptions sets options applied to every project store opened.
func WithStoreOptions(opts ...store.Option) Option {
	return func(e *Engine) {
		e.storeOpts = append(e.storeOpts, opts...)
	}
}

// New returns an Engine over the given projects.
func New(projects ProjectLister, opts ...Option) *Engine {
	e := &Engine{
		projects: projects,
		workers:  DefaultWorkers,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// outcome is what one project produced; exactly one of its fields is used
// by each query.
type outcome struct {
	tasks []task.Task
	stats task.Stats
	err   *task.ProjectError
}

// List returns every matching task across projects, in registry order and
// then ascending id within a project. It fails only when the registry
// itself cannot be read.
func (e *Engine) List(ctx context.Context, f task.Filter) (ListResult, error) {
	projects, outcomes, err := e.run(ctx, func(s *store.Store) (outcome, error) {
		tasks, err := s.List(f)
		return outcome{tasks: tasks}, err
	})
	if err != nil {
		return ListResult{}, err
	}

	var res ListResult
	for i, o := range outcomes {
		if o.err != nil {
			res.Errors = append(res.Errors, o.err)
			continue
		}
		for _, t := range o.tasks {
			res.Items = append(res.Items, Item{Label: projects[i].Label, Path: projects[i].Path, Task: t})
		}
	}
	return res, nil
}

// Stats counts matching tasks per project and in total, over the projects
// that answered.
func (e *Engine) Stats(ctx context.Context, f task.Filter) (StatsResult, error) {
	projects, outcomes, err := e.run(ctx, func(s *store.Store) (outcome, error) {
		stats, err := s.Stats(f)
		return outcome{stats: stats}, err
	})
	if err != nil {
		return StatsResult{}, err
	}

	var res StatsResult
	for i, o := range outcomes {
		if o.err != nil {
			res.Errors = append(res.Errors, o.err)
			continue
		}
		res.PerProject = append(res.PerProject, ProjectStats{Label: projects[i].Label, Path: projects[i].Path, Stats: o.stats})
		res.Totals.Add(o.stats)
	}
	return res, nil
}

// run applies query to each registered project's store on a fixed pool of
// workers. Outcomes are slotted by registry index, so their order does not
// depend on which project finishes first.
func (e *Engine) run(ctx context.Context, query func(*store.Store) (outcome, error)) ([]registry.Project, []outcome, error) {
	projects, err := e.projects.Projects()
	if err != nil {
		return nil, nil, err
	}

	outcomes := make([]outcome, len(projects))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(e.workers, len(projects)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = e.one(ctx, projects[i], query)
			}
		}()
	}
	for i := range projects {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return projects, outcomes, nil
}

func (e *Engine) one(ctx context.Context, p registry.Project, query func(*store.Store) (outcome, error)) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: &task.ProjectError{Path: p.Path, Cause: err}}
	}

	opts := append([]store.Option{store.WithLogger(e.logger)}, e.storeOpts...)
	s, err := registry.OpenExisting(p.Path, opts...)
	if err == nil {
		var o outcome
		if o, err = query(s); err == nil {
			return o
		}
	}

	e.logger.Warn("project skipped", "project", p.Label, "path", p.Path, "error", err)
	var perr *task.ProjectError
	if !errors.As(err, &perr) {
		perr = &task.ProjectError{Path: p.Path, Cause: err}
	}
	return outcome{err: perr}
}
