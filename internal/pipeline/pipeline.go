// Package pipeline runs a complete fetch: one or more search walks, the
// per-discussion processing and the final aggregate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/processor"
	"github.com/wham/github-discussions/internal/progress"
	"github.com/wham/github-discussions/internal/query"
	"github.com/wham/github-discussions/internal/serialize"
	"github.com/wham/github-discussions/internal/walker"
)

// ErrNoContributors is returned when contributor mode finds nobody to search for.
var ErrNoContributors = errors.New("repository has no contributors")

// API is the GitHub access a run needs.
type API interface {
	walker.Searcher
	processor.DetailFetcher
	Contributors(ctx context.Context, repo github.Repository) ([]string, error)
}

// Store is the artifact store of the run directory.
type Store interface {
	processor.Store
	Dir() string
	AggregatePath() string
	WriteAggregate(text string) error
	// Entries returns every serialized discussion in the directory.
	Entries() ([]serialize.Entry, error)
}

// Options configures a run.
type Options struct {
	Repository github.Repository
	Filter     query.Filter
	// Serialize produces text artifacts and the aggregate.
	Serialize bool
	// OnlyContributors runs one walk per contributor instead of one walk
	// over the whole repository.
	OnlyContributors bool
}

// WalkResult is the outcome of one search walk.
type WalkResult struct {
	Name  string
	Count int
	Err   error
}

// Summary describes a finished run.
type Summary struct {
	Repository    github.Repository
	RunDir        string
	AggregatePath string
	Processed     int
	Stats         processor.Stats
	Walks         []WalkResult
}

// Failed returns the walks that did not finish.
func (s *Summary) Failed() []WalkResult {
	var failed []WalkResult
	for _, w := range s.Walks {
		if w.Err != nil {
			failed = append(failed, w)
		}
	}
	return failed
}

// walk is one search to run
type walk struct {
	name   string
	filter query.Filter
}

// Execute runs the fetch. A failed walk is logged and the run moves on to the
// next one; only contributor listing errors and cancellation end it early.
// On cancellation the summary of the work done so far is returned together
// with the context error.
func Execute(ctx context.Context, api API, store Store, reporter progress.Reporter, opts Options) (*Summary, error) {
	summary := &Summary{Repository: opts.Repository, RunDir: store.Dir()}

	walks, err := plan(ctx, api, opts)
	if err != nil {
		return summary, err
	}

	run := processor.NewRun(opts.Repository, api, store, processor.Options{
		Serialize: opts.Serialize,
		OnChange:  reporter.UpdateStats,
	})

	for _, w := range walks {
		if ctx.Err() != nil {
			break
		}

		reporter.StartWalk(w.name)
		seen := 0
		count, err := walker.Walk(ctx, api, opts.Repository, w.filter, func(ctx context.Context, page *github.SearchPage) error {
			seen += len(page.Nodes)
			reporter.UpdateWalk(w.name, seen, page.DiscussionCount)
			return run.ProcessPage(ctx, page)
		})
		summary.Walks = append(summary.Walks, WalkResult{Name: w.name, Count: count, Err: err})

		if err != nil {
			slog.Error("Search failed", "search", w.name, "error", err)
			reporter.FailWalk(w.name, err.Error())
			continue
		}
		reporter.CompleteWalk(w.name, count)
	}

	summary.Processed = run.Processed()
	summary.Stats = run.Stats()

	if opts.Serialize {
		writeAggregate(store, reporter, summary, len(run.Entries()))
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// writeAggregate rebuilds the aggregate from every text artifact of the run
// directory, so a resumed run keeps the texts of the invocations before it.
func writeAggregate(store Store, reporter progress.Reporter, summary *Summary, fresh int) {
	entries, err := store.Entries()
	if err != nil {
		slog.Error("Failed to collect serialized discussions", "dir", store.Dir(), "error", err)
		return
	}
	if len(entries) == 0 {
		reporter.Log("No discussions were serialized, skipping aggregate file")
		return
	}

	if err := store.WriteAggregate(serialize.Aggregate(entries)); err != nil {
		slog.Error("Failed to write aggregate file", "path", store.AggregatePath(), "error", err)
		return
	}
	summary.AggregatePath = store.AggregatePath()
	reporter.Log("📝 Wrote %d discussions (%d new) to %s", len(entries), fresh, store.AggregatePath())
}

// plan returns the searches of a run.
func plan(ctx context.Context, api API, opts Options) ([]walk, error) {
	if !opts.OnlyContributors {
		return []walk{{name: "all discussions", filter: opts.Filter}}, nil
	}

	logins, err := api.Contributors(ctx, opts.Repository)
	if err != nil {
		return nil, fmt.Errorf("list contributors: %w", err)
	}
	if len(logins) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContributors, opts.Repository)
	}
	slog.Info("Fetching discussions involving contributors", "contributors", len(logins))

	walks := make([]walk, 0, len(logins))
	for _, login := range logins {
		f := opts.Filter
		f.Involves = login
		walks = append(walks, walk{name: "involves:" + login, filter: f})
	}
	return walks, nil
}
