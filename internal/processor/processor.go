// Package processor turns discussion summaries into detail and text
// artifacts, skipping whatever a previous or the current run already did.
package processor

import (
	"context"
	"log/slog"

	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/serialize"
)

// DetailFetcher loads a fully hydrated discussion.
type DetailFetcher interface {
	Discussion(ctx context.Context, repo github.Repository, number int) (*github.DiscussionDetail, error)
}

// Store is the artifact storage a run reads from and writes to.
type Store interface {
	HasDetail(number int) bool
	HasText(number int) bool
	WriteDetail(d *github.DiscussionDetail) error
	ReadDetail(number int) (*github.DiscussionDetail, error)
	WriteText(number int, text string) error
}

// Action is the work needed for one discussion.
type Action int

const (
	// SkipDuplicate: the discussion was already handled in this run.
	SkipDuplicate Action = iota
	// SkipResumed: every requested artifact is already on disk.
	SkipResumed
	// FetchDetail: fetch and store the detail, no serialization.
	FetchDetail
	// FetchAndSerialize: fetch and store the detail, then serialize it.
	FetchAndSerialize
	// SerializeFromArtifact: the detail is on disk, only the text is missing.
	SerializeFromArtifact
)

func (a Action) String() string {
	switch a {
	case SkipDuplicate:
		return "skip-duplicate"
	case SkipResumed:
		return "skip-resumed"
	case FetchDetail:
		return "fetch-detail"
	case FetchAndSerialize:
		return "fetch-and-serialize"
	case SerializeFromArtifact:
		return "serialize-from-artifact"
	}
	return "unknown"
}

// Decide maps the state of one discussion to the work it needs.
//
//	seen | detail | text | serialize | action
//	yes  |   *    |  *   |     *     | SkipDuplicate
//	no   |  yes   |  *   |    no     | SkipResumed
//	no   |  yes   | yes  |    yes    | SkipResumed
//	no   |  yes   |  no  |    yes    | SerializeFromArtifact
//	no   |  no    |  *   |    no     | FetchDetail
//	no   |  no    |  no  |    yes    | FetchAndSerialize
//	no   |  no    | yes  |    yes    | FetchDetail
func Decide(seen, hasDetail, hasText, serialize bool) Action {
	switch {
	case seen:
		return SkipDuplicate
	case hasDetail && (!serialize || hasText):
		return SkipResumed
	case hasDetail:
		return SerializeFromArtifact
	case serialize && !hasText:
		return FetchAndSerialize
	default:
		return FetchDetail
	}
}

// Stats counts what a run did.
type Stats struct {
	Discovered int
	Duplicates int
	Resumed    int
	Fetched    int
	// Written counts detail artifacts saved; a refetch over an unreadable
	// artifact is fetched but not written.
	Written    int
	Loaded     int
	Serialized int
	Failed     int
	Skipped    int
}

// Options configures a Run.
type Options struct {
	Serialize bool
	// OnChange, if set, receives the stats after every discussion.
	OnChange func(Stats)
}

// Run holds the state of one run: the set of discussions handled so far and
// the serialized texts waiting for aggregation.
type Run struct {
	repo      github.Repository
	fetcher   DetailFetcher
	store     Store
	opts      Options
	processed map[int]struct{}
	entries   []serialize.Entry
	stats     Stats
}

// NewRun starts an empty run.
func NewRun(repo github.Repository, fetcher DetailFetcher, store Store, opts Options) *Run {
	return &Run{
		repo:      repo,
		fetcher:   fetcher,
		store:     store,
		opts:      opts,
		processed: make(map[int]struct{}),
	}
}

// ProcessPage processes every discussion of a search page in order. Per
// discussion failures are logged and counted; only cancellation stops it.
func (r *Run) ProcessPage(ctx context.Context, page *github.SearchPage) error {
	for _, s := range page.Nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Process(ctx, s)
	}
	return nil
}

// Process handles one discussion summary.
func (r *Run) Process(ctx context.Context, s github.DiscussionSummary) {
	defer r.changed()
	r.stats.Discovered++

	if s.Number <= 0 {
		slog.Warn("Skipping discussion without a number", "id", s.ID, "title", s.Title)
		r.stats.Skipped++
		return
	}
	n := s.Number

	_, seen := r.processed[n]
	action := Decide(seen, r.store.HasDetail(n), r.store.HasText(n), r.opts.Serialize)
	slog.Debug("Processing discussion", "number", n, "action", action.String())

	switch action {
	case SkipDuplicate:
		r.stats.Duplicates++
		return
	case SkipResumed:
		slog.Debug("Artifacts already on disk, skipping", "number", n)
		r.stats.Resumed++
		r.markProcessed(n)
		return
	}

	var detail *github.DiscussionDetail
	if action == SerializeFromArtifact {
		d, err := r.store.ReadDetail(n)
		if err != nil {
			slog.Warn("Stored detail is unreadable, fetching again", "number", n, "error", err)
		} else {
			r.stats.Loaded++
			detail = d
		}
	}

	if detail == nil {
		d, err := r.fetcher.Discussion(ctx, r.repo, n)
		if err != nil {
			slog.Error("Failed to fetch discussion", "number", n, "error", err)
			r.stats.Failed++
			return
		}
		r.stats.Fetched++
		detail = d

		// A detail artifact that was present but unreadable is left as is.
		if action != SerializeFromArtifact {
			if err := r.store.WriteDetail(detail); err != nil {
				slog.Error("Failed to save discussion", "number", n, "error", err)
				r.stats.Failed++
				return
			}
			r.stats.Written++
		}
	}

	r.markProcessed(n)

	if action == FetchDetail {
		return
	}

	text := serialize.Discussion(detail)
	if err := r.store.WriteText(n, text); err != nil {
		slog.Error("Failed to save serialized discussion", "number", n, "error", err)
		r.stats.Failed++
		return
	}
	r.stats.Serialized++
	r.entries = append(r.entries, serialize.Entry{CreatedAt: detail.CreatedAt, Text: text})
}

func (r *Run) markProcessed(n int) {
	r.processed[n] = struct{}{}
}

func (r *Run) changed() {
	if r.opts.OnChange != nil {
		r.opts.OnChange(r.stats)
	}
}

// Processed returns how many distinct discussions were handled.
func (r *Run) Processed() int {
	return len(r.processed)
}

// Seen reports whether discussion number was handled in this run.
func (r *Run) Seen(number int) bool {
	_, ok := r.processed[number]
	return ok
}

// Entries returns the serialized texts produced in this run.
func (r *Run) Entries() []serialize.Entry {
	return r.entries
}

// Stats returns the counters of this run.
func (r *Run) Stats() Stats {
	return r.stats
}
