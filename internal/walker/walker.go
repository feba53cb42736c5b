// Package walker pages through discussion search results.
package walker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/query"
)

// Searcher runs one page of a discussion search.
type Searcher interface {
	Search(ctx context.Context, req github.SearchRequest) (*github.SearchPage, error)
}

// PageFunc receives every non-empty page. Returning an error stops the walk.
type PageFunc func(ctx context.Context, page *github.SearchPage) error

// Walk follows the search cursor until the results run out and returns the
// number of discussions handed to onPage.
//
// The walk stops on an empty page, when hasNextPage is false, when the end
// cursor is missing, or when the API hands back the cursor it was just given.
// Request errors are returned as they are; nothing is retried.
func Walk(ctx context.Context, s Searcher, repo github.Repository, f query.Filter, onPage PageFunc) (int, error) {
	q, err := query.Build(repo, f)
	if err != nil {
		return 0, err
	}

	first := query.PageSize(f)
	cursor := f.Cursor
	total := 0

	for pageNum := 1; ; pageNum++ {
		slog.Debug("Fetching search page", "page", pageNum, "query", q, "cursor", cursor)

		page, err := s.Search(ctx, github.SearchRequest{Query: q, First: first, After: cursor})
		if err != nil {
			return total, fmt.Errorf("search page %d: %w", pageNum, err)
		}

		if len(page.Nodes) == 0 {
			slog.Debug("Search page is empty, stopping", "page", pageNum)
			return total, nil
		}

		slog.Debug("Fetched search page", "page", pageNum, "items", len(page.Nodes), "discussionCount", page.DiscussionCount)
		if err := onPage(ctx, page); err != nil {
			return total, err
		}
		total += len(page.Nodes)

		next := page.PageInfo.EndCursor
		switch {
		case !page.PageInfo.HasNextPage:
			return total, nil
		case next == "":
			slog.Warn("Search reported more pages but no cursor, stopping", "page", pageNum)
			return total, nil
		case next == cursor:
			slog.Warn("Search returned the same cursor twice, stopping", "page", pageNum, "cursor", cursor)
			return total, nil
		}
		cursor = next
	}
}
