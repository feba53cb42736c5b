package walker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/query"
)

var repo = github.Repository{Owner: "o", Name: "r"}

type fakeSearcher struct {
	pages    []*github.SearchPage
	errAt    int
	requests []github.SearchRequest
}

func (f *fakeSearcher) Search(ctx context.Context, req github.SearchRequest) (*github.SearchPage, error) {
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	if f.errAt > 0 && i+1 == f.errAt {
		return nil, &github.TransportError{Op: "search", Err: errors.New("connection reset")}
	}
	if i >= len(f.pages) {
		return &github.SearchPage{}, nil
	}
	return f.pages[i], nil
}

func page(cursor string, hasNext bool, numbers ...int) *github.SearchPage {
	p := &github.SearchPage{
		DiscussionCount: 99,
		PageInfo:        github.PageInfo{EndCursor: cursor, HasNextPage: hasNext},
	}
	for _, n := range numbers {
		p.Nodes = append(p.Nodes, github.DiscussionSummary{Number: n})
	}
	return p
}

func collect(seen *[]int) PageFunc {
	return func(ctx context.Context, p *github.SearchPage) error {
		for _, n := range p.Nodes {
			*seen = append(*seen, n.Number)
		}
		return nil
	}
}

func TestWalkFollowsCursors(t *testing.T) {
	s := &fakeSearcher{pages: []*github.SearchPage{
		page("c1", true, 1, 2),
		page("c2", true, 3),
		page("c3", false, 4),
	}}

	var seen []int
	n, err := Walk(context.Background(), s, repo, query.Filter{PageSize: 2}, collect(&seen))
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if n != 4 {
		t.Errorf("Expected 4 items, got %d", n)
	}
	if fmt.Sprint(seen) != "[1 2 3 4]" {
		t.Errorf("unexpected order: %v", seen)
	}

	wantAfter := []string{"", "c1", "c2"}
	if len(s.requests) != len(wantAfter) {
		t.Fatalf("Expected %d requests, got %d", len(wantAfter), len(s.requests))
	}
	for i, req := range s.requests {
		if req.After != wantAfter[i] {
			t.Errorf("request %d: expected after %q, got %q", i, wantAfter[i], req.After)
		}
		if req.First != 2 {
			t.Errorf("request %d: expected first 2, got %d", i, req.First)
		}
		if req.Query != "repo:o/r is:discussion" {
			t.Errorf("request %d: unexpected query %q", i, req.Query)
		}
	}
}

func TestWalkStartsFromFilterCursor(t *testing.T) {
	s := &fakeSearcher{pages: []*github.SearchPage{page("c9", false, 5)}}
	var seen []int
	if _, err := Walk(context.Background(), s, repo, query.Filter{Cursor: "c8"}, collect(&seen)); err != nil {
		t.Fatal(err)
	}
	if s.requests[0].After != "c8" {
		t.Errorf("Expected first request after c8, got %q", s.requests[0].After)
	}
	if s.requests[0].First != query.DefaultPageSize {
		t.Errorf("Expected default page size, got %d", s.requests[0].First)
	}
}

func TestWalkStopsOnEmptyPage(t *testing.T) {
	s := &fakeSearcher{pages: []*github.SearchPage{
		page("c1", true, 1),
		page("c2", true),
	}}
	calls := 0
	n, err := Walk(context.Background(), s, repo, query.Filter{}, func(ctx context.Context, p *github.SearchPage) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || calls != 1 {
		t.Errorf("Expected 1 item in 1 callback, got %d items in %d callbacks", n, calls)
	}
	if len(s.requests) != 2 {
		t.Errorf("Expected 2 requests, got %d", len(s.requests))
	}
}

func TestWalkEmptyFirstPageInvokesNoCallback(t *testing.T) {
	s := &fakeSearcher{pages: []*github.SearchPage{page("", false)}}
	n, err := Walk(context.Background(), s, repo, query.Filter{}, func(ctx context.Context, p *github.SearchPage) error {
		t.Error("callback must not be called for an empty page")
		return nil
	})
	if err != nil || n != 0 {
		t.Errorf("Walk() = %d, %v", n, err)
	}
}

func TestWalkStopsWithoutCursor(t *testing.T) {
	s := &fakeSearcher{pages: []*github.SearchPage{page("", true, 1), page("c2", false, 2)}}
	var seen []int
	if _, err := Walk(context.Background(), s, repo, query.Filter{}, collect(&seen)); err != nil {
		t.Fatal(err)
	}
	if len(s.requests) != 1 {
		t.Errorf("Expected 1 request, got %d", len(s.requests))
	}
}

func TestWalkStopsOnRepeatedCursor(t *testing.T) {
	s := &fakeSearcher{pages: []*github.SearchPage{
		page("c1", true, 1),
		page("c1", true, 2),
		page("c2", false, 3),
	}}
	var seen []int
	if _, err := Walk(context.Background(), s, repo, query.Filter{}, collect(&seen)); err != nil {
		t.Fatal(err)
	}
	if len(s.requests) != 2 {
		t.Errorf("Expected 2 requests, got %d", len(s.requests))
	}
	if fmt.Sprint(seen) != "[1 2]" {
		t.Errorf("unexpected items: %v", seen)
	}
}

func TestWalkReturnsRequestError(t *testing.T) {
	s := &fakeSearcher{
		pages: []*github.SearchPage{page("c1", true, 1), page("c2", true, 2)},
		errAt: 2,
	}
	var seen []int
	n, err := Walk(context.Background(), s, repo, query.Filter{}, collect(&seen))
	var transportErr *github.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 item before failure, got %d", n)
	}
	if len(s.requests) != 2 {
		t.Errorf("Expected no retry, got %d requests", len(s.requests))
	}
}

func TestWalkStopsOnCallbackError(t *testing.T) {
	s := &fakeSearcher{pages: []*github.SearchPage{page("c1", true, 1), page("c2", false, 2)}}
	stop := errors.New("stop")
	_, err := Walk(context.Background(), s, repo, query.Filter{}, func(ctx context.Context, p *github.SearchPage) error {
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Expected callback error, got %v", err)
	}
	if len(s.requests) != 1 {
		t.Errorf("Expected 1 request, got %d", len(s.requests))
	}
}

func TestWalkRejectsInvalidFilter(t *testing.T) {
	s := &fakeSearcher{}
	_, err := Walk(context.Background(), s, repo, query.Filter{CreatedAfter: "2024-02-31"}, collect(new([]int)))
	if err == nil {
		t.Fatal("Expected error for invalid date")
	}
	if len(s.requests) != 0 {
		t.Errorf("Expected no requests, got %d", len(s.requests))
	}
}
