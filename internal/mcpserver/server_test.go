package mcpserver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/query"
	"github.com/wham/github-discussions/internal/since"
)

var repo = github.Repository{Owner: "octo", Name: "hello"}

type fakeAPI struct {
	lastSearch github.SearchRequest
	page       *github.SearchPage
	details    map[int]*github.DiscussionDetail
}

func (f *fakeAPI) Search(ctx context.Context, req github.SearchRequest) (*github.SearchPage, error) {
	f.lastSearch = req
	return f.page, nil
}

func (f *fakeAPI) Discussion(ctx context.Context, r github.Repository, number int) (*github.DiscussionDetail, error) {
	d, ok := f.details[number]
	if !ok {
		return nil, &github.APIError{Op: "discussion", StatusCode: 404, Message: "not found"}
	}
	return d, nil
}

func newFakeAPI() *fakeAPI {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &fakeAPI{
		page: &github.SearchPage{
			DiscussionCount: 2,
			Nodes: []github.DiscussionSummary{
				{Number: 7, Title: "How to deploy?", URL: "https://github.com/octo/hello/discussions/7", Author: &github.Actor{Login: "alice"}, Category: "Q&A", CreatedAt: created, UpdatedAt: created, CommentCount: 3},
			},
			PageInfo: github.PageInfo{HasNextPage: true, EndCursor: "Y3Vyc29y"},
		},
		details: map[int]*github.DiscussionDetail{
			7: {Number: 7, Title: "How to deploy?", URL: "https://github.com/octo/hello/discussions/7", CreatedAt: created, UpdatedAt: created, BodyText: "Steps please"},
		},
	}
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", result.Content[0])
	}
	return tc.Text
}

func TestSearchDiscussions(t *testing.T) {
	api := newFakeAPI()
	s := New(api, repo)

	result, _, err := s.SearchDiscussions(context.Background(), nil, SearchDiscussionsInput{
		Query:    "deploy",
		InTitle:  true,
		State:    "open",
		Answered: "no",
		PageSize: 10,
		Cursor:   "abc",
	})
	if err != nil {
		t.Fatal(err)
	}

	wantQuery := "repo:octo/hello is:discussion deploy in:title is:open is:unanswered"
	if api.lastSearch.Query != wantQuery {
		t.Errorf("query = %q, want %q", api.lastSearch.Query, wantQuery)
	}
	if api.lastSearch.First != 10 || api.lastSearch.After != "abc" {
		t.Errorf("unexpected request %+v", api.lastSearch)
	}

	out := text(t, result)
	for _, want := range []string{"Total matches: 2", "## #7 How to deploy?", "- Author: alice", "- Category: Q&A", "`Y3Vyc29y`"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestSearchDiscussionsEmpty(t *testing.T) {
	api := newFakeAPI()
	api.page = &github.SearchPage{}
	result, _, err := New(api, repo).SearchDiscussions(context.Background(), nil, SearchDiscussionsInput{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text(t, result), "No discussions found.") {
		t.Error("Expected empty message")
	}
	if api.lastSearch.First != query.DefaultPageSize {
		t.Errorf("Expected default page size, got %d", api.lastSearch.First)
	}
}

func TestSearchDiscussionsRejectsInput(t *testing.T) {
	s := New(newFakeAPI(), repo)
	tests := []struct {
		name  string
		input SearchDiscussionsInput
		want  error
	}{
		{"state", SearchDiscussionsInput{State: "merged"}, query.ErrInvalidValue},
		{"locked", SearchDiscussionsInput{Locked: "perhaps"}, query.ErrInvalidValue},
		{"since", SearchDiscussionsInput{Since: "7 days"}, since.ErrInvalidFormat},
		{"date", SearchDiscussionsInput{CreatedAfter: "2024-02-30"}, since.ErrInvalidDate},
	}
	for _, tt := range tests {
		_, _, err := s.SearchDiscussions(context.Background(), nil, tt.input)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestFilterSinceOverridesUpdatedAfter(t *testing.T) {
	s := New(newFakeAPI(), repo)
	s.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

	f, err := s.Filter(SearchDiscussionsInput{UpdatedAfter: "2020-01-01", Since: "7d"})
	if err != nil {
		t.Fatal(err)
	}
	if f.UpdatedAfter != "2024-03-03" {
		t.Errorf("UpdatedAfter = %q, want 2024-03-03", f.UpdatedAfter)
	}
}

func TestGetDiscussion(t *testing.T) {
	s := New(newFakeAPI(), repo)

	result, _, err := s.GetDiscussion(context.Background(), nil, GetDiscussionInput{Number: 7})
	if err != nil {
		t.Fatal(err)
	}
	out := text(t, result)
	if !strings.HasPrefix(out, "<discussion ") || !strings.Contains(out, "Steps please") {
		t.Errorf("unexpected output:\n%s", out)
	}

	_, _, err = s.GetDiscussion(context.Background(), nil, GetDiscussionInput{Number: 8})
	if !errors.Is(err, github.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if _, _, err := s.GetDiscussion(context.Background(), nil, GetDiscussionInput{}); err == nil {
		t.Error("Expected error for missing number")
	}
}

func TestDigestPrompt(t *testing.T) {
	s := New(newFakeAPI(), repo)
	req := &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Arguments: map[string]string{"topic": "deploy"}}}

	result, err := s.DigestPrompt(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	prompt := result.Messages[0].Content.(*mcp.TextContent).Text
	for _, want := range []string{"octo/hello", "`7d`", "`deploy`", "get_discussion"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected %q in prompt:\n%s", want, prompt)
		}
	}
}

func TestServerOverInMemoryTransport(t *testing.T) {
	ctx := context.Background()
	server := New(newFakeAPI(), repo).NewMCPServer("test")

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatal(err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	if !names["search_discussions"] || !names["get_discussion"] {
		t.Errorf("unexpected tools %v", names)
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "get_discussion",
		Arguments: map[string]any{"number": 7},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %+v", result.Content)
	}
	if !strings.Contains(text(t, result), "How to deploy?") {
		t.Error("Expected discussion title in tool output")
	}
}
