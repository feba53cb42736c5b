// Package mcpserver exposes discussion search and retrieval as MCP tools
// over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/query"
	"github.com/wham/github-discussions/internal/serialize"
	"github.com/wham/github-discussions/internal/since"
)

// API is the part of the GitHub client the tools use.
type API interface {
	Search(ctx context.Context, req github.SearchRequest) (*github.SearchPage, error)
	Discussion(ctx context.Context, repo github.Repository, number int) (*github.DiscussionDetail, error)
}

// SearchDiscussionsInput represents parameters for search_discussions tool
type SearchDiscussionsInput struct {
	Query         string `json:"query,omitempty" jsonschema:"Free text to search for. Example: rate limit"`
	InTitle       bool   `json:"in_title,omitempty" jsonschema:"Match the text in titles"`
	InBody        bool   `json:"in_body,omitempty" jsonschema:"Match the text in bodies"`
	InComments    bool   `json:"in_comments,omitempty" jsonschema:"Match the text in comments"`
	Author        string `json:"author,omitempty" jsonschema:"Discussions started by this user. Example: octocat"`
	Involves      string `json:"involves,omitempty" jsonschema:"Discussions this user authored, commented on or was mentioned in"`
	Category      string `json:"category,omitempty" jsonschema:"Category name. Example: Q&A"`
	Label         string `json:"label,omitempty" jsonschema:"Label name. Example: bug"`
	State         string `json:"state,omitempty" jsonschema:"open or closed. Defaults to any state"`
	Answered      string `json:"answered,omitempty" jsonschema:"yes or no. Defaults to any"`
	Locked        string `json:"locked,omitempty" jsonschema:"yes or no. Defaults to any"`
	CreatedAfter  string `json:"created_after,omitempty" jsonschema:"Created on or after this date. Example: 2025-01-31"`
	CreatedBefore string `json:"created_before,omitempty" jsonschema:"Created on or before this date. Example: 2025-06-30"`
	UpdatedAfter  string `json:"updated_after,omitempty" jsonschema:"Updated on or after this date. Example: 2025-01-31"`
	UpdatedBefore string `json:"updated_before,omitempty" jsonschema:"Updated on or before this date. Example: 2025-06-30"`
	Since         string `json:"since,omitempty" jsonschema:"Updated within this period, overrides updated_after. Examples: 12h, 7d, 2w, 3m, 1y"`
	PageSize      int    `json:"page_size,omitempty" jsonschema:"Results per page, 1 to 100. Defaults to 30"`
	Cursor        string `json:"cursor,omitempty" jsonschema:"Cursor from a previous response to get the next page"`
}

// GetDiscussionInput represents parameters for get_discussion tool
type GetDiscussionInput struct {
	Number int `json:"number" jsonschema:"Discussion number. Example: 42"`
}

// Server holds what the tool handlers share.
type Server struct {
	api  API
	repo github.Repository
	now  func() time.Time
}

// New creates the handlers for repo.
func New(api API, repo github.Repository) *Server {
	return &Server{api: api, repo: repo, now: time.Now}
}

// Filter turns tool input into a search filter.
func (s *Server) Filter(input SearchDiscussionsInput) (query.Filter, error) {
	f := query.Filter{
		Text:          strings.TrimSpace(input.Query),
		InTitle:       input.InTitle,
		InBody:        input.InBody,
		InComment:     input.InComments,
		Author:        input.Author,
		Involves:      input.Involves,
		Category:      input.Category,
		Label:         input.Label,
		CreatedAfter:  input.CreatedAfter,
		CreatedBefore: input.CreatedBefore,
		UpdatedAfter:  input.UpdatedAfter,
		UpdatedBefore: input.UpdatedBefore,
		PageSize:      input.PageSize,
		Cursor:        input.Cursor,
	}

	var err error
	if f.Open, err = query.ParseState(input.State); err != nil {
		return f, err
	}
	if f.Answered, err = query.ParseYesNo("answered", input.Answered); err != nil {
		return f, err
	}
	if f.Locked, err = query.ParseYesNo("locked", input.Locked); err != nil {
		return f, err
	}
	if input.Since != "" {
		if f.UpdatedAfter, err = since.Parse(input.Since, s.now()); err != nil {
			return f, err
		}
	}
	return f, nil
}

// SearchDiscussions handles the search_discussions MCP tool
func (s *Server) SearchDiscussions(ctx context.Context, req *mcp.CallToolRequest, input SearchDiscussionsInput) (*mcp.CallToolResult, any, error) {
	slog.Debug("search_discussions called", "input", input)

	f, err := s.Filter(input)
	if err != nil {
		return nil, nil, err
	}
	q, err := query.Build(s.repo, f)
	if err != nil {
		return nil, nil, err
	}

	page, err := s.api.Search(ctx, github.SearchRequest{Query: q, First: query.PageSize(f), After: f.Cursor})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search discussions: %w", err)
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Query: `%s`\n", q))
	result.WriteString(fmt.Sprintf("Total matches: %d\n\n", page.DiscussionCount))

	if len(page.Nodes) == 0 {
		result.WriteString("No discussions found.\n")
		return textResult(result.String()), nil, nil
	}

	for _, d := range page.Nodes {
		writeSummary(&result, d)
	}

	if page.PageInfo.HasNextPage && page.PageInfo.EndCursor != "" {
		result.WriteString(fmt.Sprintf("More results available. Use cursor `%s` to get the next page.\n", page.PageInfo.EndCursor))
	}

	return textResult(result.String()), nil, nil
}

// GetDiscussion handles the get_discussion MCP tool
func (s *Server) GetDiscussion(ctx context.Context, req *mcp.CallToolRequest, input GetDiscussionInput) (*mcp.CallToolResult, any, error) {
	slog.Debug("get_discussion called", "number", input.Number)

	if input.Number <= 0 {
		return nil, nil, fmt.Errorf("number must be a positive discussion number")
	}
	d, err := s.api.Discussion(ctx, s.repo, input.Number)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get discussion #%d: %w", input.Number, err)
	}
	return textResult(serialize.Discussion(d)), nil, nil
}

// DigestPrompt handles the discussion_digest MCP prompt
func (s *Server) DigestPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	period := req.Params.Arguments["period"]
	topic := req.Params.Arguments["topic"]
	if period == "" {
		period = "7d"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Summarize the discussions of %s updated within the last `%s`, most active first. Use the following approach:\n\n", s.repo, period))
	if topic != "" {
		b.WriteString(fmt.Sprintf("- Use `search_discussions` with `since` set to `%s` and `query` set to `%s`.\n", period, topic))
	} else {
		b.WriteString(fmt.Sprintf("- Use `search_discussions` with `since` set to `%s`.\n", period))
	}
	b.WriteString("- Follow the cursor until there are no more pages.\n")
	b.WriteString("- Use `get_discussion` for the discussions with the most comments.\n")
	b.WriteString("- Call out unanswered questions and decisions that were reached.\n")
	b.WriteString("- Include a direct link for every discussion you mention.")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Discussion digest for %s", s.repo),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: b.String()},
			},
		},
	}, nil
}

// NewMCPServer registers the tools and the prompt.
func (s *Server) NewMCPServer(version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "GitHub Discussions MCP Server",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_discussions",
		Description: fmt.Sprintf("Searches discussions of %s and returns one page of results with a cursor for the next page.", s.repo),
	}, s.SearchDiscussions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_discussion",
		Description: "Returns one discussion with all its comments and replies as LLM-ready text.",
	}, s.GetDiscussion)

	server.AddPrompt(&mcp.Prompt{
		Name:        "discussion_digest",
		Description: "Generates a digest of recently updated discussions.",
		Arguments: []*mcp.PromptArgument{
			{Name: "period", Description: "Examples: 12h, 7d, 2w, 1m. Defaults to 7d"},
			{Name: "topic", Description: "Optional search text. Example: deployment"},
		},
	}, s.DigestPrompt)

	return server
}

// Run serves over stdin/stdout until ctx is done.
func (s *Server) Run(ctx context.Context, version string) error {
	return s.NewMCPServer(version).Run(ctx, &mcp.StdioTransport{})
}

func writeSummary(b *strings.Builder, d github.DiscussionSummary) {
	b.WriteString(fmt.Sprintf("## #%d %s\n\n", d.Number, d.Title))
	b.WriteString(fmt.Sprintf("- URL: %s\n", d.URL))
	b.WriteString(fmt.Sprintf("- Author: %s\n", authorOrGhost(d.Author)))
	if d.Category != "" {
		b.WriteString(fmt.Sprintf("- Category: %s\n", d.Category))
	}
	if len(d.Labels) > 0 {
		b.WriteString(fmt.Sprintf("- Labels: %s\n", strings.Join(d.Labels, ", ")))
	}
	b.WriteString(fmt.Sprintf("- Created at: %s\n", d.CreatedAt.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("- Updated at: %s\n", d.UpdatedAt.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("- Comments: %d\n", d.CommentCount))
	b.WriteString(fmt.Sprintf("- Answered: %t\n", d.IsAnswered))
	b.WriteString("\n---\n\n")
}

func authorOrGhost(a *github.Actor) string {
	if login := github.AuthorLogin(a); login != "" {
		return login
	}
	return "ghost"
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
