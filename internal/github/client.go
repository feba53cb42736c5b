// Package github talks to the GitHub GraphQL and REST APIs.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v77/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// Client wraps the GraphQL client used for discussions and the REST client
// used for contributor listing. Both share one authenticated transport.
type Client struct {
	gql     *githubv4.Client
	rest    *gogithub.Client
	monitor *Monitor
}

type options struct {
	graphqlURL string
	restURL    string
	observer   func(Status)
	base       http.RoundTripper
}

// Option configures a Client.
type Option func(*options)

// WithGraphQLURL points the GraphQL client at a different endpoint.
func WithGraphQLURL(u string) Option {
	return func(o *options) { o.graphqlURL = u }
}

// WithRESTURL points the REST client at a different API root.
func WithRESTURL(u string) Option {
	return func(o *options) { o.restURL = u }
}

// WithStatusObserver registers a callback receiving API status snapshots.
func WithStatusObserver(fn func(Status)) Option {
	return func(o *options) { o.observer = fn }
}

// WithBaseTransport sets the transport below the auth layer.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// NewClient creates a client authenticated with token.
func NewClient(token string, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.Background()
	if o.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: o.base})
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)

	monitor := NewMonitor(o.observer)
	httpClient.Transport = &monitoredTransport{
		wrapped: httpClient.Transport,
		monitor: monitor,
	}

	c := &Client{
		rest:    gogithub.NewClient(httpClient),
		monitor: monitor,
	}
	if o.graphqlURL != "" {
		c.gql = githubv4.NewEnterpriseClient(o.graphqlURL, httpClient)
	} else {
		c.gql = githubv4.NewClient(httpClient)
	}
	if o.restURL != "" {
		base, err := url.Parse(strings.TrimSuffix(o.restURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid REST URL: %w", err)
		}
		c.rest.BaseURL = base
	}
	return c, nil
}

// Monitor exposes the traffic counters of this client.
func (c *Client) Monitor() *Monitor {
	return c.monitor
}

// query runs a GraphQL query and maps failures onto APIError or TransportError.
func (c *Client) query(ctx context.Context, op string, q any, variables map[string]any) error {
	ctx, rec := withRecord(ctx)
	err := c.gql.Query(ctx, q, variables)
	if err == nil {
		return nil
	}

	switch {
	case rec.status == 0:
		return &TransportError{Op: op, Err: err}
	case rec.status < 200 || rec.status >= 300:
		return &APIError{Op: op, StatusCode: rec.status, Message: rec.message}
	default:
		c.monitor.queryFailed()
		return &APIError{Op: op, StatusCode: rec.status, Message: err.Error(), QueryErrors: true}
	}
}

type actorFields struct {
	Login string
}

type pageInfoFields struct {
	EndCursor       *string
	HasNextPage     bool
	StartCursor     *string
	HasPreviousPage bool
}

func (p pageInfoFields) toModel() PageInfo {
	var out PageInfo
	if p.EndCursor != nil {
		out.EndCursor = *p.EndCursor
	}
	if p.StartCursor != nil {
		out.StartCursor = *p.StartCursor
	}
	out.HasNextPage = p.HasNextPage
	out.HasPreviousPage = p.HasPreviousPage
	return out
}

func toActor(a *actorFields) *Actor {
	if a == nil {
		return nil
	}
	return &Actor{Login: a.Login}
}

type labelFields struct {
	Nodes []struct {
		Name string
	}
}

func (l labelFields) names() []string {
	if len(l.Nodes) == 0 {
		return nil
	}
	names := make([]string, 0, len(l.Nodes))
	for _, n := range l.Nodes {
		names = append(names, n.Name)
	}
	return names
}

type searchDiscussion struct {
	ID        string
	Number    int
	URL       string
	Title     string
	Author    *actorFields
	CreatedAt time.Time
	UpdatedAt time.Time
	Category  struct {
		Name string
	}
	Answer *struct {
		ID string
	}
	BodyText string
	Comments struct {
		TotalCount int
	} `graphql:"comments(first: 1)"`
	Labels     labelFields `graphql:"labels(first: 10)"`
	Locked     bool
	Repository struct {
		NameWithOwner string
	}
}

// SearchRequest is one page request of a discussion search.
type SearchRequest struct {
	Query string
	First int
	After string
}

// Search runs one page of a discussion search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	var q struct {
		Search struct {
			DiscussionCount int
			PageInfo        pageInfoFields
			Nodes           []struct {
				Discussion searchDiscussion `graphql:"... on Discussion"`
			}
		} `graphql:"search(query: $query, type: DISCUSSION, first: $first, after: $after)"`
	}

	variables := map[string]any{
		"query": githubv4.String(req.Query),
		"first": githubv4.Int(req.First),
		"after": (*githubv4.String)(nil),
	}
	if req.After != "" {
		variables["after"] = githubv4.NewString(githubv4.String(req.After))
	}

	slog.Debug("Searching discussions", "query", req.Query, "first", req.First, "after", req.After)
	if err := c.query(ctx, "search discussions", &q, variables); err != nil {
		return nil, err
	}

	page := &SearchPage{
		DiscussionCount: q.Search.DiscussionCount,
		PageInfo:        q.Search.PageInfo.toModel(),
		Nodes:           make([]DiscussionSummary, 0, len(q.Search.Nodes)),
	}
	for _, n := range q.Search.Nodes {
		d := n.Discussion
		page.Nodes = append(page.Nodes, DiscussionSummary{
			ID:           d.ID,
			Number:       d.Number,
			URL:          d.URL,
			Title:        d.Title,
			Author:       toActor(d.Author),
			CreatedAt:    d.CreatedAt,
			UpdatedAt:    d.UpdatedAt,
			Category:     d.Category.Name,
			Labels:       d.Labels.names(),
			IsAnswered:   d.Answer != nil,
			Locked:       d.Locked,
			CommentCount: d.Comments.TotalCount,
			Repository:   d.Repository.NameWithOwner,
			BodyText:     d.BodyText,
		})
	}
	return page, nil
}

type replyFields struct {
	ID              string
	Author          *actorFields
	CreatedAt       time.Time
	UpdatedAt       time.Time
	BodyText        string
	IsMinimized     bool
	MinimizedReason *string
}

type commentFields struct {
	ID              string
	Author          *actorFields
	CreatedAt       time.Time
	UpdatedAt       time.Time
	BodyText        string
	IsMinimized     bool
	MinimizedReason *string
	Replies         struct {
		TotalCount int
		PageInfo   pageInfoFields
		Nodes      []replyFields
	} `graphql:"replies(first: 100)"`
}

type detailDiscussion struct {
	ID        string
	Number    int
	URL       string
	Title     string
	Author    *actorFields
	CreatedAt time.Time
	UpdatedAt time.Time
	Category  struct {
		Name string
	}
	Answer *struct {
		ID string
	}
	BodyText string
	Locked   bool
	Comments struct {
		TotalCount int
		PageInfo   pageInfoFields
		Nodes      []commentFields
	} `graphql:"comments(first: 100)"`
	Labels labelFields `graphql:"labels(first: 10)"`
}

// Discussion fetches one discussion with its first 100 comments and the
// first 100 replies of each.
func (c *Client) Discussion(ctx context.Context, repo Repository, number int) (*DiscussionDetail, error) {
	var q struct {
		Repository struct {
			Discussion *detailDiscussion `graphql:"discussion(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]any{
		"owner":  githubv4.String(repo.Owner),
		"name":   githubv4.String(repo.Name),
		"number": githubv4.Int(number),
	}

	op := fmt.Sprintf("fetch discussion #%d", number)
	if err := c.query(ctx, op, &q, variables); err != nil {
		return nil, err
	}
	if q.Repository.Discussion == nil {
		return nil, &APIError{Op: op, StatusCode: http.StatusNotFound, Message: fmt.Sprintf("discussion #%d not found in %s", number, repo)}
	}
	return q.Repository.Discussion.toModel(), nil
}

func (d *detailDiscussion) toModel() *DiscussionDetail {
	out := &DiscussionDetail{
		ID:         d.ID,
		Number:     d.Number,
		URL:        d.URL,
		Title:      d.Title,
		Author:     toActor(d.Author),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		Category:   d.Category.Name,
		Labels:     d.Labels.names(),
		IsAnswered: d.Answer != nil,
		Locked:     d.Locked,
		BodyText:   d.BodyText,
		Comments: CommentConnection{
			TotalCount: d.Comments.TotalCount,
			PageInfo:   d.Comments.PageInfo.toModel(),
			Nodes:      make([]Comment, 0, len(d.Comments.Nodes)),
		},
	}

	for _, c := range d.Comments.Nodes {
		comment := Comment{
			ID:              c.ID,
			Author:          toActor(c.Author),
			CreatedAt:       c.CreatedAt,
			UpdatedAt:       c.UpdatedAt,
			BodyText:        c.BodyText,
			IsMinimized:     c.IsMinimized,
			MinimizedReason: deref(c.MinimizedReason),
			Replies: ReplyConnection{
				TotalCount: c.Replies.TotalCount,
				PageInfo:   c.Replies.PageInfo.toModel(),
				Nodes:      make([]Reply, 0, len(c.Replies.Nodes)),
			},
		}
		for _, r := range c.Replies.Nodes {
			comment.Replies.Nodes = append(comment.Replies.Nodes, Reply{
				ID:              r.ID,
				Author:          toActor(r.Author),
				CreatedAt:       r.CreatedAt,
				UpdatedAt:       r.UpdatedAt,
				BodyText:        r.BodyText,
				IsMinimized:     r.IsMinimized,
				MinimizedReason: deref(r.MinimizedReason),
			})
		}
		out.Comments.Nodes = append(out.Comments.Nodes, comment)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Viewer returns the login of the authenticated user.
func (c *Client) Viewer(ctx context.Context) (string, error) {
	var q struct {
		Viewer struct {
			Login string
		}
	}
	if err := c.query(ctx, "fetch viewer", &q, nil); err != nil {
		return "", err
	}
	return q.Viewer.Login, nil
}

// Contributors lists the logins of the repository's contributors, following
// every page. Anonymous contributors have no login and are left out.
func (c *Client) Contributors(ctx context.Context, repo Repository) ([]string, error) {
	const op = "list contributors"
	opts := &gogithub.ListContributorsOptions{
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	var logins []string
	for {
		reqCtx, rec := withRecord(ctx)
		contributors, resp, err := c.rest.Repositories.ListContributors(reqCtx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, restError(op, rec, err)
		}
		for _, contributor := range contributors {
			if login := contributor.GetLogin(); login != "" {
				logins = append(logins, login)
			}
		}
		slog.Debug("Fetched contributors page", "repository", repo.String(), "page", opts.Page, "count", len(contributors))
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return logins, nil
}

func restError(op string, rec *responseRecord, err error) error {
	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) {
		return &APIError{Op: op, StatusCode: http.StatusForbidden, Message: rateErr.Message}
	}
	var abuseErr *gogithub.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &APIError{Op: op, StatusCode: http.StatusForbidden, Message: abuseErr.Message}
	}
	var respErr *gogithub.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return &APIError{Op: op, StatusCode: respErr.Response.StatusCode, Message: respErr.Message}
	}
	if rec.status != 0 {
		return &APIError{Op: op, StatusCode: rec.status, Message: rec.message}
	}
	return &TransportError{Op: op, Err: err}
}
