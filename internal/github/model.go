package github

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

// String returns the owner/name form.
func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

var (
	repoURLPattern   = regexp.MustCompile(`^(?:https?://)?(?:www\.)?github\.com/([\w.-]+)/([\w.-]+?)(?:(?:\.git)?(?:/.*)?|/?)$`)
	repoShortPattern = regexp.MustCompile(`^([\w.-]+)/([\w.-]+)$`)
)

// ParseRepository accepts a GitHub URL (scheme and www. optional, .git and
// trailing path ignored) or the owner/repo shorthand.
func ParseRepository(s string) (Repository, error) {
	s = strings.TrimSpace(s)
	if m := repoURLPattern.FindStringSubmatch(s); m != nil {
		return Repository{Owner: m[1], Name: m[2]}, nil
	}
	if m := repoShortPattern.FindStringSubmatch(s); m != nil {
		return Repository{Owner: m[1], Name: strings.TrimSuffix(m[2], ".git")}, nil
	}
	return Repository{}, fmt.Errorf("invalid repository %q: expected https://github.com/owner/repo or owner/repo", s)
}

// Actor is the author of a post. Login is empty for deleted accounts.
type Actor struct {
	Login string `json:"login"`
}

// PageInfo carries the continuation state of a connection.
type PageInfo struct {
	EndCursor       string `json:"endCursor,omitempty"`
	HasNextPage     bool   `json:"hasNextPage"`
	StartCursor     string `json:"startCursor,omitempty"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
}

// DiscussionSummary is a discussion as returned by search.
type DiscussionSummary struct {
	ID           string    `json:"id"`
	Number       int       `json:"number"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Author       *Actor    `json:"author"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Category     string    `json:"category,omitempty"`
	Labels       []string  `json:"labels,omitempty"`
	IsAnswered   bool      `json:"isAnswered"`
	Locked       bool      `json:"locked"`
	CommentCount int       `json:"commentCount"`
	Repository   string    `json:"repository,omitempty"`
	BodyText     string    `json:"bodyText,omitempty"`
}

// SearchPage is one page of discussion search results.
type SearchPage struct {
	DiscussionCount int                 `json:"discussionCount"`
	Nodes           []DiscussionSummary `json:"nodes"`
	PageInfo        PageInfo            `json:"pageInfo"`
}

// Reply is a response to a comment. Replies do not nest.
type Reply struct {
	ID              string    `json:"id"`
	Author          *Actor    `json:"author"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	BodyText        string    `json:"bodyText"`
	IsMinimized     bool      `json:"isMinimized"`
	MinimizedReason string    `json:"minimizedReason,omitempty"`
}

// ReplyConnection holds at most the first 100 replies of a comment.
type ReplyConnection struct {
	TotalCount int      `json:"totalCount"`
	PageInfo   PageInfo `json:"pageInfo"`
	Nodes      []Reply  `json:"nodes"`
}

// Comment is a top-level comment on a discussion.
type Comment struct {
	ID              string          `json:"id"`
	Author          *Actor          `json:"author"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	BodyText        string          `json:"bodyText"`
	IsMinimized     bool            `json:"isMinimized"`
	MinimizedReason string          `json:"minimizedReason,omitempty"`
	Replies         ReplyConnection `json:"replies"`
}

// CommentConnection holds at most the first 100 comments of a discussion.
type CommentConnection struct {
	TotalCount int       `json:"totalCount"`
	PageInfo   PageInfo  `json:"pageInfo"`
	Nodes      []Comment `json:"nodes"`
}

// DiscussionDetail is a fully hydrated discussion tree.
type DiscussionDetail struct {
	ID         string            `json:"id"`
	Number     int               `json:"number"`
	URL        string            `json:"url"`
	Title      string            `json:"title"`
	Author     *Actor            `json:"author"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Category   string            `json:"category,omitempty"`
	Labels     []string          `json:"labels,omitempty"`
	IsAnswered bool              `json:"isAnswered"`
	Locked     bool              `json:"locked"`
	BodyText   string            `json:"bodyText"`
	Comments   CommentConnection `json:"comments"`
}

// AuthorLogin returns the login of a possibly missing actor.
func AuthorLogin(a *Actor) string {
	if a == nil {
		return ""
	}
	return a.Login
}
