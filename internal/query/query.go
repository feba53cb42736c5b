// Package query builds GitHub search strings for discussions.
package query

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/since"
)

const (
	DefaultPageSize = 30
	MaxPageSize     = 100
)

// ErrInvalidValue is returned for an unknown value of a tri-state option.
var ErrInvalidValue = errors.New("invalid value")

// Filter is a structured discussion search. Nil tri-state fields and empty
// strings are left out of the query.
type Filter struct {
	Text      string
	InTitle   bool
	InBody    bool
	InComment bool

	Author   string
	Involves string
	Category string
	Label    string

	Open     *bool
	Answered *bool
	Locked   *bool

	CreatedAfter  string
	CreatedBefore string
	UpdatedAfter  string
	UpdatedBefore string

	PageSize int
	Cursor   string
}

// PageSize returns the page size to request: the default when unset and
// never more than the API allows.
func PageSize(f Filter) int {
	switch {
	case f.PageSize <= 0:
		return DefaultPageSize
	case f.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return f.PageSize
	}
}

// Build renders f as a search string scoped to repo. Qualifiers always come
// out in the same order so equal filters produce equal strings.
func Build(repo github.Repository, f Filter) (string, error) {
	parts := []string{"repo:" + repo.String(), "is:discussion"}

	if f.Text != "" {
		text := quote(f.Text)
		if in := locations(f); in != "" {
			text += " in:" + in
		}
		parts = append(parts, text)
	}

	if f.Author != "" {
		parts = append(parts, "author:"+f.Author)
	}
	if f.Involves != "" {
		parts = append(parts, "involves:"+f.Involves)
	}
	if f.Category != "" {
		parts = append(parts, "category:"+quote(f.Category))
	}
	if f.Label != "" {
		parts = append(parts, "label:"+quote(f.Label))
	}

	if f.Open != nil {
		parts = append(parts, choose(*f.Open, "is:open", "is:closed"))
	}
	if f.Answered != nil {
		parts = append(parts, choose(*f.Answered, "is:answered", "is:unanswered"))
	}
	if f.Locked != nil {
		parts = append(parts, choose(*f.Locked, "is:locked", "is:unlocked"))
	}

	created, err := dateRange("created", f.CreatedAfter, f.CreatedBefore)
	if err != nil {
		return "", err
	}
	if created != "" {
		parts = append(parts, created)
	}

	updated, err := dateRange("updated", f.UpdatedAfter, f.UpdatedBefore)
	if err != nil {
		return "", err
	}
	if updated != "" {
		parts = append(parts, updated)
	}

	return strings.Join(parts, " "), nil
}

func locations(f Filter) string {
	var in []string
	if f.InTitle {
		in = append(in, "title")
	}
	if f.InBody {
		in = append(in, "body")
	}
	if f.InComment {
		in = append(in, "comments")
	}
	return strings.Join(in, ",")
}

func dateRange(field, after, before string) (string, error) {
	for _, d := range []string{after, before} {
		if d == "" {
			continue
		}
		if err := since.ValidateDate(d); err != nil {
			return "", fmt.Errorf("%s date: %w", field, err)
		}
	}

	switch {
	case after != "" && before != "":
		return fmt.Sprintf("%s:%s..%s", field, after, before), nil
	case after != "":
		return fmt.Sprintf("%s:>=%s", field, after), nil
	case before != "":
		return fmt.Sprintf("%s:<=%s", field, before), nil
	}
	return "", nil
}

func quote(s string) string {
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return `"` + s + `"`
	}
	return s
}

func choose(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

// ParseState maps "open" and "closed" to the Open field. Empty means any.
func ParseState(s string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "open":
		return boolPtr(true), nil
	case "closed":
		return boolPtr(false), nil
	}
	return nil, fmt.Errorf("%w for state: %q (want open or closed)", ErrInvalidValue, s)
}

// ParseYesNo maps "yes" and "no" to a tri-state field. Empty means any.
func ParseYesNo(name, s string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "yes", "true":
		return boolPtr(true), nil
	case "no", "false":
		return boolPtr(false), nil
	}
	return nil, fmt.Errorf("%w for %s: %q (want yes or no)", ErrInvalidValue, name, s)
}

func boolPtr(b bool) *bool {
	return &b
}
