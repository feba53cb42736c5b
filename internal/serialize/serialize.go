// Package serialize renders discussion trees as tagged text for language models.
package serialize

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wham/github-discussions/internal/github"
)

// Separator sits between consecutive discussions in an aggregate.
const Separator = "\n\n---\n\n"

const missing = "N/A"

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// Discussion renders d as one line-oriented tagged document. The output
// depends only on d.
func Discussion(d *github.DiscussionDetail) string {
	var lines []string

	lines = append(lines,
		"<discussion"+attrs("url", d.URL, "number", strconv.Itoa(d.Number), "title", d.Title)+">",
		"<post"+attrs("author", github.AuthorLogin(d.Author), "createdAt", timestamp(d.CreatedAt))+">",
		body(d.BodyText),
		"</post>",
		"<comments"+attrs("totalCount", strconv.Itoa(d.Comments.TotalCount))+">",
	)

	for _, c := range d.Comments.Nodes {
		lines = append(lines,
			"<comment"+attrs("id", c.ID, "author", github.AuthorLogin(c.Author), "createdAt", timestamp(c.CreatedAt))+">",
			body(c.BodyText),
			"<replies"+attrs("totalCount", strconv.Itoa(c.Replies.TotalCount))+">",
		)
		for _, r := range c.Replies.Nodes {
			reason := ""
			if r.IsMinimized {
				reason = r.MinimizedReason
			}
			lines = append(lines,
				"<reply"+attrs(
					"id", r.ID,
					"author", github.AuthorLogin(r.Author),
					"createdAt", timestamp(r.CreatedAt),
					"isMinimized", strconv.FormatBool(r.IsMinimized),
				)+` minimizedReason="`+attrEscaper.Replace(reason)+`">`,
				body(r.BodyText),
				"</reply>",
			)
		}
		lines = append(lines, "</replies>", "</comment>")
	}

	lines = append(lines, "</comments>", "</discussion>")
	return strings.Join(lines, "\n")
}

// attrs renders key/value pairs as escaped attributes. Empty values become N/A.
func attrs(kv ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		v := kv[i+1]
		if v == "" {
			v = missing
		}
		b.WriteString(" ")
		b.WriteString(kv[i])
		b.WriteString(`="`)
		b.WriteString(attrEscaper.Replace(v))
		b.WriteString(`"`)
	}
	return b.String()
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// body wraps normalized text in a CDATA section. A "]]>" inside the text is
// split across two sections so a parser reads the original characters back.
func body(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = strings.ReplaceAll(text, "]]>", "]]]]><![CDATA[>")
	return "<body><![CDATA[" + text + "]]></body>"
}

// Entry is one serialized discussion waiting for aggregation.
type Entry struct {
	CreatedAt time.Time
	Text      string
}

// Aggregate orders entries by creation time, oldest first, and joins them
// with Separator. Entries with equal timestamps keep their input order.
func Aggregate(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	texts := make([]string, len(sorted))
	for i, e := range sorted {
		texts[i] = e.Text
	}
	return strings.Join(texts, Separator)
}
