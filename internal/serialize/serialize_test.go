package serialize

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/wham/github-discussions/internal/github"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func sample() *github.DiscussionDetail {
	return &github.DiscussionDetail{
		Number:    42,
		URL:       "https://github.com/o/r/discussions/42",
		Title:     `Why "this" & <that>?`,
		Author:    &github.Actor{Login: "alice"},
		CreatedAt: ts("2024-01-01T10:00:00Z"),
		BodyText:  "  first line\n\n  second\tline  ",
		Comments: github.CommentConnection{
			TotalCount: 2,
			Nodes: []github.Comment{
				{
					ID:        "DC_1",
					Author:    &github.Actor{Login: "bob"},
					CreatedAt: ts("2024-01-02T10:00:00Z"),
					BodyText:  "a comment",
					Replies: github.ReplyConnection{
						TotalCount: 1,
						Nodes: []github.Reply{
							{
								ID:              "DR_1",
								CreatedAt:       ts("2024-01-03T10:00:00Z"),
								BodyText:        "hidden",
								IsMinimized:     true,
								MinimizedReason: "OFF_TOPIC",
							},
						},
					},
				},
			},
		},
	}
}

func TestDiscussion(t *testing.T) {
	want := strings.Join([]string{
		`<discussion url="https://github.com/o/r/discussions/42" number="42" title="Why &quot;this&quot; &amp; &lt;that&gt;?">`,
		`<post author="alice" createdAt="2024-01-01T10:00:00Z">`,
		`<body><![CDATA[first line second line]]></body>`,
		`</post>`,
		`<comments totalCount="2">`,
		`<comment id="DC_1" author="bob" createdAt="2024-01-02T10:00:00Z">`,
		`<body><![CDATA[a comment]]></body>`,
		`<replies totalCount="1">`,
		`<reply id="DR_1" author="N/A" createdAt="2024-01-03T10:00:00Z" isMinimized="true" minimizedReason="OFF_TOPIC">`,
		`<body><![CDATA[hidden]]></body>`,
		`</reply>`,
		`</replies>`,
		`</comment>`,
		`</comments>`,
		`</discussion>`,
	}, "\n")

	got := Discussion(sample())
	if got != want {
		t.Errorf("Discussion() mismatch\n got:\n%s\nwant:\n%s", got, want)
	}
}

func TestDiscussionIsDeterministic(t *testing.T) {
	d := sample()
	if Discussion(d) != Discussion(d) {
		t.Error("Expected identical output for identical input")
	}
}

func TestDiscussionMissingValues(t *testing.T) {
	d := &github.DiscussionDetail{Number: 1, Title: "t", URL: "u"}
	got := Discussion(d)
	if !strings.Contains(got, `<post author="N/A" createdAt="N/A">`) {
		t.Errorf("Expected N/A placeholders, got:\n%s", got)
	}
	if !strings.Contains(got, `<body><![CDATA[]]></body>`) {
		t.Errorf("Expected empty body section, got:\n%s", got)
	}
	if !strings.Contains(got, `<comments totalCount="0">`+"\n</comments>") {
		t.Errorf("Expected empty comments element, got:\n%s", got)
	}
}

func TestMinimizedReasonOnlyWhenMinimized(t *testing.T) {
	d := sample()
	d.Comments.Nodes[0].Replies.Nodes[0].IsMinimized = false
	got := Discussion(d)
	if !strings.Contains(got, `isMinimized="false" minimizedReason="">`) {
		t.Errorf("Expected empty reason for visible reply, got:\n%s", got)
	}
}

type parsedBody struct {
	Text string `xml:",chardata"`
}

type parsedReply struct {
	ID          string     `xml:"id,attr"`
	IsMinimized string     `xml:"isMinimized,attr"`
	Body        parsedBody `xml:"body"`
}

type parsedComment struct {
	Author  string     `xml:"author,attr"`
	Body    parsedBody `xml:"body"`
	Replies struct {
		TotalCount int           `xml:"totalCount,attr"`
		Reply      []parsedReply `xml:"reply"`
	} `xml:"replies"`
}

type parsedDiscussion struct {
	XMLName xml.Name `xml:"discussion"`
	Title   string   `xml:"title,attr"`
	Number  int      `xml:"number,attr"`
	Post    struct {
		Author string     `xml:"author,attr"`
		Body   parsedBody `xml:"body"`
	} `xml:"post"`
	Comments struct {
		TotalCount int             `xml:"totalCount,attr"`
		Comment    []parsedComment `xml:"comment"`
	} `xml:"comments"`
}

func TestDiscussionParsesAsXML(t *testing.T) {
	d := sample()
	d.BodyText = "code: if a[b[0]]> 1 { x }"
	d.Comments.Nodes[0].Author = &github.Actor{Login: "o'neil"}

	var parsed parsedDiscussion
	if err := xml.Unmarshal([]byte(Discussion(d)), &parsed); err != nil {
		t.Fatalf("output is not well formed: %v", err)
	}

	if parsed.Title != d.Title {
		t.Errorf("Expected title %q, got %q", d.Title, parsed.Title)
	}
	if parsed.Number != 42 {
		t.Errorf("Expected number 42, got %d", parsed.Number)
	}
	if parsed.Post.Body.Text != "code: if a[b[0]]> 1 { x }" {
		t.Errorf("CDATA terminator not preserved, got %q", parsed.Post.Body.Text)
	}
	if len(parsed.Comments.Comment) != 1 {
		t.Fatalf("Expected 1 comment, got %d", len(parsed.Comments.Comment))
	}
	c := parsed.Comments.Comment[0]
	if c.Author != "o'neil" {
		t.Errorf("Expected author o'neil, got %q", c.Author)
	}
	if len(c.Replies.Reply) != 1 || c.Replies.Reply[0].IsMinimized != "true" {
		t.Errorf("unexpected replies: %+v", c.Replies)
	}
}

func TestAggregate(t *testing.T) {
	entries := []Entry{
		{CreatedAt: ts("2024-03-01T00:00:00Z"), Text: "c"},
		{CreatedAt: ts("2024-01-01T00:00:00Z"), Text: "a"},
		{CreatedAt: ts("2024-02-01T00:00:00Z"), Text: "b"},
	}
	got := Aggregate(entries)
	want := "a" + Separator + "b" + Separator + "c"
	if got != want {
		t.Errorf("Aggregate() = %q, want %q", got, want)
	}
	if strings.HasSuffix(got, Separator) {
		t.Error("Aggregate must not end with a separator")
	}
	if entries[0].Text != "c" {
		t.Error("Aggregate must not reorder its input")
	}
}

func TestAggregateEdgeCases(t *testing.T) {
	if got := Aggregate(nil); got != "" {
		t.Errorf("Expected empty aggregate, got %q", got)
	}
	if got := Aggregate([]Entry{{Text: "only"}}); got != "only" {
		t.Errorf("Expected single entry unchanged, got %q", got)
	}

	same := ts("2024-01-01T00:00:00Z")
	got := Aggregate([]Entry{{CreatedAt: same, Text: "x"}, {CreatedAt: same, Text: "y"}})
	if got != "x"+Separator+"y" {
		t.Errorf("Expected stable order for equal timestamps, got %q", got)
	}
}
