package progress

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/processor"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4200, "-4,200"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.in); got != tt.want {
			t.Errorf("formatNumber(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimeRemaining(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		reset time.Time
		want  string
	}{
		{time.Time{}, "?"},
		{now.Add(-time.Minute), "now"},
		{now.Add(45 * time.Second), "45s"},
		{now.Add(5 * time.Minute), "5m"},
		{now.Add(2 * time.Hour), "2h"},
		{now.Add(2*time.Hour + 30*time.Minute), "2h 30m"},
	}
	for _, tt := range tests {
		if got := formatTimeRemaining(tt.reset, now); got != tt.want {
			t.Errorf("formatTimeRemaining(%v) = %q, want %q", tt.reset.Sub(now), got, tt.want)
		}
	}
}

func TestVisibleLength(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"abc", 3},
		{"\033[1mabc\033[0m", 3},
		{"✅ ok", 5},
		{"📥 x", 4},
	}
	for _, tt := range tests {
		if got := visibleLength(tt.in); got != tt.want {
			t.Errorf("visibleLength(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("Expected untouched string, got %q", got)
	}
	got := truncate(strings.Repeat("x", 20), 10)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Expected ellipsis, got %q", got)
	}
	if visibleLength(got) > 10 {
		t.Errorf("Expected at most 10 columns, got %d", visibleLength(got))
	}
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

func TestModelTracksWalks(t *testing.T) {
	m := newModel("title", nil)
	m = update(t, m, walkStartMsg("repo:o/r"))
	m = update(t, m, walkUpdateMsg{name: "repo:o/r", seen: 30, total: 120})

	if len(m.walks) != 1 || !m.walks[0].active || m.walks[0].seen != 30 || m.walks[0].total != 120 {
		t.Fatalf("unexpected walk state: %+v", m.walks)
	}

	m = update(t, m, walkStartMsg("involves:alice"))
	if m.walks[0].active {
		t.Error("Expected previous walk to be inactive")
	}

	m = update(t, m, walkCompleteMsg{name: "repo:o/r", count: 120})
	m = update(t, m, walkFailedMsg{name: "involves:alice", message: "boom"})
	if !m.walks[0].completed || !m.walks[1].failed {
		t.Errorf("unexpected walk state: %+v", m.walks)
	}
	if len(m.logs) != 1 || !strings.Contains(m.logs[0].message, "boom") {
		t.Errorf("Expected failure in activity log, got %+v", m.logs)
	}
}

func TestModelKeepsLastLogLines(t *testing.T) {
	m := newModel("title", nil)
	for i := 0; i < maxLogLines+3; i++ {
		m = update(t, m, logMsg(strings.Repeat("x", i+1)))
	}
	if len(m.logs) != maxLogLines {
		t.Fatalf("Expected %d log lines, got %d", maxLogLines, len(m.logs))
	}
	if m.logs[maxLogLines-1].message != strings.Repeat("x", maxLogLines+3) {
		t.Errorf("Expected newest log last, got %q", m.logs[maxLogLines-1].message)
	}
}

func TestModelCtrlCInterrupts(t *testing.T) {
	interrupted := false
	m := newModel("title", func() { interrupted = true })
	update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !interrupted {
		t.Error("Expected interrupt callback")
	}
}

func TestModelView(t *testing.T) {
	m := newModel("GitHub 💬 discussions", nil)
	m.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	m = update(t, m, walkStartMsg("repo:o/r"))
	m = update(t, m, statsMsg(processor.Stats{Discovered: 1500, Fetched: 12}))
	m = update(t, m, apiStatusMsg(github.Status{
		Counters:  github.StatusCounters{Success2XX: 7},
		RateLimit: github.RateLimit{Limit: 5000, Used: 10, Remaining: 4990, Reset: m.now().Add(time.Hour)},
	}))

	view := m.View()
	for _, want := range []string{"GitHub 💬 discussions", "repo:o/r", "1,500 found", "12 fetched", "10 / 5,000 used, resets in 1h"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q\n%s", want, view)
		}
	}
}

func TestModelViewCollapsesOldWalks(t *testing.T) {
	m := newModel("title", nil)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		m = update(t, m, walkStartMsg(name))
	}
	view := m.View()
	if !strings.Contains(view, "2 earlier searches") {
		t.Errorf("Expected collapsed walks line\n%s", view)
	}
}

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

func TestBubbleTeaHandler(t *testing.T) {
	rec := &recordingSender{}
	h := &BubbleTeaHandler{program: rec, level: slog.LevelInfo}
	logger := slog.New(h).With("repo", "o/r")

	logger.Debug("hidden")
	logger.Info("Fetched", "number", 7)
	logger.Error("Failed", "number", 8)

	if len(rec.msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(rec.msgs))
	}
	if got := string(rec.msgs[0].(logMsg)); got != "Fetched repo=o/r, number=7" {
		t.Errorf("unexpected message %q", got)
	}
	if got := string(rec.msgs[1].(logMsg)); !strings.HasPrefix(got, "❌ Failed") {
		t.Errorf("Expected error marker, got %q", got)
	}
	if !h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("Expected warn to be enabled")
	}
}
