// Package progress reports the state of a fetch run, either as a live
// terminal UI or as plain log lines.
package progress

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/processor"
)

// Reporter receives progress events from a run.
type Reporter interface {
	Start()
	Stop()
	Log(format string, args ...any)
	StartWalk(name string)
	// UpdateWalk reports how many results of a search were handed out so
	// far. total is the match count the API reported.
	UpdateWalk(name string, seen, total int)
	CompleteWalk(name string, count int)
	FailWalk(name string, message string)
	UpdateStats(stats processor.Stats)
	UpdateAPIStatus(status github.Status)
}

// Plain reports through slog. It is used when stderr is not a terminal.
type Plain struct {
	mu        sync.Mutex
	lastStats processor.Stats
}

// NewPlain returns a reporter that writes log records only.
func NewPlain() *Plain {
	return &Plain{}
}

func (p *Plain) Start() {}
func (p *Plain) Stop()  {}

func (p *Plain) Log(format string, args ...any) {
	slog.Info(fmt.Sprintf(format, args...))
}

func (p *Plain) StartWalk(name string) {
	slog.Info("Searching discussions", "search", name)
}

func (p *Plain) UpdateWalk(name string, seen, total int) {
	slog.Debug("Search progress", "search", name, "seen", seen, "total", total)
}

func (p *Plain) CompleteWalk(name string, count int) {
	slog.Info("Search completed", "search", name, "discussions", count)
}

func (p *Plain) FailWalk(name string, message string) {
	slog.Error("Search failed", "search", name, "error", message)
}

// UpdateStats logs a line every 25 discovered discussions.
func (p *Plain) UpdateStats(stats processor.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if stats.Discovered/25 == p.lastStats.Discovered/25 {
		p.lastStats = stats
		return
	}
	p.lastStats = stats
	slog.Info("Progress",
		"discovered", stats.Discovered,
		"fetched", stats.Fetched,
		"written", stats.Written,
		"serialized", stats.Serialized,
		"resumed", stats.Resumed,
		"failed", stats.Failed)
}

func (p *Plain) UpdateAPIStatus(status github.Status) {}
