package progress

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/processor"
)

// UI implements Reporter with a Bubble Tea program drawn on stderr.
type UI struct {
	program *tea.Program
	done    chan struct{}
}

// NewUI creates the terminal UI. interrupt is called when the user presses
// Ctrl+C, since the UI owns the terminal while it runs.
func NewUI(title string, interrupt func()) *UI {
	m := newModel(title, interrupt)
	return &UI{
		program: tea.NewProgram(m, tea.WithAltScreen(), tea.WithOutput(os.Stderr)),
		done:    make(chan struct{}),
	}
}

// Program exposes the underlying program so log records can be routed into it.
func (p *UI) Program() *tea.Program {
	return p.program
}

// Start runs the program in a goroutine.
func (p *UI) Start() {
	go func() {
		defer close(p.done)
		if _, err := p.program.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error running progress UI: %v\n", err)
		}
	}()
}

// Stop quits the program and waits for the terminal to be restored.
func (p *UI) Stop() {
	p.program.Quit()
	<-p.done
}

func (p *UI) Log(format string, args ...any) {
	p.program.Send(logMsg(fmt.Sprintf(format, args...)))
}

func (p *UI) StartWalk(name string) {
	p.program.Send(walkStartMsg(name))
}

func (p *UI) UpdateWalk(name string, seen, total int) {
	p.program.Send(walkUpdateMsg{name: name, seen: seen, total: total})
}

func (p *UI) CompleteWalk(name string, count int) {
	p.program.Send(walkCompleteMsg{name: name, count: count})
}

func (p *UI) FailWalk(name string, message string) {
	p.program.Send(walkFailedMsg{name: name, message: message})
}

func (p *UI) UpdateStats(stats processor.Stats) {
	p.program.Send(statsMsg(stats))
}

func (p *UI) UpdateAPIStatus(status github.Status) {
	p.program.Send(apiStatusMsg(status))
}

// Message types for Bubble Tea updates
type (
	tickMsg       time.Time
	logMsg        string
	walkStartMsg  string
	walkUpdateMsg struct {
		name  string
		seen  int
		total int
	}
	walkCompleteMsg struct {
		name  string
		count int
	}
	walkFailedMsg struct {
		name    string
		message string
	}
	statsMsg     processor.Stats
	apiStatusMsg github.Status
)

// walkState is one search shown in the UI
type walkState struct {
	name      string
	active    bool
	completed bool
	failed    bool
	seen      int
	total     int
}

type logEntry struct {
	time    time.Time
	message string
}

const (
	maxVisibleWalks = 6
	maxLogLines     = 5
)

type model struct {
	title        string
	interrupt    func()
	walks        []walkState
	spinner      spinner.Model
	logs         []logEntry
	stats        processor.Stats
	api          github.Status
	width        int
	height       int
	borderColors []lipgloss.AdaptiveColor
	colorIndex   int
	now          func() time.Time
}

func newModel(title string, interrupt func()) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	// purple to cyan, rotated once per second
	gradientColors := []lipgloss.AdaptiveColor{
		{Light: "#874BFD", Dark: "#7D56F4"},
		{Light: "#7D56F4", Dark: "#6B4FD8"},
		{Light: "#5B4FE0", Dark: "#5948C8"},
		{Light: "#4F7BD8", Dark: "#4B6FD0"},
		{Light: "#48A8D8", Dark: "#45A0D0"},
		{Light: "#48D8D0", Dark: "#45D0C8"},
	}

	return model{
		title:        title,
		interrupt:    interrupt,
		spinner:      s,
		logs:         make([]logEntry, 0, maxLogLines),
		api:          github.Status{RateLimit: github.RateLimit{Limit: -1, Remaining: -1, Used: -1}},
		width:        80,
		height:       24,
		borderColors: gradientColors,
		now:          time.Now,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.addLog("❌ Interrupted, stopping...")
			if m.interrupt != nil {
				m.interrupt()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.colorIndex = (m.colorIndex + 1) % len(m.borderColors)
		return m, tickCmd()

	case walkStartMsg:
		for i := range m.walks {
			m.walks[i].active = false
		}
		if i := m.findWalk(string(msg)); i >= 0 {
			m.walks[i].active = true
		} else {
			m.walks = append(m.walks, walkState{name: string(msg), active: true, total: -1})
		}
		return m, nil

	case walkUpdateMsg:
		if i := m.findWalk(msg.name); i >= 0 {
			m.walks[i].seen = msg.seen
			m.walks[i].total = msg.total
		}
		return m, nil

	case walkCompleteMsg:
		if i := m.findWalk(msg.name); i >= 0 {
			m.walks[i].active = false
			m.walks[i].completed = true
			m.walks[i].seen = msg.count
		}
		if msg.count >= 1000 {
			m.addLog(fmt.Sprintf("✨ %s completed (%s discussions)", msg.name, formatNumber(msg.count)))
		}
		return m, nil

	case walkFailedMsg:
		if i := m.findWalk(msg.name); i >= 0 {
			m.walks[i].active = false
			m.walks[i].failed = true
		}
		m.addLog(fmt.Sprintf("❌ %s failed: %s", msg.name, msg.message))
		return m, nil

	case statsMsg:
		m.stats = processor.Stats(msg)
		return m, nil

	case apiStatusMsg:
		m.api = github.Status(msg)
		return m, nil

	case logMsg:
		m.addLog(string(msg))
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) findWalk(name string) int {
	for i, w := range m.walks {
		if w.name == name {
			return i
		}
	}
	return -1
}

func (m *model) addLog(message string) {
	m.logs = append(m.logs, logEntry{time: m.now(), message: message})
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[1:]
	}
}

func (m model) View() string {
	borderColor := m.borderColors[m.colorIndex]
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	completeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))

	var lines []string
	lines = append(lines, "")

	start := 0
	if len(m.walks) > maxVisibleWalks {
		start = len(m.walks) - maxVisibleWalks
		lines = append(lines, dimStyle.Render(fmt.Sprintf("   ... %d earlier searches", start)))
	}
	for _, w := range m.walks[start:] {
		lines = append(lines, formatWalkLine(w, m.spinner.View(), dimStyle, activeStyle, completeStyle, errorStyle))
	}
	if len(m.walks) == 0 {
		lines = append(lines, activeStyle.Render(m.spinner.View()+" Starting..."))
	}

	lines = append(lines, "")
	lines = append(lines, formatStatsLines(m.stats, headerStyle)...)
	lines = append(lines, "")
	lines = append(lines, formatAPIStatusLine(m.api.Counters, headerStyle))
	lines = append(lines, formatRateLimitLine(m.api.RateLimit, m.now(), headerStyle))
	lines = append(lines, "")
	lines = append(lines, headerStyle.Render("💬 Activity"))
	for i := 0; i < maxLogLines; i++ {
		if i < len(m.logs) {
			lines = append(lines, formatLogLine(m.logs[i], errorStyle))
		} else {
			lines = append(lines, "")
		}
	}

	// border (2) + padding (2)
	maxContentWidth := m.width - 4
	if maxContentWidth < 76 {
		maxContentWidth = 76
	}

	// Pad lines ourselves; lipgloss miscounts emoji widths.
	for i, line := range lines {
		line = truncate(line, maxContentWidth)
		if pad := maxContentWidth - visibleLength(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		lines[i] = line
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Align(lipgloss.Left).
		Render(strings.Join(lines, "\n"))

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(borderColor)
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	boxLines := strings.Split(box, "\n")
	if len(boxLines) > 0 {
		// "╭─ " + title + " " + dashes + "╮"
		dashes := lipgloss.Width(boxLines[0]) - 3 - visibleLength(m.title) - 1 - 1
		if dashes < 0 {
			dashes = 0
		}
		boxLines[0] = borderStyle.Render("╭─ ") +
			titleStyle.Render(m.title) +
			borderStyle.Render(" "+strings.Repeat("─", dashes)+"╮")
		box = strings.Join(boxLines, "\n")
	}

	return box + "\n"
}

func formatWalkLine(w walkState, spinnerView string, dimStyle, activeStyle, completeStyle, errorStyle lipgloss.Style) string {
	count := formatNumber(w.seen)
	if w.total >= 0 {
		count += " / " + formatNumber(w.total)
	}

	switch {
	case w.failed:
		return errorStyle.Render("❌ " + w.name)
	case w.completed:
		return completeStyle.Render("✅ " + w.name + ": " + formatNumber(w.seen))
	case w.active:
		return activeStyle.Render(spinnerView + " " + w.name + ": " + count)
	default:
		return dimStyle.Render("📋 " + w.name)
	}
}

func formatStatsLines(s processor.Stats, headerStyle lipgloss.Style) []string {
	return []string{
		headerStyle.Render("📥 Discussions   ") + fmt.Sprintf("%s found   %s fetched   %s from disk   %s serialized",
			formatNumber(s.Discovered), formatNumber(s.Fetched), formatNumber(s.Loaded), formatNumber(s.Serialized)),
		headerStyle.Render("📦 Skipped       ") + fmt.Sprintf("%s resumed   %s duplicates   %s failed",
			formatNumber(s.Resumed), formatNumber(s.Duplicates), formatNumber(s.Failed)),
	}
}

func formatAPIStatusLine(c github.StatusCounters, headerStyle lipgloss.Style) string {
	// 🟡 instead of the warning sign, whose variation selector breaks width math
	text := fmt.Sprintf("✅ %s   🟡 %s   ❌ %s ",
		formatNumber(c.Success2XX), formatNumber(c.Error4XX), formatNumber(c.Error5XX))
	return headerStyle.Render("📊 API Status    ") + text
}

func formatRateLimitLine(rl github.RateLimit, now time.Time, headerStyle lipgloss.Style) string {
	text := "? / ? used, resets ?"
	if rl.Limit > 0 {
		text = fmt.Sprintf("%s / %s used, resets in %s",
			formatNumber(rl.Used), formatNumber(rl.Limit), formatTimeRemaining(rl.Reset, now))
	}
	return headerStyle.Render("🚀 Rate Limit    ") + text
}

func formatLogLine(entry logEntry, errorStyle lipgloss.Style) string {
	timestamp := entry.time.Format("15:04:05")
	if strings.Contains(entry.message, "❌") || strings.Contains(entry.message, "Error") {
		return "     " + timestamp + " " + errorStyle.Render(entry.message)
	}
	return "     " + timestamp + " " + entry.message
}
