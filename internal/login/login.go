package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/browser"

	"github.com/wham/github-discussions/internal/github"
)

// ErrCancelled is returned when the user leaves the login screen early.
var ErrCancelled = errors.New("login cancelled")

// Options configures Run.
type Options struct {
	// EnvPath is the .env file the token is written to.
	EnvPath string
	// ClientID is the OAuth App used when Flow is nil.
	ClientID string
	Flow     *DeviceFlow
	// Verify resolves the login of the token's user.
	Verify func(ctx context.Context, token string) (string, error)
	// Repository pre-fills the default repository prompt.
	Repository  string
	OpenBrowser func(url string) error
}

// Run drives the device flow behind a Bubble Tea screen and saves the token
// and the chosen default repository.
func Run(ctx context.Context, opts Options) error {
	if opts.Flow == nil {
		if strings.TrimSpace(opts.ClientID) == "" {
			return ErrNoClientID
		}
		opts.Flow = NewDeviceFlow(strings.TrimSpace(opts.ClientID))
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = browser.OpenURL
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel(opts.EnvPath, opts.Repository)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	go runDeviceFlow(ctx, p, opts)

	finalModel, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("UI error: %w", err)
	}

	lm, ok := finalModel.(model)
	if !ok {
		return ErrCancelled
	}
	switch lm.status {
	case statusSuccess:
		fmt.Printf("Logged in as @%s. Settings saved to %s\n", lm.username, lm.envPath)
		return nil
	case statusError:
		return errors.New(lm.errorMsg)
	default:
		return ErrCancelled
	}
}

func runDeviceFlow(ctx context.Context, p *tea.Program, opts Options) {
	code, err := opts.Flow.RequestCode(ctx)
	if err != nil {
		p.Send(errorMsg{err: err})
		return
	}

	p.Send(deviceCodeMsg{userCode: code.UserCode, verificationURI: code.VerificationURI})

	_ = opts.OpenBrowser(code.VerificationURI)

	token, err := opts.Flow.PollToken(ctx, code)
	if err != nil {
		p.Send(errorMsg{err: err})
		return
	}

	username, err := opts.Verify(ctx, token)
	if err != nil {
		p.Send(errorMsg{err: fmt.Errorf("token verification failed: %w", err)})
		return
	}

	p.Send(authenticatedMsg{username: username, token: token})
}

type status int

const (
	statusWaiting status = iota
	statusRepoInput
	statusSuccess
	statusError
)

// Login message types
type (
	tickMsg       time.Time
	errorMsg      struct{ err error }
	deviceCodeMsg struct {
		userCode        string
		verificationURI string
	}
	authenticatedMsg struct {
		username string
		token    string
	}
	repoSubmittedMsg struct{}
)

type model struct {
	spinner         spinner.Model
	textInput       textinput.Model
	userCode        string
	verificationURI string
	status          status
	errorMsg        string
	inputError      string
	username        string
	token           string
	repository      string
	envPath         string
	width           int
	borderColors    []lipgloss.AdaptiveColor
	colorIndex      int
	save            func(path string, settings ...Setting) error
}

func newModel(envPath, repository string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	ti := textinput.New()
	ti.Placeholder = "owner/repo"
	ti.CharLimit = 200
	ti.Width = 40
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	ti.SetValue(repository)

	gradientColors := []lipgloss.AdaptiveColor{
		{Light: "#874BFD", Dark: "#7D56F4"},
		{Light: "#7D56F4", Dark: "#6B4FD8"},
		{Light: "#5B4FE0", Dark: "#5948C8"},
		{Light: "#4F7BD8", Dark: "#4B6FD0"},
		{Light: "#48A8D8", Dark: "#45A0D0"},
		{Light: "#48D8D0", Dark: "#45D0C8"},
	}

	return model{
		spinner:      s,
		textInput:    ti,
		status:       statusWaiting,
		envPath:      envPath,
		width:        80,
		borderColors: gradientColors,
		save:         SaveEnv,
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
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.status == statusRepoInput {
				return m.submitRepository()
			}
		}
		if m.status == statusRepoInput {
			m.textInput, cmd = m.textInput.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.colorIndex = (m.colorIndex + 1) % len(m.borderColors)
		return m, tickCmd()

	case deviceCodeMsg:
		m.userCode = msg.userCode
		m.verificationURI = msg.verificationURI
		return m, nil

	case authenticatedMsg:
		m.status = statusRepoInput
		m.username = msg.username
		m.token = msg.token
		m.textInput.Focus()
		return m, textinput.Blink

	case repoSubmittedMsg:
		settings := []Setting{{Key: "GITHUB_TOKEN", Value: m.token}}
		if m.repository != "" {
			settings = append(settings, Setting{Key: "GITHUB_REPOSITORY", Value: m.repository})
		}
		if err := m.save(m.envPath, settings...); err != nil {
			m.status = statusError
			m.errorMsg = fmt.Sprintf("failed to save token: %v", err)
			return m, tea.Quit
		}
		m.status = statusSuccess
		return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg {
			return tea.Quit()
		})

	case errorMsg:
		m.status = statusError
		m.errorMsg = msg.err.Error()
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return tea.Quit()
		})

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// submitRepository accepts an empty value or a valid repository reference.
func (m model) submitRepository() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.textInput.Value())
	if value == "" {
		m.repository = ""
		return m, func() tea.Msg { return repoSubmittedMsg{} }
	}
	repo, err := github.ParseRepository(value)
	if err != nil {
		m.inputError = "Use owner/repo or a github.com URL"
		return m, nil
	}
	m.inputError = ""
	m.repository = repo.String()
	return m, func() tea.Msg { return repoSubmittedMsg{} }
}

func (m model) View() string {
	borderColor := m.borderColors[m.colorIndex]

	var content string
	switch m.status {
	case statusWaiting:
		content = m.renderWaitingView()
	case statusRepoInput:
		content = m.renderRepoInputView()
	case statusSuccess:
		content = m.renderSuccessView()
	case statusError:
		content = m.renderErrorView()
	}

	maxContentWidth := m.width - 4
	if maxContentWidth < 64 {
		maxContentWidth = 64
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(maxContentWidth).
		Render(content)

	title := "GitHub 💬 Login"
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(borderColor)
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	lines := strings.Split(box, "\n")
	if len(lines) > 0 {
		dashes := lipgloss.Width(lines[0]) - 3 - lipgloss.Width(title) - 2
		if dashes < 0 {
			dashes = 0
		}
		lines[0] = borderStyle.Render("╭─ ") + titleStyle.Render(title) + borderStyle.Render(" "+strings.Repeat("─", dashes)+"╮")
		box = strings.Join(lines, "\n")
	}

	return box
}

func (m model) renderWaitingView() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("  🔐 GitHub Authentication\n")
	b.WriteString("\n")

	if m.userCode == "" {
		b.WriteString("  " + m.spinner.View() + " Requesting device code...\n")
	} else {
		b.WriteString("  1. Opening browser to: " + m.verificationURI + "\n")
		b.WriteString("\n")
		b.WriteString("  2. Enter this code:\n")
		b.WriteString("\n")

		codeStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 3).
			Bold(true).
			MarginLeft(5)

		b.WriteString(codeStyle.Render(m.userCode) + "\n")
		b.WriteString("\n")
		b.WriteString("  " + m.spinner.View() + " Waiting for authorization...\n")
	}

	b.WriteString("\n")
	b.WriteString("  Press Ctrl+C to cancel\n")
	b.WriteString("\n")

	return b.String()
}

func (m model) renderRepoInputView() string {
	var b strings.Builder

	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	b.WriteString("\n")
	b.WriteString("  " + successStyle.Render(fmt.Sprintf("✅ Successfully authenticated as @%s", m.username)) + "\n")
	b.WriteString("\n")
	b.WriteString("  Default repository (optional):\n")
	b.WriteString("  " + m.textInput.View() + "\n")
	if m.inputError != "" {
		b.WriteString("  " + errorStyle.Render(m.inputError) + "\n")
	}
	b.WriteString("\n")
	b.WriteString("  Press Enter to skip, or type a repository\n")
	b.WriteString("\n")

	return b.String()
}

func (m model) renderSuccessView() string {
	var b strings.Builder

	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	b.WriteString("\n")
	b.WriteString("  " + successStyle.Render("✅ Setup complete!") + "\n")
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Logged in as: @%s\n", m.username))
	if m.repository != "" {
		b.WriteString(fmt.Sprintf("  Repository: %s\n", m.repository))
	}
	b.WriteString(fmt.Sprintf("  Saved to: %s\n", m.envPath))
	b.WriteString("\n")
	b.WriteString("  You can now run:\n")
	b.WriteString("    github-discussions fetch\n")
	b.WriteString("\n")

	return b.String()
}

func (m model) renderErrorView() string {
	var b strings.Builder

	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	b.WriteString("\n")
	b.WriteString("  " + errorStyle.Render("❌ Authentication failed") + "\n")
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Error: %s\n", m.errorMsg))
	b.WriteString("\n")
	b.WriteString("  Please try again.\n")
	b.WriteString("\n")

	return b.String()
}
