package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wham/github-discussions/internal/pipeline"
)

// printSummary renders the searches of a run as a table followed by totals.
func printSummary(w io.Writer, s *pipeline.Summary) {
	var (
		headerColor  = lipgloss.Color("#F780FF")
		searchColor  = lipgloss.Color("#BD93F9")
		numberColor  = lipgloss.Color("#FF79C6")
		failColor    = lipgloss.Color("#FF5555")
		okColor      = lipgloss.Color("#50FA7B")
		borderColor  = lipgloss.Color("#6272A4")
		summaryColor = lipgloss.Color("#8BE9FD")
	)

	const (
		searchWidth = 30
		countWidth  = 13
		statusWidth = 40
	)

	headerStyle := lipgloss.NewStyle().
		Foreground(headerColor).
		Bold(true).
		Padding(0, 1)
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	if len(s.Walks) > 0 {
		headers := []string{
			headerStyle.Width(searchWidth).Render("SEARCH"),
			headerStyle.Width(countWidth).Render("DISCUSSIONS"),
			headerStyle.Width(statusWidth).Render("STATUS"),
		}
		fmt.Fprintln(w, strings.Join(headers, borderStyle.Render("│")))

		separatorParts := []string{
			strings.Repeat("─", searchWidth),
			strings.Repeat("─", countWidth),
			strings.Repeat("─", statusWidth),
		}
		fmt.Fprintln(w, borderStyle.Render(strings.Join(separatorParts, "┼")))

		searchStyle := lipgloss.NewStyle().
			Foreground(searchColor).
			Padding(0, 1).
			Width(searchWidth).
			MaxWidth(searchWidth)
		countStyle := lipgloss.NewStyle().
			Foreground(numberColor).
			Padding(0, 1).
			Width(countWidth).
			Align(lipgloss.Right)
		statusStyle := lipgloss.NewStyle().
			Padding(0, 1).
			Width(statusWidth).
			MaxWidth(statusWidth)

		for _, walk := range s.Walks {
			status := statusStyle.Foreground(okColor).Render("done")
			if walk.Err != nil {
				status = statusStyle.Foreground(failColor).Render("failed: " + walk.Err.Error())
			}
			cells := []string{
				searchStyle.Render(walk.Name),
				countStyle.Render(fmt.Sprintf("%d", walk.Count)),
				status,
			}
			fmt.Fprintln(w, strings.Join(cells, borderStyle.Render("│")))
		}
		fmt.Fprintln(w)
	}

	summaryStyle := lipgloss.NewStyle().
		Foreground(summaryColor).
		Italic(true)

	st := s.Stats
	fmt.Fprintln(w, summaryStyle.Render(fmt.Sprintf(
		"Total: %d unique discussions, %d fetched, %d written, %d from disk, %d serialized, %d resumed, %d duplicates, %d failed",
		s.Processed, st.Fetched, st.Written, st.Loaded, st.Serialized, st.Resumed, st.Duplicates, st.Failed)))
	fmt.Fprintln(w, summaryStyle.Render("Run directory: "+s.RunDir))
	if s.AggregatePath != "" {
		fmt.Fprintln(w, summaryStyle.Render("LLM-ready file: "+s.AggregatePath))
	}
}
