package progress

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// formatNumber formats numbers with comma separators
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := strconv.Itoa(n)
	if n < 1000 {
		return str
	}

	var result strings.Builder
	for i, digit := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	return result.String()
}

// formatTimeRemaining formats the time until resetTime, relative to now
func formatTimeRemaining(resetTime, now time.Time) string {
	if resetTime.IsZero() {
		return "?"
	}

	remaining := resetTime.Sub(now)
	if remaining <= 0 {
		return "now"
	}

	hours := int(remaining.Hours())
	minutes := int(remaining.Minutes()) % 60
	seconds := int(remaining.Seconds()) % 60

	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// visibleLength calculates the display width of s, skipping ANSI escape
// sequences and counting emoji and CJK as two columns.
func visibleLength(s string) int {
	length := 0
	runes := []rune(s)

	for i := 0; i < len(runes); {
		switch {
		case runes[i] == '\033' && i+1 < len(runes) && runes[i+1] == '[':
			// CSI sequence: ESC [ ... terminated by a letter
			i += 2
			for i < len(runes) && !isLetter(runes[i]) {
				i++
			}
			i++
		case runes[i] == '\033':
			i += 2
		default:
			if isWideChar(runes[i]) {
				length += 2
			} else {
				length++
			}
			i++
		}
	}
	return length
}

// truncate shortens s to at most width visible columns, keeping escape
// sequences intact and appending "..." when something was cut.
func truncate(s string, width int) string {
	if visibleLength(s) <= width {
		return s
	}

	var b strings.Builder
	current := 0
	inEscape := false
	for _, r := range s {
		if r == '\033' {
			inEscape = true
		}
		if !inEscape {
			w := 1
			if isWideChar(r) {
				w = 2
			}
			if current+w > width-3 {
				break
			}
			current += w
		}
		b.WriteRune(r)
		if inEscape && isLetter(r) {
			inEscape = false
		}
	}
	return b.String() + "\033[0m..."
}

func isLetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

// isWideChar returns true if the rune is a wide character (emoji or CJK)
func isWideChar(r rune) bool {
	return (r >= 0x1F300 && r <= 0x1F9FF) ||
		(r >= 0x2600 && r <= 0x26FF) ||
		(r >= 0x2700 && r <= 0x27BF) ||
		(r >= 0xFE00 && r <= 0xFE0F) ||
		(r >= 0x1F000 && r <= 0x1F02F) ||
		(r >= 0x1F0A0 && r <= 0x1F0FF) ||
		(r >= 0x1F100 && r <= 0x1F64F) ||
		(r >= 0x1F680 && r <= 0x1F6FF) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0x3040 && r <= 0x309F) ||
		(r >= 0x30A0 && r <= 0x30FF) ||
		(r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}
