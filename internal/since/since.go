// Package since turns "since" expressions into search dates.
package since

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the date format understood by the search API.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidDate is returned for strings shaped like a date that do not name a real day.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidFormat is returned for expressions that are neither a date nor a relative offset.
	ErrInvalidFormat = errors.New("invalid since format")
)

var (
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	relativePattern = regexp.MustCompile(`^(\d+)([dhwmy])$`)
)

// Units for relative offsets. Months and years are fixed-length approximations.
var units = map[string]time.Duration{
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
	"m": 30 * 24 * time.Hour,
	"y": 365 * 24 * time.Hour,
}

// Parse converts text into a YYYY-MM-DD date.
//
// Absolute dates are validated and returned unchanged. Relative offsets like
// "7d", "12h", "2w", "3m" or "1y" are subtracted from now in UTC.
func Parse(text string, now time.Time) (string, error) {
	if datePattern.MatchString(text) {
		if err := ValidateDate(text); err != nil {
			return "", err
		}
		return text, nil
	}

	m := relativePattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return "", fmt.Errorf("%w: %q (use YYYY-MM-DD or a number followed by h, d, w, m or y)", ErrInvalidFormat, text)
	}

	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, text)
	}
	unit := units[m[2]]
	if value > int64(math.MaxInt64/unit) {
		return "", fmt.Errorf("%w: %q is too far in the past", ErrInvalidFormat, text)
	}

	return now.UTC().Add(-time.Duration(value) * unit).Format(DateLayout), nil
}

// ValidateDate checks that s is a YYYY-MM-DD string naming a real calendar day.
func ValidateDate(s string) error {
	if !datePattern.MatchString(s) {
		return fmt.Errorf("%w: %q (expected YYYY-MM-DD)", ErrInvalidDate, s)
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return nil
}
