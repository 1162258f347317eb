package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/fastygo/taskpulse/domain"
)

const monthLayout = "2006-01"

var (
	ErrMonthRequired = domain.Invalid("month is required (format YYYY-MM)")
	ErrMonthInvalid  = domain.Invalid("month must be YYYY-MM with a valid month number (01-12)")
)

// MonthWindow returns the half-open interval [start, end) covering the
// calendar month in loc. December rolls over into January of the next year.
func MonthWindow(year, month int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	end := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, loc)
	return start, end
}

// ParseMonth parses a strict YYYY-MM value.
func ParseMonth(value string) (int, int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0, ErrMonthRequired
	}
	parsed, err := time.Parse(monthLayout, value)
	if err != nil {
		return 0, 0, ErrMonthInvalid
	}
	return parsed.Year(), int(parsed.Month()), nil
}

// FormatMonth renders year and month as YYYY-MM.
func FormatMonth(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
