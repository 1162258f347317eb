package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/fastygo/taskpulse/domain"
)

var (
	summaryHeader  = []string{"user_id", "month", "total", "done", "done_on_time", "done_late"}
	priorityHeader = []string{"priority", "total", "done", "done_on_time", "done_late"}
)

// WriteCSV renders result as two sections: the aggregate row under
// summaryHeader, a single empty line, then one row per priority in
// declaration order under priorityHeader.
func WriteCSV(w io.Writer, result *domain.KpiResult) error {
	if result == nil {
		return domain.ErrInvalidPayload
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	summary := append(
		[]string{strconv.FormatInt(result.UserID, 10), result.Month},
		counterFields(result.KpiCounters)...,
	)
	if err := cw.Write(summary); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	if err := cw.Write(priorityHeader); err != nil {
		return err
	}
	for _, row := range result.ByPriority {
		if err := cw.Write(append([]string{row.Priority.String()}, counterFields(row.KpiCounters)...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func counterFields(c domain.KpiCounters) []string {
	return []string{
		strconv.Itoa(c.Total),
		strconv.Itoa(c.Done),
		strconv.Itoa(c.DoneOnTime),
		strconv.Itoa(c.DoneLate),
	}
}
