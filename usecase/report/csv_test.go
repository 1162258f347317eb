package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/fastygo/taskpulse/domain"
)

func sampleResult() *domain.KpiResult {
	r := newResult(42, 2026, 1)
	r.KpiCounters = domain.KpiCounters{Total: 3, Done: 2, DoneOnTime: 1, DoneLate: 1}
	r.ByPriority[domain.PriorityLow].KpiCounters = domain.KpiCounters{Total: 2, Done: 1, DoneOnTime: 1}
	r.ByPriority[domain.PriorityMedium].KpiCounters = domain.KpiCounters{Total: 1, Done: 1, DoneLate: 1}
	return r
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResult()); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := strings.Join([]string{
		"user_id,month,total,done,done_on_time,done_late",
		"42,2026-01,3,2,1,1",
		"",
		"priority,total,done,done_on_time,done_late",
		"low,2,1,1,0",
		"medium,1,1,0,1",
		"high,0,0,0,0",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Fatalf("unexpected csv:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResult()); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader := csv.NewReader(&buf)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// the blank separator line is skipped by the reader
	if len(records) != 2+1+domain.PriorityCount {
		t.Fatalf("expected %d records, got %d", 3+domain.PriorityCount, len(records))
	}
	if records[1][0] != "42" || records[1][1] != "2026-01" {
		t.Fatalf("unexpected summary row %v", records[1])
	}
	result := sampleResult()
	assertCounters(t, "summary", records[1][2:], result.KpiCounters)
	for i, p := range domain.Priorities {
		if records[3+i][0] != p.String() {
			t.Fatalf("row %d: got %q want %q", i, records[3+i][0], p)
		}
		assertCounters(t, p.String(), records[3+i][1:], result.ByPriority[i].KpiCounters)
	}
}

func assertCounters(t *testing.T, row string, fields []string, want domain.KpiCounters) {
	t.Helper()
	if len(fields) != 4 {
		t.Fatalf("%s: expected 4 counters, got %v", row, fields)
	}
	got := make([]int, len(fields))
	for i, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			t.Fatalf("%s: counter %d is not an integer: %q", row, i, field)
		}
		got[i] = n
	}
	if got[0] != want.Total || got[1] != want.Done || got[2] != want.DoneOnTime || got[3] != want.DoneLate {
		t.Fatalf("%s: got %v want %+v", row, got, want)
	}
}

func TestWriteCSVRejectsNil(t *testing.T) {
	if err := WriteCSV(&bytes.Buffer{}, nil); err == nil {
		t.Fatalf("expected error for nil result")
	}
}

func TestKpiResultJSONShape(t *testing.T) {
	raw, err := json.Marshal(sampleResult())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		UserID     int64  `json:"user_id"`
		Month      string `json:"month"`
		Total      int    `json:"total"`
		Done       int    `json:"done"`
		DoneOnTime int    `json:"done_on_time"`
		DoneLate   int    `json:"done_late"`
		ByPriority []struct {
			Priority string `json:"priority"`
			Total    int    `json:"total"`
		} `json:"by_priority"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.UserID != 42 || decoded.Month != "2026-01" || decoded.Total != 3 || decoded.DoneLate != 1 {
		t.Fatalf("unexpected payload %s", raw)
	}
	if len(decoded.ByPriority) != domain.PriorityCount {
		t.Fatalf("expected %d priority rows, got %s", domain.PriorityCount, raw)
	}
	for i, p := range domain.Priorities {
		if decoded.ByPriority[i].Priority != p.String() {
			t.Fatalf("row %d priority %q, want %q", i, decoded.ByPriority[i].Priority, p)
		}
	}
}
