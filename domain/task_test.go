package domain

import (
	"encoding/json"
	"testing"
)

func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{
		"low":    PriorityLow,
		"Medium": PriorityMedium,
		" HIGH ": PriorityHigh,
	}
	for in, want := range cases {
		got, err := ParsePriority(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}

	if _, err := ParsePriority("urgent"); !IsDomainError(err, ErrCodeInvalid) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestPriorityJSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		P Priority `json:"p"`
	}{PriorityHigh})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"p":"high"}` {
		t.Fatalf("unexpected json %s", raw)
	}

	var decoded struct {
		P Priority `json:"p"`
	}
	if err := json.Unmarshal([]byte(`{"p":"low"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.P != PriorityLow {
		t.Fatalf("got %v", decoded.P)
	}

	if _, err := json.Marshal(Priority(9)); err == nil {
		t.Fatalf("expected error for out of range priority")
	}
}

func TestTaskParticipants(t *testing.T) {
	task := &Task{CreatorID: 1, AssigneeID: 2}
	if !task.HasParticipant(1) || !task.HasParticipant(2) || task.HasParticipant(3) {
		t.Fatalf("unexpected participants")
	}
	if task.Counterpart(1) != 2 || task.Counterpart(2) != 1 {
		t.Fatalf("unexpected counterpart")
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusDone.Valid() || Status("archived").Valid() {
		t.Fatalf("unexpected status validation")
	}
}
