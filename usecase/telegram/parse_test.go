package telegram

import "testing"

func TestParseTaskLink(t *testing.T) {
	cases := []struct {
		text string
		id   int64
		ok   bool
	}{
		{"", 0, false},
		{"New task: Prepare report /tasks/123", 123, true},
		{"open /tasks/5 please", 5, true},
		{"prefix /tasks/0007 suffix", 7, true},
		{"two links /tasks/1 and /tasks/2", 1, true},
		{"/tasks/abc", 0, false},
		{"/task/123", 0, false},
		{"no link here", 0, false},
		{"/tasks/0", 0, false},
		{"/tasks/99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		id, ok := ParseTaskLink(tc.text)
		if id != tc.id || ok != tc.ok {
			t.Fatalf("%q: got (%d, %v), want (%d, %v)", tc.text, id, ok, tc.id, tc.ok)
		}
	}
}

func TestParseStart(t *testing.T) {
	cases := []struct {
		text  string
		token string
		ok    bool
	}{
		{"/start abc", "abc", true},
		{"  /start   abc  ", "abc", true},
		{"/start@taskpulse_bot abc", "abc", true},
		{"/start", "", true},
		{"/stop abc", "", false},
		{"start abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		token, ok := parseStart(tc.text)
		if token != tc.token || ok != tc.ok {
			t.Fatalf("%q: got (%q, %v), want (%q, %v)", tc.text, token, ok, tc.token, tc.ok)
		}
	}
}
