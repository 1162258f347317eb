package telegram

import (
	"regexp"
	"strconv"
	"strings"
)

var taskLinkRe = regexp.MustCompile(`/tasks/(?P<id>\d+)`)

// ParseTaskLink extracts the task id from the first /tasks/<digits>
// reference in text. Leading zeros are accepted.
func ParseTaskLink(text string) (int64, bool) {
	m := taskLinkRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[taskLinkRe.SubexpIndex("id")], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseStart recognizes "/start <token>" and "/start@bot <token>".
func parseStart(text string) (token string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	cmd := fields[0]
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	if cmd != "/start" {
		return "", false
	}
	if len(fields) < 2 {
		return "", true
	}
	return fields[1], true
}
