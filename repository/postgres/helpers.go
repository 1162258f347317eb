package postgres

import (
	"time"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
