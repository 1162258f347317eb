package domain

// KpiCounters holds completion counters for one slice of tasks.
// Invariants: DoneOnTime+DoneLate == Done and Done <= Total.
type KpiCounters struct {
	Total      int `json:"total"`
	Done       int `json:"done"`
	DoneOnTime int `json:"done_on_time"`
	DoneLate   int `json:"done_late"`
}

// PriorityBreakdown scopes KpiCounters to a single priority.
type PriorityBreakdown struct {
	Priority Priority `json:"priority"`
	KpiCounters
}

// KpiResult is the monthly KPI of one assignee. It is derived on every query
// and never persisted.
type KpiResult struct {
	UserID int64  `json:"user_id"`
	Month  string `json:"month"`
	KpiCounters
	ByPriority [PriorityCount]PriorityBreakdown `json:"by_priority"`
}
