package report

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/pkg/logger"
	"github.com/fastygo/taskpulse/repository"
)

// Service computes monthly KPIs. It holds no mutable state and is safe for
// concurrent use.
type Service struct {
	tasks  repository.TaskDueReader
	loc    *time.Location
	logger *zap.Logger
}

// New builds a Service whose month windows are evaluated in loc (UTC when nil).
func New(tasks repository.TaskDueReader, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tasks:  tasks,
		loc:    loc,
		logger: logger,
	}
}

// Location returns the timezone used for month boundaries.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Compute returns the KPI of userID for the given calendar month. month must
// already be validated to lie in 1..12.
//
// Aggregate and per-priority counters come from a single read, so the
// breakdown always partitions the totals. Storage errors are returned as is.
func (s *Service) Compute(ctx context.Context, userID int64, year, month int) (*domain.KpiResult, error) {
	from, to := MonthWindow(year, month, s.loc)

	tasks, err := s.tasks.ListDueBetween(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	result := newResult(userID, year, month)
	log := logger.WithRequestID(ctx, s.logger)

	for i := range tasks {
		task := &tasks[i]
		if task.AssigneeID != userID || !inWindow(task.DueAt, from, to) {
			continue
		}
		if !task.Priority.Valid() {
			log.Warn("skipping task with unknown priority", zap.Int64("task_id", task.ID))
			continue
		}
		tally(&result.KpiCounters, task)
		tally(&result.ByPriority[task.Priority].KpiCounters, task)
	}

	log.Debug("monthly kpi computed",
		zap.Int64("user_id", userID),
		zap.String("month", result.Month),
		zap.Int("total", result.Total),
		zap.Int("done", result.Done),
		zap.Int("done_on_time", result.DoneOnTime),
		zap.Int("done_late", result.DoneLate),
	)

	return result, nil
}

func newResult(userID int64, year, month int) *domain.KpiResult {
	result := &domain.KpiResult{
		UserID: userID,
		Month:  FormatMonth(year, month),
	}
	for i, p := range domain.Priorities {
		result.ByPriority[i].Priority = p
	}
	return result
}

// inWindow excludes tasks without a deadline.
func inWindow(due *time.Time, from, to time.Time) bool {
	return due != nil && !due.Before(from) && due.Before(to)
}

// tally counts task into c. A done task is on time when its last update
// happened no later than the deadline.
func tally(c *domain.KpiCounters, task *domain.Task) {
	c.Total++
	if !task.IsCompleted() {
		return
	}
	c.Done++
	if task.UpdatedAt.After(*task.DueAt) {
		c.DoneLate++
		return
	}
	c.DoneOnTime++
}
