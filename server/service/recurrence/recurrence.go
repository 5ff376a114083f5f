// Package recurrence materializes the next instance of a recurring task
// when the current one is completed.
package recurrence

import (
	"context"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/bonsaihq/bonsai/store"
)

// Store is the slice of the task store the recurrence engine needs.
type Store interface {
	CreateTask(ctx context.Context, create *store.Task) (*store.Task, error)
	ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error)
	UpdateTask(ctx context.Context, update *store.UpdateTask) error
	DeleteTask(ctx context.Context, delete *store.DeleteTask) error
	GetRecurrenceRule(ctx context.Context, find *store.FindRecurrenceRule) (*store.RecurrenceRule, error)
	CreateRecurrenceRule(ctx context.Context, create *store.RecurrenceRule) (*store.RecurrenceRule, error)
	DeleteRecurrenceRule(ctx context.Context, delete *store.DeleteRecurrenceRule) error
}

// Service owns recurrence rules and instance generation.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a recurrence service.
func NewService(s Store) *Service {
	return &Service{
		store:  s,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// NextOccurrence computes the due timestamp of the next instance, or
// nil when the series has ended. Pure calendar arithmetic: month and
// year steps clamp the day to the target month's length, so Jan 31
// monthly yields Feb 28 (or Feb 29 in a leap year) rather than rolling
// into March.
func NextOccurrence(rule *store.RecurrenceRule, currentDue int64, completedCount int) *int64 {
	if !shouldContinue(rule, currentDue, completedCount) {
		return nil
	}

	interval := int(rule.Interval)
	if interval < 1 {
		interval = 1
	}

	base := time.Unix(currentDue, 0).UTC()
	var next time.Time
	switch rule.Frequency {
	case store.FrequencyDaily:
		next = base.AddDate(0, 0, interval)
	case store.FrequencyWeekly:
		next = base.AddDate(0, 0, 7*interval)
	case store.FrequencyMonthly:
		next = addMonthsClamped(base, interval)
	case store.FrequencyYearly:
		next = addMonthsClamped(base, 12*interval)
	default:
		next = base.AddDate(0, 0, interval)
	}

	nextTs := next.Unix()
	if rule.EndType == store.EndDate && rule.EndTs != nil && nextTs > *rule.EndTs {
		return nil
	}

	return &nextTs
}

func shouldContinue(rule *store.RecurrenceRule, currentDue int64, completedCount int) bool {
	switch rule.EndType {
	case store.EndCount:
		// An unset count means never-ending.
		if rule.EndCount == nil {
			return true
		}
		return completedCount < int(*rule.EndCount)
	case store.EndDate:
		if rule.EndTs == nil {
			return true
		}
		return currentDue <= *rule.EndTs
	default:
		return true
	}
}

// addMonthsClamped advances by whole months keeping the day-of-month,
// clamped to the length of the target month.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	month += time.Month(months)
	// Normalize month overflow without letting the day roll over.
	normalized := time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
	if max := daysInMonth(normalized.Year(), normalized.Month()); day > max {
		day = max
	}
	return time.Date(normalized.Year(), normalized.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	switch month {
	case time.April, time.June, time.September, time.November:
		return 30
	case time.February:
		if isLeapYear(year) {
			return 29
		}
		return 28
	default:
		return 31
	}
}

func isLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// CreateRule creates a recurrence rule for a user.
func (s *Service) CreateRule(ctx context.Context, userID int32, frequency store.RecurrenceFrequency, interval int32, endType store.RecurrenceEndType, endCount *int32, endTs *int64) (*store.RecurrenceRule, error) {
	if interval < 1 {
		interval = 1
	}
	rule, err := s.store.CreateRecurrenceRule(ctx, &store.RecurrenceRule{
		CreatorID: userID,
		Frequency: frequency,
		Interval:  interval,
		EndType:   endType,
		EndCount:  endCount,
		EndTs:     endTs,
		CreatedTs: s.now().Unix(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create recurrence rule")
	}
	return rule, nil
}

// OnTaskCompleted creates the next instance of a completed recurring
// task. Returns nil when the task is not recurring or the series has
// ended. The caller guarantees the completion transition already
// happened exactly once, which makes this safe against duplicate
// generation.
func (s *Service) OnTaskCompleted(ctx context.Context, task *store.Task) (*store.Task, error) {
	if task.RecurrenceRuleID == nil {
		return nil, nil
	}

	rule, err := s.store.GetRecurrenceRule(ctx, &store.FindRecurrenceRule{ID: task.RecurrenceRuleID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load recurrence rule")
	}
	if rule == nil {
		return nil, nil
	}

	completedCount, err := s.completedCount(ctx, task)
	if err != nil {
		return nil, err
	}

	currentDue := s.now().Unix()
	if task.DueTs != nil {
		currentDue = *task.DueTs
	}

	nextDue := NextOccurrence(rule, currentDue, completedCount)
	if nextDue == nil {
		s.logger.Info("recurrence series ended",
			"task_id", task.ID, "rule_id", rule.ID)
		return nil, nil
	}

	now := s.now().Unix()
	next, err := s.store.CreateTask(ctx, &store.Task{
		UID:              shortuuid.New(),
		CreatorID:        task.CreatorID,
		Title:            task.Title,
		Description:      task.Description,
		Status:           store.TaskStatusPending,
		Priority:         task.Priority,
		DueTs:            nextDue,
		RecurrenceRuleID: task.RecurrenceRuleID,
		ParentTaskID:     &task.ID,
		CreatedTs:        now,
		UpdatedTs:        now,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create next instance")
	}

	s.logger.Info("created next recurring instance",
		"task_id", task.ID, "next_task_id", next.ID, "due_ts", *nextDue)
	return next, nil
}

// completedCount counts completed instances attached to the task's rule,
// including the instance just completed.
func (s *Service) completedCount(ctx context.Context, task *store.Task) (int, error) {
	status := store.TaskStatusCompleted
	list, err := s.store.ListTasks(ctx, &store.FindTask{
		CreatorID:        &task.CreatorID,
		RecurrenceRuleID: task.RecurrenceRuleID,
		Status:           &status,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to count completed instances")
	}
	return len(list), nil
}

// UpdateSeries applies title and priority changes to every pending
// instance of a recurrence rule. Completed instances keep the values
// they were completed with. Returns the number of instances updated.
func (s *Service) UpdateSeries(ctx context.Context, userID int32, ruleID int32, title *string, priority *int32) (int, error) {
	if title == nil && priority == nil {
		return 0, nil
	}

	status := store.TaskStatusPending
	pending, err := s.store.ListTasks(ctx, &store.FindTask{
		CreatorID:        &userID,
		RecurrenceRuleID: &ruleID,
		Status:           &status,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to list series instances")
	}

	now := s.now().Unix()
	updated := 0
	for _, task := range pending {
		if err := s.store.UpdateTask(ctx, &store.UpdateTask{
			ID:        task.ID,
			Title:     title,
			Priority:  priority,
			UpdatedTs: &now,
		}); err != nil {
			return updated, errors.Wrapf(err, "failed to update instance %d", task.ID)
		}
		updated++
	}
	return updated, nil
}

// DeleteSeries removes all pending instances of a recurrence rule and
// the rule itself. Completed instances stay as history.
func (s *Service) DeleteSeries(ctx context.Context, userID int32, ruleID int32) (int, error) {
	status := store.TaskStatusPending
	pending, err := s.store.ListTasks(ctx, &store.FindTask{
		CreatorID:        &userID,
		RecurrenceRuleID: &ruleID,
		Status:           &status,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to list series instances")
	}

	deleted := 0
	for _, task := range pending {
		if err := s.store.DeleteTask(ctx, &store.DeleteTask{ID: task.ID}); err != nil {
			return deleted, errors.Wrapf(err, "failed to delete instance %d", task.ID)
		}
		deleted++
	}

	if err := s.store.DeleteRecurrenceRule(ctx, &store.DeleteRecurrenceRule{ID: ruleID}); err != nil {
		return deleted, errors.Wrap(err, "failed to delete recurrence rule")
	}

	return deleted, nil
}
