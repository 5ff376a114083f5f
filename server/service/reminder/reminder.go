// Package reminder manages task reminders and their delivery.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"

	apierrors "github.com/bonsaihq/bonsai/internal/errors"
	"github.com/bonsaihq/bonsai/store"
)

// Store is the slice of the task store the reminder service needs.
type Store interface {
	GetTask(ctx context.Context, find *store.FindTask) (*store.Task, error)
	CreateReminder(ctx context.Context, create *store.Reminder) (*store.Reminder, error)
	ListReminders(ctx context.Context, find *store.FindReminder) ([]*store.Reminder, error)
	DeleteReminder(ctx context.Context, delete *store.DeleteReminder) error
	ClaimReminder(ctx context.Context, id int32, deliveredTs int64) (bool, error)
	CancelTaskReminders(ctx context.Context, taskID int32) (int64, error)
}

// Notifier delivers a due reminder to its owner.
type Notifier interface {
	Notify(ctx context.Context, reminder *store.Reminder) error
}

// NopNotifier drops notifications. Used when no delivery channel is wired.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, *store.Reminder) error { return nil }

// Presence reports whether a user currently has a delivery channel
// attached. Notifiers that implement it keep reminders pending while the
// owner is offline; the next poll retries once a session exists.
type Presence interface {
	SubscriberCount(userID int32) int
}

// Service owns reminder lifecycle and delivery.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a reminder service.
func NewService(s Store, notifier Notifier) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		store:    s,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// Create schedules a reminder for a task the user owns. The trigger time
// must be strictly in the future and a task holds at most
// store.MaxRemindersPerTask reminders over its lifetime, delivered ones
// included.
func (s *Service) Create(ctx context.Context, userID int32, taskID int32, remindTs int64, message string) (*store.Reminder, error) {
	task, err := s.store.GetTask(ctx, &store.FindTask{ID: &taskID})
	if err != nil {
		return nil, apierrors.Internal("failed to load task", err)
	}
	if task == nil {
		return nil, apierrors.NotFound("task")
	}
	if task.CreatorID != userID {
		return nil, apierrors.PermissionDenied("task belongs to another user")
	}

	if remindTs <= s.now().Unix() {
		return nil, apierrors.InvalidArgument("reminder time must be in the future")
	}

	existing, err := s.store.ListReminders(ctx, &store.FindReminder{TaskID: &taskID})
	if err != nil {
		return nil, apierrors.Internal("failed to list reminders", err)
	}
	if len(existing) >= store.MaxRemindersPerTask {
		return nil, apierrors.FailedPrecondition("task already has the maximum number of reminders")
	}

	reminder, err := s.store.CreateReminder(ctx, &store.Reminder{
		UID:       shortuuid.New(),
		TaskID:    taskID,
		CreatorID: userID,
		RemindTs:  remindTs,
		Message:   message,
		Status:    store.ReminderStatusPending,
		CreatedTs: s.now().Unix(),
	})
	if err != nil {
		return nil, apierrors.Internal("failed to create reminder", err)
	}
	return reminder, nil
}

// List returns the user's reminders, optionally scoped to a task.
func (s *Service) List(ctx context.Context, userID int32, taskID *int32) ([]*store.Reminder, error) {
	list, err := s.store.ListReminders(ctx, &store.FindReminder{CreatorID: &userID, TaskID: taskID})
	if err != nil {
		return nil, apierrors.Internal("failed to list reminders", err)
	}
	return list, nil
}

// Delete removes a reminder the user owns.
func (s *Service) Delete(ctx context.Context, userID int32, reminderID int32) error {
	reminder, err := s.getReminder(ctx, reminderID)
	if err != nil {
		return err
	}
	if reminder == nil {
		return apierrors.NotFound("reminder")
	}
	if reminder.CreatorID != userID {
		return apierrors.PermissionDenied("reminder belongs to another user")
	}

	if err := s.store.DeleteReminder(ctx, &store.DeleteReminder{ID: &reminderID}); err != nil {
		return apierrors.Internal("failed to delete reminder", err)
	}
	return nil
}

// CancelForTask cancels all pending reminders of a task. Called when the
// task is completed or deleted.
func (s *Service) CancelForTask(ctx context.Context, taskID int32) (int64, error) {
	cancelled, err := s.store.CancelTaskReminders(ctx, taskID)
	if err != nil {
		return 0, apierrors.Internal("failed to cancel task reminders", err)
	}
	if cancelled > 0 {
		s.logger.Info("cancelled pending reminders", "task_id", taskID, "count", cancelled)
	}
	return cancelled, nil
}

// ProcessDueReminders claims and delivers all pending reminders whose
// trigger time has passed. The claim is an atomic PENDING to DELIVERED
// transition, so concurrent schedulers deliver each reminder at most once.
func (s *Service) ProcessDueReminders(ctx context.Context) (int, error) {
	now := s.now().Unix()
	status := store.ReminderStatusPending
	due, err := s.store.ListReminders(ctx, &store.FindReminder{Status: &status, DueBefore: &now})
	if err != nil {
		return 0, apierrors.Internal("failed to list due reminders", err)
	}

	presence, hasPresence := s.notifier.(Presence)

	processed := 0
	for _, reminder := range due {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		// Claiming a reminder nobody can receive would lose it.
		if hasPresence && presence.SubscriberCount(reminder.CreatorID) == 0 {
			continue
		}

		claimed, err := s.store.ClaimReminder(ctx, reminder.ID, now)
		if err != nil {
			s.logger.Error("failed to claim reminder", "reminder_id", reminder.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		if err := s.notifier.Notify(ctx, reminder); err != nil {
			s.logger.Warn("failed to deliver reminder", "reminder_id", reminder.ID, "error", err)
		}
		processed++
	}
	return processed, nil
}

func (s *Service) getReminder(ctx context.Context, id int32) (*store.Reminder, error) {
	list, err := s.store.ListReminders(ctx, &store.FindReminder{ID: &id})
	if err != nil {
		return nil, apierrors.Internal("failed to load reminder", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
