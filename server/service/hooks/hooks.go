// Package hooks fans task mutations out to the downstream services:
// event publishing, reminder cancellation and recurrence materialization.
package hooks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bonsaihq/bonsai/server/internal/observability"
	"github.com/bonsaihq/bonsai/server/service/events"
	"github.com/bonsaihq/bonsai/server/service/recurrence"
	"github.com/bonsaihq/bonsai/server/service/reminder"
	"github.com/bonsaihq/bonsai/store"
)

// TaskHooks reacts to committed task mutations. The fan-out runs in the
// background so a slow broker never delays the response; within one
// dispatch the effects keep their order (event, reminder cancel,
// recurrence). Hook failures are logged and swallowed: the mutation
// already committed and must not be undone by a failing side effect.
type TaskHooks struct {
	events     *events.Publisher
	reminders  *reminder.Service
	recurrence *recurrence.Service
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// New creates the standard hook fan-out. Any dependency may be nil, in
// which case that side effect is skipped.
func New(publisher *events.Publisher, reminders *reminder.Service, rec *recurrence.Service) *TaskHooks {
	return &TaskHooks{
		events:     publisher,
		reminders:  reminders,
		recurrence: rec,
		logger:     slog.Default(),
	}
}

// Wait blocks until all dispatched hook work has finished. Used on
// shutdown and in tests.
func (h *TaskHooks) Wait() {
	h.wg.Wait()
}

func (h *TaskHooks) OnTaskCreated(ctx context.Context, task *store.Task) {
	h.dispatch(ctx, func(ctx context.Context) {
		h.record(ctx, store.TaskEventCreated, task)
	})
}

func (h *TaskHooks) OnTaskUpdated(ctx context.Context, task *store.Task) {
	h.dispatch(ctx, func(ctx context.Context) {
		h.record(ctx, store.TaskEventUpdated, task)
	})
}

func (h *TaskHooks) OnTaskCompleted(ctx context.Context, task *store.Task) {
	h.dispatch(ctx, func(ctx context.Context) {
		h.taskCompleted(ctx, task)
	})
}

func (h *TaskHooks) OnTaskDeleted(ctx context.Context, task *store.Task) {
	h.dispatch(ctx, func(ctx context.Context) {
		h.taskDeleted(ctx, task)
	})
}

// dispatch runs fn in the background. The mutation has already
// committed, so its side effects must survive the request context being
// cancelled once the response is written.
func (h *TaskHooks) dispatch(ctx context.Context, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn(ctx)
	}()
}

func (h *TaskHooks) taskCompleted(ctx context.Context, task *store.Task) {
	h.record(ctx, store.TaskEventCompleted, task)

	if h.reminders != nil {
		if _, err := h.reminders.CancelForTask(ctx, task.ID); err != nil {
			h.logger.Error("failed to cancel reminders on completion",
				observability.LogFieldTaskID, task.ID, "error", err)
		}
	}

	if h.recurrence != nil {
		next, err := h.recurrence.OnTaskCompleted(ctx, task)
		if err != nil {
			h.logger.Error("failed to materialize next recurring instance",
				observability.LogFieldTaskID, task.ID, "error", err)
			return
		}
		if next != nil {
			h.record(ctx, store.TaskEventCreated, next)
		}
	}
}

func (h *TaskHooks) taskDeleted(ctx context.Context, task *store.Task) {
	h.record(ctx, store.TaskEventDeleted, task)

	if h.reminders != nil {
		if _, err := h.reminders.CancelForTask(ctx, task.ID); err != nil {
			h.logger.Error("failed to cancel reminders on deletion",
				observability.LogFieldTaskID, task.ID, "error", err)
		}
	}
}

func (h *TaskHooks) record(ctx context.Context, eventType store.TaskEventType, task *store.Task) {
	if h.events == nil {
		return
	}
	if _, err := h.events.Record(ctx, eventType, task); err != nil {
		h.logger.Error("failed to record task event",
			observability.LogFieldTaskID, task.ID,
			observability.LogFieldEventType, string(eventType),
			"error", err)
	}
}
