// Package executor runs validated interpreted commands against the task
// store. The model interprets, the executor executes: no command reaches
// the store without ownership and argument validation here.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/bonsaihq/bonsai/plugin/ai/interpreter"
	"github.com/bonsaihq/bonsai/internal/errors"
	"github.com/bonsaihq/bonsai/store"
)

// TaskStore is the slice of the store the executor needs.
type TaskStore interface {
	CreateTask(ctx context.Context, create *store.Task) (*store.Task, error)
	ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error)
	UpdateTask(ctx context.Context, update *store.UpdateTask) error
	DeleteTask(ctx context.Context, delete *store.DeleteTask) error
	CompleteTask(ctx context.Context, id int32, completedTs int64) (bool, error)
}

// Hooks receives notifications after a task mutation commits. Used to
// trigger event publishing, reminder cancellation and recurrence
// materialization without coupling the executor to those services.
type Hooks interface {
	OnTaskCreated(ctx context.Context, task *store.Task)
	OnTaskUpdated(ctx context.Context, task *store.Task)
	OnTaskCompleted(ctx context.Context, task *store.Task)
	OnTaskDeleted(ctx context.Context, task *store.Task)
}

// NopHooks is a Hooks implementation that does nothing.
type NopHooks struct{}

func (NopHooks) OnTaskCreated(context.Context, *store.Task)   {}
func (NopHooks) OnTaskUpdated(context.Context, *store.Task)   {}
func (NopHooks) OnTaskCompleted(context.Context, *store.Task) {}
func (NopHooks) OnTaskDeleted(context.Context, *store.Task)   {}

// Result is the outcome of executing one command.
type Result struct {
	Success bool
	Action  interpreter.Action

	Task  *store.Task
	Tasks []*store.Task

	// AlreadyCompleted marks an idempotent no-op completion.
	AlreadyCompleted bool
	// OldTitle carries the previous title after an update.
	OldTitle string

	// ErrorMessage is a user-facing failure description. Hard errors
	// (permission denied, store failures) are returned as errors
	// instead.
	ErrorMessage string
}

// Executor validates and executes interpreted commands for one user.
type Executor struct {
	tasks  TaskStore
	hooks  Hooks
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Executor. A nil hooks defaults to no-ops.
func New(tasks TaskStore, hooks Hooks) *Executor {
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &Executor{
		tasks:  tasks,
		hooks:  hooks,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// Execute runs the command on behalf of userID.
func (e *Executor) Execute(ctx context.Context, userID int32, cmd *interpreter.Command) (*Result, error) {
	if cmd.NeedsClarification() {
		return &Result{
			Success:      false,
			Action:       cmd.Action,
			ErrorMessage: cmd.Clarification,
		}, nil
	}

	switch cmd.Action {
	case interpreter.ActionAdd:
		return e.executeAdd(ctx, userID, cmd)
	case interpreter.ActionList:
		return e.executeList(ctx, userID, cmd)
	case interpreter.ActionComplete:
		return e.executeComplete(ctx, userID, cmd)
	case interpreter.ActionUpdate:
		return e.executeUpdate(ctx, userID, cmd)
	case interpreter.ActionDelete:
		return e.executeDelete(ctx, userID, cmd)
	default:
		return &Result{
			Success:      false,
			Action:       cmd.Action,
			ErrorMessage: "Unknown action. Please try rephrasing your request.",
		}, nil
	}
}

func (e *Executor) executeAdd(ctx context.Context, userID int32, cmd *interpreter.Command) (*Result, error) {
	if cmd.Title == "" {
		return &Result{
			Success:      false,
			Action:       interpreter.ActionAdd,
			ErrorMessage: "Please specify a title for the task.",
		}, nil
	}

	now := e.now().Unix()
	priority := int32(3)
	if cmd.Priority != nil {
		priority = *cmd.Priority
	}

	task, err := e.tasks.CreateTask(ctx, &store.Task{
		UID:       shortuuid.New(),
		CreatorID: userID,
		Title:     cmd.Title,
		Status:    store.TaskStatusPending,
		Priority:  priority,
		DueTs:     cmd.DueTs,
		CreatedTs: now,
		UpdatedTs: now,
	})
	if err != nil {
		return nil, errors.Internal("failed to create task", err)
	}

	e.hooks.OnTaskCreated(ctx, task)
	return &Result{Success: true, Action: interpreter.ActionAdd, Task: task}, nil
}

func (e *Executor) executeList(ctx context.Context, userID int32, cmd *interpreter.Command) (*Result, error) {
	find := &store.FindTask{CreatorID: &userID}
	switch cmd.StatusFilter {
	case interpreter.StatusFilterPending:
		status := store.TaskStatusPending
		find.Status = &status
	case interpreter.StatusFilterCompleted:
		status := store.TaskStatusCompleted
		find.Status = &status
	}

	tasks, err := e.tasks.ListTasks(ctx, find)
	if err != nil {
		return nil, errors.Internal("failed to list tasks", err)
	}

	return &Result{Success: true, Action: interpreter.ActionList, Tasks: tasks}, nil
}

func (e *Executor) executeComplete(ctx context.Context, userID int32, cmd *interpreter.Command) (*Result, error) {
	task, soft, err := e.lookupTask(ctx, userID, cmd)
	if err != nil {
		return nil, err
	}
	if soft != nil {
		return soft, nil
	}

	completed, err := e.tasks.CompleteTask(ctx, task.ID, e.now().Unix())
	if err != nil {
		return nil, errors.Internal("failed to complete task", err)
	}
	if !completed {
		// Already completed: idempotent no-op, no second recurrence
		// instance and no second event.
		return &Result{
			Success:          true,
			Action:           interpreter.ActionComplete,
			Task:             task,
			AlreadyCompleted: true,
		}, nil
	}

	fresh, ferr := e.tasks.ListTasks(ctx, &store.FindTask{ID: &task.ID})
	if ferr == nil && len(fresh) == 1 {
		task = fresh[0]
	}

	e.hooks.OnTaskCompleted(ctx, task)
	return &Result{Success: true, Action: interpreter.ActionComplete, Task: task}, nil
}

func (e *Executor) executeUpdate(ctx context.Context, userID int32, cmd *interpreter.Command) (*Result, error) {
	task, soft, err := e.lookupTask(ctx, userID, cmd)
	if err != nil {
		return nil, err
	}
	if soft != nil {
		return soft, nil
	}

	if cmd.Title == "" && cmd.DueTs == nil && cmd.Priority == nil {
		return &Result{
			Success:      false,
			Action:       interpreter.ActionUpdate,
			ErrorMessage: "Please specify what to update (title or due date).",
		}, nil
	}

	oldTitle := task.Title
	now := e.now().Unix()
	update := &store.UpdateTask{ID: task.ID, UpdatedTs: &now}
	if cmd.Title != "" {
		update.Title = &cmd.Title
	}
	if cmd.DueTs != nil {
		update.DueTs = cmd.DueTs
	}
	if cmd.Priority != nil {
		update.Priority = cmd.Priority
	}

	if err := e.tasks.UpdateTask(ctx, update); err != nil {
		return nil, errors.Internal("failed to update task", err)
	}

	fresh, ferr := e.tasks.ListTasks(ctx, &store.FindTask{ID: &task.ID})
	if ferr == nil && len(fresh) == 1 {
		task = fresh[0]
	}

	e.hooks.OnTaskUpdated(ctx, task)
	return &Result{
		Success:  true,
		Action:   interpreter.ActionUpdate,
		Task:     task,
		OldTitle: oldTitle,
	}, nil
}

func (e *Executor) executeDelete(ctx context.Context, userID int32, cmd *interpreter.Command) (*Result, error) {
	task, soft, err := e.lookupTask(ctx, userID, cmd)
	if err != nil {
		return nil, err
	}
	if soft != nil {
		return soft, nil
	}

	if err := e.tasks.DeleteTask(ctx, &store.DeleteTask{ID: task.ID}); err != nil {
		return nil, errors.Internal("failed to delete task", err)
	}

	e.hooks.OnTaskDeleted(ctx, task)
	return &Result{Success: true, Action: interpreter.ActionDelete, Task: task}, nil
}

// lookupTask resolves the command's task reference, enforcing ownership.
// A missing task is a soft failure (the user gets a message); a task
// owned by somebody else is a hard permission error.
func (e *Executor) lookupTask(ctx context.Context, userID int32, cmd *interpreter.Command) (*store.Task, *Result, error) {
	notFound := &Result{
		Success:      false,
		Action:       cmd.Action,
		ErrorMessage: "Task not found. Please check the task number.",
	}

	if cmd.TaskID == nil {
		return nil, notFound, nil
	}

	tasks, err := e.tasks.ListTasks(ctx, &store.FindTask{ID: cmd.TaskID})
	if err != nil {
		return nil, nil, errors.Internal("failed to look up task", err)
	}
	if len(tasks) == 0 {
		return nil, notFound, nil
	}

	task := tasks[0]
	if task.CreatorID != userID {
		e.logger.Warn("denied cross-user task access",
			"user_id", userID, "task_id", task.ID, "owner_id", task.CreatorID)
		return nil, nil, errors.PermissionDenied("task belongs to another user")
	}

	return task, nil, nil
}
