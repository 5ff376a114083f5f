package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	// Task model related methods.
	CreateTask(ctx context.Context, create *Task) (*Task, error)
	ListTasks(ctx context.Context, find *FindTask) ([]*Task, error)
	UpdateTask(ctx context.Context, update *UpdateTask) error
	DeleteTask(ctx context.Context, delete *DeleteTask) error
	// CompleteTask atomically transitions a task from PENDING to COMPLETED.
	// Returns false when the task was not pending, making completion a
	// one-way, exactly-once transition at the store level.
	CompleteTask(ctx context.Context, id int32, completedTs int64) (bool, error)

	// RecurrenceRule model related methods.
	CreateRecurrenceRule(ctx context.Context, create *RecurrenceRule) (*RecurrenceRule, error)
	ListRecurrenceRules(ctx context.Context, find *FindRecurrenceRule) ([]*RecurrenceRule, error)
	DeleteRecurrenceRule(ctx context.Context, delete *DeleteRecurrenceRule) error

	// Conversation model related methods.
	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error)
	DeleteConversation(ctx context.Context, delete *DeleteConversation) error

	// Message model related methods.
	CreateMessage(ctx context.Context, create *Message) (*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)
	DeleteMessage(ctx context.Context, delete *DeleteMessage) error

	// Reminder model related methods.
	CreateReminder(ctx context.Context, create *Reminder) (*Reminder, error)
	ListReminders(ctx context.Context, find *FindReminder) ([]*Reminder, error)
	DeleteReminder(ctx context.Context, delete *DeleteReminder) error
	// ClaimReminder atomically transitions a reminder from PENDING to
	// DELIVERED. Returns false when the reminder was already claimed,
	// making delivery exactly-once across scheduler instances.
	ClaimReminder(ctx context.Context, id int32, deliveredTs int64) (bool, error)
	// CancelTaskReminders transitions all PENDING reminders of a task to
	// CANCELLED. Returns the number of reminders cancelled.
	CancelTaskReminders(ctx context.Context, taskID int32) (int64, error)

	// TaskEvent model related methods.
	CreateTaskEvent(ctx context.Context, create *TaskEvent) (*TaskEvent, error)
	ListTaskEvents(ctx context.Context, find *FindTaskEvent) ([]*TaskEvent, error)
	MarkTaskEventPublished(ctx context.Context, id int32, publishedTs int64) error
	// PurgeTaskEvents removes events created at or before the given unix
	// timestamp regardless of publish status. Returns rows removed.
	PurgeTaskEvents(ctx context.Context, before int64) (int64, error)
}
