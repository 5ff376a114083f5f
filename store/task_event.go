package store

// TaskEventType is the lifecycle transition an event records.
type TaskEventType string

const (
	TaskEventCreated   TaskEventType = "task.created"
	TaskEventUpdated   TaskEventType = "task.updated"
	TaskEventCompleted TaskEventType = "task.completed"
	TaskEventDeleted   TaskEventType = "task.deleted"
)

// TaskEvent is an append-only audit record of a task lifecycle transition.
// Unpublished events are retried by the sweep until the retention window
// expires, at which point they are purged regardless of publish status.
type TaskEvent struct {
	ID          int32
	UID         string // CloudEvents id
	TaskID      int32
	CreatorID   int32
	Type        TaskEventType
	Payload     string // JSON task snapshot
	Published   bool
	PublishedTs *int64
	CreatedTs   int64
}

type FindTaskEvent struct {
	ID        *int32
	TaskID    *int32
	CreatorID *int32
	Published *bool
	// CreatedBefore selects events created at or before the given unix
	// timestamp. Used by the retention purge.
	CreatedBefore *int64
	Limit         *int
}
