package store

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
)

// Task is a todo item. Generated recurring instances carry a ParentTaskID
// pointing at the template they were materialized from.
type Task struct {
	ID               int32
	UID              string
	CreatorID        int32
	Title            string
	Description      string
	Status           TaskStatus
	Priority         int32
	DueTs            *int64
	RecurrenceRuleID *int32
	ParentTaskID     *int32
	CreatedTs        int64
	UpdatedTs        int64
	CompletedTs      *int64
}

type FindTask struct {
	ID               *int32
	UID              *string
	CreatorID        *int32
	Status           *TaskStatus
	RecurrenceRuleID *int32
	ParentTaskID     *int32
	TitleContains    *string
	Limit            *int
}

type UpdateTask struct {
	ID               int32
	Title            *string
	Description      *string
	Priority         *int32
	DueTs            *int64
	Status           *TaskStatus
	RecurrenceRuleID *int32
	CompletedTs      *int64
	UpdatedTs        *int64
}

type DeleteTask struct {
	ID int32
}
