package store

// ReminderStatus is the delivery state of a reminder.
type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "PENDING"
	ReminderStatusDelivered ReminderStatus = "DELIVERED"
	ReminderStatusCancelled ReminderStatus = "CANCELLED"
)

// Reminder is a time-triggered notification bound to a task. At most
// MaxRemindersPerTask reminders may exist per task.
type Reminder struct {
	ID          int32
	UID         string
	TaskID      int32
	CreatorID   int32
	RemindTs    int64
	Message     string
	Status      ReminderStatus
	DeliveredTs *int64
	CreatedTs   int64
}

// MaxRemindersPerTask bounds the number of reminders a single task may hold.
const MaxRemindersPerTask = 3

type FindReminder struct {
	ID        *int32
	UID       *string
	TaskID    *int32
	CreatorID *int32
	Status    *ReminderStatus
	// DueBefore selects reminders whose trigger time is at or before the
	// given unix timestamp.
	DueBefore *int64
}

type DeleteReminder struct {
	ID *int32
	// TaskID deletes all reminders belonging to a task.
	TaskID *int32
}
