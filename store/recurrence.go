package store

// RecurrenceFrequency is the calendar unit of a recurrence rule.
type RecurrenceFrequency string

const (
	FrequencyDaily   RecurrenceFrequency = "DAILY"
	FrequencyWeekly  RecurrenceFrequency = "WEEKLY"
	FrequencyMonthly RecurrenceFrequency = "MONTHLY"
	FrequencyYearly  RecurrenceFrequency = "YEARLY"
)

// RecurrenceEndType defines how a recurrence series terminates.
type RecurrenceEndType string

const (
	EndNever RecurrenceEndType = "NEVER"
	EndCount RecurrenceEndType = "COUNT"
	EndDate  RecurrenceEndType = "DATE"
)

// RecurrenceRule is created with a template task and consulted on each
// completion of an instance. It is never mutated except via an explicit
// update-series request.
type RecurrenceRule struct {
	ID        int32
	CreatorID int32
	Frequency RecurrenceFrequency
	Interval  int32
	EndType   RecurrenceEndType
	EndCount  *int32
	EndTs     *int64
	CreatedTs int64
}

type FindRecurrenceRule struct {
	ID        *int32
	CreatorID *int32
}

type DeleteRecurrenceRule struct {
	ID int32
}
