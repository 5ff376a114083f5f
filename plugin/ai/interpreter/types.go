// Package interpreter turns natural language chat input into structured
// task commands via an LLM function call.
package interpreter

import (
	"github.com/bonsaihq/bonsai/plugin/ai/lang"
)

// Action is a task operation extracted from user input.
type Action string

const (
	ActionAdd      Action = "add"
	ActionList     Action = "list"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionComplete Action = "complete"
	ActionUnknown  Action = "unknown"
)

// StatusFilter narrows list operations.
type StatusFilter string

const (
	StatusFilterPending   StatusFilter = "pending"
	StatusFilterCompleted StatusFilter = "completed"
	StatusFilterAll       StatusFilter = "all"
)

// TaskContext is a lightweight view of an existing task handed to the
// model so it can resolve references like "the grocery task" or "task 2".
type TaskContext struct {
	ID        int32
	Title     string
	Completed bool
}

// Command is the structured interpretation of one user message.
type Command struct {
	OriginalText string
	Action       Action
	Confidence   float64
	Language     lang.Language

	// Extracted parameters. Only ever populated from what the user
	// actually said; the model is instructed not to invent values.
	Title         string
	TaskID        *int32
	TaskReference string
	DueTs         *int64
	Priority      *int32
	StatusFilter  StatusFilter

	// Clarification is non-empty when the intent is ambiguous.
	Clarification string
	// MultipleMatches holds task IDs when a text reference is ambiguous.
	MultipleMatches []int32

	// SuggestedCLI is the equivalent CLI command for fallback responses.
	SuggestedCLI string

	// Unavailable marks the sentinel returned when the model call
	// failed or timed out. The caller routes it to fallback instead of
	// retrying inline.
	Unavailable bool
}

// NeedsClarification reports whether the command asks the user a question.
func (c *Command) NeedsClarification() bool {
	return c.Clarification != ""
}

// IsDestructive reports whether executing the command removes data.
func (c *Command) IsDestructive() bool {
	return c.Action == ActionDelete
}
