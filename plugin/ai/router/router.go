// Package router maps an interpreted command onto the action the chat
// pipeline should take, based on confidence tiers.
package router

import (
	"github.com/bonsaihq/bonsai/plugin/ai/interpreter"
)

// Kind enumerates the possible routing outcomes.
type Kind string

const (
	// Execute runs the command immediately.
	Execute Kind = "EXECUTE"
	// Confirm echoes the interpretation and asks the user to approve.
	Confirm Kind = "CONFIRM"
	// Clarify asks the user the model's clarifying question.
	Clarify Kind = "CLARIFY"
	// Disambiguate asks the user to pick between matching tasks.
	Disambiguate Kind = "DISAMBIGUATE"
	// Fallback degrades to a CLI suggestion.
	Fallback Kind = "FALLBACK"
)

// Decision is the routing outcome for one interpreted command.
type Decision struct {
	Kind    Kind
	Command *interpreter.Command
}

// Thresholds holds the confidence tier boundaries.
type Thresholds struct {
	High float64 // at or above: execute
	Low  float64 // below: fallback
}

// DefaultThresholds returns the standard tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.8, Low: 0.5}
}

// Route decides what to do with an interpreted command. It is a pure
// function of the command and the thresholds.
//
// Order matters: an unavailable model or an unknown action always
// degrades, a pending question always excludes execution, and delete is
// never executed without confirmation no matter how confident the
// interpretation is.
func Route(cmd *interpreter.Command, t Thresholds) Decision {
	if cmd.Unavailable {
		return Decision{Kind: Fallback, Command: cmd}
	}

	if len(cmd.MultipleMatches) > 1 {
		return Decision{Kind: Disambiguate, Command: cmd}
	}

	if cmd.NeedsClarification() {
		return Decision{Kind: Clarify, Command: cmd}
	}

	if cmd.Action == interpreter.ActionUnknown || cmd.Confidence < t.Low {
		return Decision{Kind: Fallback, Command: cmd}
	}

	if cmd.IsDestructive() {
		return Decision{Kind: Confirm, Command: cmd}
	}

	if cmd.Confidence < t.High {
		return Decision{Kind: Confirm, Command: cmd}
	}

	return Decision{Kind: Execute, Command: cmd}
}
