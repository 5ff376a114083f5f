package interpreter

import (
	"fmt"
	"strings"
	"time"
)

// FallbackResponse is the degraded reply used when interpretation is
// uncertain or the model is unavailable.
type FallbackResponse struct {
	Message      string
	SuggestedCLI string
}

// BuildCLICommand renders the equivalent CLI invocation for a command.
func BuildCLICommand(cmd *Command) string {
	switch cmd.Action {
	case ActionAdd:
		title := cmd.Title
		if title == "" {
			title = "task"
		}
		out := fmt.Sprintf("bonsai add %q", title)
		if cmd.DueTs != nil {
			out += " --due " + time.Unix(*cmd.DueTs, 0).Format("2006-01-02")
		}
		if cmd.Priority != nil {
			out += fmt.Sprintf(" --priority %d", *cmd.Priority)
		}
		return out

	case ActionList:
		out := "bonsai list"
		switch cmd.StatusFilter {
		case StatusFilterPending:
			out += " --pending"
		case StatusFilterCompleted:
			out += " --completed"
		}
		return out

	case ActionComplete:
		if cmd.TaskID != nil {
			return fmt.Sprintf("bonsai complete %d", *cmd.TaskID)
		}
		return "bonsai complete <task_id>"

	case ActionUpdate:
		if cmd.TaskID != nil {
			out := fmt.Sprintf("bonsai update %d", *cmd.TaskID)
			if cmd.Title != "" {
				out += fmt.Sprintf(" --title %q", cmd.Title)
			}
			if cmd.DueTs != nil {
				out += " --due " + time.Unix(*cmd.DueTs, 0).Format("2006-01-02")
			}
			return out
		}
		return "bonsai update <task_id> --title <new_title>"

	case ActionDelete:
		if cmd.TaskID != nil {
			return fmt.Sprintf("bonsai delete %d", *cmd.TaskID)
		}
		return "bonsai delete <task_id>"
	}

	return "bonsai help"
}

// DescribeAction renders a human-readable description of the command.
func DescribeAction(cmd *Command) string {
	switch cmd.Action {
	case ActionAdd:
		title := cmd.Title
		if title == "" {
			title = "a task"
		}
		return fmt.Sprintf("create a task called %q", title)
	case ActionList:
		if cmd.StatusFilter != "" && cmd.StatusFilter != StatusFilterAll {
			return fmt.Sprintf("show your %s tasks", cmd.StatusFilter)
		}
		return "show all your tasks"
	case ActionComplete:
		return fmt.Sprintf("mark task %s as complete", taskRef(cmd))
	case ActionUpdate:
		out := "update task " + taskRef(cmd)
		if cmd.Title != "" {
			out += fmt.Sprintf(" title to %q", cmd.Title)
		}
		return out
	case ActionDelete:
		return "delete task " + taskRef(cmd)
	}
	return "perform that action"
}

func taskRef(cmd *Command) string {
	if cmd.TaskID != nil {
		return fmt.Sprintf("%d", *cmd.TaskID)
	}
	return "that"
}

// HelpFallback is the response for commands the model could not map to
// any operation.
func HelpFallback() FallbackResponse {
	return FallbackResponse{
		Message: strings.Join([]string{
			"I'm not sure what you'd like to do. Here are some things I can help with:",
			"",
			`- "Add a task to buy groceries"`,
			`- "Show my pending tasks"`,
			`- "Mark task 3 as done"`,
			`- "Delete the meeting task"`,
			"",
			"Or you can use CLI commands directly.",
		}, "\n"),
		SuggestedCLI: "bonsai help",
	}
}

// UnavailableFallback is the response when the model call failed or
// timed out.
func UnavailableFallback() FallbackResponse {
	return FallbackResponse{
		Message: strings.Join([]string{
			"I'm temporarily unavailable. You can still manage your tasks using CLI commands:",
			"",
			"- `bonsai add \"task title\"` - Create a task",
			"- `bonsai list` - Show all tasks",
			"- `bonsai complete <id>` - Mark task done",
			"- `bonsai delete <id>` - Remove a task",
		}, "\n"),
		SuggestedCLI: "bonsai help",
	}
}

// ClarificationFallback asks the user the model's clarifying question.
func ClarificationFallback(cmd *Command) FallbackResponse {
	message := cmd.Clarification
	if message == "" {
		message = "Could you clarify what you'd like to do?"
	}
	return FallbackResponse{
		Message:      message,
		SuggestedCLI: cmd.SuggestedCLI,
	}
}

// LowConfidenceFallback suggests the equivalent CLI command when the
// interpretation is too uncertain to act on.
func LowConfidenceFallback(cmd *Command) FallbackResponse {
	if cmd.Action == ActionUnknown {
		if cmd.Unavailable {
			return UnavailableFallback()
		}
		return HelpFallback()
	}
	return FallbackResponse{
		Message: fmt.Sprintf(
			"I think you want to %s, but I'm not certain. You can use this command directly:",
			DescribeAction(cmd),
		),
		SuggestedCLI: cmd.SuggestedCLI,
	}
}

// ConfirmationPrompt asks the user to confirm before executing.
func ConfirmationPrompt(cmd *Command) FallbackResponse {
	var message string
	if cmd.Action == ActionDelete {
		message = fmt.Sprintf("Are you sure you want to %s? This cannot be undone.", DescribeAction(cmd))
	} else {
		message = fmt.Sprintf("I'll %s. Is this correct?", DescribeAction(cmd))
	}
	return FallbackResponse{
		Message:      message,
		SuggestedCLI: cmd.SuggestedCLI,
	}
}
