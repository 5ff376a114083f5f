package chat

import (
	"fmt"
	"strings"

	"github.com/bonsaihq/bonsai/plugin/ai/interpreter"
	"github.com/bonsaihq/bonsai/plugin/ai/lang"
	"github.com/bonsaihq/bonsai/store"
)

// Responses mirror the user's language: Urdu input gets Urdu replies,
// everything else gets English.

func taskCreatedMessage(language lang.Language, title string) string {
	if language == lang.Urdu {
		return "کام شامل ہو گیا: " + title
	}
	return fmt.Sprintf("Task created: %q", title)
}

func taskCompletedMessage(language lang.Language, title string) string {
	if language == lang.Urdu {
		return "کام مکمل ہو گیا: " + title
	}
	return fmt.Sprintf("Task completed: %q", title)
}

func alreadyCompletedMessage(language lang.Language, title string) string {
	if language == lang.Urdu {
		return "یہ کام پہلے سے مکمل ہے: " + title
	}
	return fmt.Sprintf("Task %q was already completed.", title)
}

func taskUpdatedMessage(language lang.Language, oldTitle, newTitle string) string {
	if language == lang.Urdu {
		return "کام اپڈیٹ ہو گیا: " + newTitle
	}
	if oldTitle != "" && oldTitle != newTitle {
		return fmt.Sprintf("Task updated: %q is now %q", oldTitle, newTitle)
	}
	return fmt.Sprintf("Task updated: %q", newTitle)
}

func taskDeletedMessage(language lang.Language, title string) string {
	if language == lang.Urdu {
		return "کام حذف ہو گیا"
	}
	return fmt.Sprintf("Task deleted: %q", title)
}

func taskListMessage(language lang.Language, tasks []*store.Task) string {
	if len(tasks) == 0 {
		if language == lang.Urdu {
			return "کوئی کام نہیں ہے"
		}
		return "No tasks found"
	}

	var b strings.Builder
	if language == lang.Urdu {
		fmt.Fprintf(&b, "آپ کے کام (%d):", len(tasks))
	} else {
		fmt.Fprintf(&b, "Your tasks (%d):", len(tasks))
	}
	for i, task := range tasks {
		marker := "○"
		if task.Status == store.TaskStatusCompleted {
			marker = "✓"
		}
		fmt.Fprintf(&b, "\n  %d. %s %s", i+1, marker, task.Title)
	}
	return b.String()
}

func errorOccurredMessage(language lang.Language, fallback string) string {
	if language == lang.Urdu {
		return "معذرت، کچھ غلط ہو گیا"
	}
	if fallback != "" {
		return fallback
	}
	return "Sorry, something went wrong"
}

func confirmationMessage(cmd *interpreter.Command) string {
	if cmd.Language == lang.Urdu {
		return fmt.Sprintf("کیا آپ واقعی '%s' کرنا چاہتے ہیں؟", cmd.Action)
	}
	return interpreter.ConfirmationPrompt(cmd).Message
}

func clarificationMessage(cmd *interpreter.Command) string {
	message := interpreter.ClarificationFallback(cmd).Message
	if cmd.Language == lang.Urdu {
		return "براہ کرم وضاحت کریں: " + message
	}
	return message
}

func doneMessage(language lang.Language) string {
	if language == lang.Urdu {
		return "ہو گیا!"
	}
	return "Done!"
}
