package interpreter

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/bonsaihq/bonsai/plugin/ai"
	"github.com/bonsaihq/bonsai/plugin/ai/lang"
)

// Interpreter extracts structured task commands from chat messages.
//
// A single hard timeout bounds each model call. On timeout or failure
// the interpreter returns an unavailable sentinel command rather than
// retrying; routing that sentinel to fallback is the caller's job.
type Interpreter struct {
	llm     ai.LLMService
	timeout time.Duration
	now     func() time.Time
}

// New creates an Interpreter backed by the given LLM service.
func New(llm ai.LLMService, timeout time.Duration) *Interpreter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Interpreter{
		llm:     llm,
		timeout: timeout,
		now:     time.Now,
	}
}

// intentPayload mirrors the extract_task_intent function schema.
type intentPayload struct {
	Action                string  `json:"action"`
	Confidence            float64 `json:"confidence"`
	DetectedLanguage      string  `json:"detected_language"`
	Title                 string  `json:"title"`
	TaskID                *int    `json:"task_id"`
	TaskReference         string  `json:"task_reference"`
	DueDate               string  `json:"due_date"`
	Priority              *int32  `json:"priority"`
	StatusFilter          string  `json:"status_filter"`
	NeedsClarification    bool    `json:"needs_clarification"`
	ClarificationQuestion string  `json:"clarification_question"`
}

// Interpret extracts a Command from the user message. The returned
// command is never nil; when the model is unreachable it carries the
// Unavailable flag with action unknown and zero confidence.
func (i *Interpreter) Interpret(ctx context.Context, text string, history []ai.Message, tasks []TaskContext) *Command {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	args, err := i.llm.CallFunction(ctx, buildMessages(text, history, tasks), intentFunction)
	if err != nil {
		slog.Warn("intent extraction failed", "error", err)
		return unavailableCommand(text)
	}

	var payload intentPayload
	if err := json.Unmarshal([]byte(args), &payload); err != nil {
		slog.Warn("intent extraction returned malformed arguments", "error", err)
		return unavailableCommand(text)
	}

	return i.commandFromPayload(text, &payload, tasks)
}

func (i *Interpreter) commandFromPayload(text string, payload *intentPayload, tasks []TaskContext) *Command {
	cmd := &Command{
		OriginalText: text,
		Action:       parseAction(payload.Action),
		Confidence:   clamp01(payload.Confidence),
		Language:     parseLanguage(payload.DetectedLanguage),
		Title:        strings.TrimSpace(payload.Title),
	}

	if payload.TaskID != nil {
		cmd.TaskID = resolveTaskByIndex(*payload.TaskID, tasks)
	}
	cmd.TaskReference = strings.TrimSpace(payload.TaskReference)
	cmd.DueTs = parseDueDate(payload.DueDate, i.now())
	if payload.Priority != nil && *payload.Priority >= 1 && *payload.Priority <= 5 {
		cmd.Priority = payload.Priority
	}
	cmd.StatusFilter = parseStatusFilter(payload.StatusFilter)

	if payload.NeedsClarification {
		cmd.Clarification = payload.ClarificationQuestion
		if cmd.Clarification == "" {
			cmd.Clarification = "Could you please provide more details?"
		}
	}

	// Resolve text references against the user's tasks. A single match
	// binds the command to that task; several matches force the user to
	// pick one.
	if cmd.TaskReference != "" && cmd.TaskID == nil && len(tasks) > 0 {
		matches := findMatchingTasks(cmd.TaskReference, tasks)
		switch len(matches) {
		case 0:
		case 1:
			cmd.TaskID = &matches[0]
		default:
			cmd.MultipleMatches = matches
			cmd.Clarification = "Multiple tasks match '" + cmd.TaskReference + "'. Please specify which one by number."
		}
	}

	cmd.SuggestedCLI = BuildCLICommand(cmd)
	return cmd
}

func unavailableCommand(text string) *Command {
	return &Command{
		OriginalText:  text,
		Action:        ActionUnknown,
		Confidence:    0,
		Language:      lang.English,
		Clarification: "I'm having trouble understanding right now. Please try a CLI command directly.",
		SuggestedCLI:  "bonsai help",
		Unavailable:   true,
	}
}

func parseAction(s string) Action {
	switch Action(s) {
	case ActionAdd, ActionList, ActionUpdate, ActionDelete, ActionComplete:
		return Action(s)
	default:
		return ActionUnknown
	}
}

func parseLanguage(s string) lang.Language {
	if s == string(lang.Urdu) {
		return lang.Urdu
	}
	return lang.English
}

func parseStatusFilter(s string) StatusFilter {
	switch StatusFilter(s) {
	case StatusFilterPending, StatusFilterCompleted, StatusFilterAll:
		return StatusFilter(s)
	default:
		return ""
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// resolveTaskByIndex maps a 1-based task index from the model onto a
// store task ID.
func resolveTaskByIndex(index int, tasks []TaskContext) *int32 {
	if index < 1 || index > len(tasks) {
		return nil
	}
	id := tasks[index-1].ID
	return &id
}

// findMatchingTasks returns IDs of tasks whose title contains, or is
// contained by, the reference text.
func findMatchingTasks(reference string, tasks []TaskContext) []int32 {
	reference = strings.ToLower(reference)
	matches := []int32{}
	for _, task := range tasks {
		title := strings.ToLower(task.Title)
		if strings.Contains(title, reference) || strings.Contains(reference, title) {
			matches = append(matches, task.ID)
		}
	}
	return matches
}

// parseDueDate turns a natural language or ISO date into a unix
// timestamp at the start of that day.
func parseDueDate(s string, now time.Time) *int64 {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var due time.Time
	switch s {
	case "today", "now":
		due = today
	case "tomorrow":
		due = today.AddDate(0, 0, 1)
	case "next week":
		due = today.AddDate(0, 0, 7)
	case "next month":
		due = today.AddDate(0, 1, 0)
	default:
		if strings.Contains(s, "day") {
			// "in 3 days", "3 days"
			digits := strings.Map(func(r rune) rune {
				if r >= '0' && r <= '9' {
					return r
				}
				return -1
			}, s)
			if digits != "" {
				var n int
				for _, r := range digits {
					n = n*10 + int(r-'0')
				}
				due = today.AddDate(0, 0, n)
				break
			}
		}
		parsed, err := time.ParseInLocation("2006-01-02", s, now.Location())
		if err != nil {
			return nil
		}
		due = parsed
	}

	ts := due.Unix()
	return &ts
}
