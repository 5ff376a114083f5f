package interpreter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bonsaihq/bonsai/plugin/ai"
)

const intentSystemPrompt = `You are a bilingual (English/Urdu) task management assistant that interprets natural language commands and converts them to structured task operations.

Your job is to understand what the user wants to do with their tasks and extract the relevant information. You MUST detect the input language and respond accordingly.

Available operations:
1. ADD - Create a new task (requires: title, optional: due_date)
2. LIST - View tasks (optional: status filter - pending, completed, or all)
3. UPDATE - Modify an existing task (requires: task_id or task reference, optional: new title, new due_date)
4. DELETE - Remove a task (requires: task_id or task reference)
5. COMPLETE - Mark a task as done (requires: task_id or task reference)

Rules:
- ONLY extract information that is explicitly stated by the user
- Do NOT add, assume, or infer details not mentioned
- If the user's intent is unclear, set needs_clarification to true
- If multiple tasks might match a description (e.g., "the grocery task"), note this
- Be conservative - if unsure, ask for clarification rather than guessing
- Detect the input language (English or Urdu) and set detected_language field

URDU LANGUAGE SUPPORT:
Map these Urdu command patterns to actions:
- نیا کام / کام شامل کرو / شامل کرو / بناؤ → ADD (create new task)
- دکھاؤ / میرے کام / فہرست / کام دکھاؤ → LIST (show tasks)
- مکمل / ہو گیا / ختم / کر لیا → COMPLETE (mark as done)
- حذف / مٹا دو / ہٹاؤ / نکالو → DELETE (remove task)
- تبدیل / بدلو / ترمیم / درست کرو → UPDATE (modify task)

Urdu time words: آج → today, کل → tomorrow, اگلے ہفتے → next week, ابھی → now

Urdu priority words: فوری / اہم / ضروری → 1, اعلی / زیادہ → 2, درمیانی → 3, کم → 4

Examples (English):
- "Add a task to buy groceries tomorrow" → ADD, title="buy groceries", due_date=tomorrow
- "Show my pending tasks" → LIST, status_filter=pending
- "Mark task 3 as done" → COMPLETE, task_id=3

Examples (Urdu):
- "نیا کام شامل کرو: دودھ خریدنا" → ADD, title="دودھ خریدنا", detected_language=ur
- "میرے کام دکھاؤ" → LIST, status_filter=all, detected_language=ur
- "پہلا کام مکمل" → COMPLETE, task_id=1, detected_language=ur`

// intentFunction is the function calling schema for intent extraction.
var intentFunction = &openai.FunctionDefinition{
	Name:        "extract_task_intent",
	Description: "Extract the user's intent from a natural language task management command (supports English and Urdu)",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["add", "list", "update", "delete", "complete", "unknown"],
				"description": "The task operation the user wants to perform"
			},
			"confidence": {
				"type": "number",
				"minimum": 0.0,
				"maximum": 1.0,
				"description": "Confidence score for the interpretation (0.0-1.0)"
			},
			"detected_language": {
				"type": "string",
				"enum": ["en", "ur"],
				"description": "Detected input language"
			},
			"title": {
				"type": "string",
				"description": "Task title for add/update operations (only if explicitly stated, preserve original language)"
			},
			"task_id": {
				"type": "integer",
				"description": "1-based task index if the user specified one (e.g., 'task 3')"
			},
			"task_reference": {
				"type": "string",
				"description": "Text reference to a task if not by number (e.g., 'the grocery task')"
			},
			"due_date": {
				"type": "string",
				"description": "Due date in natural language (e.g., 'tomorrow') or ISO format"
			},
			"priority": {
				"type": "integer",
				"minimum": 1,
				"maximum": 5,
				"description": "Priority level if specified: 1=Critical, 2=High, 3=Medium, 4=Low, 5=None"
			},
			"status_filter": {
				"type": "string",
				"enum": ["pending", "completed", "all"],
				"description": "Status filter for list operations"
			},
			"needs_clarification": {
				"type": "boolean",
				"description": "True if the user's intent is ambiguous and needs clarification"
			},
			"clarification_question": {
				"type": "string",
				"description": "Question to ask the user if clarification is needed (in the detected language)"
			}
		},
		"required": ["action", "confidence", "detected_language"]
	}`),
}

// buildMessages assembles the extraction prompt: system instructions,
// the user's current tasks, a bounded slice of conversation history and
// finally the message being interpreted.
func buildMessages(text string, history []ai.Message, tasks []TaskContext) []ai.Message {
	messages := []ai.Message{ai.SystemPrompt(intentSystemPrompt)}

	if len(tasks) > 0 {
		var b strings.Builder
		b.WriteString("Current tasks:\n")
		for i, task := range tasks {
			status := "pending"
			if task.Completed {
				status = "done"
			}
			fmt.Fprintf(&b, "- %d: %s [%s]\n", i+1, task.Title, status)
		}
		messages = append(messages, ai.SystemPrompt(b.String()))
	}

	messages = append(messages, history...)
	messages = append(messages, ai.UserMessage(text))
	return messages
}
