// Package chat orchestrates the natural language pipeline: detect
// language, interpret the message, route by confidence, execute or
// degrade, and persist both sides of the exchange.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bonsaihq/bonsai/plugin/ai"
	"github.com/bonsaihq/bonsai/plugin/ai/executor"
	"github.com/bonsaihq/bonsai/plugin/ai/interpreter"
	"github.com/bonsaihq/bonsai/plugin/ai/lang"
	"github.com/bonsaihq/bonsai/plugin/ai/router"
	apierrors "github.com/bonsaihq/bonsai/internal/errors"
	"github.com/bonsaihq/bonsai/server/internal/observability"
	"github.com/bonsaihq/bonsai/server/middleware"
	"github.com/bonsaihq/bonsai/server/service/conversation"
	"github.com/bonsaihq/bonsai/store"
)

// maxMessageLength bounds a single chat message.
const maxMessageLength = 2000

// taskContextLimit bounds how many tasks are handed to the model for
// reference resolution.
const taskContextLimit = 20

// NLInterpreter extracts a structured command from a chat message.
type NLInterpreter interface {
	Interpret(ctx context.Context, text string, history []ai.Message, tasks []interpreter.TaskContext) *interpreter.Command
}

// CommandExecutor runs an interpreted command for a user.
type CommandExecutor interface {
	Execute(ctx context.Context, userID int32, cmd *interpreter.Command) (*executor.Result, error)
}

// TaskStore is the slice of the task store the chat service reads.
type TaskStore interface {
	ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error)
}

// Response is the outcome of one chat turn.
type Response struct {
	ConversationID    int32               `json:"conversation_id"`
	Message           string              `json:"message"`
	Action            interpreter.Action  `json:"action,omitempty"`
	Confidence        float64             `json:"confidence"`
	Language          lang.Language       `json:"language"`
	SuggestedCLI      string              `json:"suggested_cli,omitempty"`
	NeedsConfirmation bool                `json:"needs_confirmation,omitempty"`
	IsFallback        bool                `json:"is_fallback,omitempty"`
	Task              *store.Task         `json:"task,omitempty"`
	Tasks             []*store.Task       `json:"tasks,omitempty"`
	MatchingTaskIDs   []int32             `json:"matching_task_ids,omitempty"`
}

// Service runs the chat pipeline.
type Service struct {
	tasks         TaskStore
	conversations *conversation.Service
	interp        NLInterpreter
	exec          CommandExecutor
	limiter       *middleware.RateLimiter
	thresholds    router.Thresholds
	logger        *slog.Logger
}

// NewService creates a chat service. A nil interp marks the model as
// unavailable: messages still persist but every turn degrades to the
// CLI fallback.
func NewService(tasks TaskStore, conversations *conversation.Service, interp NLInterpreter, exec CommandExecutor, limiter *middleware.RateLimiter, thresholds router.Thresholds) *Service {
	if limiter == nil {
		limiter = middleware.NewRateLimiter(0, 0)
	}
	if thresholds.High == 0 && thresholds.Low == 0 {
		thresholds = router.DefaultThresholds()
	}
	return &Service{
		tasks:         tasks,
		conversations: conversations,
		interp:        interp,
		exec:          exec,
		limiter:       limiter,
		thresholds:    thresholds,
		logger:        slog.Default(),
	}
}

// ProcessMessage handles one user message end to end.
func (s *Service) ProcessMessage(ctx context.Context, userID int32, conversationID *int32, text string) (*Response, error) {
	reqCtx := observability.NewRequestContext(s.logger, "chat.process_message", userID)
	ctx = observability.WithRequestContext(ctx, reqCtx)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apierrors.InvalidArgument("message must not be empty")
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, apierrors.InvalidArgument(fmt.Sprintf("message exceeds %d characters", maxMessageLength))
	}

	if !s.limiter.Allow(fmt.Sprintf("chat:%d", userID)) {
		return nil, apierrors.RateLimitExceeded("too many chat requests, slow down")
	}

	conv, err := s.conversations.GetOrCreate(ctx, userID, conversationID, text)
	if err != nil {
		return nil, err
	}

	// Load the context window before persisting the new message so the
	// model never sees the message twice.
	history, err := s.contextWindow(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	if _, err := s.conversations.AppendMessage(ctx, conv.ID, store.MessageRoleUser, text, "", nil); err != nil {
		return nil, err
	}

	detected := lang.Detect(text)

	var response *Response
	switch {
	case isCLICommand(text):
		response = s.cliBypassResponse(text)
	case s.interp == nil:
		response = s.unavailableResponse(detected.Language)
	default:
		response, err = s.interpretAndRespond(ctx, reqCtx, userID, text, history)
		if err != nil {
			return nil, err
		}
	}

	response.ConversationID = conv.ID
	if response.Language == "" {
		response.Language = detected.Language
	}

	if err := s.storeResponse(ctx, conv.ID, response); err != nil {
		return nil, err
	}

	reqCtx.Info("chat turn completed",
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
		slog.Int(observability.LogFieldMessageLen, len(text)),
		slog.Float64(observability.LogFieldConfidence, response.Confidence),
	)
	return response, nil
}

// Confirm resolves a pending confirmation. On approval the last user
// message is re-interpreted and executed regardless of confidence.
func (s *Service) Confirm(ctx context.Context, userID int32, conversationID int32, confirmed bool) (*Response, error) {
	reqCtx := observability.NewRequestContext(s.logger, "chat.confirm", userID)
	ctx = observability.WithRequestContext(ctx, reqCtx)

	conv, err := s.conversations.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	if !confirmed {
		response := &Response{
			ConversationID: conv.ID,
			Message:        "Okay, I won't do that. What would you like to do instead?",
			Confidence:     1.0,
			Language:       lang.English,
		}
		if err := s.storeResponse(ctx, conv.ID, response); err != nil {
			return nil, err
		}
		return response, nil
	}

	last, err := s.conversations.LastUserMessage(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		response := &Response{
			ConversationID: conv.ID,
			Message:        "I couldn't find what to confirm. Please try again.",
			Confidence:     1.0,
			Language:       lang.English,
		}
		if err := s.storeResponse(ctx, conv.ID, response); err != nil {
			return nil, err
		}
		return response, nil
	}

	if s.interp == nil {
		response := s.unavailableResponse(lang.Detect(last.Content).Language)
		response.ConversationID = conv.ID
		if err := s.storeResponse(ctx, conv.ID, response); err != nil {
			return nil, err
		}
		return response, nil
	}

	taskContexts, err := s.taskContexts(ctx, userID)
	if err != nil {
		return nil, err
	}

	cmd := s.interp.Interpret(ctx, last.Content, nil, taskContexts)
	if cmd.Unavailable {
		response := s.unavailableResponse(cmd.Language)
		response.ConversationID = conv.ID
		if err := s.storeResponse(ctx, conv.ID, response); err != nil {
			return nil, err
		}
		return response, nil
	}

	response, err := s.executeCommand(ctx, userID, cmd)
	if err != nil {
		return nil, err
	}
	response.ConversationID = conv.ID

	if err := s.storeResponse(ctx, conv.ID, response); err != nil {
		return nil, err
	}

	reqCtx.Info("confirmed action executed",
		slog.String(observability.LogFieldDecision, string(cmd.Action)),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
	)
	return response, nil
}

func (s *Service) interpretAndRespond(ctx context.Context, reqCtx *observability.RequestContext, userID int32, text string, history []ai.Message) (*Response, error) {
	taskContexts, err := s.taskContexts(ctx, userID)
	if err != nil {
		return nil, err
	}

	cmd := s.interp.Interpret(ctx, text, history, taskContexts)
	decision := router.Route(cmd, s.thresholds)

	reqCtx.Info("message interpreted",
		slog.String("action", string(cmd.Action)),
		slog.Float64(observability.LogFieldConfidence, cmd.Confidence),
		slog.String(observability.LogFieldDecision, string(decision.Kind)),
	)

	switch decision.Kind {
	case router.Execute:
		return s.executeCommand(ctx, userID, cmd)

	case router.Confirm:
		return &Response{
			Message:           confirmationMessage(cmd),
			Action:            cmd.Action,
			Confidence:        cmd.Confidence,
			Language:          cmd.Language,
			SuggestedCLI:      cmd.SuggestedCLI,
			NeedsConfirmation: true,
		}, nil

	case router.Clarify:
		return &Response{
			Message:      clarificationMessage(cmd),
			Action:       cmd.Action,
			Confidence:   cmd.Confidence,
			Language:     cmd.Language,
			SuggestedCLI: cmd.SuggestedCLI,
		}, nil

	case router.Disambiguate:
		return &Response{
			Message:         cmd.Clarification,
			Action:          cmd.Action,
			Confidence:      cmd.Confidence,
			Language:        cmd.Language,
			SuggestedCLI:    cmd.SuggestedCLI,
			MatchingTaskIDs: cmd.MultipleMatches,
		}, nil

	default:
		fallback := interpreter.LowConfidenceFallback(cmd)
		response := &Response{
			Message:      fallback.Message,
			Confidence:   cmd.Confidence,
			Language:     cmd.Language,
			SuggestedCLI: fallback.SuggestedCLI,
			IsFallback:   true,
		}
		if cmd.Action != interpreter.ActionUnknown {
			response.Action = cmd.Action
		}
		return response, nil
	}
}

func (s *Service) executeCommand(ctx context.Context, userID int32, cmd *interpreter.Command) (*Response, error) {
	result, err := s.exec.Execute(ctx, userID, cmd)
	if err != nil {
		return nil, err
	}

	response := &Response{
		Action:     cmd.Action,
		Confidence: cmd.Confidence,
		Language:   cmd.Language,
	}

	if !result.Success {
		response.Message = errorOccurredMessage(cmd.Language, result.ErrorMessage)
		response.SuggestedCLI = cmd.SuggestedCLI
		response.IsFallback = true
		return response, nil
	}

	switch result.Action {
	case interpreter.ActionAdd:
		response.Message = taskCreatedMessage(cmd.Language, result.Task.Title)
		response.Task = result.Task
	case interpreter.ActionList:
		response.Message = taskListMessage(cmd.Language, result.Tasks)
		response.Tasks = result.Tasks
	case interpreter.ActionComplete:
		if result.AlreadyCompleted {
			response.Message = alreadyCompletedMessage(cmd.Language, result.Task.Title)
		} else {
			response.Message = taskCompletedMessage(cmd.Language, result.Task.Title)
		}
		response.Task = result.Task
	case interpreter.ActionUpdate:
		response.Message = taskUpdatedMessage(cmd.Language, result.OldTitle, result.Task.Title)
		response.Task = result.Task
	case interpreter.ActionDelete:
		response.Message = taskDeletedMessage(cmd.Language, result.Task.Title)
		response.Task = result.Task
	default:
		response.Message = doneMessage(cmd.Language)
	}
	return response, nil
}

func (s *Service) cliBypassResponse(text string) *Response {
	return &Response{
		Message: "I see you've entered a CLI command. " +
			"Please use the terminal to run it directly, " +
			"or describe what you'd like to do in natural language.",
		Confidence:   1.0,
		SuggestedCLI: strings.TrimSpace(text),
		IsFallback:   true,
	}
}

func (s *Service) unavailableResponse(language lang.Language) *Response {
	fallback := interpreter.UnavailableFallback()
	return &Response{
		Message:      fallback.Message,
		Confidence:   0,
		Language:     language,
		SuggestedCLI: fallback.SuggestedCLI,
		IsFallback:   true,
	}
}

func (s *Service) storeResponse(ctx context.Context, conversationID int32, response *Response) error {
	confidence := response.Confidence
	_, err := s.conversations.AppendMessage(ctx, conversationID,
		store.MessageRoleAssistant, response.Message, response.SuggestedCLI, &confidence)
	return err
}

// contextWindow converts the recent conversation history into model
// messages.
func (s *Service) contextWindow(ctx context.Context, conversationID int32) ([]ai.Message, error) {
	messages, err := s.conversations.ContextWindow(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	history := make([]ai.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == store.MessageRoleAssistant {
			history = append(history, ai.AssistantMessage(m.Content))
		} else {
			history = append(history, ai.UserMessage(m.Content))
		}
	}
	return history, nil
}

func (s *Service) taskContexts(ctx context.Context, userID int32) ([]interpreter.TaskContext, error) {
	limit := taskContextLimit
	tasks, err := s.tasks.ListTasks(ctx, &store.FindTask{CreatorID: &userID, Limit: &limit})
	if err != nil {
		return nil, apierrors.Internal("failed to load task context", err)
	}
	contexts := make([]interpreter.TaskContext, 0, len(tasks))
	for _, task := range tasks {
		contexts = append(contexts, interpreter.TaskContext{
			ID:        task.ID,
			Title:     task.Title,
			Completed: task.Status == store.TaskStatusCompleted,
		})
	}
	return contexts, nil
}

func isCLICommand(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	return strings.HasPrefix(lower, "bonsai ") || lower == "/cli" || strings.HasPrefix(lower, "/cli ")
}
