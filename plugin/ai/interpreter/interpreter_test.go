package interpreter

import (
	"context"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonsaihq/bonsai/plugin/ai"
	"github.com/bonsaihq/bonsai/plugin/ai/lang"
)

// fakeLLM returns canned function call arguments.
type fakeLLM struct {
	args  string
	err   error
	calls int
}

func (f *fakeLLM) Chat(_ context.Context, _ []ai.Message) (string, error) {
	return "", nil
}

func (f *fakeLLM) CallFunction(_ context.Context, _ []ai.Message, _ *openai.FunctionDefinition) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.args, nil
}

func TestInterpretAdd(t *testing.T) {
	llm := &fakeLLM{args: `{
		"action": "add",
		"confidence": 0.92,
		"detected_language": "en",
		"title": "buy groceries",
		"due_date": "tomorrow"
	}`}
	i := New(llm, time.Second)
	i.now = func() time.Time {
		return time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	}

	cmd := i.Interpret(context.Background(), "add a task to buy groceries tomorrow", nil, nil)
	require.NotNil(t, cmd)
	assert.False(t, cmd.Unavailable)
	assert.Equal(t, ActionAdd, cmd.Action)
	assert.Equal(t, "buy groceries", cmd.Title)
	assert.Equal(t, lang.English, cmd.Language)
	assert.InDelta(t, 0.92, cmd.Confidence, 0.001)
	require.NotNil(t, cmd.DueTs)
	assert.Equal(t, time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC).Unix(), *cmd.DueTs)
	assert.Equal(t, `bonsai add "buy groceries" --due 2026-01-16`, cmd.SuggestedCLI)
}

func TestInterpretUnavailableOnError(t *testing.T) {
	llm := &fakeLLM{err: context.DeadlineExceeded}
	i := New(llm, time.Second)

	cmd := i.Interpret(context.Background(), "add milk", nil, nil)
	require.NotNil(t, cmd)
	assert.True(t, cmd.Unavailable)
	assert.Equal(t, ActionUnknown, cmd.Action)
	assert.Zero(t, cmd.Confidence)
	assert.Equal(t, "bonsai help", cmd.SuggestedCLI)
	// No inline retry.
	assert.Equal(t, 1, llm.calls)
}

func TestInterpretUnavailableOnMalformedArguments(t *testing.T) {
	llm := &fakeLLM{args: `not json`}
	i := New(llm, time.Second)

	cmd := i.Interpret(context.Background(), "add milk", nil, nil)
	assert.True(t, cmd.Unavailable)
	assert.Equal(t, ActionUnknown, cmd.Action)
}

func TestInterpretDeterministic(t *testing.T) {
	llm := &fakeLLM{args: `{"action":"complete","confidence":0.85,"detected_language":"en","task_id":2}`}
	i := New(llm, time.Second)
	tasks := []TaskContext{
		{ID: 11, Title: "buy milk"},
		{ID: 12, Title: "call dentist"},
	}

	first := i.Interpret(context.Background(), "finish the second one", nil, tasks)
	second := i.Interpret(context.Background(), "finish the second one", nil, tasks)

	assert.Equal(t, first.Action, second.Action)
	assert.Equal(t, first.TaskID, second.TaskID)
	assert.Equal(t, first.SuggestedCLI, second.SuggestedCLI)
	require.NotNil(t, first.TaskID)
	assert.Equal(t, int32(12), *first.TaskID)
}

func TestInterpretResolvesIndexOutOfRange(t *testing.T) {
	llm := &fakeLLM{args: `{"action":"complete","confidence":0.9,"detected_language":"en","task_id":5}`}
	i := New(llm, time.Second)
	tasks := []TaskContext{{ID: 11, Title: "buy milk"}}

	cmd := i.Interpret(context.Background(), "complete task 5", nil, tasks)
	assert.Nil(t, cmd.TaskID)
}

func TestInterpretSingleReferenceMatch(t *testing.T) {
	llm := &fakeLLM{args: `{"action":"delete","confidence":0.9,"detected_language":"en","task_reference":"grocery"}`}
	i := New(llm, time.Second)
	tasks := []TaskContext{
		{ID: 7, Title: "grocery shopping"},
		{ID: 8, Title: "call dentist"},
	}

	cmd := i.Interpret(context.Background(), "delete the grocery task", nil, tasks)
	require.NotNil(t, cmd.TaskID)
	assert.Equal(t, int32(7), *cmd.TaskID)
	assert.Empty(t, cmd.MultipleMatches)
}

func TestInterpretAmbiguousReference(t *testing.T) {
	llm := &fakeLLM{args: `{"action":"complete","confidence":0.9,"detected_language":"en","task_reference":"meeting"}`}
	i := New(llm, time.Second)
	tasks := []TaskContext{
		{ID: 1, Title: "prepare meeting notes"},
		{ID: 2, Title: "schedule meeting room"},
	}

	cmd := i.Interpret(context.Background(), "complete the meeting task", nil, tasks)
	assert.Nil(t, cmd.TaskID)
	assert.Equal(t, []int32{1, 2}, cmd.MultipleMatches)
	assert.True(t, cmd.NeedsClarification())
}

func TestInterpretClampsConfidence(t *testing.T) {
	llm := &fakeLLM{args: `{"action":"list","confidence":1.7,"detected_language":"en"}`}
	i := New(llm, time.Second)

	cmd := i.Interpret(context.Background(), "show tasks", nil, nil)
	assert.Equal(t, 1.0, cmd.Confidence)
}

func TestInterpretUnknownActionValue(t *testing.T) {
	llm := &fakeLLM{args: `{"action":"dance","confidence":0.4,"detected_language":"en"}`}
	i := New(llm, time.Second)

	cmd := i.Interpret(context.Background(), "dance for me", nil, nil)
	assert.Equal(t, ActionUnknown, cmd.Action)
}

func TestParseDueDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) int64 {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
	}

	tests := []struct {
		in   string
		want *int64
	}{
		{"", nil},
		{"today", ptr(day(2026, 3, 10))},
		{"now", ptr(day(2026, 3, 10))},
		{"tomorrow", ptr(day(2026, 3, 11))},
		{"next week", ptr(day(2026, 3, 17))},
		{"next month", ptr(day(2026, 4, 10))},
		{"in 3 days", ptr(day(2026, 3, 13))},
		{"2026-12-25", ptr(day(2026, 12, 25))},
		{"sometime", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseDueDate(tt.in, now)
			if tt.want == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}

func TestBuildCLICommand(t *testing.T) {
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).Unix()

	tests := []struct {
		name string
		cmd  *Command
		want string
	}{
		{
			name: "add with due and priority",
			cmd:  &Command{Action: ActionAdd, Title: "buy milk", DueTs: &due, Priority: ptr(int32(2))},
			want: `bonsai add "buy milk" --due 2026-05-01 --priority 2`,
		},
		{
			name: "list pending",
			cmd:  &Command{Action: ActionList, StatusFilter: StatusFilterPending},
			want: "bonsai list --pending",
		},
		{
			name: "complete without id",
			cmd:  &Command{Action: ActionComplete},
			want: "bonsai complete <task_id>",
		},
		{
			name: "delete with id",
			cmd:  &Command{Action: ActionDelete, TaskID: ptr(int32(9))},
			want: "bonsai delete 9",
		},
		{
			name: "unknown",
			cmd:  &Command{Action: ActionUnknown},
			want: "bonsai help",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildCLICommand(tt.cmd))
		})
	}
}

func TestFallbackResponses(t *testing.T) {
	unavailable := unavailableCommand("whatever")
	resp := LowConfidenceFallback(unavailable)
	assert.Contains(t, resp.Message, "temporarily unavailable")

	unknown := &Command{Action: ActionUnknown, SuggestedCLI: "bonsai help"}
	resp = LowConfidenceFallback(unknown)
	assert.Contains(t, resp.Message, "not sure")

	del := &Command{Action: ActionDelete, TaskID: ptr(int32(3)), SuggestedCLI: "bonsai delete 3"}
	resp = ConfirmationPrompt(del)
	assert.Contains(t, resp.Message, "cannot be undone")

	add := &Command{Action: ActionAdd, Title: "buy milk", SuggestedCLI: `bonsai add "buy milk"`}
	resp = ConfirmationPrompt(add)
	assert.Contains(t, resp.Message, "Is this correct?")
}

func ptr[T any](v T) *T {
	return &v
}
