package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonsaihq/bonsai/internal/profile"
	"github.com/bonsaihq/bonsai/server/service/conversation"
	"github.com/bonsaihq/bonsai/server/service/events"
	"github.com/bonsaihq/bonsai/server/service/hooks"
	"github.com/bonsaihq/bonsai/server/service/recurrence"
	"github.com/bonsaihq/bonsai/server/service/reminder"
	"github.com/bonsaihq/bonsai/server/service/session"
	"github.com/bonsaihq/bonsai/store"
)

// memoryDriver is a full in-memory store.Driver for handler tests.
type memoryDriver struct {
	mu            sync.Mutex
	nextID        int32
	tasks         map[int32]*store.Task
	rules         map[int32]*store.RecurrenceRule
	conversations map[int32]*store.Conversation
	messages      map[int32]*store.Message
	reminders     map[int32]*store.Reminder
	events        map[int32]*store.TaskEvent
}

func newMemoryDriver() *memoryDriver {
	return &memoryDriver{
		nextID:        1,
		tasks:         make(map[int32]*store.Task),
		rules:         make(map[int32]*store.RecurrenceRule),
		conversations: make(map[int32]*store.Conversation),
		messages:      make(map[int32]*store.Message),
		reminders:     make(map[int32]*store.Reminder),
		events:        make(map[int32]*store.TaskEvent),
	}
}

func (m *memoryDriver) GetDB() *sql.DB                  { return nil }
func (m *memoryDriver) Close() error                    { return nil }
func (m *memoryDriver) Migrate(_ context.Context) error { return nil }

func (m *memoryDriver) allocID() int32 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryDriver) CreateTask(_ context.Context, create *store.Task) (*store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = m.allocID()
	copied := *create
	m.tasks[create.ID] = &copied
	return create, nil
}

func (m *memoryDriver) ListTasks(_ context.Context, find *store.FindTask) ([]*store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*store.Task{}
	for _, task := range m.tasks {
		if find.ID != nil && task.ID != *find.ID {
			continue
		}
		if find.CreatorID != nil && task.CreatorID != *find.CreatorID {
			continue
		}
		if find.Status != nil && task.Status != *find.Status {
			continue
		}
		if find.RecurrenceRuleID != nil && (task.RecurrenceRuleID == nil || *task.RecurrenceRuleID != *find.RecurrenceRuleID) {
			continue
		}
		copied := *task
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memoryDriver) UpdateTask(_ context.Context, update *store.UpdateTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[update.ID]
	if !ok {
		return nil
	}
	if update.Title != nil {
		task.Title = *update.Title
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Priority != nil {
		task.Priority = *update.Priority
	}
	if update.DueTs != nil {
		task.DueTs = update.DueTs
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.RecurrenceRuleID != nil {
		task.RecurrenceRuleID = update.RecurrenceRuleID
	}
	if update.CompletedTs != nil {
		task.CompletedTs = update.CompletedTs
	}
	if update.UpdatedTs != nil {
		task.UpdatedTs = *update.UpdatedTs
	}
	return nil
}

func (m *memoryDriver) DeleteTask(_ context.Context, del *store.DeleteTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, del.ID)
	return nil
}

func (m *memoryDriver) CompleteTask(_ context.Context, id int32, completedTs int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok || task.Status != store.TaskStatusPending {
		return false, nil
	}
	task.Status = store.TaskStatusCompleted
	task.CompletedTs = &completedTs
	task.UpdatedTs = completedTs
	return true, nil
}

func (m *memoryDriver) CreateRecurrenceRule(_ context.Context, create *store.RecurrenceRule) (*store.RecurrenceRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = m.allocID()
	copied := *create
	m.rules[create.ID] = &copied
	return create, nil
}

func (m *memoryDriver) ListRecurrenceRules(_ context.Context, find *store.FindRecurrenceRule) ([]*store.RecurrenceRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*store.RecurrenceRule{}
	for _, rule := range m.rules {
		if find.ID != nil && rule.ID != *find.ID {
			continue
		}
		if find.CreatorID != nil && rule.CreatorID != *find.CreatorID {
			continue
		}
		copied := *rule
		list = append(list, &copied)
	}
	return list, nil
}

func (m *memoryDriver) DeleteRecurrenceRule(_ context.Context, del *store.DeleteRecurrenceRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, del.ID)
	return nil
}

func (m *memoryDriver) CreateConversation(_ context.Context, create *store.Conversation) (*store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = m.allocID()
	copied := *create
	m.conversations[create.ID] = &copied
	return create, nil
}

func (m *memoryDriver) ListConversations(_ context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*store.Conversation{}
	for _, c := range m.conversations {
		if find.ID != nil && c.ID != *find.ID {
			continue
		}
		if find.CreatorID != nil && c.CreatorID != *find.CreatorID {
			continue
		}
		copied := *c
		list = append(list, &copied)
	}
	return list, nil
}

func (m *memoryDriver) UpdateConversation(_ context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[update.ID]
	if !ok {
		return nil, nil
	}
	if update.Title != nil {
		c.Title = *update.Title
	}
	if update.UpdatedTs != nil {
		c.UpdatedTs = *update.UpdatedTs
	}
	copied := *c
	return &copied, nil
}

func (m *memoryDriver) DeleteConversation(_ context.Context, del *store.DeleteConversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, del.ID)
	return nil
}

func (m *memoryDriver) CreateMessage(_ context.Context, create *store.Message) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = m.allocID()
	copied := *create
	m.messages[create.ID] = &copied
	return create, nil
}

func (m *memoryDriver) ListMessages(_ context.Context, find *store.FindMessage) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*store.Message{}
	for _, msg := range m.messages {
		if find.ConversationID != nil && msg.ConversationID != *find.ConversationID {
			continue
		}
		if find.Role != nil && msg.Role != *find.Role {
			continue
		}
		copied := *msg
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[len(list)-*find.Limit:]
	}
	return list, nil
}

func (m *memoryDriver) DeleteMessage(_ context.Context, del *store.DeleteMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if del.ConversationID != nil {
		for id, msg := range m.messages {
			if msg.ConversationID == *del.ConversationID {
				delete(m.messages, id)
			}
		}
	}
	return nil
}

func (m *memoryDriver) CreateReminder(_ context.Context, create *store.Reminder) (*store.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = m.allocID()
	copied := *create
	m.reminders[create.ID] = &copied
	return create, nil
}

func (m *memoryDriver) ListReminders(_ context.Context, find *store.FindReminder) ([]*store.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*store.Reminder{}
	for _, r := range m.reminders {
		if find.ID != nil && r.ID != *find.ID {
			continue
		}
		if find.TaskID != nil && r.TaskID != *find.TaskID {
			continue
		}
		if find.CreatorID != nil && r.CreatorID != *find.CreatorID {
			continue
		}
		if find.Status != nil && r.Status != *find.Status {
			continue
		}
		if find.DueBefore != nil && r.RemindTs > *find.DueBefore {
			continue
		}
		copied := *r
		list = append(list, &copied)
	}
	return list, nil
}

func (m *memoryDriver) DeleteReminder(_ context.Context, del *store.DeleteReminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if del.ID != nil {
		delete(m.reminders, *del.ID)
	}
	if del.TaskID != nil {
		for id, r := range m.reminders {
			if r.TaskID == *del.TaskID {
				delete(m.reminders, id)
			}
		}
	}
	return nil
}

func (m *memoryDriver) ClaimReminder(_ context.Context, id int32, deliveredTs int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok || r.Status != store.ReminderStatusPending {
		return false, nil
	}
	r.Status = store.ReminderStatusDelivered
	r.DeliveredTs = &deliveredTs
	return true, nil
}

func (m *memoryDriver) CancelTaskReminders(_ context.Context, taskID int32) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cancelled int64
	for _, r := range m.reminders {
		if r.TaskID == taskID && r.Status == store.ReminderStatusPending {
			r.Status = store.ReminderStatusCancelled
			cancelled++
		}
	}
	return cancelled, nil
}

func (m *memoryDriver) CreateTaskEvent(_ context.Context, create *store.TaskEvent) (*store.TaskEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = m.allocID()
	copied := *create
	m.events[create.ID] = &copied
	return create, nil
}

func (m *memoryDriver) ListTaskEvents(_ context.Context, find *store.FindTaskEvent) ([]*store.TaskEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*store.TaskEvent{}
	for _, e := range m.events {
		if find.TaskID != nil && e.TaskID != *find.TaskID {
			continue
		}
		if find.Published != nil && e.Published != *find.Published {
			continue
		}
		copied := *e
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memoryDriver) MarkTaskEventPublished(_ context.Context, id int32, publishedTs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		e.Published = true
		e.PublishedTs = &publishedTs
	}
	return nil
}

func (m *memoryDriver) PurgeTaskEvents(_ context.Context, before int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, e := range m.events {
		if e.CreatedTs <= before {
			delete(m.events, id)
			purged++
		}
	}
	return purged, nil
}

func newTestAPI(t *testing.T) (*echo.Echo, *memoryDriver, *hooks.TaskHooks) {
	t.Helper()
	driver := newMemoryDriver()
	p := &profile.Profile{Mode: "dev", Driver: "sqlite", Version: "test"}
	st := store.New(driver, p)

	reminders := reminder.NewService(st, nil)
	rec := recurrence.NewService(st)
	publisher := events.NewPublisher(st, "")
	taskHooks := hooks.New(publisher, reminders, rec)
	conversations := conversation.NewService(st)
	hub := session.NewHub()

	// Chat is exercised in its own package; handler tests leave it nil
	// and stay off the /chat routes.
	svc := NewAPIV1Service(p, st, nil, conversations, reminders, rec, hub, taskHooks)
	e := echo.New()
	svc.Register(e)
	return e, driver, taskHooks
}

func doRequest(t *testing.T, e *echo.Echo, method, path, body string, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	e, _, _ := newTestAPI(t)
	rec := doRequest(t, e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMissingUserHeader(t *testing.T) {
	e, _, _ := newTestAPI(t)
	rec := doRequest(t, e, http.MethodGet, "/api/v1/tasks", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/tasks", "", "not-a-number")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTaskLifecycle(t *testing.T) {
	e, driver, taskHooks := newTestAPI(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/tasks", `{"title":"write report","priority":2}`, "1")
	require.Equal(t, http.StatusCreated, rec.Code)
	var task store.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, "write report", task.Title)
	assert.Equal(t, int32(2), task.Priority)

	// Creation recorded an event. The hooks run in the background, so
	// drain them before inspecting the store.
	taskHooks.Wait()
	eventList, err := driver.ListTaskEvents(context.Background(), &store.FindTaskEvent{})
	require.NoError(t, err)
	require.Len(t, eventList, 1)
	assert.Equal(t, store.TaskEventCreated, eventList[0].Type)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/tasks?status=pending", "", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []*store.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Len(t, tasks, 1)

	rec = doRequest(t, e, http.MethodPatch, "/api/v1/tasks/1", `{"title":"write the report"}`, "1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, "write the report", task.Title)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/tasks/1/complete", "", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"already_completed":false`)

	// Completing again is an idempotent no-op.
	rec = doRequest(t, e, http.MethodPost, "/api/v1/tasks/1/complete", "", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"already_completed":true`)

	rec = doRequest(t, e, http.MethodDelete, "/api/v1/tasks/1", "", "1")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/tasks/1", "", "1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskOwnership(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/tasks", `{"title":"private"}`, "1")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/tasks/1", "", "2")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, e, http.MethodDelete, "/api/v1/tasks/1", "", "2")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The other user's list is empty.
	rec = doRequest(t, e, http.MethodGet, "/api/v1/tasks", "", "2")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []*store.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Empty(t, tasks)
}

func TestTaskValidation(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/tasks", `{"title":""}`, "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/tasks", `{"title":"x","priority":9}`, "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/tasks?status=bogus", "", "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/tasks", `{"title":"real task"}`, "1")
	require.Equal(t, http.StatusCreated, rec.Code)
	var task store.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))

	rec = doRequest(t, e, http.MethodPatch, fmt.Sprintf("/api/v1/tasks/%d", task.ID), `{}`, "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecurrenceEndpoints(t *testing.T) {
	e, driver, taskHooks := newTestAPI(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/tasks", `{"title":"standup"}`, "1")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/tasks/1/recurrence", `{"frequency":"DAILY","interval":1}`, "1")
	require.Equal(t, http.StatusCreated, rec.Code)
	var rule store.RecurrenceRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rule))
	assert.Equal(t, store.FrequencyDaily, rule.Frequency)

	taskHooks.Wait()
	task := driver.tasks[1]
	require.NotNil(t, task.RecurrenceRuleID)
	assert.Equal(t, rule.ID, *task.RecurrenceRuleID)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/tasks/1/recurrence", `{"frequency":"HOURLY"}`, "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e, http.MethodPatch, "/api/v1/tasks/1/recurrence", `{"title":"daily standup"}`, "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"updated_instances":1`)
	assert.Equal(t, "daily standup", driver.tasks[1].Title)

	rec = doRequest(t, e, http.MethodDelete, "/api/v1/tasks/1/recurrence", "", "1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReminderEndpoints(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/tasks", `{"title":"pay rent"}`, "1")
	require.Equal(t, http.StatusCreated, rec.Code)

	body := `{"task_id":1,"remind_ts":9999999999,"message":"rent"}`
	rec = doRequest(t, e, http.MethodPost, "/api/v1/reminders", body, "1")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created store.Reminder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// A reminder in the past is rejected.
	rec = doRequest(t, e, http.MethodPost, "/api/v1/reminders", `{"task_id":1,"remind_ts":1}`, "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/reminders", "", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	var reminders []*store.Reminder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reminders))
	assert.Len(t, reminders, 1)

	path := fmt.Sprintf("/api/v1/reminders/%d", created.ID)
	rec = doRequest(t, e, http.MethodDelete, path, "", "2")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, e, http.MethodDelete, path, "", "1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestConversationEndpoints(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/conversations", `{"title":"groceries"}`, "1")
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv store.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Equal(t, "groceries", conv.Title)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/conversations", "", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	var conversations []*store.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conversations))
	assert.Len(t, conversations, 1)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/conversations/1/messages", "", "2")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, e, http.MethodDelete, "/api/v1/conversations/1", "", "1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCompletionTriggersRecurrenceAndEvents(t *testing.T) {
	e, driver, taskHooks := newTestAPI(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/tasks", `{"title":"water plants","due_ts":1700000000}`, "1")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(t, e, http.MethodPost, "/api/v1/tasks/1/recurrence", `{"frequency":"WEEKLY"}`, "1")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/tasks/1/complete", "", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	taskHooks.Wait()

	// The next instance was materialized a week out.
	status := store.TaskStatusPending
	pending, err := driver.ListTasks(context.Background(), &store.FindTask{Status: &status})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].ParentTaskID)
	assert.Equal(t, int32(1), *pending[0].ParentTaskID)
	require.NotNil(t, pending[0].DueTs)
	assert.Equal(t, int64(1700000000+7*24*3600), *pending[0].DueTs)
}
