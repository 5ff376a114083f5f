package hooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonsaihq/bonsai/server/service/events"
	"github.com/bonsaihq/bonsai/server/service/recurrence"
	"github.com/bonsaihq/bonsai/server/service/reminder"
	"github.com/bonsaihq/bonsai/store"
)

// memoryStore implements the narrow store slices of all three hooked
// services for a single task fixture.
type memoryStore struct {
	mu        sync.Mutex
	nextID    int32
	tasks     map[int32]*store.Task
	rules     map[int32]*store.RecurrenceRule
	reminders map[int32]*store.Reminder
	events    []*store.TaskEvent
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		nextID:    1,
		tasks:     make(map[int32]*store.Task),
		rules:     make(map[int32]*store.RecurrenceRule),
		reminders: make(map[int32]*store.Reminder),
	}
}

func (m *memoryStore) CreateTask(_ context.Context, create *store.Task) (*store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = m.nextID
	m.nextID++
	copied := *create
	m.tasks[create.ID] = &copied
	return create, nil
}

func (m *memoryStore) ListTasks(_ context.Context, find *store.FindTask) ([]*store.Task, error) {
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
	return list, nil
}

func (m *memoryStore) GetTask(ctx context.Context, find *store.FindTask) (*store.Task, error) {
	list, err := m.ListTasks(ctx, find)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (m *memoryStore) UpdateTask(_ context.Context, update *store.UpdateTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[update.ID]
	if !ok {
		return nil
	}
	if update.Title != nil {
		task.Title = *update.Title
	}
	if update.Priority != nil {
		task.Priority = *update.Priority
	}
	return nil
}

func (m *memoryStore) DeleteTask(_ context.Context, del *store.DeleteTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, del.ID)
	return nil
}

func (m *memoryStore) GetRecurrenceRule(_ context.Context, find *store.FindRecurrenceRule) (*store.RecurrenceRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rule := range m.rules {
		if find.ID != nil && rule.ID != *find.ID {
			continue
		}
		copied := *rule
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryStore) CreateRecurrenceRule(_ context.Context, create *store.RecurrenceRule) (*store.RecurrenceRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = m.nextID
	m.nextID++
	copied := *create
	m.rules[create.ID] = &copied
	return create, nil
}

func (m *memoryStore) DeleteRecurrenceRule(_ context.Context, del *store.DeleteRecurrenceRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, del.ID)
	return nil
}

func (m *memoryStore) CreateReminder(_ context.Context, create *store.Reminder) (*store.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = m.nextID
	m.nextID++
	copied := *create
	m.reminders[create.ID] = &copied
	return create, nil
}

func (m *memoryStore) ListReminders(_ context.Context, find *store.FindReminder) ([]*store.Reminder, error) {
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
		if find.Status != nil && r.Status != *find.Status {
			continue
		}
		copied := *r
		list = append(list, &copied)
	}
	return list, nil
}

func (m *memoryStore) DeleteReminder(_ context.Context, del *store.DeleteReminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if del.ID != nil {
		delete(m.reminders, *del.ID)
	}
	return nil
}

func (m *memoryStore) ClaimReminder(_ context.Context, id int32, deliveredTs int64) (bool, error) {
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

func (m *memoryStore) CancelTaskReminders(_ context.Context, taskID int32) (int64, error) {
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

func (m *memoryStore) CreateTaskEvent(_ context.Context, create *store.TaskEvent) (*store.TaskEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = m.nextID
	m.nextID++
	copied := *create
	m.events = append(m.events, &copied)
	return create, nil
}

func (m *memoryStore) ListTaskEvents(_ context.Context, _ *store.FindTaskEvent) ([]*store.TaskEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.TaskEvent{}, m.events...), nil
}

func (m *memoryStore) MarkTaskEventPublished(_ context.Context, _ int32, _ int64) error {
	return nil
}

func (m *memoryStore) PurgeTaskEvents(_ context.Context, _ int64) (int64, error) {
	return 0, nil
}

func (m *memoryStore) eventTypes() []store.TaskEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]store.TaskEventType, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

func newHooks(mem *memoryStore) *TaskHooks {
	return New(
		events.NewPublisher(mem, ""),
		reminder.NewService(mem, nil),
		recurrence.NewService(mem),
	)
}

func TestOnTaskCreatedRecordsEvent(t *testing.T) {
	mem := newMemoryStore()
	h := newHooks(mem)

	h.OnTaskCreated(context.Background(), &store.Task{ID: 1, Title: "new"})
	h.Wait()
	assert.Equal(t, []store.TaskEventType{store.TaskEventCreated}, mem.eventTypes())
}

func TestOnTaskCompletedCancelsRemindersAndRecurs(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryStore()
	h := newHooks(mem)

	rule, err := mem.CreateRecurrenceRule(ctx, &store.RecurrenceRule{
		CreatorID: 1,
		Frequency: store.FrequencyDaily,
		Interval:  1,
		EndType:   store.EndNever,
	})
	require.NoError(t, err)

	due := int64(1_700_000_000)
	task, err := mem.CreateTask(ctx, &store.Task{
		CreatorID:        1,
		Title:            "recurring",
		Status:           store.TaskStatusCompleted,
		DueTs:            &due,
		RecurrenceRuleID: &rule.ID,
	})
	require.NoError(t, err)

	_, err = mem.CreateReminder(ctx, &store.Reminder{
		TaskID: task.ID, CreatorID: 1, RemindTs: due, Status: store.ReminderStatusPending,
	})
	require.NoError(t, err)

	h.OnTaskCompleted(ctx, task)
	h.Wait()

	// Pending reminder cancelled.
	status := store.ReminderStatusPending
	pending, err := mem.ListReminders(ctx, &store.FindReminder{TaskID: &task.ID, Status: &status})
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Next instance created and its creation recorded alongside the
	// completion event.
	next, err := mem.ListTasks(ctx, &store.FindTask{Status: ptrStatus(store.TaskStatusPending)})
	require.NoError(t, err)
	require.Len(t, next, 1)
	require.NotNil(t, next[0].ParentTaskID)
	assert.Equal(t, task.ID, *next[0].ParentTaskID)

	assert.Equal(t, []store.TaskEventType{store.TaskEventCompleted, store.TaskEventCreated}, mem.eventTypes())
}

func TestOnTaskDeletedCancelsReminders(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryStore()
	h := newHooks(mem)

	task, err := mem.CreateTask(ctx, &store.Task{CreatorID: 1, Title: "doomed"})
	require.NoError(t, err)
	_, err = mem.CreateReminder(ctx, &store.Reminder{
		TaskID: task.ID, CreatorID: 1, RemindTs: 1, Status: store.ReminderStatusPending,
	})
	require.NoError(t, err)

	h.OnTaskDeleted(ctx, task)
	h.Wait()

	status := store.ReminderStatusPending
	pending, err := mem.ListReminders(ctx, &store.FindReminder{TaskID: &task.ID, Status: &status})
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, []store.TaskEventType{store.TaskEventDeleted}, mem.eventTypes())
}

func TestNilDependenciesAreSkipped(t *testing.T) {
	h := New(nil, nil, nil)
	// Must not panic.
	h.OnTaskCreated(context.Background(), &store.Task{ID: 1})
	h.OnTaskCompleted(context.Background(), &store.Task{ID: 1})
	h.OnTaskDeleted(context.Background(), &store.Task{ID: 1})
	h.Wait()
}

func TestHooksDoNotBlockCaller(t *testing.T) {
	mem := newMemoryStore()

	// A broker that hangs until released.
	release := make(chan struct{})
	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer broker.Close()
	defer close(release)

	h := New(events.NewPublisher(mem, broker.URL), nil, nil)

	start := time.Now()
	h.OnTaskCreated(context.Background(), &store.Task{ID: 1, Title: "new"})
	assert.Less(t, time.Since(start), time.Second, "hook dispatch must return without waiting on the broker")

	// The event row exists immediately even while publish is in flight.
	require.Eventually(t, func() bool {
		return len(mem.eventTypes()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHooksSurviveCancelledRequestContext(t *testing.T) {
	mem := newMemoryStore()
	h := newHooks(mem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.OnTaskCreated(ctx, &store.Task{ID: 1, Title: "new"})
	h.Wait()
	assert.Equal(t, []store.TaskEventType{store.TaskEventCreated}, mem.eventTypes())
}

func ptrStatus(s store.TaskStatus) *store.TaskStatus { return &s }
