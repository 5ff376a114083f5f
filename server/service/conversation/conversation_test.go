package conversation

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/bonsaihq/bonsai/internal/errors"
	"github.com/bonsaihq/bonsai/store"
)

type memoryStore struct {
	mu            sync.Mutex
	nextID        int32
	conversations map[int32]*store.Conversation
	messages      map[int32]*store.Message
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		nextID:        1,
		conversations: make(map[int32]*store.Conversation),
		messages:      make(map[int32]*store.Message),
	}
}

func (m *memoryStore) CreateConversation(_ context.Context, create *store.Conversation) (*store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = m.nextID
	m.nextID++
	copied := *create
	m.conversations[create.ID] = &copied
	return create, nil
}

func (m *memoryStore) ListConversations(_ context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
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

func (m *memoryStore) GetConversation(ctx context.Context, find *store.FindConversation) (*store.Conversation, error) {
	list, err := m.ListConversations(ctx, find)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (m *memoryStore) UpdateConversation(_ context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
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

func (m *memoryStore) DeleteConversation(_ context.Context, del *store.DeleteConversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, del.ID)
	return nil
}

func (m *memoryStore) CreateMessage(_ context.Context, create *store.Message) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	create.ID = m.nextID
	m.nextID++
	copied := *create
	m.messages[create.ID] = &copied
	return create, nil
}

func (m *memoryStore) ListMessages(_ context.Context, find *store.FindMessage) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*store.Message{}
	for _, msg := range m.messages {
		if find.ID != nil && msg.ID != *find.ID {
			continue
		}
		if find.ConversationID != nil && msg.ConversationID != *find.ConversationID {
			continue
		}
		if find.Role != nil && msg.Role != *find.Role {
			continue
		}
		copied := *msg
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedTs != list[j].CreatedTs {
			return list[i].CreatedTs < list[j].CreatedTs
		}
		return list[i].ID < list[j].ID
	})
	// Keep only the most recent messages when a limit is set.
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[len(list)-*find.Limit:]
	}
	return list, nil
}

func (m *memoryStore) DeleteMessage(_ context.Context, del *store.DeleteMessage) error {
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

func newTestService(mem *memoryStore) *Service {
	svc := NewService(mem)
	base := time.Unix(1_000_000, 0)
	var calls int
	svc.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	return svc
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryStore())

	created, err := svc.Create(ctx, 1, "groceries")
	require.NoError(t, err)
	assert.NotEmpty(t, created.UID)

	got, err := svc.Get(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "groceries", got.Title)
}

func TestGetOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryStore())

	created, err := svc.Create(ctx, 1, "mine")
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, created.ID)
	require.Error(t, err)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodePermissionDenied))

	_, err = svc.Get(ctx, 1, 999)
	require.Error(t, err)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrCodeNotFound))
}

func TestGetOrCreateAutoTitle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryStore())

	conversation, err := svc.GetOrCreate(ctx, 1, nil, "buy milk tomorrow")
	require.NoError(t, err)
	assert.Equal(t, "buy milk tomorrow", conversation.Title)

	long := strings.Repeat("x", 80)
	conversation, err = svc.GetOrCreate(ctx, 1, nil, long)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 47)+"...", conversation.Title)

	conversation, err = svc.GetOrCreate(ctx, 1, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "New conversation", conversation.Title)
}

func TestGetOrCreateExisting(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryStore())

	created, err := svc.Create(ctx, 1, "existing")
	require.NoError(t, err)

	conversation, err := svc.GetOrCreate(ctx, 1, &created.ID, "ignored")
	require.NoError(t, err)
	assert.Equal(t, created.ID, conversation.ID)
}

func TestAppendMessageTouchesConversation(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryStore()
	svc := newTestService(mem)

	created, err := svc.Create(ctx, 1, "thread")
	require.NoError(t, err)
	before := created.UpdatedTs

	confidence := 0.9
	message, err := svc.AppendMessage(ctx, created.ID, store.MessageRoleUser, "add milk", `{"action":"add"}`, &confidence)
	require.NoError(t, err)
	assert.NotEmpty(t, message.UID)

	got, err := mem.GetConversation(ctx, &store.FindConversation{ID: &created.ID})
	require.NoError(t, err)
	assert.Greater(t, got.UpdatedTs, before)
}

func TestContextWindowKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryStore())

	created, err := svc.Create(ctx, 1, "long thread")
	require.NoError(t, err)

	for i := 0; i < 15; i++ {
		content := "message " + string(rune('a'+i))
		_, err := svc.AppendMessage(ctx, created.ID, store.MessageRoleUser, content, "", nil)
		require.NoError(t, err)
	}

	window, err := svc.ContextWindow(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, window, ContextWindowSize)
	assert.Equal(t, "message f", window[0].Content)
	assert.Equal(t, "message o", window[len(window)-1].Content)
}

func TestLastUserMessage(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryStore())

	created, err := svc.Create(ctx, 1, "thread")
	require.NoError(t, err)

	last, err := svc.LastUserMessage(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, last)

	_, err = svc.AppendMessage(ctx, created.ID, store.MessageRoleUser, "delete task 3", "", nil)
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, created.ID, store.MessageRoleAssistant, "are you sure?", "", nil)
	require.NoError(t, err)

	last, err = svc.LastUserMessage(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "delete task 3", last.Content)
}

func TestDeleteRemovesMessages(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryStore()
	svc := newTestService(mem)

	created, err := svc.Create(ctx, 1, "thread")
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, created.ID, store.MessageRoleUser, "hello", "", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 1, created.ID))

	messages, err := mem.ListMessages(ctx, &store.FindMessage{ConversationID: &created.ID})
	require.NoError(t, err)
	assert.Empty(t, messages)
}
