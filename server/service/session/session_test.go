package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonsaihq/bonsai/store"
)

func TestHubDeliversToOwnerOnly(t *testing.T) {
	hub := NewHub()
	ownerCh, ownerDone := hub.Subscribe(1)
	defer ownerDone()
	otherCh, otherDone := hub.Subscribe(2)
	defer otherDone()

	err := hub.Notify(context.Background(), &store.Reminder{
		ID:        5,
		TaskID:    7,
		CreatorID: 1,
		Message:   "pay rent",
		RemindTs:  1_000_000,
	})
	require.NoError(t, err)

	select {
	case n := <-ownerCh:
		assert.Equal(t, int32(7), n.TaskID)
		assert.Equal(t, int32(5), n.ReminderID)
		assert.Equal(t, "pay rent", n.Message)
		assert.NotEmpty(t, n.ID)
	default:
		t.Fatal("owner received nothing")
	}

	select {
	case <-otherCh:
		t.Fatal("notification leaked to another user")
	default:
	}
}

func TestHubFansOutToAllClients(t *testing.T) {
	hub := NewHub()
	first, firstDone := hub.Subscribe(1)
	defer firstDone()
	second, secondDone := hub.Subscribe(1)
	defer secondDone()

	assert.Equal(t, 2, hub.SubscriberCount(1))

	require.NoError(t, hub.Notify(context.Background(), &store.Reminder{CreatorID: 1, Message: "hi"}))
	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, done := hub.Subscribe(1)
	done()
	// Unsubscribing twice is safe.
	done()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount(1))
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	ch, done := hub.Subscribe(1)
	defer done()

	for i := 0; i < 20; i++ {
		require.NoError(t, hub.Notify(context.Background(), &store.Reminder{CreatorID: 1, Message: "spam"}))
	}
	// Buffer holds 16, the rest are dropped without blocking.
	assert.Len(t, ch, 16)
}
