// Package session fans reminder notifications out to connected clients.
// Each client holds a buffered channel; slow consumers drop notifications
// instead of blocking delivery.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bonsaihq/bonsai/store"
)

// Notification is the payload pushed to a connected client.
type Notification struct {
	ID         string `json:"id"`
	TaskID     int32  `json:"task_id"`
	ReminderID int32  `json:"reminder_id"`
	Message    string `json:"message"`
	RemindTs   int64  `json:"remind_ts"`
}

type subscriber struct {
	userID int32
	ch     chan *Notification
}

// Hub tracks connected clients per user.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	logger      *slog.Logger
}

// NewHub creates a notification hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
		logger:      slog.Default(),
	}
}

// Subscribe registers a client for a user and returns the notification
// channel plus an unsubscribe function. The channel is closed on
// unsubscribe.
func (h *Hub) Subscribe(userID int32) (<-chan *Notification, func()) {
	id := uuid.NewString()
	sub := &subscriber{
		userID: userID,
		ch:     make(chan *Notification, 16),
	}

	h.mu.Lock()
	h.subscribers[id] = sub
	h.mu.Unlock()

	h.logger.Debug("client subscribed", "user_id", userID, "subscriber_id", id)

	unsubscribe := func() {
		h.mu.Lock()
		if s, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(s.ch)
		}
		h.mu.Unlock()
	}
	return sub.ch, unsubscribe
}

// SubscriberCount returns the number of connected clients for a user.
func (h *Hub) SubscriberCount(userID int32) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, sub := range h.subscribers {
		if sub.userID == userID {
			count++
		}
	}
	return count
}

// Notify pushes a due reminder to every client of its owner. Implements
// the reminder delivery interface.
func (h *Hub) Notify(_ context.Context, reminder *store.Reminder) error {
	notification := &Notification{
		ID:         uuid.NewString(),
		TaskID:     reminder.TaskID,
		ReminderID: reminder.ID,
		Message:    reminder.Message,
		RemindTs:   reminder.RemindTs,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, sub := range h.subscribers {
		if sub.userID != reminder.CreatorID {
			continue
		}
		select {
		case sub.ch <- notification:
			delivered++
		default:
			h.logger.Warn("dropping notification for slow client",
				"user_id", reminder.CreatorID, "reminder_id", reminder.ID)
		}
	}

	h.logger.Debug("reminder pushed",
		"user_id", reminder.CreatorID, "reminder_id", reminder.ID, "clients", delivered)
	return nil
}
