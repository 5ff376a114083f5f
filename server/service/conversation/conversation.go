// Package conversation manages chat threads and their message history.
package conversation

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/lithammer/shortuuid/v4"

	apierrors "github.com/bonsaihq/bonsai/internal/errors"
	"github.com/bonsaihq/bonsai/store"
)

// ContextWindowSize is the number of most recent messages handed to the
// interpreter as conversation context.
const ContextWindowSize = 10

// titleMaxLen bounds auto-generated conversation titles.
const titleMaxLen = 50

// Store is the slice of the task store the conversation service needs.
type Store interface {
	CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error)
	ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error)
	GetConversation(ctx context.Context, find *store.FindConversation) (*store.Conversation, error)
	UpdateConversation(ctx context.Context, update *store.UpdateConversation) (*store.Conversation, error)
	DeleteConversation(ctx context.Context, delete *store.DeleteConversation) error
	CreateMessage(ctx context.Context, create *store.Message) (*store.Message, error)
	ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error)
	DeleteMessage(ctx context.Context, delete *store.DeleteMessage) error
}

// Service owns conversation and message lifecycle.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a conversation service.
func NewService(s Store) *Service {
	return &Service{store: s, now: time.Now}
}

// Create starts a new conversation for a user.
func (s *Service) Create(ctx context.Context, userID int32, title string) (*store.Conversation, error) {
	now := s.now().Unix()
	conversation, err := s.store.CreateConversation(ctx, &store.Conversation{
		UID:       shortuuid.New(),
		CreatorID: userID,
		Title:     title,
		CreatedTs: now,
		UpdatedTs: now,
	})
	if err != nil {
		return nil, apierrors.Internal("failed to create conversation", err)
	}
	return conversation, nil
}

// List returns the user's conversations.
func (s *Service) List(ctx context.Context, userID int32) ([]*store.Conversation, error) {
	list, err := s.store.ListConversations(ctx, &store.FindConversation{CreatorID: &userID})
	if err != nil {
		return nil, apierrors.Internal("failed to list conversations", err)
	}
	return list, nil
}

// Get returns a conversation the user owns.
func (s *Service) Get(ctx context.Context, userID int32, conversationID int32) (*store.Conversation, error) {
	conversation, err := s.store.GetConversation(ctx, &store.FindConversation{ID: &conversationID})
	if err != nil {
		return nil, apierrors.Internal("failed to load conversation", err)
	}
	if conversation == nil {
		return nil, apierrors.NotFound("conversation")
	}
	if conversation.CreatorID != userID {
		return nil, apierrors.PermissionDenied("conversation belongs to another user")
	}
	return conversation, nil
}

// Delete removes a conversation and all its messages.
func (s *Service) Delete(ctx context.Context, userID int32, conversationID int32) error {
	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.store.DeleteMessage(ctx, &store.DeleteMessage{ConversationID: &conversationID}); err != nil {
		return apierrors.Internal("failed to delete messages", err)
	}
	if err := s.store.DeleteConversation(ctx, &store.DeleteConversation{ID: conversationID}); err != nil {
		return apierrors.Internal("failed to delete conversation", err)
	}
	return nil
}

// GetOrCreate resolves the target conversation for a chat turn. A nil id
// starts a fresh conversation titled after the first message.
func (s *Service) GetOrCreate(ctx context.Context, userID int32, conversationID *int32, firstMessage string) (*store.Conversation, error) {
	if conversationID != nil {
		return s.Get(ctx, userID, *conversationID)
	}
	return s.Create(ctx, userID, autoTitle(firstMessage))
}

// AppendMessage appends an immutable message to a conversation and bumps
// the conversation's updated timestamp.
func (s *Service) AppendMessage(ctx context.Context, conversationID int32, role store.MessageRole, content string, generatedCommand string, confidence *float64) (*store.Message, error) {
	now := s.now().Unix()
	message, err := s.store.CreateMessage(ctx, &store.Message{
		UID:              shortuuid.New(),
		ConversationID:   conversationID,
		Role:             role,
		Content:          content,
		GeneratedCommand: generatedCommand,
		Confidence:       confidence,
		CreatedTs:        now,
	})
	if err != nil {
		return nil, apierrors.Internal("failed to create message", err)
	}

	if _, err := s.store.UpdateConversation(ctx, &store.UpdateConversation{ID: conversationID, UpdatedTs: &now}); err != nil {
		return nil, apierrors.Internal("failed to touch conversation", err)
	}
	return message, nil
}

// ListMessages returns a conversation's messages in chronological order,
// after checking ownership.
func (s *Service) ListMessages(ctx context.Context, userID int32, conversationID int32) ([]*store.Message, error) {
	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	list, err := s.store.ListMessages(ctx, &store.FindMessage{ConversationID: &conversationID})
	if err != nil {
		return nil, apierrors.Internal("failed to list messages", err)
	}
	return list, nil
}

// ContextWindow returns the most recent messages of a conversation in
// chronological order, bounded by ContextWindowSize.
func (s *Service) ContextWindow(ctx context.Context, conversationID int32) ([]*store.Message, error) {
	limit := ContextWindowSize
	list, err := s.store.ListMessages(ctx, &store.FindMessage{ConversationID: &conversationID, Limit: &limit})
	if err != nil {
		return nil, apierrors.Internal("failed to load context window", err)
	}
	return list, nil
}

// LastUserMessage returns the most recent user message of a conversation,
// or nil when there is none.
func (s *Service) LastUserMessage(ctx context.Context, conversationID int32) (*store.Message, error) {
	role := store.MessageRoleUser
	list, err := s.store.ListMessages(ctx, &store.FindMessage{ConversationID: &conversationID, Role: &role})
	if err != nil {
		return nil, apierrors.Internal("failed to load user messages", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[len(list)-1], nil
}

// autoTitle derives a conversation title from its first message.
func autoTitle(message string) string {
	if message == "" {
		return "New conversation"
	}
	if utf8.RuneCountInString(message) <= titleMaxLen {
		return message
	}
	runes := []rune(message)
	return string(runes[:titleMaxLen-3]) + "..."
}
