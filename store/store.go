package store

import (
	"context"

	"github.com/bonsaihq/bonsai/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateTask(ctx context.Context, create *Task) (*Task, error) {
	return s.driver.CreateTask(ctx, create)
}

func (s *Store) ListTasks(ctx context.Context, find *FindTask) ([]*Task, error) {
	return s.driver.ListTasks(ctx, find)
}

// GetTask returns the first task matching find, or nil when none matches.
func (s *Store) GetTask(ctx context.Context, find *FindTask) (*Task, error) {
	list, err := s.driver.ListTasks(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateTask(ctx context.Context, update *UpdateTask) error {
	return s.driver.UpdateTask(ctx, update)
}

func (s *Store) DeleteTask(ctx context.Context, delete *DeleteTask) error {
	return s.driver.DeleteTask(ctx, delete)
}

func (s *Store) CompleteTask(ctx context.Context, id int32, completedTs int64) (bool, error) {
	return s.driver.CompleteTask(ctx, id, completedTs)
}

func (s *Store) CreateRecurrenceRule(ctx context.Context, create *RecurrenceRule) (*RecurrenceRule, error) {
	return s.driver.CreateRecurrenceRule(ctx, create)
}

func (s *Store) ListRecurrenceRules(ctx context.Context, find *FindRecurrenceRule) ([]*RecurrenceRule, error) {
	return s.driver.ListRecurrenceRules(ctx, find)
}

// GetRecurrenceRule returns the first rule matching find, or nil when none matches.
func (s *Store) GetRecurrenceRule(ctx context.Context, find *FindRecurrenceRule) (*RecurrenceRule, error) {
	list, err := s.driver.ListRecurrenceRules(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) DeleteRecurrenceRule(ctx context.Context, delete *DeleteRecurrenceRule) error {
	return s.driver.DeleteRecurrenceRule(ctx, delete)
}

func (s *Store) CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	return s.driver.CreateConversation(ctx, create)
}

func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	list, err := s.driver.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error) {
	return s.driver.UpdateConversation(ctx, update)
}

func (s *Store) DeleteConversation(ctx context.Context, delete *DeleteConversation) error {
	return s.driver.DeleteConversation(ctx, delete)
}

func (s *Store) CreateMessage(ctx context.Context, create *Message) (*Message, error) {
	return s.driver.CreateMessage(ctx, create)
}

func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	return s.driver.ListMessages(ctx, find)
}

func (s *Store) DeleteMessage(ctx context.Context, delete *DeleteMessage) error {
	return s.driver.DeleteMessage(ctx, delete)
}

func (s *Store) CreateReminder(ctx context.Context, create *Reminder) (*Reminder, error) {
	return s.driver.CreateReminder(ctx, create)
}

func (s *Store) ListReminders(ctx context.Context, find *FindReminder) ([]*Reminder, error) {
	return s.driver.ListReminders(ctx, find)
}

func (s *Store) DeleteReminder(ctx context.Context, delete *DeleteReminder) error {
	return s.driver.DeleteReminder(ctx, delete)
}

func (s *Store) ClaimReminder(ctx context.Context, id int32, deliveredTs int64) (bool, error) {
	return s.driver.ClaimReminder(ctx, id, deliveredTs)
}

func (s *Store) CancelTaskReminders(ctx context.Context, taskID int32) (int64, error) {
	return s.driver.CancelTaskReminders(ctx, taskID)
}

func (s *Store) CreateTaskEvent(ctx context.Context, create *TaskEvent) (*TaskEvent, error) {
	return s.driver.CreateTaskEvent(ctx, create)
}

func (s *Store) ListTaskEvents(ctx context.Context, find *FindTaskEvent) ([]*TaskEvent, error) {
	return s.driver.ListTaskEvents(ctx, find)
}

func (s *Store) MarkTaskEventPublished(ctx context.Context, id int32, publishedTs int64) error {
	return s.driver.MarkTaskEventPublished(ctx, id, publishedTs)
}

func (s *Store) PurgeTaskEvents(ctx context.Context, before int64) (int64, error) {
	return s.driver.PurgeTaskEvents(ctx, before)
}
