// Package events records task lifecycle events and pushes them to an
// external broker. Events are stored before any publish attempt, so a
// broker outage never loses the record.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bonsaihq/bonsai/store"
)

// Store is the slice of the task store the event pipeline needs.
type Store interface {
	CreateTaskEvent(ctx context.Context, create *store.TaskEvent) (*store.TaskEvent, error)
	ListTaskEvents(ctx context.Context, find *store.FindTaskEvent) ([]*store.TaskEvent, error)
	MarkTaskEventPublished(ctx context.Context, id int32, publishedTs int64) error
	PurgeTaskEvents(ctx context.Context, before int64) (int64, error)
}

// taskSnapshot is the event payload: the task state at transition time.
type taskSnapshot struct {
	ID          int32             `json:"id"`
	UID         string            `json:"uid"`
	CreatorID   int32             `json:"creator_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      store.TaskStatus  `json:"status"`
	Priority    int32             `json:"priority"`
	DueTs       *int64            `json:"due_ts,omitempty"`
	CompletedTs *int64            `json:"completed_ts,omitempty"`
}

// envelope is the CloudEvents-shaped body posted to the broker.
type envelope struct {
	SpecVersion string          `json:"specversion"`
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Type        string          `json:"type"`
	Time        string          `json:"time"`
	Data        json.RawMessage `json:"data"`
}

const eventSource = "bonsai/tasks"

// Publisher records task events and attempts immediate delivery.
type Publisher struct {
	store    Store
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// NewPublisher creates an event publisher. An empty endpoint disables
// delivery: events are still recorded and purged on schedule.
func NewPublisher(s Store, endpoint string) *Publisher {
	return &Publisher{
		store:    s,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// Record stores a task event and tries to publish it once. Delivery
// failure is not an error: the sweep retries unpublished events.
func (p *Publisher) Record(ctx context.Context, eventType store.TaskEventType, task *store.Task) (*store.TaskEvent, error) {
	payload, err := json.Marshal(taskSnapshot{
		ID:          task.ID,
		UID:         task.UID,
		CreatorID:   task.CreatorID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueTs:       task.DueTs,
		CompletedTs: task.CompletedTs,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal task snapshot")
	}

	event, err := p.store.CreateTaskEvent(ctx, &store.TaskEvent{
		UID:       uuid.NewString(),
		TaskID:    task.ID,
		CreatorID: task.CreatorID,
		Type:      eventType,
		Payload:   string(payload),
		Published: false,
		CreatedTs: p.now().Unix(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to store task event")
	}

	if err := p.Publish(ctx, event); err != nil {
		p.logger.Warn("event publish failed, will retry on sweep",
			"event_id", event.ID, "type", event.Type, "error", err)
	}
	return event, nil
}

// Publish posts a single event to the broker and marks it published on
// a 2xx response.
func (p *Publisher) Publish(ctx context.Context, event *store.TaskEvent) error {
	if p.endpoint == "" {
		return nil
	}

	body, err := json.Marshal(envelope{
		SpecVersion: "1.0",
		ID:          event.UID,
		Source:      eventSource,
		Type:        string(event.Type),
		Time:        time.Unix(event.CreatedTs, 0).UTC().Format(time.RFC3339),
		Data:        json.RawMessage(event.Payload),
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal event envelope")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build broker request")
	}
	req.Header.Set("Content-Type", "application/cloudevents+json")

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "broker request failed")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("broker returned status %d", resp.StatusCode)
	}

	return p.store.MarkTaskEventPublished(ctx, event.ID, p.now().Unix())
}
