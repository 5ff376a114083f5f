package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	apierrors "github.com/bonsaihq/bonsai/internal/errors"
)

type createReminderRequest struct {
	TaskID   int32  `json:"task_id"`
	RemindTs int64  `json:"remind_ts"`
	Message  string `json:"message,omitempty"`
}

func (s *APIV1Service) listReminders(c echo.Context) error {
	var taskID *int32
	if raw := c.QueryParam("task_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || id <= 0 {
			return errorResponse(c, apierrors.InvalidArgument("invalid task_id"))
		}
		v := int32(id)
		taskID = &v
	}

	reminders, err := s.Reminders.List(c.Request().Context(), currentUserID(c), taskID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, reminders)
}

func (s *APIV1Service) createReminder(c echo.Context) error {
	var req createReminderRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apierrors.InvalidArgument("malformed request body"))
	}
	if req.TaskID <= 0 {
		return errorResponse(c, apierrors.InvalidArgument("task_id is required"))
	}

	reminder, err := s.Reminders.Create(c.Request().Context(), currentUserID(c), req.TaskID, req.RemindTs, req.Message)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, reminder)
}

func (s *APIV1Service) deleteReminder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := s.Reminders.Delete(c.Request().Context(), currentUserID(c), id); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// streamReminders pushes due reminder notifications to the client over
// server-sent events until the client disconnects.
func (s *APIV1Service) streamReminders(c echo.Context) error {
	userID := currentUserID(c)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	notifications, unsubscribe := s.Hub.Subscribe(userID)
	defer unsubscribe()

	// Heartbeats keep intermediaries from closing the idle stream.
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()

		case notification, ok := <-notifications:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(notification)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: reminder\ndata: %s\n\n", payload); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
