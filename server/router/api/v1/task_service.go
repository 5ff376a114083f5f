package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	apierrors "github.com/bonsaihq/bonsai/internal/errors"
	"github.com/bonsaihq/bonsai/store"
)

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    *int32 `json:"priority,omitempty"`
	DueTs       *int64 `json:"due_ts,omitempty"`
}

type updateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *int32  `json:"priority,omitempty"`
	DueTs       *int64  `json:"due_ts,omitempty"`
}

type attachRecurrenceRequest struct {
	Frequency string `json:"frequency"`
	Interval  int32  `json:"interval,omitempty"`
	EndType   string `json:"end_type,omitempty"`
	EndCount  *int32 `json:"end_count,omitempty"`
	EndTs     *int64 `json:"end_ts,omitempty"`
}

type updateSeriesRequest struct {
	Title    *string `json:"title,omitempty"`
	Priority *int32  `json:"priority,omitempty"`
}

func (s *APIV1Service) listTasks(c echo.Context) error {
	userID := currentUserID(c)
	find := &store.FindTask{CreatorID: &userID}

	switch c.QueryParam("status") {
	case "pending":
		status := store.TaskStatusPending
		find.Status = &status
	case "completed":
		status := store.TaskStatusCompleted
		find.Status = &status
	case "", "all":
	default:
		return errorResponse(c, apierrors.InvalidArgument("status must be pending, completed or all"))
	}

	tasks, err := s.Store.ListTasks(c.Request().Context(), find)
	if err != nil {
		return errorResponse(c, apierrors.Internal("failed to list tasks", err))
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *APIV1Service) createTask(c echo.Context) error {
	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apierrors.InvalidArgument("malformed request body"))
	}
	if req.Title == "" {
		return errorResponse(c, apierrors.InvalidArgument("title is required"))
	}

	priority := int32(3)
	if req.Priority != nil {
		if *req.Priority < 1 || *req.Priority > 5 {
			return errorResponse(c, apierrors.InvalidArgument("priority must be between 1 and 5"))
		}
		priority = *req.Priority
	}

	ctx := c.Request().Context()
	now := time.Now().Unix()
	task, err := s.Store.CreateTask(ctx, &store.Task{
		UID:         shortuuid.New(),
		CreatorID:   currentUserID(c),
		Title:       req.Title,
		Description: req.Description,
		Status:      store.TaskStatusPending,
		Priority:    priority,
		DueTs:       req.DueTs,
		CreatedTs:   now,
		UpdatedTs:   now,
	})
	if err != nil {
		return errorResponse(c, apierrors.Internal("failed to create task", err))
	}

	s.Hooks.OnTaskCreated(ctx, task)
	return c.JSON(http.StatusCreated, task)
}

func (s *APIV1Service) getTask(c echo.Context) error {
	task, err := s.ownedTask(c)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *APIV1Service) updateTask(c echo.Context) error {
	task, err := s.ownedTask(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req updateTaskRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apierrors.InvalidArgument("malformed request body"))
	}
	if req.Title == nil && req.Description == nil && req.Priority == nil && req.DueTs == nil {
		return errorResponse(c, apierrors.InvalidArgument("nothing to update"))
	}
	if req.Priority != nil && (*req.Priority < 1 || *req.Priority > 5) {
		return errorResponse(c, apierrors.InvalidArgument("priority must be between 1 and 5"))
	}

	ctx := c.Request().Context()
	now := time.Now().Unix()
	update := &store.UpdateTask{
		ID:          task.ID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueTs:       req.DueTs,
		UpdatedTs:   &now,
	}
	if err := s.Store.UpdateTask(ctx, update); err != nil {
		return errorResponse(c, apierrors.Internal("failed to update task", err))
	}

	fresh, err := s.Store.GetTask(ctx, &store.FindTask{ID: &task.ID})
	if err != nil || fresh == nil {
		fresh = task
	}

	s.Hooks.OnTaskUpdated(ctx, fresh)
	return c.JSON(http.StatusOK, fresh)
}

func (s *APIV1Service) deleteTask(c echo.Context) error {
	task, err := s.ownedTask(c)
	if err != nil {
		return errorResponse(c, err)
	}

	ctx := c.Request().Context()
	if err := s.Store.DeleteTask(ctx, &store.DeleteTask{ID: task.ID}); err != nil {
		return errorResponse(c, apierrors.Internal("failed to delete task", err))
	}

	s.Hooks.OnTaskDeleted(ctx, task)
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) completeTask(c echo.Context) error {
	task, err := s.ownedTask(c)
	if err != nil {
		return errorResponse(c, err)
	}

	ctx := c.Request().Context()
	completed, err := s.Store.CompleteTask(ctx, task.ID, time.Now().Unix())
	if err != nil {
		return errorResponse(c, apierrors.Internal("failed to complete task", err))
	}
	if !completed {
		// Already completed: idempotent no-op.
		return c.JSON(http.StatusOK, map[string]any{
			"task":              task,
			"already_completed": true,
		})
	}

	fresh, err := s.Store.GetTask(ctx, &store.FindTask{ID: &task.ID})
	if err != nil || fresh == nil {
		fresh = task
	}

	s.Hooks.OnTaskCompleted(ctx, fresh)
	return c.JSON(http.StatusOK, map[string]any{
		"task":              fresh,
		"already_completed": false,
	})
}

func (s *APIV1Service) attachRecurrence(c echo.Context) error {
	task, err := s.ownedTask(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req attachRecurrenceRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apierrors.InvalidArgument("malformed request body"))
	}

	frequency := store.RecurrenceFrequency(req.Frequency)
	switch frequency {
	case store.FrequencyDaily, store.FrequencyWeekly, store.FrequencyMonthly, store.FrequencyYearly:
	default:
		return errorResponse(c, apierrors.InvalidArgument("frequency must be DAILY, WEEKLY, MONTHLY or YEARLY"))
	}

	endType := store.RecurrenceEndType(req.EndType)
	switch endType {
	case "":
		endType = store.EndNever
	case store.EndNever, store.EndCount, store.EndDate:
	default:
		return errorResponse(c, apierrors.InvalidArgument("end_type must be NEVER, COUNT or DATE"))
	}
	if endType == store.EndCount && (req.EndCount == nil || *req.EndCount < 1) {
		return errorResponse(c, apierrors.InvalidArgument("end_count is required for COUNT end type"))
	}
	if endType == store.EndDate && req.EndTs == nil {
		return errorResponse(c, apierrors.InvalidArgument("end_ts is required for DATE end type"))
	}

	ctx := c.Request().Context()
	rule, err := s.Recurrence.CreateRule(ctx, currentUserID(c), frequency, req.Interval, endType, req.EndCount, req.EndTs)
	if err != nil {
		return errorResponse(c, apierrors.Internal("failed to create recurrence rule", err))
	}

	now := time.Now().Unix()
	if err := s.Store.UpdateTask(ctx, &store.UpdateTask{ID: task.ID, UpdatedTs: &now, RecurrenceRuleID: &rule.ID}); err != nil {
		return errorResponse(c, apierrors.Internal("failed to attach recurrence rule", err))
	}

	return c.JSON(http.StatusCreated, rule)
}

func (s *APIV1Service) updateRecurrenceSeries(c echo.Context) error {
	task, err := s.ownedTask(c)
	if err != nil {
		return errorResponse(c, err)
	}
	if task.RecurrenceRuleID == nil {
		return errorResponse(c, apierrors.NotFound("recurrence rule"))
	}

	var req updateSeriesRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apierrors.InvalidArgument("malformed request body"))
	}
	if req.Title == nil && req.Priority == nil {
		return errorResponse(c, apierrors.InvalidArgument("nothing to update"))
	}
	if req.Priority != nil && (*req.Priority < 1 || *req.Priority > 5) {
		return errorResponse(c, apierrors.InvalidArgument("priority must be between 1 and 5"))
	}

	updated, err := s.Recurrence.UpdateSeries(c.Request().Context(), currentUserID(c), *task.RecurrenceRuleID, req.Title, req.Priority)
	if err != nil {
		return errorResponse(c, apierrors.Internal("failed to update recurrence series", err))
	}
	return c.JSON(http.StatusOK, map[string]int{"updated_instances": updated})
}

func (s *APIV1Service) deleteRecurrence(c echo.Context) error {
	task, err := s.ownedTask(c)
	if err != nil {
		return errorResponse(c, err)
	}
	if task.RecurrenceRuleID == nil {
		return errorResponse(c, apierrors.NotFound("recurrence rule"))
	}

	deleted, err := s.Recurrence.DeleteSeries(c.Request().Context(), currentUserID(c), *task.RecurrenceRuleID)
	if err != nil {
		return errorResponse(c, apierrors.Internal("failed to delete recurrence series", err))
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted_instances": deleted})
}

// ownedTask resolves the :id path parameter to a task the caller owns.
func (s *APIV1Service) ownedTask(c echo.Context) (*store.Task, error) {
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}

	task, err := s.Store.GetTask(c.Request().Context(), &store.FindTask{ID: &id})
	if err != nil {
		return nil, apierrors.Internal("failed to load task", err)
	}
	if task == nil {
		return nil, apierrors.NotFound("task")
	}
	if task.CreatorID != currentUserID(c) {
		return nil, apierrors.PermissionDenied("task belongs to another user")
	}
	return task, nil
}
