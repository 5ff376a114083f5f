// Package v1 wires the REST API surface onto echo.
package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/bonsaihq/bonsai/internal/profile"
	apierrors "github.com/bonsaihq/bonsai/internal/errors"
	"github.com/bonsaihq/bonsai/server/internal/observability"
	"github.com/bonsaihq/bonsai/server/service/chat"
	"github.com/bonsaihq/bonsai/server/service/conversation"
	"github.com/bonsaihq/bonsai/server/service/hooks"
	"github.com/bonsaihq/bonsai/server/service/recurrence"
	"github.com/bonsaihq/bonsai/server/service/reminder"
	"github.com/bonsaihq/bonsai/server/service/session"
	"github.com/bonsaihq/bonsai/store"
)

// userIDHeader carries the authenticated user. Auth proper sits in front
// of this service; the API trusts the header the gateway injects.
const userIDHeader = "X-User-ID"

const userIDContextKey = "bonsai.user_id"

// APIV1Service bundles the services behind the v1 routes.
type APIV1Service struct {
	Profile       *profile.Profile
	Store         *store.Store
	Chat          *chat.Service
	Conversations *conversation.Service
	Reminders     *reminder.Service
	Recurrence    *recurrence.Service
	Hub           *session.Hub
	Hooks         *hooks.TaskHooks
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(p *profile.Profile, s *store.Store, chatService *chat.Service, conversations *conversation.Service, reminders *reminder.Service, rec *recurrence.Service, hub *session.Hub, taskHooks *hooks.TaskHooks) *APIV1Service {
	return &APIV1Service{
		Profile:       p,
		Store:         s,
		Chat:          chatService,
		Conversations: conversations,
		Reminders:     reminders,
		Recurrence:    rec,
		Hub:           hub,
		Hooks:         taskHooks,
	}
}

// Register mounts the v1 routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	e.GET("/healthz", s.healthz)

	group := e.Group("/api/v1")
	group.Use(echomw.CORS())
	group.Use(s.userMiddleware)

	group.POST("/chat", s.postChat)
	group.POST("/chat/confirm", s.postChatConfirm)

	group.GET("/tasks", s.listTasks)
	group.POST("/tasks", s.createTask)
	group.GET("/tasks/:id", s.getTask)
	group.PATCH("/tasks/:id", s.updateTask)
	group.DELETE("/tasks/:id", s.deleteTask)
	group.POST("/tasks/:id/complete", s.completeTask)
	group.POST("/tasks/:id/recurrence", s.attachRecurrence)
	group.PATCH("/tasks/:id/recurrence", s.updateRecurrenceSeries)
	group.DELETE("/tasks/:id/recurrence", s.deleteRecurrence)

	group.GET("/conversations", s.listConversations)
	group.POST("/conversations", s.createConversation)
	group.GET("/conversations/:id/messages", s.listConversationMessages)
	group.DELETE("/conversations/:id", s.deleteConversation)

	group.GET("/reminders", s.listReminders)
	group.POST("/reminders", s.createReminder)
	group.DELETE("/reminders/:id", s.deleteReminder)
	group.GET("/reminders/stream", s.streamReminders)
}

func (s *APIV1Service) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.Profile.Version,
	})
}

// userMiddleware resolves the calling user from the request header.
func (s *APIV1Service) userMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.Request().Header.Get(userIDHeader)
		if raw == "" {
			return errorResponse(c, apierrors.Unauthorized("missing "+userIDHeader+" header"))
		}
		id, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || id <= 0 {
			return errorResponse(c, apierrors.Unauthorized("invalid "+userIDHeader+" header"))
		}
		c.Set(userIDContextKey, int32(id))
		return next(c)
	}
}

func currentUserID(c echo.Context) int32 {
	id, _ := c.Get(userIDContextKey).(int32)
	return id
}

// errorResponse maps coded errors onto HTTP statuses.
func errorResponse(c echo.Context, err error) error {
	code := apierrors.GetCodeFromError(err, apierrors.ErrCodeInternal)

	// Cross-owner access is a security event, not just a 403.
	if code == apierrors.ErrCodePermissionDenied {
		slog.Warn("permission denied",
			observability.LogFieldUserID, currentUserID(c),
			"method", c.Request().Method,
			"path", c.Request().URL.Path)
	}

	var status int
	switch code {
	case apierrors.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case apierrors.ErrCodePermissionDenied:
		status = http.StatusForbidden
	case apierrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apierrors.ErrCodeRateLimitExceeded:
		status = http.StatusTooManyRequests
	case apierrors.ErrCodeInvalidArgument, apierrors.ErrCodeFailedPrecondition:
		status = http.StatusBadRequest
	case apierrors.ErrCodeServiceUnavailable, apierrors.ErrCodeLLMUnavailable:
		status = http.StatusServiceUnavailable
	case apierrors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusInternalServerError
	}

	message := err.Error()
	if cerr, ok := err.(*apierrors.CodedError); ok {
		message = cerr.Message
	}

	return c.JSON(status, map[string]string{
		"code":    string(code),
		"message": message,
	})
}

func pathID(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, apierrors.InvalidArgument("invalid id")
	}
	return int32(id), nil
}
