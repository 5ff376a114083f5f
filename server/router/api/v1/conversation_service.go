package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/bonsaihq/bonsai/internal/errors"
)

type createConversationRequest struct {
	Title string `json:"title"`
}

func (s *APIV1Service) listConversations(c echo.Context) error {
	conversations, err := s.Conversations.List(c.Request().Context(), currentUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, conversations)
}

func (s *APIV1Service) createConversation(c echo.Context) error {
	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apierrors.InvalidArgument("malformed request body"))
	}
	if req.Title == "" {
		req.Title = "New conversation"
	}

	conversation, err := s.Conversations.Create(c.Request().Context(), currentUserID(c), req.Title)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, conversation)
}

func (s *APIV1Service) listConversationMessages(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	messages, err := s.Conversations.ListMessages(c.Request().Context(), currentUserID(c), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, messages)
}

func (s *APIV1Service) deleteConversation(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := s.Conversations.Delete(c.Request().Context(), currentUserID(c), id); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
