package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/bonsaihq/bonsai/internal/errors"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID *int32 `json:"conversation_id,omitempty"`
}

type chatConfirmRequest struct {
	ConversationID int32 `json:"conversation_id"`
	Confirmed      bool  `json:"confirmed"`
}

func (s *APIV1Service) postChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apierrors.InvalidArgument("malformed request body"))
	}

	response, err := s.Chat.ProcessMessage(c.Request().Context(), currentUserID(c), req.ConversationID, req.Message)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, response)
}

func (s *APIV1Service) postChatConfirm(c echo.Context) error {
	var req chatConfirmRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apierrors.InvalidArgument("malformed request body"))
	}
	if req.ConversationID <= 0 {
		return errorResponse(c, apierrors.InvalidArgument("conversation_id is required"))
	}

	response, err := s.Chat.Confirm(c.Request().Context(), currentUserID(c), req.ConversationID, req.Confirmed)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, response)
}
