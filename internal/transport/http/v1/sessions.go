package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

// CreateSession starts a new conversation.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	// An empty body is allowed and means defaults.
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}
	}

	session, err := h.service.CreateSession(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

// sessionResponse is a session plus the status of its conversation.
type sessionResponse struct {
	*domain.Session
	Status  domain.TurnStatus     `json:"status"`
	Pending *domain.PendingAction `json:"pending,omitempty"`
}

// GetSession returns a session and whether it waits for an approval.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	session, err := h.service.GetSession(ctx, sessionID)
	if err != nil {
		return errorResponse(c, err)
	}
	view, err := h.service.GetState(ctx, sessionID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, sessionResponse{
		Session: session,
		Status:  view.Status,
		Pending: view.Pending,
	})
}

// ListRuns returns the runs of a session.
// GET /v1/sessions/:session_id/runs
func (h *Handler) ListRuns(c echo.Context) error {
	runs, err := h.service.ListRuns(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}
