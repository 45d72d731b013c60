package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

// SendMessage runs one user turn.
// POST /v1/sessions/:session_id/messages
func (h *Handler) SendMessage(c echo.Context) error {
	var req domain.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	res, err := h.service.ProcessMessage(c.Request().Context(), c.Param("session_id"), req.Content)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// SubmitApproval approves or denies the pending action of a session.
// POST /v1/sessions/:session_id/approval
func (h *Handler) SubmitApproval(c echo.Context) error {
	var req domain.ApprovalDecisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	req.Decision = domain.Decision(strings.ToLower(string(req.Decision)))

	res, err := h.service.HandleApproval(c.Request().Context(), c.Param("session_id"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GetState returns the latest conversation state of a session.
// GET /v1/sessions/:session_id/state
func (h *Handler) GetState(c echo.Context) error {
	view, err := h.service.GetState(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// GetHistory lists the checkpoints of a session, newest first.
// GET /v1/sessions/:session_id/history
func (h *Handler) GetHistory(c echo.Context) error {
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	history, err := h.service.History(c.Request().Context(), c.Param("session_id"), limit)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"checkpoints": history,
	})
}

// GetRunEvents retrieves events for a run.
// GET /v1/runs/:run_id/events
func (h *Handler) GetRunEvents(c echo.Context) error {
	runID := c.Param("run_id")
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	afterTs := int64(0)
	if t := c.QueryParam("after_ts"); t != "" {
		if val, err := strconv.ParseInt(t, 10, 64); err == nil {
			afterTs = val
		}
	}
	var types []string
	if t := c.QueryParam("types"); t != "" {
		types = strings.Split(t, ",")
	}

	events, err := h.service.GetRunEvents(c.Request().Context(), runID, afterTs, types, limit)
	if err != nil {
		return errorResponse(c, err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
