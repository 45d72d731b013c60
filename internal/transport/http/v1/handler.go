// Package v1 provides the public HTTP API of the travel assistant.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Sessions
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.GET("/v1/sessions/:session_id/runs", h.ListRuns)

	// Conversation
	e.POST("/v1/sessions/:session_id/messages", h.SendMessage)
	e.POST("/v1/sessions/:session_id/approval", h.SubmitApproval)
	e.GET("/v1/sessions/:session_id/state", h.GetState)
	e.GET("/v1/sessions/:session_id/history", h.GetHistory)

	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)
	e.GET("/v1/examples", h.Examples)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// Examples returns sample questions.
// GET /v1/examples
func (h *Handler) Examples(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"examples": service.Examples,
	})
}

// errorResponse maps service errors onto HTTP status codes.
func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidDecision):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrApprovalPending):
		status = http.StatusConflict
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
