// Package http provides the HTTP server for the travel assistant.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/travel/internal/metrics"
	"github.com/xiaot623/gogo/travel/internal/service"
	v1 "github.com/xiaot623/gogo/travel/internal/transport/http/v1"
	"github.com/xiaot623/gogo/travel/internal/transport/ws"
)

// NewServer creates the HTTP server. It serves the REST API, the WebSocket
// endpoint when wsServer is non-nil, and Prometheus metrics when m is non-nil.
func NewServer(svc *service.Service, m *metrics.Metrics, wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)
	v1Handler.RegisterRoutes(e)

	if wsServer != nil {
		e.GET("/ws", wsServer.HandleWebSocket)
	}
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	return e
}
