// Package ws serves the chat protocol over WebSocket connections.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/travel/internal/config"
	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/log"
	"github.com/xiaot623/gogo/travel/internal/service"
)

const turnTimeout = 5 * time.Minute

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *Hub
	service  *service.Service
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *Hub, svc *service.Service) *Server {
	return &Server{
		cfg:     cfg,
		hub:     h,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Errorf("failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.WSMaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("WebSocket error: %v", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.cfg.WSPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warnf("failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *Connection, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch baseMsg.Type {
	case TypeHello:
		s.handleHello(conn, data)
	case TypeUserMessage:
		s.handleUserMessage(conn, data)
	case TypeApprovalDecision:
		s.handleApprovalDecision(conn, data)
	default:
		s.sendError(conn, baseMsg.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type)
	}
}

// handleHello binds the connection to the requested session, creating one
// when none is given.
func (s *Server) handleHello(conn *Connection, data []byte) {
	var msg HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	ctx := context.Background()
	var (
		session *domain.Session
		err     error
	)
	if msg.SessionID != "" {
		session, err = s.service.GetSession(ctx, msg.SessionID)
	} else {
		session, err = s.service.CreateSession(ctx, domain.CreateSessionRequest{
			UserID:      msg.UserID,
			PassengerID: msg.PassengerID,
		})
	}
	if err != nil {
		s.sendError(conn, msg.RequestID, errorCode(err), err.Error())
		return
	}

	s.hub.BindSession(conn, session.SessionID)

	ack := HelloAckMessage{
		BaseMessage: BaseMessage{
			Type:      TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: msg.RequestID,
			SessionID: session.SessionID,
		},
		PassengerID: session.PassengerID,
		Examples:    service.Examples,
	}
	s.hub.SendJSONToConnection(conn, ack)

	log.Infof("hello handshake completed for session: %s", session.SessionID)
}

// handleUserMessage runs a chat turn for the bound session.
func (s *Server) handleUserMessage(conn *Connection, data []byte) {
	var msg UserMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid user_message message")
		return
	}

	sessionID := s.hub.SessionOf(conn)
	if sessionID == "" {
		s.sendError(conn, msg.RequestID, ErrorCodeSessionRequired, "must send hello first")
		return
	}

	// Turns can take a while; don't block the reader.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()

		res, err := s.service.ProcessMessage(ctx, sessionID, msg.Content)
		s.deliver(sessionID, msg.RequestID, res, err)
	}()
}

// handleApprovalDecision answers the pending approval of the bound session.
func (s *Server) handleApprovalDecision(conn *Connection, data []byte) {
	var msg ApprovalDecisionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid approval_decision message")
		return
	}

	sessionID := s.hub.SessionOf(conn)
	if sessionID == "" {
		s.sendError(conn, msg.RequestID, ErrorCodeSessionRequired, "must send hello first")
		return
	}

	req := domain.ApprovalDecisionRequest{
		Decision: domain.Decision(strings.ToLower(msg.Decision)),
		Reason:   msg.Reason,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()

		res, err := s.service.HandleApproval(ctx, sessionID, req)
		s.deliver(sessionID, msg.RequestID, res, err)
	}()
}

// deliver fans the outcome of a turn out to every connection of the session.
func (s *Server) deliver(sessionID, requestID string, res *domain.TurnResult, err error) {
	if err != nil {
		log.Warnf("session %s: %v", sessionID, err)
		s.sendErrorToSession(sessionID, requestID, errorCode(err), err.Error())
		return
	}

	base := func(typ string) BaseMessage {
		return BaseMessage{
			Type:      typ,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: sessionID,
			RunID:     res.RunID,
		}
	}

	if res.Reply != "" {
		s.hub.BroadcastJSON(sessionID, AssistantMessage{
			BaseMessage: base(TypeAssistantMessage),
			Content:     res.Reply,
		})
	}
	if res.Pending != nil {
		s.hub.BroadcastJSON(sessionID, ApprovalRequiredMessage{
			BaseMessage: base(TypeApprovalRequired),
			ApprovalID:  res.Pending.ApprovalID,
			Dialog:      res.Pending.Dialog,
			ToolCalls:   res.Pending.ToolCalls,
		})
	}
	s.hub.BroadcastJSON(sessionID, DoneMessage{
		BaseMessage: base(TypeDone),
		Status:      res.Status,
	})
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *Connection, requestID, code, message string) {
	errMsg := ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: s.hub.SessionOf(conn),
		},
		Code:    code,
		Message: message,
	}
	s.hub.SendJSONToConnection(conn, errMsg)
}

// sendErrorToSession sends an error message to all connections of a session.
func (s *Server) sendErrorToSession(sessionID, requestID, code, message string) {
	errMsg := ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: sessionID,
		},
		Code:    code,
		Message: message,
	}
	s.hub.BroadcastJSON(sessionID, errMsg)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return ErrorCodeSessionNotFound
	case errors.Is(err, domain.ErrApprovalPending):
		return ErrorCodeApprovalPending
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidDecision):
		return ErrorCodeInvalidMessage
	default:
		return ErrorCodeInternalError
	}
}
