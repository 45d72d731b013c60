package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/metrics"
	"github.com/xiaot623/gogo/travel/internal/testutil/stack"
)

type frame struct {
	BaseMessage
	Content    string            `json:"content"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	ApprovalID string            `json:"approval_id"`
	Status     domain.TurnStatus `json:"status"`
	Examples   []string          `json:"examples"`
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	svc, _ := stack.NewService(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(metrics.New())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", NewServer(stack.Config(), hub, svc).HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

// readTurn reads frames until the turn's done message.
func readTurn(t *testing.T, conn *websocket.Conn) []frame {
	t.Helper()
	var frames []frame
	for {
		f := read(t, conn)
		frames = append(frames, f)
		if f.Type == TypeDone || f.Type == TypeError {
			return frames
		}
	}
}

func hello(t *testing.T, conn *websocket.Conn, sessionID string) frame {
	t.Helper()
	write(t, conn, HelloMessage{BaseMessage: BaseMessage{Type: TypeHello, SessionID: sessionID}})
	ack := read(t, conn)
	require.Equal(t, TypeHelloAck, ack.Type)
	return ack
}

func TestHelloCreatesSession(t *testing.T) {
	srv, hub := newTestServer(t)
	conn := dial(t, srv)

	ack := hello(t, conn, "")
	assert.True(t, strings.HasPrefix(ack.SessionID, "sess_"))
	assert.NotEmpty(t, ack.Examples)
	assert.Equal(t, 1, hub.SessionCount())
}

func TestHelloUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	write(t, conn, HelloMessage{BaseMessage: BaseMessage{Type: TypeHello, SessionID: "sess_missing"}})
	f := read(t, conn)
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, ErrorCodeSessionNotFound, f.Code)
}

func TestMessageRequiresHello(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	write(t, conn, UserMessage{BaseMessage: BaseMessage{Type: TypeUserMessage, RequestID: "r1"}, Content: "hi"})
	f := read(t, conn)
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, ErrorCodeSessionRequired, f.Code)
	assert.Equal(t, "r1", f.RequestID)

	write(t, conn, map[string]string{"type": "bogus"})
	f = read(t, conn)
	assert.Equal(t, ErrorCodeInvalidMessage, f.Code)
}

func TestUserMessageTurn(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	hello(t, conn, "")

	write(t, conn, UserMessage{BaseMessage: BaseMessage{Type: TypeUserMessage}, Content: "At what time is my flight?"})
	frames := readTurn(t, conn)
	require.Len(t, frames, 2)
	assert.Equal(t, TypeAssistantMessage, frames[0].Type)
	assert.Contains(t, frames[0].Content, "LX0112")
	assert.NotEmpty(t, frames[0].RunID)
	assert.Equal(t, domain.TurnStatusComplete, frames[1].Status)
}

func TestApprovalOverWebSocket(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	ack := hello(t, conn, "")

	// A second client on the same session sees the same turn.
	observer := dial(t, srv)
	hello(t, observer, ack.SessionID)

	write(t, conn, UserMessage{BaseMessage: BaseMessage{Type: TypeUserMessage}, Content: "Can I change my flight?"})
	readTurn(t, conn)
	readTurn(t, observer)

	write(t, conn, UserMessage{BaseMessage: BaseMessage{Type: TypeUserMessage}, Content: "Move me to flight 19251 please"})
	frames := readTurn(t, conn)
	require.Len(t, frames, 3)
	assert.Equal(t, TypeApprovalRequired, frames[1].Type)
	assert.NotEmpty(t, frames[1].ApprovalID)
	assert.Equal(t, domain.TurnStatusPausedForApproval, frames[2].Status)
	assert.Len(t, readTurn(t, observer), 3)

	write(t, conn, UserMessage{BaseMessage: BaseMessage{Type: TypeUserMessage}, Content: "hello?"})
	f := read(t, conn)
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, ErrorCodeApprovalPending, f.Code)
	read(t, observer)

	write(t, conn, ApprovalDecisionMessage{BaseMessage: BaseMessage{Type: TypeApprovalDecision}, Decision: "approve"})
	frames = readTurn(t, conn)
	require.Len(t, frames, 2)
	assert.Contains(t, frames[0].Content, "Ticket successfully updated to new flight.")
	assert.Equal(t, domain.TurnStatusComplete, frames[1].Status)
}
