package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/transport/ws"
)

// frame is the union of server messages the client renders.
type frame struct {
	ws.BaseMessage
	Content     string            `json:"content"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	ApprovalID  string            `json:"approval_id"`
	Dialog      string            `json:"dialog"`
	ToolCalls   []domain.ToolCall `json:"tool_calls"`
	Status      domain.TurnStatus `json:"status"`
	PassengerID string            `json:"passenger_id"`
	Examples    []string          `json:"examples"`
}

// Client represents a WebSocket client.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	examples  []string
	done      chan struct{}
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// SendHello binds the connection to sessionID, or to a new session when it
// is empty, and waits for hello_ack.
func (c *Client) SendHello(sessionID, passengerID string) (*frame, error) {
	msg := ws.HelloMessage{
		BaseMessage: ws.BaseMessage{
			Type:      ws.TypeHello,
			Ts:        time.Now().UnixMilli(),
			SessionID: sessionID,
		},
		PassengerID: passengerID,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("write hello: %w", err)
	}

	var ack frame
	if err := c.conn.ReadJSON(&ack); err != nil {
		return nil, fmt.Errorf("read hello_ack: %w", err)
	}
	if ack.Type == ws.TypeError {
		return nil, fmt.Errorf("hello failed: %s - %s", ack.Code, ack.Message)
	}
	if ack.Type != ws.TypeHelloAck {
		return nil, fmt.Errorf("expected hello_ack, got: %s", ack.Type)
	}

	c.sessionID = ack.SessionID
	c.examples = ack.Examples
	return &ack, nil
}

// SendMessage sends one chat turn.
func (c *Client) SendMessage(content string) error {
	return c.conn.WriteJSON(ws.UserMessage{
		BaseMessage: c.base(ws.TypeUserMessage),
		Content:     content,
	})
}

// SendDecision answers the pending approval.
func (c *Client) SendDecision(decision domain.Decision, reason string) error {
	return c.conn.WriteJSON(ws.ApprovalDecisionMessage{
		BaseMessage: c.base(ws.TypeApprovalDecision),
		Decision:    string(decision),
		Reason:      reason,
	})
}

func (c *Client) base(typ string) ws.BaseMessage {
	return ws.BaseMessage{
		Type:      typ,
		Ts:        time.Now().UnixMilli(),
		SessionID: c.sessionID,
		RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
	}
}

// ReadMessages renders server messages to out until the connection closes.
// Each finished turn is signalled on turns.
func (c *Client) ReadMessages(out io.Writer, turns chan<- struct{}) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					fmt.Fprintf(out, "read error: %v\n", err)
				}
			}
			close(turns)
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			fmt.Fprintf(out, "unmarshal error: %v\n", err)
			continue
		}
		if render(out, &f) {
			turns <- struct{}{}
		}
	}
}

// render prints a frame and reports whether it ends a turn.
func render(out io.Writer, f *frame) bool {
	switch f.Type {
	case ws.TypeAssistantMessage:
		fmt.Fprintf(out, "\nAssistant: %s\n", f.Content)
	case ws.TypeApprovalRequired:
		fmt.Fprintln(out, "\nThe assistant wants to run:")
		for _, tc := range f.ToolCalls {
			fmt.Fprintf(out, "  %s %s\n", tc.Name, strings.TrimSpace(string(tc.Args)))
		}
		fmt.Fprintln(out, "Type /approve, or /deny <reason>.")
	case ws.TypeDone:
		return true
	case ws.TypeError:
		fmt.Fprintf(out, "\nError [%s]: %s\n", f.Code, f.Message)
		return true
	default:
		fmt.Fprintf(out, "\n[%s]\n", f.Type)
	}
	return false
}
