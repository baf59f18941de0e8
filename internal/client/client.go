// Package client is a minimal relay client used by the CLI.
//
// A Client reads synchronously: each call sends one request and then reads
// until its answer arrives, skipping broadcasts and unrelated traffic.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/toolrelay/toolrelay/internal/protocol"
)

// RemoteError is an error envelope returned by the relay.
type RemoteError struct {
	Code        string
	Message     string
	ExecutionID string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RemoteError) ErrorCode() string { return e.Code }

func remote(b *protocol.ErrorBody) *RemoteError {
	return &RemoteError{Code: b.Code, Message: b.Message, ExecutionID: b.ExecutionID}
}

// Client is one WebSocket connection to a relay. It is not safe for
// concurrent use.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to a relay endpoint such as ws://127.0.0.1:18790/ws.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// Send writes one message.
func (c *Client) Send(msg protocol.Message) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Next reads one envelope, honouring ctx's deadline.
func (c *Client) Next(ctx context.Context) (protocol.Envelope, error) {
	var env protocol.Envelope
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return env, err
	}
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return env, fmt.Errorf("read: %w", err)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode: %w", err)
	}
	return env, nil
}

// Discover lists the relay's tools.
func (c *Client) Discover(ctx context.Context) (protocol.DiscoverResponse, error) {
	var resp protocol.DiscoverResponse
	if err := c.Send(protocol.Message{Type: protocol.TypeDiscover, Data: struct{}{}}); err != nil {
		return resp, err
	}
	for {
		env, err := c.Next(ctx)
		if err != nil {
			return resp, err
		}
		switch env.Type {
		case protocol.TypeDiscoverResponse:
			if err := json.Unmarshal(env.Data, &resp); err != nil {
				return resp, fmt.Errorf("decode discover_response: %w", err)
			}
			return resp, nil
		case protocol.TypeError:
			if env.Error != nil && env.Error.ExecutionID == "" {
				return resp, remote(env.Error)
			}
		}
	}
}

// StatusFunc observes execution_status events.
type StatusFunc func(protocol.ExecutionStatus)

// Execute runs a tool and waits for its terminal outcome. A failed execution
// is returned as a *RemoteError.
func (c *Client) Execute(ctx context.Context, name string, args map[string]any, onStatus StatusFunc) (any, error) {
	id := uuid.NewString()
	req := protocol.ExecuteTool{ExecutionID: id, Name: name}
	if args != nil {
		req.Args = args
	}
	if err := c.Send(protocol.Message{Type: protocol.TypeExecuteTool, Data: req}); err != nil {
		return nil, err
	}

	for {
		env, err := c.Next(ctx)
		if err != nil {
			return nil, err
		}
		switch env.Type {
		case protocol.TypeExecutionStatus:
			if onStatus == nil {
				continue
			}
			var st protocol.ExecutionStatus
			if err := json.Unmarshal(env.Data, &st); err == nil && st.ExecutionID == id {
				onStatus(st)
			}
		case protocol.TypeExecuteToolResponse:
			var resp protocol.ExecuteToolResponse
			if err := json.Unmarshal(env.Data, &resp); err != nil {
				return nil, fmt.Errorf("decode execute_tool_response: %w", err)
			}
			if resp.ExecutionID == id {
				return resp.Result, nil
			}
		case protocol.TypeError:
			if env.Error != nil && (env.Error.ExecutionID == id || env.Error.ExecutionID == "") {
				return nil, remote(env.Error)
			}
		}
	}
}
