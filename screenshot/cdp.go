package screenshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const cdpWriteWait = 10 * time.Second

var errConnClosed = errors.New("devtools connection closed")

// cdpMessage is the envelope of every DevTools protocol frame. Commands
// carry ID and Method; responses carry ID and Result or Error; events carry
// Method and Params only.
type cdpMessage struct {
	ID        int64           `json:"id,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *cdpError       `json:"error,omitempty"`
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *cdpError) Error() string {
	return fmt.Sprintf("devtools error %d: %s", e.Code, e.Message)
}

// cdpClient multiplexes commands over one browser websocket.
type cdpClient struct {
	conn   *websocket.Conn
	nextID atomic.Int64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan cdpMessage
	err     error

	events chan cdpMessage
	done   chan struct{}
}

func dialCDP(ctx context.Context, url string) (*cdpClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial devtools: %w", err)
	}
	c := &cdpClient{
		conn:    conn,
		pending: make(map[int64]chan cdpMessage),
		events:  make(chan cdpMessage, 128),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *cdpClient) readLoop() {
	defer close(c.done)
	for {
		var msg cdpMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			c.err = err
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}

		if msg.ID == 0 {
			select {
			case c.events <- msg:
			default:
				// Nobody waits for most events; drop when full.
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// call sends a command and decodes its result into out, which may be nil.
func (c *cdpClient) call(ctx context.Context, sessionID, method string, params, out any) error {
	id := c.nextID.Add(1)
	msg := cdpMessage{ID: id, SessionID: sessionID, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("%s: encode params: %w", method, err)
		}
		msg.Params = raw
	}

	ch := make(chan cdpMessage, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", method, errConnClosed)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(cdpWriteWait))
	err := c.conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%s: %w", method, errConnClosed)
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %w", method, resp.Error)
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}
		return nil
	}
}

// waitEvent blocks until an event named method arrives for sessionID.
func (c *cdpClient) waitEvent(ctx context.Context, sessionID, method string) (cdpMessage, error) {
	for {
		select {
		case <-ctx.Done():
			return cdpMessage{}, fmt.Errorf("wait for %s: %w", method, ctx.Err())
		case <-c.done:
			return cdpMessage{}, fmt.Errorf("wait for %s: %w", method, errConnClosed)
		case msg := <-c.events:
			if msg.Method == method && msg.SessionID == sessionID {
				return msg, nil
			}
		}
	}
}

func (c *cdpClient) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
