// network/connection.go
package network

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrEmptyEvent is returned for frames that carry no event name.
var ErrEmptyEvent = errors.New("message has no event name")

// Message 是线路上的 JSON 信封: {"event": "...", "data": {...}, "ack": 7}
// Ack is set by the client when it expects a reply callback; the reply
// travels back as an "ack" event carrying the same id.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *int64          `json:"ack,omitempty"`
}

// NewMessage encodes payload into a Message for event.
func NewMessage(event string, payload any) (*Message, error) {
	msg := &Message{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Data = data
	}
	return msg, nil
}

type Connection interface {
	Send(msg *Message) error
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
	ReadMessage() (*Message, error)
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	heartbeat time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn, done: make(chan struct{})}
}

func (c *WSConnection) Send(msg *Message) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if c.heartbeat > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.heartbeat))
	}
	return c.conn.WriteJSON(msg)
}

func (c *WSConnection) ReadMessage() (*Message, error) {
	var msg Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	if msg.Event == "" {
		return nil, ErrEmptyEvent
	}
	if c.heartbeat > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
	}
	return &msg, nil
}

// SetHeartbeat arms read deadlines and starts a ping loop; any pong or
// message from the peer extends the deadline.
func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.heartbeat = interval
	_ = c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sendMutex.Lock()
				err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(interval))
				c.sendMutex.Unlock()
				if err != nil {
					return
				}
			case <-c.done:
				return
			}
		}
	}()
}

func (c *WSConnection) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
