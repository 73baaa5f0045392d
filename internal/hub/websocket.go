package hub

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var wsSeq atomic.Uint64

// WSSubscriber delivers broadcasts over a WebSocket connection.
type WSSubscriber struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewWSSubscriber wraps an upgraded connection.
func NewWSSubscriber(conn *websocket.Conn, writeTimeout time.Duration) *WSSubscriber {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &WSSubscriber{
		id:           fmt.Sprintf("ws-%d-%s", wsSeq.Add(1), conn.RemoteAddr()),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// ID implements Subscriber.
func (s *WSSubscriber) ID() string { return s.id }

// Send writes one text message. gorilla connections allow a single concurrent
// writer, hence the lock.
func (s *WSSubscriber) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// ReadLoop discards client frames until the connection fails, which is how a
// closed browser tab is noticed. It returns the read error.
func (s *WSSubscriber) ReadLoop() error {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return err
		}
	}
}

// Close sends a close frame and closes the connection.
func (s *WSSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.conn.Close()
}
