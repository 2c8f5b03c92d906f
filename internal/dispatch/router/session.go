package router

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Session wraps a websocket connection with a write mutex so the router,
// the ping loop and the request handler can all send without interleaving
// frames.
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

func NewSession(conn *websocket.Conn) *Session {
	s := &Session{conn: conn, done: make(chan struct{})}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go s.pingLoop()
	return s
}

func (s *Session) Send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// ReadJSON blocks for the next inbound message.
func (s *Session) ReadJSON(v interface{}) error {
	return s.conn.ReadJSON(v)
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.conn.Close()
}

func (s *Session) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.mu.Unlock()
			if err != nil {
				s.Close()
				return
			}
		}
	}
}
