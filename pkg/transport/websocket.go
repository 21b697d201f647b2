package transport

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketStream exposes a WebSocket connection as a byte stream. Each
// Write is one binary message; reads concatenate incoming messages.
type WebSocketStream struct {
	conn *websocket.Conn
	rmu  sync.Mutex
	r    io.Reader
	wmu  sync.Mutex
}

func NewWebSocketStream(conn *websocket.Conn) *WebSocketStream {
	return &WebSocketStream{conn: conn}
}

func (s *WebSocketStream) Read(p []byte) (int, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	for {
		if s.r == nil {
			typ, r, err := s.conn.NextReader()
			if err != nil {
				return 0, err
			}
			if typ != websocket.BinaryMessage {
				continue
			}
			s.r = r
		}
		n, err := s.r.Read(p)
		if err == io.EOF {
			s.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *WebSocketStream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *WebSocketStream) Close() error {
	return s.conn.Close()
}

func (s *WebSocketStream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}
