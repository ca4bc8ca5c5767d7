package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/opendeck-core/internal/infrastructure/config"
)

// sendBufferSize is the per-socket outbound message buffer.
const sendBufferSize = 256

var (
	errSocketClosed = errors.New("socket closed")
	errSocketFull   = errors.New("socket send buffer full")
)

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// socket is one upgraded connection with a buffered writer goroutine.
// UI clients and plugin sessions both embed it.
type socket struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newSocket(conn *websocket.Conn) *socket {
	return &socket{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// enqueue hands data to the writer without blocking.
func (s *socket) enqueue(data []byte) error {
	select {
	case <-s.done:
		return errSocketClosed
	default:
	}
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return errSocketClosed
	default:
		return errSocketFull
	}
}

// enqueueWait hands data to the writer, waiting up to timeout for room in
// the buffer.
func (s *socket) enqueueWait(data []byte, timeout time.Duration) error {
	select {
	case <-s.done:
		return errSocketClosed
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return errSocketClosed
	case <-timer.C:
		return errSocketFull
	}
}

// close stops the writer once it has written what is already buffered.
// Safe to call more than once.
func (s *socket) close() {
	s.once.Do(func() { close(s.done) })
}

// writePump writes queued messages and pings until the socket is closed or
// a write fails.
func (s *socket) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.close()
		s.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // Best-effort deadline; write error caught by caller
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return s.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case message := <-s.send:
			if err := write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			for {
				select {
				case message := <-s.send:
					if err := write(websocket.TextMessage, message); err != nil {
						return
					}
				default:
					//nolint:errcheck // Best-effort close message
					write(websocket.CloseMessage, nil)
					return
				}
			}
		}
	}
}

// readLoop applies the read limits and calls handle for every text frame
// until the connection fails. Any frame resets the read deadline.
func (s *socket) readLoop(cfg config.WebSocketConfig, handle func([]byte)) error {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	if cfg.MaxMessageSize > 0 {
		s.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	//nolint:errcheck // Best-effort deadline on connection setup
	s.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		//nolint:errcheck // Best-effort deadline reset
		s.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		handle(message)
	}
}

// isUnexpectedClose reports whether err is worth a warning rather than a
// debug line.
func isUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure)
}
