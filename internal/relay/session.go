package relay

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// sessionSeq assigns process-unique session ids; they are monotonic and
// never reused.
var sessionSeq atomic.Uint64

// Session owns one peer connection: a read path feeding frames to the
// broker and a send path draining the bounded outbound queue. The queue is
// the only channel through which shared broker state reaches a peer, so
// broadcast never blocks on a peer's socket.
type Session struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

func newSession(conn *websocket.Conn, queueSize int, logger *slog.Logger) *Session {
	id := sessionSeq.Add(1)
	return &Session{
		id:   id,
		conn: conn,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
		log:  logger.With("session", id),
	}
}

// ID returns the process-unique session id.
func (s *Session) ID() uint64 { return s.id }

// enqueue places a frame on the outbound queue without blocking. A full
// queue means the peer is not keeping up: the session is shut down and the
// frame is dropped (disconnect-the-slow-peer policy).
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	case s.send <- frame:
		return true
	default:
		s.shut()
		return false
	}
}

// shut signals both pumps to stop and closes the connection. Safe to call
// multiple times and from any goroutine; registry cleanup happens in the
// server's connection handler once the read pump returns.
func (s *Session) shut() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// writePump drains the outbound queue onto the socket until the session
// shuts down or a write fails.
func (s *Session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("write failed", "error", err)
				s.shut()
				return
			}
		}
	}
}

// readPump consumes inbound frames and feeds them to the broker until the
// peer disconnects or the session shuts down. Only text frames carry
// protocol messages; anything else is skipped.
func (s *Session) readPump(b *Broker, maxFrameBytes int64) {
	s.conn.SetReadLimit(maxFrameBytes)
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		b.Dispatch(s, data)
	}
}
