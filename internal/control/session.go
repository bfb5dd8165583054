package control

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

// Session is one control connection. Network I/O runs in dedicated
// goroutines; requests are answered only from the simulation loop.
type Session struct {
	ID   uint64
	IP   string
	conn net.Conn

	InQueue  chan string // the simulation loop reads requests from here
	OutQueue chan string // the writer goroutine reads replies from here

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// per-second request limiter, readLoop goroutine only
	reqPerSec  int
	reqCount   int
	reqResetAt int64

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, inSize, outSize, reqPerSec int, log *zap.Logger) *Session {
	return &Session{
		ID:        id,
		IP:        conn.RemoteAddr().String(),
		conn:      conn,
		InQueue:   make(chan string, inSize),
		OutQueue:  make(chan string, outSize),
		closeCh:   make(chan struct{}),
		reqPerSec: reqPerSec,
		log:       log.With(zap.Uint64("session", id)),
	}
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Reply queues a reply without blocking. A client that does not read its
// replies fills the queue and is disconnected.
func (s *Session) Reply(msg string) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- msg:
	default:
		s.log.Warn("reply queue full, dropping slow client")
		s.Close()
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool { return s.closed.Load() }

func (s *Session) readLoop() {
	defer s.Close()

	for {
		payload, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if s.reqPerSec > 0 {
			now := time.Now().Unix()
			if now != s.reqResetAt {
				s.reqCount = 0
				s.reqResetAt = now
			}
			s.reqCount++
			if s.reqCount > s.reqPerSec {
				s.log.Warn("request rate exceeded, disconnecting", zap.Int("rps", s.reqCount))
				return
			}
		}

		line := strings.TrimSpace(string(payload))
		if line == "" {
			continue
		}
		// blocking only stalls this client
		select {
		case s.InQueue <- line:
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case msg := <-s.OutQueue:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := WriteFrame(s.conn, []byte(msg)); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
