// session/session.go
package session

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/wfunc/robots/game"
	"github.com/wfunc/robots/logger"
	"github.com/wfunc/robots/network"
	"github.com/wfunc/robots/protocol"
	"github.com/wfunc/robots/room"
	"github.com/wfunc/robots/wire"
)

// outboxSize is how many frames may wait for a slow peer before it is dropped.
// A joining peer's catch-up history travels as a single frame.
const outboxSize = 1024

// ErrSlowConsumer closes a session whose outbound queue overflowed.
var ErrSlowConsumer = errors.New("session: outbound queue full")

// Room is the part of the game room a session talks to.
type Room interface {
	Join(p room.Participant) error
	ResolveJoin(p room.Participant, player game.Player) error
	RegisterMove(p room.Participant, intent protocol.ClientMessage) error
	Leave(p room.Participant) error
}

// Session is one client connection. The room pushes frames with Send; a
// writer goroutine drains them so the room never waits on the network.
type Session struct {
	id   string
	Conn network.Connection

	outbox    chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mutex    sync.RWMutex
	closeErr error
}

func NewSession(id string, conn network.Connection) *Session {
	return &Session{
		id:     id,
		Conn:   conn,
		outbox: make(chan []byte, outboxSize),
		closed: make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Send queues frame without blocking. A full queue closes the session.
func (s *Session) Send(frame []byte) {
	select {
	case <-s.closed:
	case s.outbox <- frame:
	default:
		logger.Log.Warnf("Session %s: outbound queue full, disconnecting", s.id)
		s.closeWith(ErrSlowConsumer)
	}
}

// Close is idempotent.
func (s *Session) Close() error {
	s.closeWith(nil)
	return nil
}

func (s *Session) closeWith(reason error) {
	s.closeOnce.Do(func() {
		s.mutex.Lock()
		s.closeErr = reason
		s.mutex.Unlock()
		close(s.closed)
		_ = s.Conn.Close()
	})
}

func (s *Session) reason() error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.closeErr
}

// Run attaches the session to rm and reads client messages until the peer
// goes away, breaks the protocol or ctx is cancelled. The session always
// leaves the room before Run returns.
func (s *Session) Run(ctx context.Context, rm Room) error {
	go s.writeLoop()
	defer s.Close()

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	if err := rm.Join(s); err != nil {
		return err
	}
	defer func() {
		if err := rm.Leave(s); err != nil {
			logger.Log.Debugf("Session %s: leave after room shutdown: %v", s.id, err)
		}
	}()

	address := addressOf(s.Conn.RemoteAddr())
	r := wire.NewReader(s.Conn)
	for {
		msg, err := protocol.ReadClient(r)
		if err != nil {
			return s.readError(err)
		}

		switch m := msg.(type) {
		case protocol.Join:
			err = rm.ResolveJoin(s, game.Player{Name: m.Name, Address: address})
		default:
			err = rm.RegisterMove(s, m)
		}
		if err != nil {
			return err
		}
	}
}

func (s *Session) readError(err error) error {
	select {
	case <-s.closed:
		// we closed the connection ourselves; report why
		return s.reason()
	default:
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		logger.Log.Infof("Session %s: peer disconnected", s.id)
		return nil
	}
	if errors.Is(err, protocol.ErrUnknownMessage) || errors.Is(err, protocol.ErrInvalidDirection) {
		logger.Log.Warnf("Session %s: protocol violation: %v", s.id, err)
	}
	return err
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.closed:
			return
		case frame := <-s.outbox:
			if err := s.Conn.WriteFrame(frame); err != nil {
				logger.Log.Infof("Session %s: write failed: %v", s.id, err)
				s.closeWith(err)
				return
			}
		}
	}
}

func addressOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

// Manager tracks the live sessions of a server.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID()] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CloseAll disconnects every tracked session.
func (m *Manager) CloseAll() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, s := range m.sessions {
		s.Close()
	}
}
