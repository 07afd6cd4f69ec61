// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/buzzparty/network"
)

// Session 对应一条客户端连接，ID 即路由层看到的 connection id
type Session struct {
	ID         string
	Conn       network.Connection
	CreatedAt  time.Time
	lastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(conn network.Connection) *Session {
	return newSessionWithID(uuid.New().String(), conn)
}

func newSessionWithID(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
	}
}

// Emit encodes payload and writes it as a named event.
func (s *Session) Emit(event string, payload any) error {
	msg, err := network.NewMessage(event, payload)
	if err != nil {
		return err
	}
	return s.Conn.Send(msg)
}

// Reply answers a client callback identified by ack.
func (s *Session) Reply(ack int64, payload any) error {
	msg, err := network.NewMessage(network.EventAck, payload)
	if err != nil {
		return err
	}
	msg.Ack = &ack
	return s.Conn.Send(msg)
}

func (s *Session) Touch() {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
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
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every connection; used on shutdown.
func (m *Manager) CloseAll() {
	m.mutex.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mutex.RUnlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}
