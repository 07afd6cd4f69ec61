// broadcast/broadcast.go
package broadcast

import (
	"errors"
	"sync"

	"github.com/wfunc/buzzparty/logger"
	"github.com/wfunc/buzzparty/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// Hub 把会话分组（每个房间码一个组），负责单播和组播
type Hub struct {
	sessionManager *session.Manager
	groups         map[string]map[string]struct{} // group -> sessionIDs
	memberOf       map[string]map[string]struct{} // sessionID -> groups
	mutex          sync.RWMutex
}

func NewHub(sessionManager *session.Manager) *Hub {
	return &Hub{
		sessionManager: sessionManager,
		groups:         make(map[string]map[string]struct{}),
		memberOf:       make(map[string]map[string]struct{}),
	}
}

// Emit sends a named event to a single connection.
func (h *Hub) Emit(sessionID, event string, payload any) error {
	s, ok := h.sessionManager.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	return s.Emit(event, payload)
}

// EmitToGroup sends a named event to every member of group. Send failures
// are logged and skipped; the reader side tears the connection down.
func (h *Hub) EmitToGroup(group, event string, payload any) error {
	for _, id := range h.Members(group) {
		s, ok := h.sessionManager.Get(id)
		if !ok {
			continue
		}
		if err := s.Emit(event, payload); err != nil {
			logger.Log.Debugf("emit %s to %s failed: %v", event, id, err)
		}
	}
	return nil
}

func (h *Hub) JoinGroup(sessionID, group string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.groups[group] == nil {
		h.groups[group] = make(map[string]struct{})
	}
	h.groups[group][sessionID] = struct{}{}

	if h.memberOf[sessionID] == nil {
		h.memberOf[sessionID] = make(map[string]struct{})
	}
	h.memberOf[sessionID][group] = struct{}{}
	return nil
}

// LeaveGroup removes one session from one group.
func (h *Hub) LeaveGroup(sessionID, group string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delete(h.groups[group], sessionID)
	if len(h.groups[group]) == 0 {
		delete(h.groups, group)
	}
	delete(h.memberOf[sessionID], group)
	if len(h.memberOf[sessionID]) == 0 {
		delete(h.memberOf, sessionID)
	}
	return nil
}

// RemoveGroup drops a group and all its memberships.
func (h *Hub) RemoveGroup(group string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for id := range h.groups[group] {
		delete(h.memberOf[id], group)
		if len(h.memberOf[id]) == 0 {
			delete(h.memberOf, id)
		}
	}
	delete(h.groups, group)
	return nil
}

// LeaveAll removes a session from every group it joined.
func (h *Hub) LeaveAll(sessionID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for group := range h.memberOf[sessionID] {
		delete(h.groups[group], sessionID)
		if len(h.groups[group]) == 0 {
			delete(h.groups, group)
		}
	}
	delete(h.memberOf, sessionID)
}

// Members returns a copy of the session ids in group.
func (h *Hub) Members(group string) []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	ids := make([]string, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		ids = append(ids, id)
	}
	return ids
}
