package session

import (
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/buzzparty/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	mu     sync.Mutex
	sent   []*network.Message
	closed bool
}

func (m *MockConnection) Send(msg *network.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}
func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
func (m *MockConnection) RemoteAddr() net.Addr                   { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)    {}
func (m *MockConnection) ReadMessage() (*network.Message, error) { return nil, nil }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestNewSession_AssignsUniqueIDs(t *testing.T) {
	a := NewSession(&MockConnection{})
	b := NewSession(&MockConnection{})
	if a.ID == "" || b.ID == "" {
		t.Fatal("Sessions should get a non-empty id")
	}
	if a.ID == b.ID {
		t.Errorf("Expected distinct session ids, both were %s", a.ID)
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sess := newSessionWithID("test_session_1", &MockConnection{})

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrievedSess, exists := manager.Get("test_session_1")
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove("test_session_1")
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	if _, exists = manager.Get("test_session_1"); exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestSession_EmitAndReply(t *testing.T) {
	conn := &MockConnection{}
	sess := newSessionWithID("s1", conn)

	if err := sess.Emit(network.EventPlayerLeft, map[string]string{"playerId": "p1"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if err := sess.Reply(3, map[string]any{"success": true}); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	if len(conn.sent) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(conn.sent))
	}
	if conn.sent[0].Event != network.EventPlayerLeft || conn.sent[0].Ack != nil {
		t.Errorf("Unexpected emitted message: %+v", conn.sent[0])
	}

	reply := conn.sent[1]
	if reply.Event != network.EventAck || reply.Ack == nil || *reply.Ack != 3 {
		t.Errorf("Reply should be an ack carrying id 3, got %+v", reply)
	}
	var body map[string]bool
	if err := json.Unmarshal(reply.Data, &body); err != nil || !body["success"] {
		t.Errorf("Unexpected reply body %s (err %v)", reply.Data, err)
	}
}

func TestManager_CloseAll(t *testing.T) {
	manager := NewManager()
	c1, c2 := &MockConnection{}, &MockConnection{}
	manager.Add(newSessionWithID("a", c1))
	manager.Add(newSessionWithID("b", c2))

	manager.CloseAll()

	if !c1.closed || !c2.closed {
		t.Error("CloseAll should close every connection")
	}
}

func TestSession_Touch(t *testing.T) {
	sess := newSessionWithID("s", &MockConnection{})
	before := sess.LastActive()
	time.Sleep(time.Millisecond)
	sess.Touch()
	if !sess.LastActive().After(before) {
		t.Error("Touch should advance LastActive")
	}
}
