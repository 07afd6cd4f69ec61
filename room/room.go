// room/room.go
package room

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/buzzparty/logger"
	"github.com/wfunc/buzzparty/question"
	"github.com/wfunc/buzzparty/state"
)

// GameState 房间所处的阶段
type GameState string

const (
	StateLobby    GameState = "LOBBY"
	StatePlaying  GameState = "PLAYING"
	StateRoundEnd GameState = "ROUND_END"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrCodeSpaceExhausted = errors.New("could not allocate a free room code")
)

// Player is a participant, keyed by the client-chosen id.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Score  int    `json:"score"`
	ConnID string `json:"-"`
}

// AnswerRecord is one player's submission for the current question.
type AnswerRecord struct {
	Answer  string `json:"answer"`
	Correct bool   `json:"correct"`
	Points  int    `json:"points"`
}

// Room 是一局问答游戏的全部状态。Room 本身不加锁，调用方负责串行访问。
type Room struct {
	Code        string
	HostConn    string
	CurrentGame string
	CreatedAt   time.Time
	GameStarted time.Time

	// Deck holds the questions drawn for the current game, consumed in order.
	Deck            []question.Question
	CurrentQuestion *question.Question
	QuestionNumber  int
	BuzzedPlayer    string
	Answers         map[string]AnswerRecord
	QuestionStart   time.Time

	// Generation changes on every game start, question dispatch and round
	// end; deferred work captured under an older generation is stale. Values
	// come from a registry-wide counter so they are never reused by a later
	// room with the same code.
	Generation int64
	// AdvancePending is set once advancement has been scheduled for the
	// current question.
	AdvancePending bool

	players     map[string]*Player
	order       []string
	machine     *state.BaseStateMachine
	phases      map[GameState]*state.BaseState
	phaseSince  time.Time
	generations *atomic.Int64
}

// NewRoom 创建一个处于 LOBBY 阶段的空房间，代数计数器独立
func NewRoom(code, hostConn string) *Room {
	return newRoom(code, hostConn, new(atomic.Int64))
}

func newRoom(code, hostConn string, generations *atomic.Int64) *Room {
	r := &Room{
		Code:        code,
		HostConn:    hostConn,
		CreatedAt:   time.Now(),
		Answers:     make(map[string]AnswerRecord),
		players:     make(map[string]*Player),
		phases:      make(map[GameState]*state.BaseState),
		generations: generations,
	}

	for _, gs := range []GameState{StateLobby, StatePlaying, StateRoundEnd} {
		phase := state.NewBaseState(string(gs))
		phase.Enter = r.enterPhase(gs)
		r.phases[gs] = phase
	}
	r.machine = state.NewBaseStateMachine(r.phases[StateLobby])
	r.machine.AddTransition(r.phases[StateLobby], r.phases[StatePlaying], nil)
	r.machine.AddTransition(r.phases[StatePlaying], r.phases[StatePlaying], nil)
	// a round only ends once the last question has been cleared
	r.machine.AddTransition(r.phases[StatePlaying], r.phases[StateRoundEnd], func() bool {
		return r.CurrentQuestion == nil
	})
	r.machine.AddTransition(r.phases[StateRoundEnd], r.phases[StatePlaying], nil)

	return r
}

func (r *Room) enterPhase(gs GameState) func() {
	return func() {
		r.phaseSince = time.Now()
		logger.Log.Debugf("room %s entered %s", r.Code, gs)
	}
}

// PhaseSince is when the room entered its current phase.
func (r *Room) PhaseSince() time.Time {
	return r.phaseSince
}

// NextGeneration stamps the room with a fresh generation and returns it.
func (r *Room) NextGeneration() int64 {
	r.Generation = r.generations.Add(1)
	return r.Generation
}

// GameState returns the room's current phase.
func (r *Room) GameState() GameState {
	return GameState(r.machine.GetCurrentState().GetID())
}

// SetGameState moves the room to gs, or returns state.ErrTransitionNotAllowed.
func (r *Room) SetGameState(gs GameState) error {
	phase, ok := r.phases[gs]
	if !ok {
		return state.ErrTransitionNotAllowed
	}
	return r.machine.ChangeState(phase)
}

// Player 获取单个玩家
func (r *Room) Player(playerID string) (*Player, bool) {
	p, ok := r.players[playerID]
	return p, ok
}

// Players returns the roster in join order.
func (r *Room) Players() []*Player {
	out := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id])
	}
	return out
}

func (r *Room) PlayerCount() int {
	return len(r.players)
}

// PlayerByConn finds the first player bound to connID.
func (r *Room) PlayerByConn(connID string) (*Player, bool) {
	for _, id := range r.order {
		if p := r.players[id]; p.ConnID == connID {
			return p, true
		}
	}
	return nil, false
}

// ResetRound clears the per-question state.
func (r *Room) ResetRound() {
	r.CurrentQuestion = nil
	r.BuzzedPlayer = ""
	r.Answers = make(map[string]AnswerRecord)
	r.AdvancePending = false
}

// putPlayer inserts or overwrites a player; an overwrite keeps its roster slot.
func (r *Room) putPlayer(p *Player) {
	if _, exists := r.players[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.players[p.ID] = p
}

func (r *Room) deletePlayer(playerID string) bool {
	if _, exists := r.players[playerID]; !exists {
		return false
	}
	delete(r.players, playerID)
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	delete(r.Answers, playerID)
	if r.BuzzedPlayer == playerID {
		r.BuzzedPlayer = ""
	}
	return true
}

// --- 房间注册表 ---

const defaultCodeAttempts = 16

// Registry owns every live room, keyed by code, plus a playerID -> code index.
type Registry struct {
	rooms       map[string]*Room
	order       []string
	playerIndex map[string]string
	newCode     CodeGenerator
	generations atomic.Int64
	mutex       sync.RWMutex
}

// NewRegistry creates an empty registry. A nil generator uses RandomCode.
func NewRegistry(gen CodeGenerator) *Registry {
	if gen == nil {
		gen = RandomCode
	}
	return &Registry{
		rooms:       make(map[string]*Room),
		playerIndex: make(map[string]string),
		newCode:     gen,
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create allocates a fresh code and stores an empty LOBBY room owned by hostConn.
func (m *Registry) Create(hostConn string) (*Room, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i := 0; i < defaultCodeAttempts; i++ {
		code := normalizeCode(m.newCode())
		if _, exists := m.rooms[code]; exists {
			continue
		}
		room := newRoom(code, hostConn, &m.generations)
		m.rooms[code] = room
		m.order = append(m.order, code)
		return room, nil
	}
	return nil, ErrCodeSpaceExhausted
}

// Lookup finds a room by code, ignoring case.
func (m *Registry) Lookup(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[normalizeCode(code)]
	return room, exists
}

// Delete removes a room and forgets its players.
func (m *Registry) Delete(code string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	code = normalizeCode(code)
	room, exists := m.rooms[code]
	if !exists {
		return false
	}
	for id := range room.players {
		if m.playerIndex[id] == code {
			delete(m.playerIndex, id)
		}
	}
	delete(m.rooms, code)
	for i, c := range m.order {
		if c == code {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// FindRoomContaining resolves a player id to its room.
func (m *Registry) FindRoomContaining(playerID string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	code, ok := m.playerIndex[playerID]
	if !ok {
		return nil, false
	}
	room, ok := m.rooms[code]
	return room, ok
}

// AddPlayer seats p in room. A player id lives in one room at a time: if it
// was seated elsewhere it is removed there and that room is returned.
func (m *Registry) AddPlayer(room *Room, p *Player) (previous *Room) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if code, ok := m.playerIndex[p.ID]; ok && code != room.Code {
		if old, exists := m.rooms[code]; exists {
			old.deletePlayer(p.ID)
			previous = old
		}
	}
	room.putPlayer(p)
	m.playerIndex[p.ID] = room.Code
	return previous
}

// RemovePlayer removes a player from room.
func (m *Registry) RemovePlayer(room *Room, playerID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !room.deletePlayer(playerID) {
		return false
	}
	if m.playerIndex[playerID] == room.Code {
		delete(m.playerIndex, playerID)
	}
	return true
}

// Rooms returns the live rooms in creation order.
func (m *Registry) Rooms() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.order))
	for _, code := range m.order {
		rooms = append(rooms, m.rooms[code])
	}
	return rooms
}

func (m *Registry) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}
