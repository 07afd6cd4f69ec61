package state

import (
	"errors"
	"sync"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from State, to State, condition func() bool) error
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	GetID() string
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// BaseStateMachine only permits transitions registered with AddTransition.
// A nil condition always allows the transition.
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	currentID := sm.currentState.GetID()
	newID := newState.GetID()

	conditions, exists := sm.transitions[currentID]
	if !exists {
		return ErrTransitionNotAllowed
	}
	condition, exists := conditions[newID]
	if !exists {
		return ErrTransitionNotAllowed
	}
	if condition != nil && !condition() {
		return ErrTransitionNotAllowed
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from State, to State, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	fromID := from.GetID()
	toID := to.GetID()

	if _, exists := sm.transitions[fromID]; !exists {
		sm.transitions[fromID] = make(map[string]func() bool)
	}

	sm.transitions[fromID][toID] = condition
	return nil
}

// BaseState is a named state with optional enter/exit hooks.
type BaseState struct {
	ID    string
	Enter func()
	Exit  func()
}

func NewBaseState(id string) *BaseState {
	return &BaseState{ID: id}
}

func (s *BaseState) GetID() string {
	return s.ID
}

func (s *BaseState) OnEnter() {
	if s.Enter != nil {
		s.Enter()
	}
}

func (s *BaseState) OnExit() {
	if s.Exit != nil {
		s.Exit()
	}
}
