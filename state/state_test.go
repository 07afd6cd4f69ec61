package state

import (
	"errors"
	"testing"
)

// recordingState counts hook calls.
type recordingState struct {
	id     string
	enters int
	exits  int
}

func (s *recordingState) OnEnter()      { s.enters++ }
func (s *recordingState) OnExit()       { s.exits++ }
func (s *recordingState) GetID() string { return s.id }

func newPhaseMachine() (*BaseStateMachine, map[string]*recordingState) {
	phases := map[string]*recordingState{
		"LOBBY":     {id: "LOBBY"},
		"PLAYING":   {id: "PLAYING"},
		"ROUND_END": {id: "ROUND_END"},
	}
	sm := NewBaseStateMachine(phases["LOBBY"])
	sm.AddTransition(phases["LOBBY"], phases["PLAYING"], nil)
	sm.AddTransition(phases["PLAYING"], phases["PLAYING"], nil)
	sm.AddTransition(phases["PLAYING"], phases["ROUND_END"], nil)
	sm.AddTransition(phases["ROUND_END"], phases["PLAYING"], nil)
	return sm, phases
}

func TestInitialStateEntered(t *testing.T) {
	sm, phases := newPhaseMachine()

	if sm.GetCurrentState() != phases["LOBBY"] {
		t.Fatalf("current = %s, want LOBBY", sm.GetCurrentState().GetID())
	}
	if phases["LOBBY"].enters != 1 {
		t.Errorf("LOBBY entered %d times, want 1", phases["LOBBY"].enters)
	}
}

func TestPhaseTransitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []string
		wantErr bool
	}{
		{"start game", []string{"PLAYING"}, false},
		{"next question", []string{"PLAYING", "PLAYING"}, false},
		{"round over", []string{"PLAYING", "ROUND_END"}, false},
		{"replay", []string{"PLAYING", "ROUND_END", "PLAYING"}, false},
		{"lobby cannot end round", []string{"ROUND_END"}, true},
		{"no way back to lobby", []string{"PLAYING", "LOBBY"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, phases := newPhaseMachine()

			var err error
			for _, id := range tt.path {
				if err = sm.ChangeState(phases[id]); err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrTransitionNotAllowed) {
				t.Errorf("err = %v, want ErrTransitionNotAllowed", err)
			}
		})
	}
}

func TestRejectedTransitionRunsNoHooks(t *testing.T) {
	sm, phases := newPhaseMachine()

	if err := sm.ChangeState(phases["ROUND_END"]); err == nil {
		t.Fatal("LOBBY -> ROUND_END should be rejected")
	}
	if sm.GetCurrentState() != phases["LOBBY"] {
		t.Errorf("current = %s after rejection", sm.GetCurrentState().GetID())
	}
	if phases["LOBBY"].exits != 0 || phases["ROUND_END"].enters != 0 {
		t.Error("hooks ran on a rejected transition")
	}
}

func TestConditionGuardsTransition(t *testing.T) {
	lobby := &recordingState{id: "LOBBY"}
	playing := &recordingState{id: "PLAYING"}
	ready := false

	sm := NewBaseStateMachine(lobby)
	sm.AddTransition(lobby, playing, func() bool { return ready })

	if err := sm.ChangeState(playing); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("err = %v, want ErrTransitionNotAllowed", err)
	}

	ready = true
	if err := sm.ChangeState(playing); err != nil {
		t.Fatalf("ChangeState: %v", err)
	}
	if lobby.exits != 1 || playing.enters != 1 {
		t.Errorf("hooks: lobby exits %d, playing enters %d", lobby.exits, playing.enters)
	}
}

func TestBaseStateHooks(t *testing.T) {
	var entered, exited int
	lobby := NewBaseState("LOBBY")
	lobby.Exit = func() { exited++ }
	playing := NewBaseState("PLAYING")
	playing.Enter = func() { entered++ }

	sm := NewBaseStateMachine(lobby)
	sm.AddTransition(lobby, playing, nil)
	sm.AddTransition(playing, playing, nil)

	if err := sm.ChangeState(playing); err != nil {
		t.Fatal(err)
	}
	if err := sm.ChangeState(playing); err != nil {
		t.Fatalf("self transition: %v", err)
	}

	if exited != 1 {
		t.Errorf("lobby exit hook ran %d times, want 1", exited)
	}
	if entered != 2 {
		t.Errorf("playing enter hook ran %d times, want 2", entered)
	}
}
