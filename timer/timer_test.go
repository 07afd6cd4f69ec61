package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerManager_AfterFunc(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	fired := make(chan time.Time, 1)
	start := time.Now()
	m.AfterFunc(30*time.Millisecond, func() { fired <- time.Now() })

	select {
	case at := <-fired:
		if at.Sub(start) < 30*time.Millisecond {
			t.Errorf("Callback fired too early: %v", at.Sub(start))
		}
	case <-time.After(time.Second):
		t.Fatal("Callback never fired")
	}

	if m.Pending() != 0 {
		t.Errorf("One-shot task should be removed after firing, %d pending", m.Pending())
	}
}

func TestTimerManager_RemoveTimer(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var calls int32
	id := m.AfterFunc(20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	m.RemoveTimer(id)

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("Removed timer should not fire")
	}
}

func TestTimerManager_Interval(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var calls int32
	m.AddTimer(0, 10*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&calls); n < 3 {
		t.Errorf("Expected a repeating timer to fire several times, fired %d", n)
	}
	if m.Pending() != 1 {
		t.Errorf("Repeating task should stay queued, %d pending", m.Pending())
	}
}

func TestTimerManager_Due_Order(t *testing.T) {
	m := &TimerManager{nextId: 1}
	now := time.Now()
	m.AddTimer(-time.Second, 0, func() {})
	m.AddTimer(-2*time.Second, 0, func() {})
	m.AddTimer(time.Hour, 0, func() {})

	fired := m.due(now)
	if len(fired) != 2 {
		t.Fatalf("Expected 2 due tasks, got %d", len(fired))
	}
	if fired[0].Id != 2 || fired[1].Id != 1 {
		t.Errorf("Due tasks should come out earliest first, got ids %d,%d", fired[0].Id, fired[1].Id)
	}
	if m.queue.Len() != 1 {
		t.Errorf("Future task should remain queued, queue len %d", m.queue.Len())
	}
}
