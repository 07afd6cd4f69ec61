// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// DefaultResolution 是调度精度，延迟任务最多晚触发这么久
const DefaultResolution = 50 * time.Millisecond

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

type TimerManager struct {
	queue      TimerQueue
	mutex      sync.Mutex
	nextId     int64
	resolution time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewTimerManager(resolution time.Duration) *TimerManager {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	manager := &TimerManager{
		queue:      make(TimerQueue, 0),
		nextId:     1,
		resolution: resolution,
		stop:       make(chan struct{}),
	}
	heap.Init(&manager.queue)
	go manager.process()
	return manager
}

// AfterFunc runs callback once after delay.
func (m *TimerManager) AfterFunc(delay time.Duration, callback func()) int64 {
	return m.AddTimer(delay, 0, callback)
}

// AddTimer schedules callback after delay, repeating every interval if interval > 0.
func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &TimerTask{
		Id:       m.nextId,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++

	heap.Push(&m.queue, task)
	return task.Id
}

func (m *TimerManager) RemoveTimer(timerId int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.Id == timerId {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

// Pending returns the number of scheduled tasks.
func (m *TimerManager) Pending() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop halts processing; pending tasks never fire.
func (m *TimerManager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *TimerManager) process() {
	ticker := time.NewTicker(m.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, task := range m.due(time.Now()) {
				go task.Callback()
			}
		case <-m.stop:
			return
		}
	}
}

// due pops every task whose time has come, rescheduling repeating ones.
func (m *TimerManager) due(now time.Time) []*TimerTask {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var fired []*TimerTask
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}

		heap.Pop(&m.queue)
		fired = append(fired, task)

		if task.Interval > 0 {
			task.Execute = now.Add(task.Interval)
			heap.Push(&m.queue, task)
		}
	}
	return fired
}
