package app

import (
	"sync"
	"time"
)

// TimerTable owns the live countdown tasks, one slot per room phrase.
// Arming a slot cancels whatever task held it before, so a room never has
// more than one live timer. The table is scoped to the service that created
// it rather than living as a package global.
type TimerTable struct {
	mu    sync.Mutex
	tasks map[string]*timerTask
}

type timerTask struct {
	stop chan struct{}
	once sync.Once
}

func (t *timerTask) cancel() {
	t.once.Do(func() { close(t.stop) })
}

func NewTimerTable() *TimerTable {
	return &TimerTable{tasks: make(map[string]*timerTask)}
}

// Schedule arms a one-shot task for phrase, replacing any live task.
func (t *TimerTable) Schedule(phrase string, delay time.Duration, fn func()) {
	task := t.replace(phrase)
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			t.clear(phrase, task)
			fn()
		case <-task.stop:
		}
	}()
}

// StartTicker arms a repeating task for phrase, replacing any live task.
// fn runs once per interval and returns false to stop the ticker.
func (t *TimerTable) StartTicker(phrase string, interval time.Duration, fn func() bool) {
	task := t.replace(phrase)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				// A cancel can land together with a tick; the stop channel
				// wins so at most one in-flight run survives cancellation.
				select {
				case <-task.stop:
					return
				default:
				}
				if !fn() {
					t.clear(phrase, task)
					return
				}
			case <-task.stop:
				return
			}
		}
	}()
}

// Cancel stops the live task for phrase, if any. Safe to call repeatedly.
func (t *TimerTable) Cancel(phrase string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if task, ok := t.tasks[phrase]; ok {
		task.cancel()
		delete(t.tasks, phrase)
	}
}

// Active reports whether phrase currently holds a live task.
func (t *TimerTable) Active(phrase string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tasks[phrase]
	return ok
}

func (t *TimerTable) replace(phrase string) *timerTask {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.tasks[phrase]; ok {
		prev.cancel()
	}
	task := &timerTask{stop: make(chan struct{})}
	t.tasks[phrase] = task
	return task
}

// clear removes task from the table if it still owns the slot. A task that
// was replaced mid-flight must not evict its successor.
func (t *TimerTable) clear(phrase string, task *timerTask) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.tasks[phrase]; ok && current == task {
		delete(t.tasks, phrase)
	}
}
