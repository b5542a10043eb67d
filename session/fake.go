package session

import (
	"sync"
	"time"
)

// FakeUI queues scheduled tasks until RunNext runs them on the caller's
// goroutine, the way the real UI loop does.
type FakeUI struct {
	tasks chan func()

	mu      sync.Mutex
	states  []State
	opened  []string
	OpenErr error
}

func NewFakeUI() *FakeUI {
	return &FakeUI{tasks: make(chan func(), 16)}
}

func (f *FakeUI) UpdateState(s State) {
	f.mu.Lock()
	f.states = append(f.states, s)
	f.mu.Unlock()
}

func (f *FakeUI) ScheduleTask(delay time.Duration, fn func()) {
	time.AfterFunc(delay, func() { f.tasks <- fn })
}

func (f *FakeUI) OpenFile(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return f.OpenErr
	}
	f.opened = append(f.opened, path)
	return nil
}

// RunNext runs the next scheduled task, waiting up to timeout for one.
func (f *FakeUI) RunNext(timeout time.Duration) bool {
	select {
	case fn := <-f.tasks:
		fn()
		return true
	case <-time.After(timeout):
		return false
	}
}

func (f *FakeUI) States() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]State(nil), f.states...)
}

func (f *FakeUI) LastState() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return State{}
	}
	return f.states[len(f.states)-1]
}

func (f *FakeUI) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}
