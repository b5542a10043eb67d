package transcriber

import (
	"context"
	"sync"
	"sync/atomic"
)

// FakeConn is an in-memory Conn. Tests push events with Emit and simulate
// a server-side disconnect with Drop.
type FakeConn struct {
	events    chan Event
	connected atomic.Bool

	mu          sync.Mutex
	closed      bool
	sentBytes   int
	sentChunks  int
	finishCalls int
}

func NewFakeConn() *FakeConn {
	f := &FakeConn{events: make(chan Event, 64)}
	f.connected.Store(true)
	return f
}

func (f *FakeConn) Send(pcm []byte) error {
	if !f.connected.Load() {
		return ErrNotConnected
	}
	f.mu.Lock()
	f.sentBytes += len(pcm)
	f.sentChunks++
	f.mu.Unlock()
	return nil
}

func (f *FakeConn) Events() <-chan Event { return f.events }

func (f *FakeConn) IsConnected() bool { return f.connected.Load() }

func (f *FakeConn) Finish() error {
	f.mu.Lock()
	f.finishCalls++
	f.mu.Unlock()
	f.Drop()
	return nil
}

// Emit delivers ev to the consumer. Events emitted after Drop are discarded.
func (f *FakeConn) Emit(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- ev
}

func (f *FakeConn) Drop() {
	f.connected.Store(false)
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

func (f *FakeConn) SentBytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sentBytes
}

func (f *FakeConn) FinishCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finishCalls
}

// FakeDialer hands out Conn, or fails with Err.
type FakeDialer struct {
	Conn *FakeConn
	Err  error

	calls atomic.Int32
}

func (d *FakeDialer) Dial(context.Context) (Conn, error) {
	d.calls.Add(1)
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Conn, nil
}

func (d *FakeDialer) Calls() int { return int(d.calls.Load()) }
