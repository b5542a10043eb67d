package clipboard

import "sync"

// FakeTyper records typed text instead of sending key events.
type FakeTyper struct {
	mu    sync.Mutex
	typed []string
	Err   error
}

func (f *FakeTyper) Type(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.typed = append(f.typed, text)
	return nil
}

func (f *FakeTyper) Typed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.typed...)
}
