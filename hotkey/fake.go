package hotkey

type FakeHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}

	Registered  bool
	RegisterErr error
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (f *FakeHotkey) Register() error {
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.Registered = true
	return nil
}

func (f *FakeHotkey) Unregister()              { f.Registered = false }
func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }

// SimPress simulates one full press and release.
func (f *FakeHotkey) SimPress() {
	f.keydown <- struct{}{}
	f.keyup <- struct{}{}
}
