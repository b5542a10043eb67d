//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
	keyRepeat  = 2
)

const inputEventSize = 24

// Kernel key codes from linux/input-event-codes.h.
var evdevKeys = map[string]uint16{
	"1": 2, "2": 3, "3": 4, "4": 5, "5": 6, "6": 7, "7": 8, "8": 9, "9": 10, "0": 11,
	"q": 16, "w": 17, "e": 18, "r": 19, "t": 20, "y": 21, "u": 22, "i": 23, "o": 24, "p": 25,
	"a": 30, "s": 31, "d": 32, "f": 33, "g": 34, "h": 35, "j": 36, "k": 37, "l": 38,
	"z": 44, "x": 45, "c": 46, "v": 47, "b": 48, "n": 49, "m": 50,
	"escape": 1, "tab": 15, "enter": 28, "backslash": 43, "space": 57,
	"f1": 59, "f2": 60, "f3": 61, "f4": 62, "f5": 63, "f6": 64,
	"f7": 65, "f8": 66, "f9": 67, "f10": 68, "f11": 87, "f12": 88,
}

type modifier int

const (
	modCtrl modifier = iota
	modShift
	modAlt
	modSuper
)

var evdevModifiers = map[uint16]modifier{
	29: modCtrl, 97: modCtrl,
	42: modShift, 54: modShift,
	56: modAlt, 100: modAlt,
	125: modSuper, 126: modSuper,
}

type linuxHotkey struct {
	combo   Combo
	key     uint16
	keydown chan struct{}
	keyup   chan struct{}
	files   []*os.File
	stop    chan struct{}
	once    sync.Once
}

// New reads key events straight from /dev/input, which works on X11 and
// Wayland alike but needs membership in the input group.
func New(combo Combo) (Hotkey, error) {
	key, ok := evdevKeys[combo.Key]
	if !ok {
		return nil, fmt.Errorf("key %q has no evdev code", combo.Key)
	}
	return &linuxHotkey{
		combo:   combo,
		key:     key,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}, nil
}

func (h *linuxHotkey) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	h.stop = make(chan struct{})
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}
	return nil
}

// comboState tracks one keyboard's held modifiers and the combo key.
type comboState struct {
	combo   Combo
	key     uint16
	held    [4]bool
	keyHeld bool
}

func (s *comboState) modifiersMatch() bool {
	return s.held[modCtrl] == s.combo.Ctrl &&
		s.held[modShift] == s.combo.Shift &&
		s.held[modAlt] == s.combo.Alt &&
		s.held[modSuper] == s.combo.Super
}

// feed applies one key event and reports whether the combo was pressed or
// released by it. Auto-repeat events are ignored.
func (s *comboState) feed(code uint16, value int32) (pressed, released bool) {
	if value == keyRepeat {
		return false, false
	}
	down := value == keyPress
	if m, ok := evdevModifiers[code]; ok {
		s.held[m] = down
		return false, false
	}
	if code != s.key {
		return false, false
	}
	switch {
	case down && !s.keyHeld && s.modifiersMatch():
		s.keyHeld = true
		return true, false
	case value == keyRelease && s.keyHeld:
		s.keyHeld = false
		return false, true
	}
	return false, false
}

func (h *linuxHotkey) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	st := comboState{combo: h.combo, key: h.key}

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			if evType != evKey {
				continue
			}
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))

			pressed, released := st.feed(evCode, evValue)
			if pressed {
				select {
				case h.keydown <- struct{}{}:
				default:
				}
			}
			if released {
				select {
				case h.keyup <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (h *linuxHotkey) Unregister() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *linuxHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *linuxHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "event") && isKeyboard(e.Name()) {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}
	for _, path := range keyboards {
		if f, err := os.Open(path); err == nil {
			f.Close()
			return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), path), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
}
