// Package hotkey registers a system-wide key combination.
package hotkey

import (
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Combo is a parsed key combination such as "ctrl+alt+\".
type Combo struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	Super bool
	Key   string // normalized key name: "a", "7", "space", "backslash", "f5"
}

var keyAliases = map[string]string{
	`\`:      "backslash",
	"return": "enter",
	"esc":    "escape",
}

// ParseCombo parses "+"-separated modifiers followed by exactly one key.
func ParseCombo(s string) (Combo, error) {
	var c Combo
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return c, fmt.Errorf("empty hotkey")
	}
	// A trailing "+" means the key itself is "+", which is not supported.
	if strings.HasSuffix(raw, "+") {
		return c, fmt.Errorf("hotkey %q: missing key", s)
	}

	parts := strings.Split(raw, "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		last := i == len(parts)-1
		switch p {
		case "ctrl", "control":
			c.Ctrl = true
		case "alt", "option", "opt":
			c.Alt = true
		case "shift":
			c.Shift = true
		case "super", "cmd", "command", "win", "meta":
			c.Super = true
		default:
			if !last {
				return c, fmt.Errorf("hotkey %q: unknown modifier %q", s, p)
			}
			if alias, ok := keyAliases[p]; ok {
				p = alias
			}
			if !validKey(p) {
				return c, fmt.Errorf("hotkey %q: unsupported key %q", s, p)
			}
			c.Key = p
		}
	}
	if c.Key == "" {
		return c, fmt.Errorf("hotkey %q: missing key", s)
	}
	if !c.Ctrl && !c.Alt && !c.Shift && !c.Super {
		return c, fmt.Errorf("hotkey %q: needs at least one modifier", s)
	}
	return c, nil
}

func validKey(k string) bool {
	if len(k) == 1 && ((k[0] >= 'a' && k[0] <= 'z') || (k[0] >= '0' && k[0] <= '9')) {
		return true
	}
	switch k {
	case "space", "backslash", "enter", "tab", "escape":
		return true
	}
	if len(k) >= 2 && k[0] == 'f' {
		var n int
		if _, err := fmt.Sscanf(k[1:], "%d", &n); err == nil && n >= 1 && n <= 12 && fmt.Sprint(n) == k[1:] {
			return true
		}
	}
	return false
}

func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if c.Alt {
		parts = append(parts, "Alt")
	}
	if c.Shift {
		parts = append(parts, "Shift")
	}
	if c.Super {
		parts = append(parts, "Super")
	}
	key := c.Key
	switch key {
	case "backslash":
		key = `\`
	default:
		if len(key) > 1 {
			key = strings.ToUpper(key[:1]) + key[1:]
		} else {
			key = strings.ToUpper(key)
		}
	}
	return strings.Join(append(parts, key), "+")
}
