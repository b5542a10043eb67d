package hotkey

import "golang.design/x/hotkey"

// VK_OEM_5
const keyBackslash hotkey.Key = 0xDC

func modifiers(c Combo) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if c.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if c.Alt {
		mods = append(mods, hotkey.ModAlt)
	}
	if c.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if c.Super {
		mods = append(mods, hotkey.ModWin)
	}
	return mods
}
