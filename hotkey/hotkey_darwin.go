package hotkey

import "golang.design/x/hotkey"

// kVK_ANSI_Backslash
const keyBackslash hotkey.Key = 0x2A

func modifiers(c Combo) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if c.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if c.Alt {
		mods = append(mods, hotkey.ModOption)
	}
	if c.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if c.Super {
		mods = append(mods, hotkey.ModCmd)
	}
	return mods
}
