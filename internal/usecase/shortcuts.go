package usecase

import (
	"strings"

	"livescribe/internal/domain"
)

type shortcutAction int

const (
	shortcutNone shortcutAction = iota
	shortcutToggle
	shortcutCopy
	shortcutDownload
)

// matchShortcut maps primary-modifier key combos to controller actions.
// Ctrl and Meta are interchangeable so the same bindings work on macOS.
func matchShortcut(key domain.KeyPress) shortcutAction {
	if !key.Ctrl && !key.Meta {
		return shortcutNone
	}

	switch strings.ToLower(key.Key) {
	case "enter":
		return shortcutToggle
	case "c":
		if key.Shift {
			return shortcutCopy
		}
	case "d":
		if key.Shift {
			return shortcutDownload
		}
	}
	return shortcutNone
}
