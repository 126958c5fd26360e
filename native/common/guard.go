package common

import "errors"

// ErrModulePaused is returned when a state-changing operation is invoked
// while its module is administratively paused.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module is paused. The upgrade/pause
// lifecycle lives outside the engines; they only consume this gate.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused. A nil view or empty
// module name disables the gate.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseSet is a trivial PauseView backed by a set of module names.
type PauseSet map[string]bool

// IsPaused implements the PauseView interface.
func (p PauseSet) IsPaused(module string) bool { return p[module] }
