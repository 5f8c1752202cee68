package platform

import "sync"

// Visibility reports whether the host surface is currently visible.
type Visibility interface {
	// Visible returns the current state.
	Visible() bool
	// Changes delivers every state transition. The channel is never closed
	// while the signal is in use.
	Changes() <-chan bool
}

// --------------------------------------------------------------------------
// AlwaysVisible
// --------------------------------------------------------------------------

// AlwaysVisible is a Visibility that never changes.
type AlwaysVisible struct{}

func (AlwaysVisible) Visible() bool { return true }

// Changes returns a nil channel, which blocks forever in a select.
func (AlwaysVisible) Changes() <-chan bool { return nil }

// --------------------------------------------------------------------------
// VisibilitySwitch
// --------------------------------------------------------------------------

// VisibilitySwitch is a Visibility flipped explicitly through Set.
type VisibilitySwitch struct {
	mu      sync.Mutex
	visible bool
	changes chan bool
}

// NewVisibilitySwitch creates a switch in the given initial state.
func NewVisibilitySwitch(visible bool) *VisibilitySwitch {
	return &VisibilitySwitch{
		visible: visible,
		changes: make(chan bool, 16),
	}
}

func (v *VisibilitySwitch) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

func (v *VisibilitySwitch) Changes() <-chan bool { return v.changes }

// Set updates the state and publishes it if it changed. When no one drains
// the channel, the oldest pending transition is dropped.
func (v *VisibilitySwitch) Set(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.visible == visible {
		return
	}
	v.visible = visible
	for {
		select {
		case v.changes <- visible:
			return
		default:
			select {
			case <-v.changes:
			default:
			}
		}
	}
}
