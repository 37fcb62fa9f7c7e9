// Package input maps hotkeys to sound controls.
package input

import (
	"errors"
	"fmt"

	"github.com/richardwooding/nesapu/internal/apu"
)

// VolumeStep is the gain change of one volume key press.
const VolumeStep = 0.05

// Action is something a hotkey does.
type Action int

// Hotkey actions.
const (
	None Action = iota
	VolumeUp
	VolumeDown
	ToggleMute
	ToggleChannel1
	ToggleChannel2
	ToggleChannel3
	ToggleChannel4
	ToggleChannel5
	Restart
	Quit
)

var actionNames = map[Action]string{
	None:           "none",
	VolumeUp:       "volume-up",
	VolumeDown:     "volume-down",
	ToggleMute:     "toggle-mute",
	ToggleChannel1: "toggle-channel-1",
	ToggleChannel2: "toggle-channel-2",
	ToggleChannel3: "toggle-channel-3",
	ToggleChannel4: "toggle-channel-4",
	ToggleChannel5: "toggle-channel-5",
	Restart:        "restart",
	Quit:           "quit",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Channel returns the channel a ToggleChannel action applies to.
func (a Action) Channel() (apu.Channel, bool) {
	if a < ToggleChannel1 || a > ToggleChannel5 {
		return 0, false
	}
	return apu.Channel(a - ToggleChannel1), true
}

// DefaultBindings maps key names to actions.
func DefaultBindings() map[string]Action {
	return map[string]Action{
		"Up":     VolumeUp,
		"+":      VolumeUp,
		"Down":   VolumeDown,
		"-":      VolumeDown,
		"M":      ToggleMute,
		"1":      ToggleChannel1,
		"2":      ToggleChannel2,
		"3":      ToggleChannel3,
		"4":      ToggleChannel4,
		"5":      ToggleChannel5,
		"R":      Restart,
		"Q":      Quit,
		"Escape": Quit,
	}
}

// Hotkeys tracks held keys and reports actions on the press edge.
type Hotkeys struct {
	bindings map[string]Action
	held     map[string]bool
}

// New creates hotkeys with the given bindings, or the defaults when nil.
func New(bindings map[string]Action) *Hotkeys {
	if bindings == nil {
		bindings = DefaultBindings()
	}
	return &Hotkeys{
		bindings: bindings,
		held:     make(map[string]bool),
	}
}

// Lookup returns the action bound to key without tracking its state.
// Sources that only deliver presses, such as a terminal, use this.
func (h *Hotkeys) Lookup(key string) Action {
	return h.bindings[key]
}

// Press marks key as held. The bound action is returned only if the key
// was not already held.
func (h *Hotkeys) Press(key string) Action {
	if h.held[key] {
		return None
	}
	h.held[key] = true
	return h.bindings[key]
}

// Release marks key as released.
func (h *Hotkeys) Release(key string) {
	delete(h.held, key)
}

// Update sets the held keys to exactly those in pressed and returns the
// actions of newly pressed keys, in order.
func (h *Hotkeys) Update(pressed []string) []Action {
	down := make(map[string]bool, len(pressed))
	var actions []Action
	for _, key := range pressed {
		down[key] = true
		if a := h.Press(key); a != None {
			actions = append(actions, a)
		}
	}
	for key := range h.held {
		if !down[key] {
			h.Release(key)
		}
	}
	return actions
}

// Controls is the sound surface hotkeys act on.
type Controls interface {
	AdjustVolume(delta float32)
	ToggleMute() bool
	ToggleChannelMute(c apu.Channel) (bool, error)
	DescribeVolume() string
}

// ErrNotSoundAction is returned by Apply for actions handled by the caller.
var ErrNotSoundAction = errors.New("not a sound action")

// Apply performs a sound action and returns a status line describing the
// result.
func Apply(c Controls, a Action) (string, error) {
	switch a {
	case VolumeUp:
		c.AdjustVolume(VolumeStep)
		return c.DescribeVolume(), nil
	case VolumeDown:
		c.AdjustVolume(-VolumeStep)
		return c.DescribeVolume(), nil
	case ToggleMute:
		if c.ToggleMute() {
			return "Muted", nil
		}
		return c.DescribeVolume(), nil
	}

	ch, ok := a.Channel()
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrNotSoundAction, a)
	}
	muted, err := c.ToggleChannelMute(ch)
	if err != nil {
		return "", err
	}
	if muted {
		return fmt.Sprintf("%v muted", ch), nil
	}
	return fmt.Sprintf("%v on", ch), nil
}
