package game

import (
	"fmt"
	"strings"
)

// Action is one of the four discrete inputs the simulation accepts.
type Action int32

const (
	ActionNoop Action = iota
	ActionFire
	ActionLeftFire
	ActionRightFire
)

// NumActions is the size of the action space.
const NumActions = 4

var actionNames = [NumActions]string{"noop", "fire", "leftfire", "rightfire"}

func (a Action) String() string {
	if a < 0 || int(a) >= NumActions {
		return fmt.Sprintf("action(%d)", int32(a))
	}
	return actionNames[a]
}

// Valid reports whether a is inside the action space.
func (a Action) Valid() bool {
	return a >= 0 && int(a) < NumActions
}

// IsFire reports whether a presses the fire control.
func (a Action) IsFire() bool {
	return a == ActionFire || a == ActionLeftFire || a == ActionRightFire
}

// Cannon maps a fire action to its cannon index, or -1 for no-op.
func (a Action) Cannon() int {
	switch a {
	case ActionLeftFire:
		return CannonLeft
	case ActionFire:
		return CannonMiddle
	case ActionRightFire:
		return CannonRight
	default:
		return -1
	}
}

// ParseAction accepts the names produced by String, case-insensitively.
func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range actionNames {
		if n == s {
			return Action(i), nil
		}
	}
	return ActionNoop, fmt.Errorf("unknown action %q", s)
}
