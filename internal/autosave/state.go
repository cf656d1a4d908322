package autosave

import (
	"fmt"

	"github.com/debemdeboas/the-pantry/internal/model"
)

type State int

const (
	StateIdle State = iota
	StatePendingDebounce
	StateCommitting
	StateBackoff
	StateTerminalError
	// StateOffline waits for the connectivity monitor to report the store reachable.
	StateOffline
	StateClosed
)

var stateNames = map[State]string{
	StateIdle:            "idle",
	StatePendingDebounce: "pending",
	StateCommitting:      "committing",
	StateBackoff:         "backoff",
	StateTerminalError:   "terminal_error",
	StateOffline:         "offline",
	StateClosed:          "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown autosave state %q", text)
}

type Progress struct {
	Flags      model.ProgressFlags `json:"flags"`
	Percentage int                 `json:"percentage"`
}

// Event is sent to the session notifier on every status or state change.
type Event struct {
	Key      string        `json:"key"`
	DraftID  model.DraftID `json:"draftId,omitempty"`
	Status   model.Status  `json:"status"`
	State    State         `json:"state"`
	Progress Progress      `json:"progress"`
	Error    string        `json:"error,omitempty"`
}
