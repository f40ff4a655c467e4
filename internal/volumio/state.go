package volumio

import (
	"encoding/json"
	"time"
)

// State is a snapshot of the Volumio player, taken from the most recent
// pushState broadcast. Each broadcast replaces the whole snapshot.
type State struct {
	Status  string `json:"status"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Album   string `json:"album"`
	Volume  int    `json:"volume"`
	Mute    bool   `json:"mute"`
	Service string `json:"service"`

	// UpdatedAt is when the snapshot was received, not player time.
	UpdatedAt time.Time `json:"updated_at"`
}

// stateFromArg converts the first pushState argument into a State.
// The argument arrives as a generic JSON value; fields the player omits
// keep their zero values.
func stateFromArg(arg any) (State, bool) {
	data, err := json.Marshal(arg)
	if err != nil {
		return State{}, false
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, false
	}
	s.UpdatedAt = time.Now().UTC()
	return s, true
}
