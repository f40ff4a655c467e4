package announce

import "fmt"

// Topics builds the announcer's MQTT topic names under a configurable
// prefix. Using these helpers keeps topic naming consistent between the
// daemon and its subscribers.
//
//	topics := announce.Topics{Prefix: "volumiohid"}
//	topics.Status() // "volumiohid/status"
type Topics struct {
	Prefix string
}

// Status returns the daemon presence topic.
// Retained: subscribers immediately learn whether the daemon is up.
//
// Example: volumiohid/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/status", t.Prefix)
}

// Scan returns the topic for scan announcements.
// Not retained: each scan is an event, not a state.
//
// Example: volumiohid/scan
func (t Topics) Scan() string {
	return fmt.Sprintf("%s/scan", t.Prefix)
}

// PlayerState returns the topic for relayed player state snapshots.
// Retained: new subscribers see the last known player state.
//
// Example: volumiohid/player/state
func (t Topics) PlayerState() string {
	return fmt.Sprintf("%s/player/state", t.Prefix)
}
