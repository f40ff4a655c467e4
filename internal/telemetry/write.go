package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/edmw/volumio-hid/internal/command"
)

// WriteScan records one finalized identifier and its resolution.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Outcome and command are tags (low cardinality); the identifier itself
// is a field so card serials do not explode the tag index.
//
// Parameters:
//   - identifier: The digits read from the device
//   - outcome: How the identifier resolved (command, playlist, unmatched)
//   - commandName: The resolved command, empty when unmatched
func (c *Client) WriteScan(identifier string, outcome command.Outcome, commandName string) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"outcome": string(outcome),
	}
	if commandName != "" {
		tags["command"] = commandName
	}

	point := write.NewPoint(
		"scans",
		tags,
		map[string]interface{}{
			"identifier": identifier,
			"count":      1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSessionEvent records a session transition (connected, disconnected,
// reconnected). Used for tracking how stable the link to the player is.
func (c *Client) WriteSessionEvent(event string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"session_events",
		map[string]string{
			"event": event,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePlayerState records a player state snapshot.
//
// Parameters:
//   - status: Player status (play, stop, pause)
//   - volume: Current volume level
//   - mute: Whether the player is muted
func (c *Client) WritePlayerState(status string, volume int, mute bool) {
	if !c.IsConnected() {
		return
	}

	muted := 0
	if mute {
		muted = 1
	}

	point := write.NewPoint(
		"player_state",
		map[string]string{
			"status": status,
		},
		map[string]interface{}{
			"volume": volume,
			"mute":   muted,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
