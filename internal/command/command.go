package command

// Volumio command vocabulary. These are the event names the remote peer
// accepts over its websocket API.
const (
	Play         = "play"
	Stop         = "stop"
	Prev         = "prev"
	Next         = "next"
	Volume       = "volume"
	Mute         = "mute"
	Unmute       = "unmute"
	PlayPlaylist = "playPlaylist"
	Shutdown     = "shutdown"
)

// ToggleMute is a configuration-only command: it is never emitted itself
// but resolves to Mute or Unmute depending on the last player snapshot.
const ToggleMute = "toggleMute"

// knownCommands is the set of command names accepted in configuration.
var knownCommands = map[string]struct{}{
	Play:         {},
	Stop:         {},
	Prev:         {},
	Next:         {},
	Volume:       {},
	Mute:         {},
	Unmute:       {},
	PlayPlaylist: {},
	Shutdown:     {},
	ToggleMute:   {},
}

// IsKnown reports whether name is part of the command vocabulary.
func IsKnown(name string) bool {
	_, ok := knownCommands[name]
	return ok
}

// AckFunc is invoked when the remote peer acknowledges a command.
// The arguments are whatever the peer sent with the acknowledgement.
type AckFunc func(args []any)

// Invocation is one command ready to be emitted to the remote peer.
type Invocation struct {
	// Event is the command name from the vocabulary above.
	Event string

	// Payload is the optional command payload (nil for bare commands,
	// "+"/"-"/level for volume, {"name": ...} for playPlaylist).
	Payload any

	// Ack, if non-nil, is called with the peer's acknowledgement.
	Ack AckFunc
}

// Outcome classifies how an identifier was resolved.
type Outcome string

const (
	// OutcomeCommand means the identifier matched a configured entry.
	OutcomeCommand Outcome = "command"

	// OutcomePlaylist means the 10-digit playlist fallback applied.
	OutcomePlaylist Outcome = "playlist"

	// OutcomeUnmatched means no command fired.
	OutcomeUnmatched Outcome = "unmatched"
)
