package command

import (
	"fmt"
	"strconv"

	"github.com/edmw/volumio-hid/internal/infrastructure/config"
)

// playlistSerialLength is the identifier length accepted by the playlist
// fallback: RFID card serials from the reader are always ten digits.
const playlistSerialLength = 10

// Logger defines the logging interface for the resolver.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// StateReader reports the player state used by state-dependent commands.
// Satisfied by *volumio.Session.
type StateReader interface {
	Muted() bool
}

// Table resolves completed identifiers to command invocations.
//
// The table is built once at startup from configuration and is immutable
// afterwards; Resolve is safe for concurrent use, though the read pipeline
// is its only caller.
type Table struct {
	entries map[string]Invocation
	state   StateReader
	logger  Logger
}

// NewTable builds the resolver table from the configured identifier map.
//
// Each entry is validated against the command vocabulary; the volume
// shorthand ("+", "-", or an absolute level) is converted to the payload
// the remote peer expects.
//
// Parameters:
//   - commands: identifier → command mapping from config.yaml
//
// Returns:
//   - *Table: Immutable resolver table
//   - error: If an entry names an unknown command
func NewTable(commands map[string]config.CommandConfig) (*Table, error) {
	entries := make(map[string]Invocation, len(commands))

	for serial, cmd := range commands {
		if !IsKnown(cmd.Command) {
			return nil, fmt.Errorf("commands.%s: unknown command %q", serial, cmd.Command)
		}

		payload, err := buildPayload(cmd)
		if err != nil {
			return nil, fmt.Errorf("commands.%s: %w", serial, err)
		}

		entries[serial] = Invocation{
			Event:   cmd.Command,
			Payload: payload,
		}
	}

	return &Table{
		entries: entries,
		logger:  noopLogger{},
	}, nil
}

// SetLogger sets the logger for resolution diagnostics.
func (t *Table) SetLogger(logger Logger) {
	t.logger = logger
}

// SetStateReader wires the player state snapshot into state-dependent
// commands. Without it toggleMute treats the player as unmuted.
func (t *Table) SetStateReader(state StateReader) {
	t.state = state
}

// Size returns the number of configured entries.
func (t *Table) Size() int {
	return len(t.entries)
}

// Resolve maps a completed identifier to zero or more invocations.
//
// Resolution order is significant:
//  1. Exact match against the configured table. Configured entries always
//     shadow the fallback, even for 10-digit serials.
//  2. Identifiers of exactly ten digits play the playlist named by the
//     identifier (preceded by a stop, so the current playback does not
//     bleed into the new playlist).
//  3. Anything else fires nothing; a diagnostic is logged.
//
// Parameters:
//   - identifier: The digit string accumulated from the device
//
// Returns:
//   - []Invocation: Commands to emit, in order; empty when unmatched
//   - Outcome: How the identifier resolved
func (t *Table) Resolve(identifier string) ([]Invocation, Outcome) {
	if inv, ok := t.entries[identifier]; ok {
		inv = t.materialize(inv)
		t.logger.Info("identifier resolved",
			"identifier", identifier,
			"command", inv.Event,
		)
		return []Invocation{inv}, OutcomeCommand
	}

	if isPlaylistSerial(identifier) {
		t.logger.Info("identifier resolved to playlist",
			"identifier", identifier,
		)
		return []Invocation{
			{Event: Stop},
			{
				Event:   PlayPlaylist,
				Payload: map[string]any{"name": identifier},
				Ack: func(args []any) {
					t.logger.Info("started playing playlist",
						"playlist", identifier,
						"result", fmt.Sprintf("%v", args),
					)
				},
			},
		}, OutcomePlaylist
	}

	t.logger.Warn("identifier matches no command",
		"identifier", identifier,
		"length", len(identifier),
	)
	return nil, OutcomeUnmatched
}

// materialize binds state-dependent entries to the last player snapshot.
// toggleMute reads the snapshot at dispatch time: a muted player unmutes,
// anything else (including no snapshot yet) mutes. The snapshot may be
// stale by one pushState; the peer's next broadcast settles it.
func (t *Table) materialize(inv Invocation) Invocation {
	if inv.Event != ToggleMute {
		return inv
	}
	if t.state != nil && t.state.Muted() {
		inv.Event = Unmute
	} else {
		inv.Event = Mute
	}
	return inv
}

// isPlaylistSerial reports whether the identifier qualifies for the
// playlist fallback: exactly ten characters, all ASCII digits.
func isPlaylistSerial(identifier string) bool {
	if len(identifier) != playlistSerialLength {
		return false
	}
	for _, r := range identifier {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// buildPayload constructs the wire payload for one configured command.
func buildPayload(cmd config.CommandConfig) (any, error) {
	if cmd.Command == Volume {
		switch cmd.Volume {
		case "":
			return nil, fmt.Errorf(`volume command needs a volume value ("+", "-", or a level)`)
		case "+", "-":
			return cmd.Volume, nil
		default:
			level, err := strconv.Atoi(cmd.Volume)
			if err != nil {
				return nil, fmt.Errorf("invalid volume value %q", cmd.Volume)
			}
			return level, nil
		}
	}

	if len(cmd.Args) > 0 {
		return map[string]any(cmd.Args), nil
	}
	return nil, nil
}
