package reader

import (
	"github.com/edmw/volumio-hid/internal/hid"
	"github.com/edmw/volumio-hid/internal/infrastructure/config"
)

// unknownMarker is appended for unmapped scancodes under the "mark"
// policy. The replacement character can never form a valid serial, so a
// misread card fails resolution instead of shortening into a different,
// possibly valid identifier.
const unknownMarker = '�'

// Accumulator folds raw key events into digit-string identifiers.
//
// It is strictly sequential state: exactly one goroutine (the read
// pipeline) feeds it, so no locking is needed and no event can be lost to
// a buffering race. The buffer is cleared exactly once per terminator and
// never carries characters across a completed dispatch.
type Accumulator struct {
	buf       []rune
	onUnknown string
}

// NewAccumulator creates an accumulator with the configured policy for
// unmapped scancodes (config.OnUnknownDrop or config.OnUnknownMark).
func NewAccumulator(onUnknown string) *Accumulator {
	return &Accumulator{
		onUnknown: onUnknown,
	}
}

// Feed consumes one raw event and returns a completed identifier when the
// event finalizes one.
//
// Policy:
//   - Events that are not key presses are ignored (releases, autorepeat,
//     sync and misc events).
//   - Digit scancodes append their character to the buffer.
//   - The terminator (Enter) finalizes: a non-empty buffer is returned as
//     the identifier, and the buffer is cleared either way.
//   - Unmapped scancodes are dropped or marked per configuration.
//
// Returns:
//   - string: The completed identifier, exactly the buffer contents at
//     finalization time
//   - bool: true when a non-empty identifier was finalized
func (a *Accumulator) Feed(ev hid.Event) (string, bool) {
	if !ev.IsKeyDown() {
		return "", false
	}

	if isTerminator(ev.Code) {
		if len(a.buf) == 0 {
			return "", false
		}
		identifier := string(a.buf)
		a.buf = a.buf[:0]
		return identifier, true
	}

	if digit, ok := digitCodes[ev.Code]; ok {
		a.buf = append(a.buf, digit)
		return "", false
	}

	if a.onUnknown == config.OnUnknownMark {
		a.buf = append(a.buf, unknownMarker)
	}
	return "", false
}

// Len returns the number of buffered characters.
func (a *Accumulator) Len() int {
	return len(a.buf)
}
