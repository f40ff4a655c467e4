package hid

// Linux input event types (linux/input-event-codes.h).
const (
	// EvSyn marks synchronisation events separating event batches.
	EvSyn uint16 = 0x00

	// EvKey marks key press/release events.
	EvKey uint16 = 0x01

	// EvMsc marks miscellaneous events (raw scancodes).
	EvMsc uint16 = 0x04
)

// Key event values.
const (
	// KeyUp is the value of a key release event.
	KeyUp int32 = 0

	// KeyDown is the value of a key press event.
	KeyDown int32 = 1

	// KeyRepeat is the value of an autorepeat event.
	KeyRepeat int32 = 2
)

// Event is one raw input event read from the device.
//
// It mirrors the kernel's input_event structure without the timestamp;
// the accumulator only cares about type, code and transition.
type Event struct {
	// Type is the event category (EvKey for key events).
	Type uint16

	// Code is the key scancode (KEY_0, KEY_ENTER, ...).
	Code uint16

	// Value is the transition: KeyDown, KeyUp or KeyRepeat.
	Value int32
}

// IsKeyDown reports whether the event is a key press.
// Autorepeat events are not presses: a card held on the reader must not
// multiply its digits.
func (e Event) IsKeyDown() bool {
	return e.Type == EvKey && e.Value == KeyDown
}
