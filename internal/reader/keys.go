package reader

// Linux key codes emitted by the reader (linux/input-event-codes.h).
// The device types digits on the top row or the keypad depending on
// firmware, so both banks are mapped.
const (
	keyEnter   uint16 = 28
	keyKPEnter uint16 = 96
)

// digitCodes maps key scancodes to digit characters.
var digitCodes = map[uint16]rune{
	// Top row: KEY_1..KEY_9, KEY_0
	2: '1', 3: '2', 4: '3', 5: '4', 6: '5',
	7: '6', 8: '7', 9: '8', 10: '9', 11: '0',

	// Keypad: KEY_KP7..KEY_KP9, KEY_KP4..KEY_KP6, KEY_KP1..KEY_KP3, KEY_KP0
	71: '7', 72: '8', 73: '9',
	75: '4', 76: '5', 77: '6',
	79: '1', 80: '2', 81: '3',
	82: '0',
}

// isTerminator reports whether code ends an identifier.
func isTerminator(code uint16) bool {
	return code == keyEnter || code == keyKPEnter
}
