// Package hid reads raw input events from a USB HID device such as an
// RFID reader that presents itself as a keyboard.
//
// The device is opened with an exclusive kernel grab (EVIOCGRAB) so its
// keystrokes never reach other consumers (getty, X, ...). Events are read
// one at a time from the evdev node and decoded into Event values; the
// caller owns interpretation (digit mapping, terminator handling).
//
// # Lifecycle
//
//	dev, err := hid.Open(cfg.Device.Path)
//	if err != nil { ... }            // hid.ErrDeviceUnavailable
//	defer dev.Close()                // idempotent, releases the grab
//
//	for {
//	    ev, err := dev.ReadEvent(ctx) // cancellable blocking read
//	    ...
//	}
//
// A device that disappears mid-stream (reader unplugged) surfaces as
// ErrDeviceUnavailable from ReadEvent.
package hid
