package volumio

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Engine.IO packet types (protocol v3, first byte of every frame).
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
)

// Socket.IO packet types (second byte of message frames).
const (
	socketConnect    = '0'
	socketDisconnect = '1'
	socketEvent      = '2'
	socketAck        = '3'
)

// handshake is the JSON body of the Engine.IO open packet.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"` // milliseconds
	PingTimeout  int    `json:"pingTimeout"`  // milliseconds
}

// packet is one decoded incoming frame.
type packet struct {
	engineType byte

	// socketType is set for engineMessage frames.
	socketType byte

	// ackID is the acknowledgement id of event/ack frames, -1 when absent.
	ackID int64

	// event and args are set for decoded event/ack frames.
	event string
	args  []any

	// handshake is set for engineOpen frames.
	handshake handshake
}

// encodeEvent builds the wire form of one emitted event:
// "42[\"play\"]", "42[\"volume\",\"-\"]", or "42<id>[...]" when an
// acknowledgement is requested.
func encodeEvent(ackID int64, event string, payload any) (string, error) {
	arr := []any{event}
	if payload != nil {
		arr = append(arr, payload)
	}

	data, err := json.Marshal(arr)
	if err != nil {
		return "", fmt.Errorf("encoding event %s: %w", event, err)
	}

	var b strings.Builder
	b.WriteByte(engineMessage)
	b.WriteByte(socketEvent)
	if ackID >= 0 {
		b.WriteString(strconv.FormatInt(ackID, 10))
	}
	b.Write(data)
	return b.String(), nil
}

// decodePacket parses one incoming frame.
func decodePacket(raw string) (packet, error) {
	if raw == "" {
		return packet{}, fmt.Errorf("%w: empty frame", errMalformedPacket)
	}

	p := packet{engineType: raw[0], ackID: -1}

	switch p.engineType {
	case engineOpen:
		if err := json.Unmarshal([]byte(raw[1:]), &p.handshake); err != nil {
			return packet{}, fmt.Errorf("%w: open handshake: %w", errMalformedPacket, err)
		}
		return p, nil

	case engineClose, enginePing, enginePong:
		return p, nil

	case engineMessage:
		return decodeMessage(raw, p)

	default:
		return packet{}, fmt.Errorf("%w: unknown engine type %q", errMalformedPacket, p.engineType)
	}
}

// decodeMessage parses the Socket.IO layer of a message frame.
func decodeMessage(raw string, p packet) (packet, error) {
	if len(raw) < 2 {
		return packet{}, fmt.Errorf("%w: truncated message", errMalformedPacket)
	}
	p.socketType = raw[1]

	switch p.socketType {
	case socketConnect, socketDisconnect:
		return p, nil

	case socketEvent, socketAck:
		rest := raw[2:]

		// Optional acknowledgement id: digits before the JSON array.
		digits := 0
		for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
			digits++
		}
		if digits > 0 {
			id, err := strconv.ParseInt(rest[:digits], 10, 64)
			if err != nil {
				return packet{}, fmt.Errorf("%w: ack id: %w", errMalformedPacket, err)
			}
			p.ackID = id
			rest = rest[digits:]
		}

		var arr []any
		if err := json.Unmarshal([]byte(rest), &arr); err != nil {
			return packet{}, fmt.Errorf("%w: payload array: %w", errMalformedPacket, err)
		}

		if p.socketType == socketEvent {
			if len(arr) == 0 {
				return packet{}, fmt.Errorf("%w: event without name", errMalformedPacket)
			}
			name, ok := arr[0].(string)
			if !ok {
				return packet{}, fmt.Errorf("%w: event name is not a string", errMalformedPacket)
			}
			p.event = name
			p.args = arr[1:]
		} else {
			p.args = arr
		}
		return p, nil

	default:
		return packet{}, fmt.Errorf("%w: unknown socket type %q", errMalformedPacket, p.socketType)
	}
}
