package wireframe

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/danmuck/sideband/internal/identity"
	"github.com/danmuck/sideband/internal/protoerr"
)

// Decode parses b as a single, already-delimited frame. Missing bytes are
// rejected. Extra bytes are rejected only where the payload has a fixed
// length (Ack, Ping, Pong); after a Message subject, an Error message, or a
// Handshake/Close op they are read as that frame's data, details, or reason.
func Decode(b []byte) (Frame, error) {
	if len(b) < FixedHeaderLen {
		return Frame{}, fmt.Errorf("%w: buffer of %d bytes shorter than the %d-byte fixed header", protoerr.ErrInvalidFrame, len(b), FixedHeaderLen)
	}
	kindByte := b[0]
	flags := b[1]
	if flags != 0 {
		return Frame{}, fmt.Errorf("%w: reserved flags byte must be zero, got %#x", protoerr.ErrInvalidFrame, flags)
	}
	id, err := identity.FrameIDFromBytes(b[2:18])
	if err != nil {
		return Frame{}, err
	}
	payload := b[18:]

	switch Kind(kindByte) {
	case KindControl:
		return decodeControl(id, payload)
	case KindMessage:
		return decodeMessage(id, payload)
	case KindAck:
		return decodeAck(id, payload)
	case KindError:
		return decodeError(id, payload)
	default:
		return Frame{}, fmt.Errorf("%w: unknown frame kind byte %d", protoerr.ErrInvalidFrame, kindByte)
	}
}

func decodeControl(id identity.FrameID, payload []byte) (Frame, error) {
	if len(payload) < 1 {
		return Frame{}, fmt.Errorf("%w: control frame missing op byte", protoerr.ErrInvalidFrame)
	}
	op := ControlOp(payload[0])
	data := payload[1:]
	switch op {
	case OpHandshake:
		if len(data) == 0 {
			return Frame{}, fmt.Errorf("%w: handshake control frame has empty data", protoerr.ErrInvalidFrame)
		}
		if !utf8.Valid(data) {
			return Frame{}, fmt.Errorf("%w: handshake data is not valid utf-8", protoerr.ErrInvalidFrame)
		}
	case OpPing, OpPong:
		if len(data) != 0 {
			return Frame{}, fmt.Errorf("%w: %s control frame carries unexpected data", protoerr.ErrInvalidFrame, op)
		}
	case OpClose:
		if len(data) != 0 && !utf8.Valid(data) {
			return Frame{}, fmt.Errorf("%w: close reason is not valid utf-8", protoerr.ErrInvalidFrame)
		}
	default:
		return Frame{}, fmt.Errorf("%w: unknown control op byte %d", protoerr.ErrInvalidFrame, payload[0])
	}
	return Frame{kind: KindControl, id: id, op: op, ctrlData: cloneBytes(data)}, nil
}

func decodeMessage(id identity.FrameID, payload []byte) (Frame, error) {
	if len(payload) < 4 {
		return Frame{}, fmt.Errorf("%w: message frame missing subject length prefix", protoerr.ErrInvalidFrame)
	}
	subjLen := binary.LittleEndian.Uint32(payload[0:4])
	rest := payload[4:]
	if uint64(subjLen) > uint64(len(rest)) {
		return Frame{}, fmt.Errorf("%w: subject length %d exceeds remaining payload of %d bytes", protoerr.ErrInvalidFrame, subjLen, len(rest))
	}
	subjectBytes := rest[:subjLen]
	data := rest[subjLen:]
	if !utf8.Valid(subjectBytes) {
		return Frame{}, fmt.Errorf("%w: subject is not valid utf-8", protoerr.ErrInvalidFrame)
	}
	subject, err := identity.ValidateSubject(string(subjectBytes))
	if err != nil {
		return Frame{}, err
	}
	return Frame{kind: KindMessage, id: id, subject: subject, data: cloneBytes(data)}, nil
}

func decodeAck(id identity.FrameID, payload []byte) (Frame, error) {
	if len(payload) != 16 {
		return Frame{}, fmt.Errorf("%w: ack payload must be exactly 16 bytes, got %d", protoerr.ErrInvalidFrame, len(payload))
	}
	target, err := identity.FrameIDFromBytes(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{kind: KindAck, id: id, target: target}, nil
}

func decodeError(id identity.FrameID, payload []byte) (Frame, error) {
	if len(payload) < 6 {
		return Frame{}, fmt.Errorf("%w: error payload shorter than the 6-byte code+length header", protoerr.ErrInvalidFrame)
	}
	code := binary.LittleEndian.Uint16(payload[0:2])
	msgLen := binary.LittleEndian.Uint32(payload[2:6])
	rest := payload[6:]
	if uint64(msgLen) > uint64(len(rest)) {
		return Frame{}, fmt.Errorf("%w: error message length %d exceeds remaining payload of %d bytes", protoerr.ErrInvalidFrame, msgLen, len(rest))
	}
	msgBytes := rest[:msgLen]
	details := rest[msgLen:]
	if !utf8.Valid(msgBytes) {
		return Frame{}, fmt.Errorf("%w: error message is not valid utf-8", protoerr.ErrInvalidFrame)
	}
	if len(msgBytes) == 0 {
		return Frame{}, fmt.Errorf("%w: error frame requires a non-empty message", protoerr.ErrInvalidFrame)
	}
	return Frame{kind: KindError, id: id, code: code, message: string(msgBytes), details: cloneBytes(details)}, nil
}
