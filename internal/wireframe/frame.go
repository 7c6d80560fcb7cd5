package wireframe

import (
	"fmt"

	"github.com/danmuck/sideband/internal/identity"
	"github.com/danmuck/sideband/internal/protoerr"
)

// Frame is one decoded or about-to-be-encoded wire message. The zero value
// is not valid; build one with NewControlFrame, NewMessageFrame,
// NewAckFrame, NewErrorFrame, or obtain one from Decode. Frame is
// immutable once constructed — every accessor that returns a []byte hands
// back a copy.
type Frame struct {
	kind Kind
	id   identity.FrameID

	op       ControlOp
	ctrlData []byte

	subject identity.Subject
	data    []byte

	target identity.FrameID

	code    uint16
	message string
	details []byte
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// NewControlFrame builds a Control frame, enforcing the per-op data shape:
// Handshake requires non-empty data, Ping/Pong forbid any data, Close data
// is optional.
func NewControlFrame(id identity.FrameID, op ControlOp, data []byte) (Frame, error) {
	switch op {
	case OpHandshake:
		if len(data) == 0 {
			return Frame{}, fmt.Errorf("%w: handshake control frame requires non-empty data", protoerr.ErrInvalidFrame)
		}
	case OpPing, OpPong:
		if len(data) != 0 {
			return Frame{}, fmt.Errorf("%w: %s control frame must not carry data", protoerr.ErrInvalidFrame, op)
		}
	case OpClose:
		// data is optional.
	default:
		return Frame{}, fmt.Errorf("%w: unknown control op %d", protoerr.ErrInvalidFrame, uint8(op))
	}
	return Frame{kind: KindControl, id: id, op: op, ctrlData: cloneBytes(data)}, nil
}

// NewMessageFrame builds a Message frame. data may be empty.
func NewMessageFrame(id identity.FrameID, subject identity.Subject, data []byte) Frame {
	return Frame{kind: KindMessage, id: id, subject: subject, data: cloneBytes(data)}
}

// NewAckFrame builds an Ack frame acknowledging target.
func NewAckFrame(id identity.FrameID, target identity.FrameID) Frame {
	return Frame{kind: KindAck, id: id, target: target}
}

// NewErrorFrame builds an Error frame. message must be non-empty; details
// is an optional opaque trailer.
func NewErrorFrame(id identity.FrameID, code uint16, message string, details []byte) (Frame, error) {
	if message == "" {
		return Frame{}, fmt.Errorf("%w: error frame requires a message", protoerr.ErrInvalidFrame)
	}
	return Frame{kind: KindError, id: id, code: code, message: message, details: cloneBytes(details)}, nil
}

// Kind reports which of the four frame shapes f carries.
func (f Frame) Kind() Kind { return f.kind }

// ID returns f's own frame id.
func (f Frame) ID() identity.FrameID { return f.id }

// ControlOp returns f's control operation and true, or the zero value and
// false if f is not a Control frame.
func (f Frame) ControlOp() (ControlOp, bool) {
	if f.kind != KindControl {
		return 0, false
	}
	return f.op, true
}

// ControlData returns a copy of f's control payload, or nil if f is not a
// Control frame or carries no data.
func (f Frame) ControlData() []byte {
	if f.kind != KindControl {
		return nil
	}
	return cloneBytes(f.ctrlData)
}

// Subject returns f's routing key and true, or the zero value and false if
// f is not a Message frame.
func (f Frame) Subject() (identity.Subject, bool) {
	if f.kind != KindMessage {
		return identity.Subject{}, false
	}
	return f.subject, true
}

// Data returns a copy of f's opaque payload. Only Message frames carry one;
// every other kind returns nil.
func (f Frame) Data() []byte {
	if f.kind != KindMessage {
		return nil
	}
	return cloneBytes(f.data)
}

// Target returns the frame id an Ack frame acknowledges, and true, or the
// zero value and false if f is not an Ack frame.
func (f Frame) Target() (identity.FrameID, bool) {
	if f.kind != KindAck {
		return identity.FrameID{}, false
	}
	return f.target, true
}

// ErrorCode returns f's error code and true, or 0 and false if f is not an
// Error frame.
func (f Frame) ErrorCode() (uint16, bool) {
	if f.kind != KindError {
		return 0, false
	}
	return f.code, true
}

// ErrorMessage returns f's human-readable error text and true, or "" and
// false if f is not an Error frame.
func (f Frame) ErrorMessage() (string, bool) {
	if f.kind != KindError {
		return "", false
	}
	return f.message, true
}

// ErrorDetails returns a copy of f's optional error trailer, or nil if f is
// not an Error frame or carries no trailer.
func (f Frame) ErrorDetails() []byte {
	if f.kind != KindError {
		return nil
	}
	return cloneBytes(f.details)
}
