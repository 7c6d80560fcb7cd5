package wireframe

import (
	"encoding/binary"
	"fmt"

	"github.com/danmuck/sideband/internal/identity"
	"github.com/danmuck/sideband/internal/protoerr"
)

// Encode serializes f into its wire bytes: the 18-byte fixed header
// followed by f's per-kind payload. Multi-byte integers are little-endian
// throughout.
func Encode(f Frame) ([]byte, error) {
	switch f.kind {
	case KindControl:
		return encodeControl(f)
	case KindMessage:
		return encodeMessage(f)
	case KindAck:
		return encodeAck(f)
	case KindError:
		return encodeError(f)
	default:
		return nil, fmt.Errorf("%w: unknown frame kind %d", protoerr.ErrInvalidFrame, uint8(f.kind))
	}
}

func header(kind Kind, id identity.FrameID) []byte {
	buf := make([]byte, FixedHeaderLen)
	buf[0] = byte(kind)
	buf[1] = 0
	copy(buf[2:18], id.Bytes())
	return buf
}

func encodeControl(f Frame) ([]byte, error) {
	switch f.op {
	case OpHandshake:
		if len(f.ctrlData) == 0 {
			return nil, fmt.Errorf("%w: handshake control frame requires non-empty data", protoerr.ErrInvalidFrame)
		}
	case OpPing, OpPong:
		if len(f.ctrlData) != 0 {
			return nil, fmt.Errorf("%w: %s control frame must not carry data", protoerr.ErrInvalidFrame, f.op)
		}
	case OpClose:
		// optional data.
	default:
		return nil, fmt.Errorf("%w: unknown control op %d", protoerr.ErrInvalidFrame, uint8(f.op))
	}
	out := header(KindControl, f.id)
	out = append(out, byte(f.op))
	out = append(out, f.ctrlData...)
	return out, nil
}

func encodeMessage(f Frame) ([]byte, error) {
	if f.subject.IsZero() {
		return nil, fmt.Errorf("%w: message frame requires a subject", protoerr.ErrInvalidFrame)
	}
	if _, err := identity.ValidateSubject(f.subject.String()); err != nil {
		return nil, err
	}
	subjectBytes := []byte(f.subject.String())
	out := header(KindMessage, f.id)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(subjectBytes)))
	out = append(out, lenBuf...)
	out = append(out, subjectBytes...)
	out = append(out, f.data...)
	return out, nil
}

func encodeAck(f Frame) ([]byte, error) {
	out := header(KindAck, f.id)
	out = append(out, f.target.Bytes()...)
	return out, nil
}

func encodeError(f Frame) ([]byte, error) {
	if f.message == "" {
		return nil, fmt.Errorf("%w: error frame requires a message", protoerr.ErrInvalidFrame)
	}
	msgBytes := []byte(f.message)
	out := header(KindError, f.id)
	codeBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(codeBuf, f.code)
	out = append(out, codeBuf...)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(msgBytes)))
	out = append(out, lenBuf...)
	out = append(out, msgBytes...)
	out = append(out, f.details...)
	return out, nil
}
