package wireframe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/danmuck/sideband/internal/identity"
	"github.com/danmuck/sideband/internal/protoerr"
)

func mustFrameID(t *testing.T) identity.FrameID {
	t.Helper()
	id, err := identity.NewFrameID()
	if err != nil {
		t.Fatalf("NewFrameID: %v", err)
	}
	return id
}

func mustSubject(t *testing.T, text string) identity.Subject {
	t.Helper()
	s, err := identity.ValidateSubject(text)
	if err != nil {
		t.Fatalf("ValidateSubject(%q): %v", text, err)
	}
	return s
}

func TestControlFrameRoundTripPing(t *testing.T) {
	id := mustFrameID(t)
	f, err := NewControlFrame(id, OpPing, nil)
	if err != nil {
		t.Fatalf("NewControlFrame: %v", err)
	}
	encoded, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) != FixedHeaderLen+1 {
		t.Fatalf("encoded ping length = %d, want %d", len(encoded), FixedHeaderLen+1)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Kind() != KindControl {
		t.Fatalf("Kind() = %v, want control", decoded.Kind())
	}
	op, ok := decoded.ControlOp()
	if !ok || op != OpPing {
		t.Fatalf("ControlOp() = (%v, %v), want (ping, true)", op, ok)
	}
	if decoded.ID() != id {
		t.Fatalf("ID() = %s, want %s", decoded.ID(), id)
	}
}

func TestControlFrameRoundTripHandshake(t *testing.T) {
	id := mustFrameID(t)
	data := []byte(`{"protocol":"sideband"}`)
	f, err := NewControlFrame(id, OpHandshake, data)
	if err != nil {
		t.Fatalf("NewControlFrame: %v", err)
	}
	encoded, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded.ControlData(), data) {
		t.Fatalf("ControlData() = %q, want %q", decoded.ControlData(), data)
	}
}

func TestMessageFrameRoundTrip(t *testing.T) {
	id := mustFrameID(t)
	subject := mustSubject(t, "rpc/echo")
	data := []byte("hello")
	f := NewMessageFrame(id, subject, data)
	encoded, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	gotSubject, ok := decoded.Subject()
	if !ok || gotSubject.String() != "rpc/echo" {
		t.Fatalf("Subject() = (%v, %v), want (rpc/echo, true)", gotSubject, ok)
	}
	if !bytes.Equal(decoded.Data(), data) {
		t.Fatalf("Data() = %q, want %q", decoded.Data(), data)
	}
}

func TestMessageFrameRoundTripWithEmptyData(t *testing.T) {
	id := mustFrameID(t)
	subject := mustSubject(t, "event/tick")
	f := NewMessageFrame(id, subject, nil)
	encoded, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Data()) != 0 {
		t.Fatalf("Data() = %q, want empty", decoded.Data())
	}
}

func TestAckFrameRoundTrip(t *testing.T) {
	id := mustFrameID(t)
	target := mustFrameID(t)
	f := NewAckFrame(id, target)
	encoded, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) != FixedHeaderLen+16 {
		t.Fatalf("encoded ack length = %d, want %d", len(encoded), FixedHeaderLen+16)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	gotTarget, ok := decoded.Target()
	if !ok || gotTarget != target {
		t.Fatalf("Target() = (%s, %v), want (%s, true)", gotTarget, ok, target)
	}
}

func TestErrorFrameRoundTrip(t *testing.T) {
	id := mustFrameID(t)
	f, err := NewErrorFrame(id, 1002, "bad subject", []byte("extra"))
	if err != nil {
		t.Fatalf("NewErrorFrame: %v", err)
	}
	encoded, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	code, ok := decoded.ErrorCode()
	if !ok || code != 1002 {
		t.Fatalf("ErrorCode() = (%d, %v), want (1002, true)", code, ok)
	}
	msg, ok := decoded.ErrorMessage()
	if !ok || msg != "bad subject" {
		t.Fatalf("ErrorMessage() = (%q, %v), want (%q, true)", msg, ok, "bad subject")
	}
	if !bytes.Equal(decoded.ErrorDetails(), []byte("extra")) {
		t.Fatalf("ErrorDetails() = %q, want %q", decoded.ErrorDetails(), "extra")
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := Decode(make([]byte, FixedHeaderLen-1))
	if !errors.Is(err, protoerr.ErrInvalidFrame) {
		t.Fatalf("Decode short buffer: got %v, want ErrInvalidFrame", err)
	}
}

func TestDecodeRejectsNonZeroFlags(t *testing.T) {
	id := mustFrameID(t)
	f, _ := NewControlFrame(id, OpPing, nil)
	encoded, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	encoded[1] = 0x01
	if _, err := Decode(encoded); !errors.Is(err, protoerr.ErrInvalidFrame) {
		t.Fatalf("Decode non-zero flags: got %v, want ErrInvalidFrame", err)
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	id := mustFrameID(t)
	f, _ := NewControlFrame(id, OpPing, nil)
	encoded, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	encoded[0] = 99
	if _, err := Decode(encoded); !errors.Is(err, protoerr.ErrInvalidFrame) {
		t.Fatalf("Decode unknown kind: got %v, want ErrInvalidFrame", err)
	}
}

func TestDecodeRejectsAckWrongPayloadLength(t *testing.T) {
	id := mustFrameID(t)
	target := mustFrameID(t)
	f := NewAckFrame(id, target)
	encoded, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	truncated := encoded[:len(encoded)-1]
	if _, err := Decode(truncated); !errors.Is(err, protoerr.ErrInvalidFrame) {
		t.Fatalf("Decode truncated ack: got %v, want ErrInvalidFrame", err)
	}
}

func TestDecodeRejectsMessageSubjectLengthOverrun(t *testing.T) {
	id := mustFrameID(t)
	subject := mustSubject(t, "rpc/echo")
	f := NewMessageFrame(id, subject, []byte("x"))
	encoded, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	binary.LittleEndian.PutUint32(encoded[18:22], 9999)
	if _, err := Decode(encoded); !errors.Is(err, protoerr.ErrInvalidFrame) {
		t.Fatalf("Decode overrun subject length: got %v, want ErrInvalidFrame", err)
	}
}

func TestDecodeRejectsMessageWithInvalidSubject(t *testing.T) {
	id := mustFrameID(t)
	subjectBytes := []byte("no-namespace")
	payload := header(KindMessage, id)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(subjectBytes)))
	payload = append(payload, lenBuf...)
	payload = append(payload, subjectBytes...)
	if _, err := Decode(payload); !errors.Is(err, protoerr.ErrProtocolViolation) {
		t.Fatalf("Decode invalid subject: got %v, want ErrProtocolViolation", err)
	}
}

func TestDecodeRejectsHandshakeWithEmptyData(t *testing.T) {
	id := mustFrameID(t)
	payload := header(KindControl, id)
	payload = append(payload, byte(OpHandshake))
	if _, err := Decode(payload); !errors.Is(err, protoerr.ErrInvalidFrame) {
		t.Fatalf("Decode empty handshake: got %v, want ErrInvalidFrame", err)
	}
}

func TestDecodeRejectsPingWithTrailingData(t *testing.T) {
	id := mustFrameID(t)
	payload := header(KindControl, id)
	payload = append(payload, byte(OpPing))
	payload = append(payload, 0x01)
	if _, err := Decode(payload); !errors.Is(err, protoerr.ErrInvalidFrame) {
		t.Fatalf("Decode ping with data: got %v, want ErrInvalidFrame", err)
	}
}

func TestDecodeRejectsErrorFrameWithEmptyMessage(t *testing.T) {
	id := mustFrameID(t)
	payload := header(KindError, id)
	payload = append(payload, 0, 0) // code
	payload = append(payload, 0, 0, 0, 0) // zero message length
	if _, err := Decode(payload); !errors.Is(err, protoerr.ErrInvalidFrame) {
		t.Fatalf("Decode empty error message: got %v, want ErrInvalidFrame", err)
	}
}

func TestNewControlFrameRejectsDataOnPingPong(t *testing.T) {
	id := mustFrameID(t)
	if _, err := NewControlFrame(id, OpPing, []byte("x")); err == nil {
		t.Fatalf("NewControlFrame(OpPing, data) = nil error, want error")
	}
	if _, err := NewControlFrame(id, OpPong, []byte("x")); err == nil {
		t.Fatalf("NewControlFrame(OpPong, data) = nil error, want error")
	}
}

func TestNewErrorFrameRejectsEmptyMessage(t *testing.T) {
	id := mustFrameID(t)
	if _, err := NewErrorFrame(id, 1, "", nil); err == nil {
		t.Fatalf("NewErrorFrame with empty message = nil error, want error")
	}
}

func TestFrameAccessorsReturnFalseForWrongKind(t *testing.T) {
	id := mustFrameID(t)
	f, _ := NewControlFrame(id, OpPing, nil)
	if _, ok := f.Subject(); ok {
		t.Fatalf("Subject() on a Control frame reported ok=true")
	}
	if _, ok := f.Target(); ok {
		t.Fatalf("Target() on a Control frame reported ok=true")
	}
	if _, ok := f.ErrorCode(); ok {
		t.Fatalf("ErrorCode() on a Control frame reported ok=true")
	}
}
