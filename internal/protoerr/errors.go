// Package protoerr defines the sentinel error kinds shared by every
// wire-facing package in sideband. Components wrap one of these with
// fmt.Errorf("%w: ...") so callers can classify a failure with errors.Is
// without parsing message text.
package protoerr

import "errors"

// Code is the wire-visible numeric error code carried in an Error frame.
type Code uint16

const (
	CodeProtocolViolation  Code = 1000
	CodeUnsupportedVersion Code = 1001
	CodeInvalidFrame       Code = 1002
	CodeApplicationError   Code = 1003
	CodeCorrelationError   Code = 1004
	CodeTimeoutError       Code = 1005
	CodeDisconnectError    Code = 1006
)

var (
	// ErrProtocolViolation marks a structurally valid frame or envelope
	// whose content breaks a semantic rule (bad subject, bad tag, etc).
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrUnsupportedVersion marks a handshake advertising a protocol or
	// version this implementation does not speak.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrInvalidFrame marks bytes that cannot be parsed as a frame at all:
	// short buffers, bad lengths, reserved bits set, unknown kind/op bytes.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrApplicationError marks a peer-reported failure carried inside an
	// RPC error envelope; the core never raises this itself.
	ErrApplicationError = errors.New("application error")

	// ErrUnknownCorrelationID marks match/reject calls against a
	// correlation id with no pending registration.
	ErrUnknownCorrelationID = errors.New("correlation: unknown id")

	// ErrDuplicateCorrelationID marks a register call reusing an id that
	// is already pending.
	ErrDuplicateCorrelationID = errors.New("correlation: id already registered")

	// ErrTimeout marks a pending request whose timeout budget elapsed
	// before it was matched or rejected.
	ErrTimeout = errors.New("correlation: timed out")

	// ErrDisconnected marks a pending request discarded by Clear because
	// the owning connection ended.
	ErrDisconnected = errors.New("correlation: disconnected")

	// ErrCancelled marks a pending request cancelled by its caller.
	ErrCancelled = errors.New("correlation: cancelled")
)

// CodeFor maps a wrapped sentinel error to its wire error code. It returns
// false for errors that do not originate from this package, so callers can
// fall back to a generic code of their own choosing.
func CodeFor(err error) (Code, bool) {
	switch {
	case errors.Is(err, ErrProtocolViolation):
		return CodeProtocolViolation, true
	case errors.Is(err, ErrUnsupportedVersion):
		return CodeUnsupportedVersion, true
	case errors.Is(err, ErrInvalidFrame):
		return CodeInvalidFrame, true
	case errors.Is(err, ErrApplicationError):
		return CodeApplicationError, true
	case errors.Is(err, ErrUnknownCorrelationID), errors.Is(err, ErrDuplicateCorrelationID):
		return CodeCorrelationError, true
	case errors.Is(err, ErrTimeout):
		return CodeTimeoutError, true
	case errors.Is(err, ErrDisconnected), errors.Is(err, ErrCancelled):
		return CodeDisconnectError, true
	default:
		return 0, false
	}
}
