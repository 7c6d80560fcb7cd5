package wireframe

import (
	"fmt"

	"github.com/danmuck/sideband/internal/protoerr"
)

// CheckSize applies size guidance to an already-encoded frame. The codec
// does not call this itself; a driver decides when to enforce it (e.g.
// before writing, or after reading a length prefix off a stream).
func CheckSize(encoded []byte, limits Limits) error {
	if limits.MaxFrameBytes != 0 && uint32(len(encoded)) > limits.MaxFrameBytes {
		return fmt.Errorf("%w: frame of %d bytes exceeds max %d", protoerr.ErrProtocolViolation, len(encoded), limits.MaxFrameBytes)
	}
	return nil
}

// CheckHandshakeSize applies size guidance to a handshake control frame's
// data specifically, since handshakes are exchanged before any other size
// negotiation has happened.
func CheckHandshakeSize(data []byte, limits Limits) error {
	if limits.MaxHandshakeBytes != 0 && uint32(len(data)) > limits.MaxHandshakeBytes {
		return fmt.Errorf("%w: handshake payload of %d bytes exceeds max %d", protoerr.ErrProtocolViolation, len(data), limits.MaxHandshakeBytes)
	}
	return nil
}
