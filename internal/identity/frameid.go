// Package identity holds the two primitives every other sideband package
// builds on: FrameID, the opaque 128-bit value that names a frame and
// correlates requests to responses, and Subject, the routing key attached
// to Message frames.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/danmuck/sideband/internal/protoerr"
)

// FrameID is a 16-byte opaque value. The zero value is never produced by
// NewFrameID; it exists only as an explicit "no id" marker for callers that
// need one (e.g. a not-yet-assigned Target).
type FrameID [16]byte

// NewFrameID draws 16 bytes from a cryptographically secure source, giving
// uniform distribution across all 128 bits.
func NewFrameID() (FrameID, error) {
	var id FrameID
	if _, err := rand.Read(id[:]); err != nil {
		return FrameID{}, fmt.Errorf("identity: generate frame id: %w", err)
	}
	return id, nil
}

// FrameIDFromBytes wraps an existing 16-byte value. It fails closed on any
// other length.
func FrameIDFromBytes(b []byte) (FrameID, error) {
	if len(b) != 16 {
		return FrameID{}, fmt.Errorf("%w: frame id must be 16 bytes, got %d", protoerr.ErrInvalidFrame, len(b))
	}
	var id FrameID
	copy(id[:], b)
	return id, nil
}

var hexPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// FrameIDFromHex parses the lowercase 32-character hex encoding used on the
// envelope wire (the "cid" field). Uppercase and mixed-case input is
// rejected rather than normalized.
func FrameIDFromHex(s string) (FrameID, error) {
	if !hexPattern.MatchString(s) {
		return FrameID{}, fmt.Errorf("%w: malformed frame id hex %q", protoerr.ErrInvalidFrame, s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return FrameID{}, fmt.Errorf("%w: %v", protoerr.ErrInvalidFrame, err)
	}
	return FrameIDFromBytes(b)
}

// Bytes returns a defensive copy of the id's 16 bytes.
func (id FrameID) Bytes() []byte {
	out := make([]byte, 16)
	copy(out, id[:])
	return out
}

// Hex renders the id as 32 lowercase hex characters.
func (id FrameID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String satisfies fmt.Stringer with the same hex form used on the wire.
func (id FrameID) String() string {
	return id.Hex()
}

// IsZero reports whether id is the all-zero placeholder value.
func (id FrameID) IsZero() bool {
	return id == FrameID{}
}
