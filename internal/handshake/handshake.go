// Package handshake implements the codec for the Control/Handshake frame's
// data payload: the protocol name, version, advertising peer id, and its
// optional capability list and metadata.
package handshake

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danmuck/sideband/internal/protoerr"
)

// Protocol and Version name the handshake contract this implementation
// speaks. A peer advertising anything else fails the handshake with
// ErrUnsupportedVersion.
const (
	Protocol = "sideband"
	Version  = "1"
)

// Payload is a validated handshake. The zero value is not valid; build one
// directly and pass it to Encode, or obtain one from Decode.
type Payload struct {
	PeerID   string
	Caps     []string
	Metadata map[string]string
}

type wirePayload struct {
	Protocol string            `json:"protocol"`
	Version  string            `json:"version"`
	PeerID   string            `json:"peerId"`
	Caps     []string          `json:"caps,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Encode serializes p as the Protocol/Version this implementation speaks.
// p.PeerID must be non-blank.
func Encode(p Payload) ([]byte, error) {
	if strings.TrimSpace(p.PeerID) == "" {
		return nil, fmt.Errorf("%w: handshake requires a non-empty peerId", protoerr.ErrInvalidFrame)
	}
	return json.Marshal(wirePayload{
		Protocol: Protocol,
		Version:  Version,
		PeerID:   p.PeerID,
		Caps:     p.Caps,
		Metadata: p.Metadata,
	})
}

// Decode parses b as a handshake payload. Unknown extra fields are ignored.
// Decode fails with ErrInvalidFrame if protocol, version, or peerId is
// missing or not a string, and with ErrUnsupportedVersion if protocol or
// version does not match what this implementation speaks.
func Decode(b []byte) (Payload, error) {
	var w wirePayload
	if err := json.Unmarshal(b, &w); err != nil {
		return Payload{}, fmt.Errorf("%w: handshake payload is not valid json: %v", protoerr.ErrInvalidFrame, err)
	}
	if strings.TrimSpace(w.Protocol) == "" || strings.TrimSpace(w.Version) == "" || strings.TrimSpace(w.PeerID) == "" {
		return Payload{}, fmt.Errorf("%w: handshake payload missing protocol, version, or peerId", protoerr.ErrInvalidFrame)
	}
	if w.Protocol != Protocol || w.Version != Version {
		return Payload{}, fmt.Errorf("%w: handshake protocol=%q version=%q, this peer speaks protocol=%q version=%q", protoerr.ErrUnsupportedVersion, w.Protocol, w.Version, Protocol, Version)
	}
	return Payload{PeerID: w.PeerID, Caps: w.Caps, Metadata: w.Metadata}, nil
}
