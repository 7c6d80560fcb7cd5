// Package envelope implements the RPC envelope codec: the tag-discriminated
// JSON shape carried inside a Message frame's opaque data, selecting one of
// Request, Success, Error, or Notification.
package envelope

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danmuck/sideband/internal/identity"
	"github.com/danmuck/sideband/internal/protoerr"
)

// Tag is the single-character discriminator carried in the wire field "t".
type Tag string

const (
	TagRequest      Tag = "r"
	TagSuccess      Tag = "R"
	TagError        Tag = "E"
	TagNotification Tag = "N"
)

// Envelope is one decoded or about-to-be-encoded RPC envelope. The zero
// value is not valid; build one with NewRequest, NewSuccess, NewError, or
// NewNotification, or obtain one from Decode.
type Envelope struct {
	tag Tag

	method string
	params json.RawMessage

	result json.RawMessage

	code    int64
	message string
	data    json.RawMessage

	event   string
	payload json.RawMessage

	cid    identity.FrameID
	hasCID bool
}

func marshalOptional(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal payload: %w", err)
	}
	return b, nil
}

// NewRequest builds a Request envelope. method must be non-blank; params
// may be nil.
func NewRequest(cid identity.FrameID, method string, params any) (Envelope, error) {
	if strings.TrimSpace(method) == "" {
		return Envelope{}, fmt.Errorf("%w: request envelope requires a method name", protoerr.ErrProtocolViolation)
	}
	raw, err := marshalOptional(params)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{tag: TagRequest, method: method, params: raw, cid: cid, hasCID: true}, nil
}

// NewSuccess builds a Success envelope answering cid. result may be nil.
func NewSuccess(cid identity.FrameID, result any) (Envelope, error) {
	raw, err := marshalOptional(result)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{tag: TagSuccess, result: raw, cid: cid, hasCID: true}, nil
}

// NewError builds an Error envelope answering cid. message must be
// non-blank; data may be nil.
func NewError(cid identity.FrameID, code int64, message string, data any) (Envelope, error) {
	if strings.TrimSpace(message) == "" {
		return Envelope{}, fmt.Errorf("%w: error envelope requires a message", protoerr.ErrProtocolViolation)
	}
	raw, err := marshalOptional(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{tag: TagError, code: code, message: message, data: raw, cid: cid, hasCID: true}, nil
}

// NewNotification builds a Notification envelope. event must be non-blank;
// payload may be nil. Notifications carry no correlation id.
func NewNotification(event string, payload any) (Envelope, error) {
	if strings.TrimSpace(event) == "" {
		return Envelope{}, fmt.Errorf("%w: notification envelope requires an event name", protoerr.ErrProtocolViolation)
	}
	raw, err := marshalOptional(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{tag: TagNotification, event: event, payload: raw}, nil
}

// Tag reports which of the four envelope shapes e carries.
func (e Envelope) Tag() Tag { return e.tag }

// CorrelationID returns e's correlation id and true, or the zero value and
// false if e carries none (only Notification envelopes carry none).
func (e Envelope) CorrelationID() (identity.FrameID, bool) { return e.cid, e.hasCID }

// Method returns e's request method and true, or "" and false if e is not
// a Request envelope.
func (e Envelope) Method() (string, bool) {
	if e.tag != TagRequest {
		return "", false
	}
	return e.method, true
}

// Params returns e's raw request parameters, or nil if absent or e is not
// a Request envelope.
func (e Envelope) Params() json.RawMessage {
	if e.tag != TagRequest {
		return nil
	}
	return e.params
}

// Result returns e's raw success result, or nil if absent or e is not a
// Success envelope.
func (e Envelope) Result() json.RawMessage {
	if e.tag != TagSuccess {
		return nil
	}
	return e.result
}

// Code returns e's error code and true, or 0 and false if e is not an
// Error envelope.
func (e Envelope) Code() (int64, bool) {
	if e.tag != TagError {
		return 0, false
	}
	return e.code, true
}

// Message returns e's error message and true, or "" and false if e is not
// an Error envelope.
func (e Envelope) Message() (string, bool) {
	if e.tag != TagError {
		return "", false
	}
	return e.message, true
}

// Data returns e's raw error detail payload, or nil if absent or e is not
// an Error envelope.
func (e Envelope) Data() json.RawMessage {
	if e.tag != TagError {
		return nil
	}
	return e.data
}

// Event returns e's notification event name and true, or "" and false if e
// is not a Notification envelope.
func (e Envelope) Event() (string, bool) {
	if e.tag != TagNotification {
		return "", false
	}
	return e.event, true
}

// Payload returns e's raw notification payload, or nil if absent or e is
// not a Notification envelope.
func (e Envelope) Payload() json.RawMessage {
	if e.tag != TagNotification {
		return nil
	}
	return e.payload
}
