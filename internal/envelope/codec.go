package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/danmuck/sideband/internal/identity"
	"github.com/danmuck/sideband/internal/protoerr"
)

// wireEnvelope is the JSON shape actually written to and read from the
// wire: one struct covering all four variants, with the irrelevant fields
// of each variant omitted.
type wireEnvelope struct {
	Type    Tag             `json:"t"`
	Method  string          `json:"m,omitempty"`
	Params  json.RawMessage `json:"p,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Code    *int64          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Event   string          `json:"e,omitempty"`
	Payload json.RawMessage `json:"d,omitempty"`
	CID     string          `json:"cid,omitempty"`
}

// Encode serializes e to its JSON wire bytes.
func Encode(e Envelope) ([]byte, error) {
	w := wireEnvelope{Type: e.tag}
	switch e.tag {
	case TagRequest:
		w.Method = e.method
		w.Params = e.params
	case TagSuccess:
		w.Result = e.result
	case TagError:
		code := e.code
		w.Code = &code
		w.Message = e.message
		w.Data = e.data
	case TagNotification:
		w.Event = e.event
		w.Payload = e.payload
	default:
		return nil, fmt.Errorf("%w: unknown envelope tag %q", protoerr.ErrProtocolViolation, e.tag)
	}
	if e.hasCID {
		w.CID = e.cid.Hex()
	}
	return json.Marshal(w)
}

// Decode parses b as a single envelope, dispatching on its "t" tag and
// validating every field the selected variant requires.
func Decode(b []byte) (Envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: envelope is not a json object: %v", protoerr.ErrProtocolViolation, err)
	}
	tagRaw, ok := raw["t"]
	if !ok {
		return Envelope{}, fmt.Errorf("%w: envelope missing tag field \"t\"", protoerr.ErrProtocolViolation)
	}
	var tagStr string
	if err := json.Unmarshal(tagRaw, &tagStr); err != nil {
		return Envelope{}, fmt.Errorf("%w: envelope tag \"t\" must be a string", protoerr.ErrProtocolViolation)
	}

	switch Tag(tagStr) {
	case TagRequest:
		return decodeRequest(raw)
	case TagSuccess:
		return decodeSuccess(raw)
	case TagError:
		return decodeError(raw)
	case TagNotification:
		return decodeNotification(raw)
	default:
		return Envelope{}, fmt.Errorf("%w: unknown envelope tag %q", protoerr.ErrProtocolViolation, tagStr)
	}
}

func requireString(raw map[string]json.RawMessage, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", fmt.Errorf("%w: envelope missing required field %q", protoerr.ErrProtocolViolation, key)
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("%w: envelope field %q must be a string", protoerr.ErrProtocolViolation, key)
	}
	if s == "" {
		return "", fmt.Errorf("%w: envelope field %q must not be empty", protoerr.ErrProtocolViolation, key)
	}
	return s, nil
}

func requireCID(raw map[string]json.RawMessage) (identity.FrameID, error) {
	s, err := requireString(raw, "cid")
	if err != nil {
		return identity.FrameID{}, err
	}
	id, err := identity.FrameIDFromHex(s)
	if err != nil {
		return identity.FrameID{}, fmt.Errorf("%w: envelope \"cid\" is not valid frame id hex: %v", protoerr.ErrProtocolViolation, err)
	}
	return id, nil
}

func decodeRequest(raw map[string]json.RawMessage) (Envelope, error) {
	cid, err := requireCID(raw)
	if err != nil {
		return Envelope{}, err
	}
	method, err := requireString(raw, "m")
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{tag: TagRequest, cid: cid, hasCID: true, method: method, params: raw["p"]}, nil
}

func decodeSuccess(raw map[string]json.RawMessage) (Envelope, error) {
	cid, err := requireCID(raw)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{tag: TagSuccess, cid: cid, hasCID: true, result: raw["result"]}, nil
}

func decodeError(raw map[string]json.RawMessage) (Envelope, error) {
	cid, err := requireCID(raw)
	if err != nil {
		return Envelope{}, err
	}
	codeRaw, ok := raw["code"]
	if !ok {
		return Envelope{}, fmt.Errorf("%w: error envelope missing required field \"code\"", protoerr.ErrProtocolViolation)
	}
	var code int64
	if err := json.Unmarshal(codeRaw, &code); err != nil {
		return Envelope{}, fmt.Errorf("%w: error envelope field \"code\" must be numeric: %v", protoerr.ErrProtocolViolation, err)
	}
	message, err := requireString(raw, "message")
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{tag: TagError, cid: cid, hasCID: true, code: code, message: message, data: raw["data"]}, nil
}

func decodeNotification(raw map[string]json.RawMessage) (Envelope, error) {
	event, err := requireString(raw, "e")
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{tag: TagNotification, event: event, payload: raw["d"]}, nil
}
