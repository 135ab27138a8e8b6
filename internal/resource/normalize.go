package resource

import (
	"bytes"
	"encoding/json"
	"errors"
)

// The backend (and the services it proxies) ships the same logical payload
// in three shapes: a bare value, wrapped as {"data": v}, or doubly wrapped
// as {"data": {"data": v}}. These helpers unwrap to one canonical value so
// nothing downstream ever inspects the wire shape again.

var ErrEmptyPayload = errors.New("resource: empty payload")

const maxUnwrapDepth = 3

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// DecodeList normalizes a list payload into v (a pointer to a slice).
func DecodeList(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	for depth := 0; depth < maxUnwrapDepth; depth++ {
		if len(raw) == 0 {
			return ErrEmptyPayload
		}
		if raw[0] == '[' {
			return json.Unmarshal(raw, v)
		}
		var env dataEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return err
		}
		if env.Data == nil {
			return errors.New("resource: list payload has no data field")
		}
		raw = bytes.TrimSpace(env.Data)
	}
	return errors.New("resource: payload nested too deep")
}

// DecodeObject normalizes a single-resource payload into v. A bare object
// without a "data" key decodes as-is; an envelope unwraps first.
func DecodeObject(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	for depth := 0; depth < maxUnwrapDepth; depth++ {
		if len(raw) == 0 {
			return ErrEmptyPayload
		}
		var env dataEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return err
		}
		if env.Data == nil {
			return json.Unmarshal(raw, v)
		}
		raw = bytes.TrimSpace(env.Data)
	}
	return errors.New("resource: payload nested too deep")
}
