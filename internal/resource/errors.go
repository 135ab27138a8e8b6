package resource

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CodeDeviceLocked is the structured 403 body the server sends when a
// mutating call arrives from a device that does not own the session.
const CodeDeviceLocked = "DEVICE_LOCKED"

// Error is a non-2xx response. Payload keeps the raw server body so
// callers can surface it; Code is the application-level code when the
// body follows the {"code": ..., "message": ...} convention.
type Error struct {
	Status  int
	Code    string
	Message string
	Payload json.RawMessage
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("resource: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("resource: status %d", e.Status)
}

func (e *Error) DeviceLocked() bool {
	return e.Status == 403 && e.Code == CodeDeviceLocked
}

// IsDeviceLocked unwraps err and reports whether it is the session
// takeover condition. Callers treat it as an expected business state,
// not a retryable failure.
func IsDeviceLocked(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.DeviceLocked()
}

// IsAuthFailure reports an expired or invalid credential (401/419).
func IsAuthFailure(err error) bool {
	var re *Error
	return errors.As(err, &re) && (re.Status == 401 || re.Status == 419)
}

func newError(status int, body []byte) *Error {
	e := &Error{Status: status, Payload: append([]byte(nil), body...)}
	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		e.Code = envelope.Code
		e.Message = envelope.Message
	}
	return e
}
