package transport

import (
	"context"
	"encoding/json"
)

// Transport is the push-channel boundary. Delivery is at-least-once and
// unordered; consumers must tolerate duplicates and stale events.
type Transport interface {
	// Subscribe joins a named channel. Private channels authorize with
	// the bearer token; public ones do not.
	Subscribe(ctx context.Context, name string, private bool) (Channel, error)
	Leave(name string) error
	Close() error
}

// Channel is the handle returned by Subscribe. Listen registers a handler
// for one named event; StopListening removes it. A handler that panics or
// receives a malformed payload must not take the channel down.
type Channel interface {
	Name() string
	Listen(event string, fn func(payload json.RawMessage))
	StopListening(event string)
}

// Envelope is the wire frame published on a channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Disabled is the transport used when realtime is turned off: every
// subscribe succeeds with an inert channel, so views silently fall back
// to polling.
type Disabled struct{}

func NewDisabled() Disabled { return Disabled{} }

func (Disabled) Subscribe(_ context.Context, name string, _ bool) (Channel, error) {
	return noopChannel{name: name}, nil
}

func (Disabled) Leave(string) error { return nil }
func (Disabled) Close() error       { return nil }

type noopChannel struct{ name string }

func (c noopChannel) Name() string                                 { return c.name }
func (noopChannel) Listen(string, func(payload json.RawMessage))   {}
func (noopChannel) StopListening(string)                           {}
