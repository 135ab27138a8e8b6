package subscription

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"dinesync/internal/transport"
)

// Spec names one channel a view wants open.
type Spec struct {
	Name    string
	Private bool
}

// Handler receives every named event from every channel the manager holds.
type Handler func(event string, payload json.RawMessage)

type binding struct {
	channel transport.Channel
	events  []string
}

// Manager keeps exactly one live subscription per logical identity. When
// the identity changes (session id learned after first submission, order
// set changed, view retargeted) the old channels are fully torn down
// before the new ones open, so events are never double-applied and
// listeners never leak.
type Manager struct {
	transport transport.Transport
	log       zerolog.Logger

	mu     sync.Mutex
	active map[string]*binding
}

func NewManager(tr transport.Transport, log zerolog.Logger) *Manager {
	return &Manager{
		transport: tr,
		log:       log.With().Str("component", "subscription").Logger(),
		active:    make(map[string]*binding),
	}
}

// Set reconciles the active subscriptions against the desired set.
// Channels no longer wanted lose all listeners and are left; channels
// already held are kept as-is rather than resubscribed.
func (m *Manager) Set(ctx context.Context, specs []Spec, events []string, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]Spec, len(specs))
	for _, sp := range specs {
		wanted[sp.Name] = sp
	}

	for name, b := range m.active {
		if _, keep := wanted[name]; keep {
			continue
		}
		m.teardown(name, b)
	}

	for name, sp := range wanted {
		if _, held := m.active[name]; held {
			continue
		}
		ch, err := m.transport.Subscribe(ctx, sp.Name, sp.Private)
		if err != nil {
			return err
		}
		for _, ev := range events {
			ev := ev
			ch.Listen(ev, func(payload json.RawMessage) {
				h(ev, payload)
			})
		}
		m.active[name] = &binding{channel: ch, events: append([]string(nil), events...)}
		m.log.Debug().Str("channel", name).Msg("subscribed")
	}
	return nil
}

func (m *Manager) teardown(name string, b *binding) {
	for _, ev := range b.events {
		b.channel.StopListening(ev)
	}
	if err := m.transport.Leave(name); err != nil {
		m.log.Warn().Err(err).Str("channel", name).Msg("leave failed")
	}
	delete(m.active, name)
	m.log.Debug().Str("channel", name).Msg("unsubscribed")
}

// Close drops every subscription. Called on view unmount.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, b := range m.active {
		m.teardown(name, b)
	}
}

// Active reports how many channels are currently held.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
