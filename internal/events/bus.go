package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

// Publisher is the write side of the event stream.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Bus fans domain events out to in-process subscribers in publish order and,
// when an event log is attached, appends each event durably before fan-out.
// Sends to subscribers block rather than drop: per-address ordering is part of
// the correlator's contract, so subscribers must keep draining.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan domain.Event
	closed bool

	log    *Log
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// AttachLog makes every published event durable before delivery. Call before
// the first Publish.
func (b *Bus) AttachLog(log *Log) {
	b.log = log
}

// Subscribe registers a new consumer. The returned channel is closed when the
// bus closes.
func (b *Bus) Subscribe(buffer int) <-chan domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan domain.Event, buffer)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(ctx context.Context, ev domain.Event) error {
	env, err := Wrap(ev)
	if err != nil {
		return err
	}
	if b.log != nil {
		if err := b.log.Append(ctx, env); err != nil {
			return err
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, sub := range b.subs {
		select {
		case sub <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.logger.Debug("event published",
		"kind", ev.EventKind(), "address", ev.EventAddress().String(), "id", env.ID)
	return nil
}

// Close closes all subscriber channels. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub)
	}
}
