package events

import (
	"context"
	"log/slog"

	"github.com/toolgate/toolgate/pkg/types"
)

// Store is a durable event sink.
type Store interface {
	AppendEvent(ctx context.Context, ev types.Event) error
}

// Emitter is what decision-producing components hold. Emit is append-then-
// publish: the event reaches the durable stores first, then live subscribers.
type Emitter interface {
	Emit(ctx context.Context, ev types.Event) error
}

// StoreEmitter fans one event out to every store and then the broker. A nil
// broker skips the publish; no stores means publish-only.
type StoreEmitter struct {
	Stores []Store
	Broker *Broker
	Logger *slog.Logger
}

func (e *StoreEmitter) Emit(ctx context.Context, ev types.Event) error {
	if e == nil {
		return nil
	}
	for _, s := range e.Stores {
		if err := s.AppendEvent(ctx, ev); err != nil {
			if e.Logger != nil {
				e.Logger.Warn("append audit event", "type", ev.Type, "error", err)
			}
			return err
		}
	}
	if e.Broker != nil {
		e.Broker.Publish(ev)
	}
	return nil
}

// Nop is an Emitter that discards everything.
type Nop struct{}

func (Nop) Emit(context.Context, types.Event) error { return nil }
