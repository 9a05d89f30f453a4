package ws

import (
	"context"

	"pqrelay/domain/event"
)

// Sink is the buffered outbound queue of one websocket connection. The
// write pump drains it; the router fills it.
type Sink struct {
	events chan event.Outbound
}

func NewSink(bufferSize int) *Sink {
	return &Sink{events: make(chan event.Outbound, bufferSize)}
}

// Consume hands an event to the connection's write pump. It never blocks
// the router: a full buffer means the slow connection loses the event,
// which is the agreed best-effort delivery policy.
func (s *Sink) Consume(ctx context.Context, e event.Outbound) error {
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (s *Sink) Events() <-chan event.Outbound {
	return s.events
}
