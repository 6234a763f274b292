package ws

import (
	"context"
	"sodeclick-chat/domain/event"
	"sodeclick-chat/errors"
	"sync"
)

// Sink buffers the outbound events of one connection until its writer
// drains them. It never blocks the fan-out.
type Sink struct {
	events chan event.Event
	done   chan struct{}
	once   sync.Once
}

func NewSink(size int) *Sink {
	return &Sink{
		events: make(chan event.Event, size),
		done:   make(chan struct{}),
	}
}

func (s *Sink) Consume(ctx context.Context, e event.Event) error {
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case s.events <- e:
		return nil
	default:
		return errors.ErrSinkFull
	}
}

// Close is idempotent. Buffered events are dropped.
func (s *Sink) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Sink) Events() <-chan event.Event { return s.events }

func (s *Sink) Done() <-chan struct{} { return s.done }
