package workers

import (
	"context"
	"log/slog"
	"sodeclick-chat/contract"
	"sodeclick-chat/domain/event"
	"sodeclick-chat/errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SinkResolver maps a channel to the sinks currently behind it.
type SinkResolver interface {
	SinksForAddress(address string) []contract.EventSink
	SinksForUser(userID string) []contract.EventSink
	SinkForConnection(connectionID string) (contract.EventSink, bool)
}

type targetKind int

const (
	addressTarget targetKind = iota
	userTarget
	connectionTarget
)

type delivery struct {
	target targetKind
	key    string
	event  event.Event
}

// EventFanout is the Broadcaster of the chat core. Events are queued and
// delivered by a single goroutine, so every sink sees them in enqueue order.
// Sinks are resolved at delivery time: a connection gone in the meantime
// simply receives nothing.
//
// Delivery is best effort. A full queue or a failing sink is logged and
// counted, never retried.
type EventFanout struct {
	log         *slog.Logger
	resolver    SinkResolver
	deliveries  chan delivery
	sinkTimeout time.Duration
	failures    prometheus.Counter
}

func NewEventFanout(log *slog.Logger, resolver SinkResolver, bufferSize int,
	sinkTimeout time.Duration, failures prometheus.Counter) *EventFanout {
	return &EventFanout{
		log:         log,
		resolver:    resolver,
		deliveries:  make(chan delivery, bufferSize),
		sinkTimeout: sinkTimeout,
		failures:    failures,
	}
}

func (w *EventFanout) ToAddress(address string, e event.Event) error {
	return w.enqueue(delivery{target: addressTarget, key: address, event: e})
}

func (w *EventFanout) ToUser(userID string, e event.Event) error {
	return w.enqueue(delivery{target: userTarget, key: userID, event: e})
}

func (w *EventFanout) ToConnection(connectionID string, e event.Event) error {
	return w.enqueue(delivery{target: connectionTarget, key: connectionID, event: e})
}

func (w *EventFanout) enqueue(d delivery) error {
	select {
	case w.deliveries <- d:
		return nil
	default:
		w.fail()
		w.log.Warn("Fanout queue is full, event dropped", "event", d.event.Name, "channel", d.event.Channel)
		return errors.ErrFanoutFull
	}
}

// Channel exposes the queue to the capacity sampler.
func (w *EventFanout) Channel() any { return w.deliveries }

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case d := <-w.deliveries:
			w.fanout(ctx, d)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// fanout delivers one event to every sink behind its channel.
func (w *EventFanout) fanout(ctx context.Context, d delivery) {
	for _, sink := range w.resolve(d) {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		err := sink.Consume(sinkCtx, d.event)
		cancel()
		if err != nil {
			w.fail()
			w.log.Debug("Sink failed to consume event", "event", d.event.Name, "channel", d.event.Channel, "error", err)
		}
	}
}

func (w *EventFanout) resolve(d delivery) []contract.EventSink {
	switch d.target {
	case addressTarget:
		return w.resolver.SinksForAddress(d.key)
	case userTarget:
		return w.resolver.SinksForUser(d.key)
	case connectionTarget:
		if sink, ok := w.resolver.SinkForConnection(d.key); ok {
			return []contract.EventSink{sink}
		}
	}
	return nil
}

func (w *EventFanout) fail() {
	if w.failures != nil {
		w.failures.Inc()
	}
}
