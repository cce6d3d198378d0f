// Package alert raises structured events for operator-facing delivery. Events
// are de-duplicated per kind within a configurable window and handed to one
// or more sinks.
package alert

import (
	"context"
	"log"

	"krx-scalp-lab/internal/domain"
)

// Sink delivers one alert event. Delivery failures are logged, never
// propagated into the trading cycle.
type Sink interface {
	Deliver(ctx context.Context, event domain.AlertEvent) error
}

// Emitter queues events during a cycle and flushes them to the sinks at the
// end. A kind emitted less than the de-duplication window ago is dropped.
type Emitter struct {
	sinks    []Sink
	dedupSec int
	logger   *log.Logger

	queue       []domain.AlertEvent
	lastEmitted map[domain.AlertKind]int64 // kind -> last emit timestamp (ms)
}

// NewEmitter creates an emitter. dedupSec 0 disables de-duplication.
func NewEmitter(dedupSec int, logger *log.Logger, sinks ...Sink) *Emitter {
	return &Emitter{
		sinks:       sinks,
		dedupSec:    dedupSec,
		logger:      logger,
		lastEmitted: make(map[domain.AlertKind]int64),
	}
}

// Queue buffers an event for the next flush.
func (e *Emitter) Queue(event domain.AlertEvent) {
	e.queue = append(e.queue, event)
}

// Flush delivers the queued events, applying the per-kind de-duplication
// window, and returns the events actually emitted. The queue is always
// cleared, delivered or not.
func (e *Emitter) Flush(ctx context.Context) []domain.AlertEvent {
	queued := e.queue
	e.queue = nil

	var emitted []domain.AlertEvent
	for _, event := range queued {
		if e.suppressed(event) {
			continue
		}
		e.lastEmitted[event.Kind] = event.TimestampMs
		emitted = append(emitted, event)

		for _, sink := range e.sinks {
			if err := sink.Deliver(ctx, event); err != nil && e.logger != nil {
				e.logger.Printf("alert delivery failed kind=%s: %v", event.Kind, err)
			}
		}
	}
	return emitted
}

func (e *Emitter) suppressed(event domain.AlertEvent) bool {
	if e.dedupSec <= 0 {
		return false
	}
	last, ok := e.lastEmitted[event.Kind]
	if !ok {
		return false
	}
	return event.TimestampMs-last < int64(e.dedupSec)*1000
}

// LogSink writes events to a standard logger.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver prints the event.
func (s *LogSink) Deliver(_ context.Context, event domain.AlertEvent) error {
	s.logger.Printf("[%s] %s", event.Kind, event.Payload)
	return nil
}

var _ Sink = (*LogSink)(nil)
