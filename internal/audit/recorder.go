package audit

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultQueueSize bounds the recorder's in-flight event buffer.
const DefaultQueueSize = 1024

// Recorder decouples audit writes from request latency. Events are queued
// and consumed by a single background worker, which preserves per-turn
// ordering; a full queue drops the event with a warning rather than stall
// the caller.
type Recorder struct {
	sink  Sink
	queue chan *Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewRecorder starts a recorder draining into sink. queueSize <= 0 selects
// DefaultQueueSize.
func NewRecorder(sink Sink, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &Recorder{
		sink:  sink,
		queue: make(chan *Event, queueSize),
		done:  make(chan struct{}),
	}
	go r.worker()
	return r
}

// Enqueue queues an event for recording. Never blocks: when the queue is
// full the event is dropped and logged, because audit backpressure must not
// stall user-facing latency.
func (r *Recorder) Enqueue(ev *Event) {
	select {
	case r.queue <- ev:
	default:
		log.Warn().
			Str("event_id", ev.ID).
			Str("stage", string(ev.Stage)).
			Msg("audit_queue_full_event_dropped")
	}
}

// Close stops accepting events, drains the queue and waits for the worker.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
		<-r.done
	})
}

func (r *Recorder) worker() {
	defer close(r.done)
	for ev := range r.queue {
		if err := r.sink.Record(context.Background(), ev); err != nil {
			log.Warn().Err(err).
				Str("event_id", ev.ID).
				Str("stage", string(ev.Stage)).
				Msg("audit_record_failed")
		}
	}
}
