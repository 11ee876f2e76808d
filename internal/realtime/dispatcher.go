package realtime

import (
	"context"
	"time"

	"hospital-queue/internal/queue"

	"github.com/rs/zerolog"
)

const DefaultSinkTimeout = 3 * time.Second

// EventSink durably records queue events outside the process.
type EventSink interface {
	Name() string
	Consume(ctx context.Context, evt queue.Event) error
}

// Dispatcher turns store events into queue_update broadcasts and forwards them to sinks.
type Dispatcher struct {
	publisher   Publisher
	sinks       []EventSink
	sinkTimeout time.Duration
	outbox      *outbox[queue.Event]
	log         zerolog.Logger
}

func NewDispatcher(log zerolog.Logger, publisher Publisher, sinkTimeout time.Duration, sinks ...EventSink) *Dispatcher {
	if sinkTimeout <= 0 {
		sinkTimeout = DefaultSinkTimeout
	}
	return &Dispatcher{
		publisher:   publisher,
		sinks:       sinks,
		sinkTimeout: sinkTimeout,
		outbox:      newOutbox[queue.Event](),
		log:         log.With().Str("component", "dispatcher").Logger(),
	}
}

// Rooms lists the audiences of evt: its service, its department if set, and the entry itself.
func Rooms(evt queue.Event) []RoomKey {
	rooms := []RoomKey{ServiceRoom(evt.Service.ID)}
	if evt.Service.Department != "" {
		rooms = append(rooms, DepartmentRoom(evt.Service.Department))
	}
	return append(rooms, EntryRoom(evt.Entry.ID))
}

// Handle is registered as a store observer. It only enqueues.
func (d *Dispatcher) Handle(evt queue.Event) {
	msg := encode(d.log, evt.Snapshot)
	if msg == nil {
		return
	}
	for _, room := range Rooms(evt) {
		d.publisher.Publish(room, msg)
	}
	if len(d.sinks) > 0 {
		d.outbox.push(evt)
	}
}

// Run forwards events to the sinks until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info().Int("sinks", len(d.sinks)).Msg("dispatcher started")
	d.outbox.run(ctx, d.forward)
	d.log.Info().Msg("dispatcher stopped")
	return nil
}

func (d *Dispatcher) forward(evt queue.Event) {
	for _, sink := range d.sinks {
		// Detached from Run's ctx so the shutdown flush still gets a full timeout.
		ctx, cancel := context.WithTimeout(context.Background(), d.sinkTimeout)
		err := sink.Consume(ctx, evt)
		cancel()
		if err != nil {
			d.log.Error().Err(err).Str("sink", sink.Name()).Str("entry_id", evt.Entry.ID).
				Str("event", string(evt.Type)).Msg("sink failed")
		}
	}
}
