package proxy

import "github.com/incendiarybean/proxy-address-blocker/requestlog"

// EventKind distinguishes the two things the Event Hub fans out.
type EventKind int

const (
	EventStatusChanged EventKind = iota
	EventRequestLogged
)

// Event is published to an EventSink every time the Coordinator
// transitions status or logs a request. It carries enough information
// for a control client to update its view without an extra snapshot
// round-trip, but the REST snapshot endpoints remain the source of
// truth.
type Event struct {
	Kind    EventKind
	Status  Status
	Request requestlog.Record
}

// EventSink receives Events from the Coordinator. Publish must not
// block: the Coordinator is the sole consumer of the command channel,
// and a slow sink must never become a back-pressure source for request
// handling. The Control API's WebSocket Hub is the production
// implementation; it writes synchronously but bounds each client write
// with a deadline. Tests may supply a channel-backed sink.
type EventSink interface {
	Publish(Event)
}

// noopSink discards every event. Used when a Proxy is constructed
// without a supervising control surface attached.
type noopSink struct{}

func (noopSink) Publish(Event) {}
