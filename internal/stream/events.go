package stream

// EventKind names an event type on the wire. The server multiplexes these
// over one stream; unnamed events arrive as KindMessage.
type EventKind string

const (
	// KindConnected signals transport open/close to the consumer. It is
	// synthesized locally, never sent by the server.
	KindConnected EventKind = "connected"

	// KindNotification carries a single new or updated record for the
	// subscribed subject.
	KindNotification EventKind = "notification"

	// KindBroadcast carries a record pushed to all subjects.
	KindBroadcast EventKind = "broadcast"

	// KindHeartbeat is a liveness ping; its only effect is resetting the
	// staleness watchdog.
	KindHeartbeat EventKind = "heartbeat"

	// KindMessage is the fallback for untyped payloads.
	KindMessage EventKind = "message"
)

// rawEvent is one parsed server-sent event before payload decoding.
type rawEvent struct {
	kind EventKind
	data []byte
}
