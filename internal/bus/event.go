package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kinds are dot-separated and namespaced by subsystem:
//
//	net.online / net.offline           connectivity edges
//	sync.flush_started / sync.flush_completed / sync.flush_failed
//	wall.post_queued / wall.post_confirmed
//	rt.record_added                    realtime listener additions
//	session.signed_in / session.signed_out
type Event struct {
	Kind    string
	At      time.Time
	Payload any
}
