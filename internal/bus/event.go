package bus

import "time"

// Topics published by the client. Subscribers filter by prefix, so
// "state." receives every container change.
const (
	TopicSessionStatus = "session.status_changed"
	TopicNavigation    = "nav.changed"
	TopicStatePrefix   = "state."
	TopicRealtime      = "realtime.event"
	TopicSocketState   = "realtime.state"
	TopicToast         = "toast.raised"
	TopicDiagnostic    = "diag.captured"
)

// Event is a change notification published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
