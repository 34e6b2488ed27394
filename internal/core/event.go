package core

// EventKind is a notification the core emits to live channels.
type EventKind int

const (
	// EventMessage carries a persisted chat message fanned out to every
	// live channel of the room, including the sender's own.
	EventMessage EventKind = iota
	// EventError notifies a single channel about a domain error.
	EventError
)

// Event is sent to live channels to describe what happened in the room.
type Event struct {
	Kind    EventKind
	Message Message
	Error   *CoreError
}
