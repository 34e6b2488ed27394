package core

// Conn is a live channel as seen by the core layer: one connected observer
// of one room. It is ephemeral and in-memory only; a coordinator restart
// drops every Conn and clients reconnect.
type Conn struct {
	ID     string
	Events chan *Event
}

// NewConn constructs a live channel handle with a buffered event queue.
func NewConn(id string) *Conn {
	return &Conn{
		ID:     id,
		Events: make(chan *Event, 16),
	}
}
