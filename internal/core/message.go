package core

import "time"

// Message is the domain model for a chat message. ID is assigned exactly
// once by the room coordinator at persistence time; lexicographic ID order
// is the canonical ordering of a room's history.
type Message struct {
	ID        string
	RoomID    string
	Content   string
	Author    string
	Timestamp time.Time
}
