package store

import (
	"context"
	"errors"
	"time"
)

// Message is a persisted chat message.
type Message struct {
	ID        string
	RoomID    string
	Content   string
	Author    string
	Timestamp time.Time
}

// ErrUnavailable marks storage-layer failures. Callers abort the operation
// that triggered the write; nothing is broadcast for a failed append.
var ErrUnavailable = errors.New("storage unavailable")

// Store is the room log contract. Backends persist messages keyed by
// (room id, message id) and list everything stored for a room. Listing
// makes no ordering promise; the coordinator sorts by message id.
type Store interface {
	AppendMessage(ctx context.Context, msg Message) error
	ListMessages(ctx context.Context, roomID string) ([]Message, error)
	Close() error
}
