package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vovakirdan/roomchat/internal/store"
)

// MemoryStore implements store.Store in process memory. It backs tests and
// the ephemeral storage mode; nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[string]map[string]store.Message // roomID -> messageID -> message
	failing  bool
}

// New creates an empty in-memory store.
func New() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]map[string]store.Message),
	}
}

// SetFailing toggles injected failures: while set, every operation returns
// an error wrapping store.ErrUnavailable.
func (s *MemoryStore) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// AppendMessage stores a message under its room and id.
func (s *MemoryStore) AppendMessage(_ context.Context, msg store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return fmt.Errorf("append message: %w", store.ErrUnavailable)
	}

	room := s.messages[msg.RoomID]
	if room == nil {
		room = make(map[string]store.Message)
		s.messages[msg.RoomID] = room
	}
	room[msg.ID] = msg
	return nil
}

// ListMessages returns every message stored for the room in map iteration
// order, which is deliberately unordered per the store contract.
func (s *MemoryStore) ListMessages(_ context.Context, roomID string) ([]store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return nil, fmt.Errorf("list messages: %w", store.ErrUnavailable)
	}

	room := s.messages[roomID]
	out := make([]store.Message, 0, len(room))
	for _, msg := range room {
		out = append(out, msg)
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
