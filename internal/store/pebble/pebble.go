package pebble

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/pebble/v2"

	"github.com/vovakirdan/roomchat/internal/store"
)

// PebbleStore implements store.Store on a PebbleDB key-value store.
// Keys are "<roomID>/<messageID>", so one room's log is a contiguous key
// range and listing is a prefix scan. Values are JSON records.
type PebbleStore struct {
	db *pebble.DB
}

type record struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
}

// New opens (or creates) a pebble database at dir.
func New(dir string) (*PebbleStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// AppendMessage durably writes a message under its room/id key.
func (s *PebbleStore) AppendMessage(_ context.Context, msg store.Message) error {
	val, err := json.Marshal(record{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Content:   msg.Content,
		Author:    msg.Author,
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := s.db.Set(messageKey(msg.RoomID, msg.ID), val, pebble.Sync); err != nil {
		return fmt.Errorf("append message: %w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// ListMessages scans the room's key range and decodes every record.
func (s *PebbleStore) ListMessages(_ context.Context, roomID string) ([]store.Message, error) {
	prefix := []byte(roomID + "/")
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w: %v", store.ErrUnavailable, err)
	}
	defer func() { _ = it.Close() }()

	out := make([]store.Message, 0, 64)
	for it.First(); it.Valid(); it.Next() {
		var rec record
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			// Skip undecodable records rather than failing the whole read.
			continue
		}
		ts, _ := time.Parse(time.RFC3339Nano, rec.Timestamp)
		out = append(out, store.Message{
			ID:        rec.ID,
			RoomID:    rec.RoomID,
			Content:   rec.Content,
			Author:    rec.Author,
			Timestamp: ts,
		})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("list messages: %w: %v", store.ErrUnavailable, err)
	}
	return out, nil
}

// Close flushes and closes the database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func messageKey(roomID, messageID string) []byte {
	return []byte(roomID + "/" + messageID)
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff, no upper bound
}
