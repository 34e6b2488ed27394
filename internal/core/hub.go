package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/ident"
	"github.com/vovakirdan/roomchat/internal/store"
)

// DefaultIdleTimeout is how long an empty room keeps its coordinator
// goroutine alive before it is reaped.
const DefaultIdleTimeout = 30 * time.Second

// ErrClosed is returned once the hub has shut down.
var ErrClosed = errors.New("hub closed")

// Hub routes room ids to their coordinators, creating each room on first
// use. Every room runs exactly one goroutine that serializes all of the
// room's operations; two different rooms are fully independent.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room

	store store.Store
	ids   *ident.Generator
	log   *zerolog.Logger
	stop  chan struct{}

	// IdleTimeout may be lowered before the hub is used; it exists so
	// tests can exercise room reaping quickly.
	IdleTimeout time.Duration
}

// NewHub constructs the room registry on top of a message store.
func NewHub(st store.Store, logger *zerolog.Logger) *Hub {
	return &Hub{
		rooms:       make(map[string]*room),
		store:       st,
		ids:         ident.NewGenerator(),
		log:         logger,
		stop:        make(chan struct{}),
		IdleTimeout: DefaultIdleTimeout,
	}
}

// Run blocks until the context is cancelled, then stops every room
// coordinator. Pending callers receive ErrClosed.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	close(h.stop)
}

// NewRoomID allocates a fresh opaque room identity. Rooms have no record
// of their own; addressing a room id creates its coordinator on demand.
func (h *Hub) NewRoomID() string {
	return uuid.NewString()
}

// Submit validates and persists a message in the room, then fans it out to
// every live channel (the sender's included). Returns the persisted
// message with its assigned id.
func (h *Hub) Submit(ctx context.Context, roomID, content, author string) (Message, error) {
	resp, err := h.do(ctx, roomID, request{kind: reqSubmit, content: content, author: author})
	if err != nil {
		return Message{}, err
	}
	return resp.message, resp.err
}

// History returns every persisted message of the room, ascending by id.
func (h *Hub) History(ctx context.Context, roomID string) ([]Message, error) {
	resp, err := h.do(ctx, roomID, request{kind: reqHistory})
	if err != nil {
		return nil, err
	}
	return resp.messages, resp.err
}

// Attach registers a live channel with the room. No history is replayed
// over the channel; callers fetch anything persisted earlier via History.
func (h *Hub) Attach(ctx context.Context, roomID string, conn *Conn) error {
	_, err := h.do(ctx, roomID, request{kind: reqAttach, conn: conn})
	return err
}

// Detach removes a live channel from the room. Idempotent: detaching a
// channel that is not attached is a no-op.
func (h *Hub) Detach(ctx context.Context, roomID string, conn *Conn) error {
	_, err := h.do(ctx, roomID, request{kind: reqDetach, conn: conn})
	return err
}

func (h *Hub) do(ctx context.Context, roomID string, req request) (response, error) {
	req.reply = make(chan response, 1)

	for {
		r, err := h.room(roomID)
		if err != nil {
			return response{}, err
		}

		queued, err := r.enqueue(ctx, req)
		if err != nil {
			return response{}, err
		}
		if !queued {
			// Lost a race with the room being reaped; retry against a
			// freshly created coordinator.
			continue
		}

		select {
		case resp := <-req.reply:
			return resp, nil
		case <-r.done:
			// The room may have served the request just before closing.
			select {
			case resp := <-req.reply:
				return resp, nil
			default:
			}
			select {
			case <-h.stop:
				return response{}, ErrClosed
			default:
				continue
			}
		case <-ctx.Done():
			return response{}, ctx.Err()
		}
	}
}

func (h *Hub) room(id string) (*room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.stop:
		return nil, ErrClosed
	default:
	}

	r := h.rooms[id]
	if r == nil {
		r = newRoom(id, h)
		h.rooms[id] = r
		go r.run()
		h.log.Debug().Str("room_id", id).Msg("room coordinator started")
	}
	return r, nil
}
