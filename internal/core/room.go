package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/vovakirdan/roomchat/internal/store"
)

// requestKind describes what a caller wants the room coordinator to do.
type requestKind int

const (
	reqSubmit requestKind = iota
	reqHistory
	reqAttach
	reqDetach
)

// request is one unit of work queued to a room's coordinator goroutine.
type request struct {
	kind    requestKind
	content string
	author  string
	conn    *Conn
	reply   chan response
}

type response struct {
	message  Message
	messages []Message
	err      error
}

// room is the authoritative coordinator for one room id. All state below
// is touched only by the room's own goroutine; pending and closed are the
// exceptions and are guarded by the hub mutex.
type room struct {
	id       string
	hub      *Hub
	conns    map[*Conn]struct{}
	requests chan request
	done     chan struct{}

	// Guarded by hub.mu.
	pending int
	closed  bool
}

func newRoom(id string, h *Hub) *room {
	return &room{
		id:       id,
		hub:      h,
		conns:    make(map[*Conn]struct{}),
		requests: make(chan request, 32),
		done:     make(chan struct{}),
	}
}

// run processes requests one at a time, which linearizes concurrent
// submissions: ids are assigned, persisted, and broadcast in acceptance
// order. The goroutine exits once the room has been idle with no live
// channels for the hub's idle timeout, or when the hub shuts down.
func (r *room) run() {
	idle := time.NewTimer(r.hub.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case req := <-r.requests:
			r.handle(req)
			r.finish()
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(r.hub.IdleTimeout)
		case <-idle.C:
			if r.maybeClose() {
				return
			}
			idle.Reset(r.hub.IdleTimeout)
		case <-r.hub.stop:
			r.shutdown()
			return
		}
	}
}

func (r *room) handle(req request) {
	switch req.kind {
	case reqSubmit:
		msg, err := r.submit(req.content, req.author)
		req.reply <- response{message: msg, err: err}
	case reqHistory:
		msgs, err := r.history()
		req.reply <- response{messages: msgs, err: err}
	case reqAttach:
		r.conns[req.conn] = struct{}{}
		r.hub.log.Debug().Str("room_id", r.id).Str("conn_id", req.conn.ID).
			Int("live_channels", len(r.conns)).Msg("channel attached")
		req.reply <- response{}
	case reqDetach:
		delete(r.conns, req.conn)
		req.reply <- response{}
	}
}

// submit validates, persists, and broadcasts one message. Persistence
// happens strictly before broadcast, so no observer can see a message that
// is not already durable. Once started, a submit runs to completion.
func (r *room) submit(content, author string) (Message, error) {
	content = strings.TrimSpace(content)
	author = strings.TrimSpace(author)
	if content == "" || author == "" {
		return Message{}, coreError(ErrCodeInvalidMessage, "content and author are required")
	}

	msg := Message{
		ID:        r.hub.ids.Next(),
		RoomID:    r.id,
		Content:   content,
		Author:    author,
		Timestamp: time.Now().UTC(),
	}

	err := r.hub.store.AppendMessage(context.Background(), store.Message{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Content:   msg.Content,
		Author:    msg.Author,
		Timestamp: msg.Timestamp,
	})
	if err != nil {
		r.hub.log.Error().Err(err).Str("room_id", r.id).Msg("failed to persist message")
		return Message{}, coreError(ErrCodeStorageFailure, "failed to persist message")
	}

	r.broadcast(&Event{Kind: EventMessage, Message: msg})
	return msg, nil
}

func (r *room) history() ([]Message, error) {
	stored, err := r.hub.store.ListMessages(context.Background(), r.id)
	if err != nil {
		r.hub.log.Error().Err(err).Str("room_id", r.id).Msg("failed to list messages")
		return nil, coreError(ErrCodeStorageFailure, "failed to load history")
	}

	out := make([]Message, 0, len(stored))
	for _, m := range stored {
		out = append(out, Message{
			ID:        m.ID,
			RoomID:    m.RoomID,
			Content:   m.Content,
			Author:    m.Author,
			Timestamp: m.Timestamp,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// broadcast delivers an event to every live channel. Delivery is
// independent per channel: a slow or half-closed consumer is skipped and
// logged, and never fails the originating submit.
func (r *room) broadcast(event *Event) {
	for conn := range r.conns {
		select {
		case conn.Events <- event:
		default:
			r.hub.log.Warn().Str("room_id", r.id).Str("conn_id", conn.ID).
				Msg("dropping event for slow channel")
		}
	}
}

// enqueue queues a request, accounting for it under the hub mutex so the
// room cannot be reaped while work is outstanding. Returns false when the
// room closed first; the hub retries against a fresh room.
func (r *room) enqueue(ctx context.Context, req request) (bool, error) {
	h := r.hub
	h.mu.Lock()
	if r.closed {
		h.mu.Unlock()
		return false, nil
	}
	r.pending++
	h.mu.Unlock()

	select {
	case r.requests <- req:
		return true, nil
	case <-r.done:
		r.finish()
		return false, nil
	case <-ctx.Done():
		r.finish()
		return false, ctx.Err()
	}
}

func (r *room) finish() {
	r.hub.mu.Lock()
	r.pending--
	r.hub.mu.Unlock()
}

// maybeClose reaps the room if nothing references it: no live channels, no
// queued or in-flight requests. The hub mutex makes the emptiness check
// atomic with removal from the registry, so a racing caller either finds
// the room alive or re-creates it.
func (r *room) maybeClose() bool {
	h := r.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if r.closed {
		return true
	}
	if r.pending > 0 || len(r.requests) > 0 || len(r.conns) > 0 {
		return false
	}
	r.closed = true
	delete(h.rooms, r.id)
	close(r.done)
	h.log.Debug().Str("room_id", r.id).Msg("room idle, coordinator stopped")
	return true
}

func (r *room) shutdown() {
	h := r.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	delete(h.rooms, r.id)
	close(r.done)
}
