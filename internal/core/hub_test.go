package core

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/store/memory"
)

func newTestHub(t *testing.T) (*Hub, *memory.MemoryStore, context.CancelFunc) {
	t.Helper()

	st := memory.New()
	logger := zerolog.Nop()
	hub := NewHub(st, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, st, cancel
}

func TestSubmitAssignsOrderedIDs(t *testing.T) {
	hub, _, cancel := newTestHub(t)
	defer cancel()

	ctx := context.Background()
	roomID := hub.NewRoomID()

	var prev string
	for i := 0; i < 20; i++ {
		msg, err := hub.Submit(ctx, roomID, "message "+strconv.Itoa(i), "ann")
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if msg.ID <= prev {
			t.Fatalf("ids not strictly increasing: %q after %q", msg.ID, prev)
		}
		prev = msg.ID
	}
}

func TestConcurrentSubmitsAreLinearized(t *testing.T) {
	hub, _, cancel := newTestHub(t)
	defer cancel()

	ctx := context.Background()
	roomID := hub.NewRoomID()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := hub.Submit(ctx, roomID, "msg "+strconv.Itoa(i), "bob"); err != nil {
				t.Errorf("submit %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	history, err := hub.History(ctx, roomID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != n {
		t.Fatalf("expected %d messages, got %d", n, len(history))
	}
	seen := make(map[string]struct{}, n)
	for i := 1; i < len(history); i++ {
		if history[i-1].ID >= history[i].ID {
			t.Fatalf("history not ascending at %d: %q >= %q", i, history[i-1].ID, history[i].ID)
		}
	}
	for _, m := range history {
		if _, dup := seen[m.ID]; dup {
			t.Fatalf("duplicate id %q", m.ID)
		}
		seen[m.ID] = struct{}{}
	}
}

func TestSubmitTrimsAndPreservesContent(t *testing.T) {
	hub, _, cancel := newTestHub(t)
	defer cancel()

	ctx := context.Background()
	roomID := hub.NewRoomID()

	msg, err := hub.Submit(ctx, roomID, "  hi there  ", " ann ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msg.Content != "hi there" || msg.Author != "ann" {
		t.Fatalf("unexpected trim result: %+v", msg)
	}

	history, err := hub.History(ctx, roomID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Content != "hi there" || history[0].Author != "ann" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestSubmitRejectsEmptyContentAndAuthor(t *testing.T) {
	hub, _, cancel := newTestHub(t)
	defer cancel()

	ctx := context.Background()
	roomID := hub.NewRoomID()

	conn := NewConn("observer")
	if err := hub.Attach(ctx, roomID, conn); err != nil {
		t.Fatalf("attach: %v", err)
	}

	cases := []struct {
		name    string
		content string
		author  string
	}{
		{"whitespace content", "   ", "ann"},
		{"empty content", "", "ann"},
		{"empty author", "hello", ""},
		{"whitespace author", "hello", "  "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := hub.Submit(ctx, roomID, tc.content, tc.author)
			coreErr, ok := err.(*CoreError)
			if !ok || coreErr.Code != ErrCodeInvalidMessage {
				t.Fatalf("expected invalid_message error, got %v", err)
			}
		})
	}

	// Nothing was stored and nothing was broadcast.
	history, err := hub.History(ctx, roomID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(history))
	}
	select {
	case ev := <-conn.Events:
		t.Fatalf("unexpected broadcast: %+v", ev)
	default:
	}
}

func TestSubmitBroadcastsToAllChannelsIncludingSender(t *testing.T) {
	hub, _, cancel := newTestHub(t)
	defer cancel()

	ctx := context.Background()
	roomID := hub.NewRoomID()

	sender := NewConn("a")
	observer := NewConn("b")
	if err := hub.Attach(ctx, roomID, sender); err != nil {
		t.Fatalf("attach sender: %v", err)
	}
	if err := hub.Attach(ctx, roomID, observer); err != nil {
		t.Fatalf("attach observer: %v", err)
	}

	msg, err := hub.Submit(ctx, roomID, "hi", "ann")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	for _, conn := range []*Conn{sender, observer} {
		ev := mustEvent(t, conn.Events, EventMessage)
		if ev.Message.ID != msg.ID || ev.Message.Content != "hi" || ev.Message.Author != "ann" {
			t.Fatalf("unexpected event on %s: %+v", conn.ID, ev)
		}
	}
}

func TestSubmitDoesNotBroadcastToOtherRooms(t *testing.T) {
	hub, _, cancel := newTestHub(t)
	defer cancel()

	ctx := context.Background()
	roomA := hub.NewRoomID()
	roomB := hub.NewRoomID()

	connB := NewConn("b")
	if err := hub.Attach(ctx, roomB, connB); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if _, err := hub.Submit(ctx, roomA, "hi", "ann"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case ev := <-connB.Events:
		t.Fatalf("cross-room broadcast: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStorageFailureAbortsSubmit(t *testing.T) {
	hub, st, cancel := newTestHub(t)
	defer cancel()

	ctx := context.Background()
	roomID := hub.NewRoomID()

	conn := NewConn("observer")
	if err := hub.Attach(ctx, roomID, conn); err != nil {
		t.Fatalf("attach: %v", err)
	}

	st.SetFailing(true)
	_, err := hub.Submit(ctx, roomID, "hi", "ann")
	coreErr, ok := err.(*CoreError)
	if !ok || coreErr.Code != ErrCodeStorageFailure {
		t.Fatalf("expected storage_failure error, got %v", err)
	}

	select {
	case ev := <-conn.Events:
		t.Fatalf("broadcast after failed append: %+v", ev)
	default:
	}

	// Recovery: the same room keeps working once storage is back.
	st.SetFailing(false)
	if _, err := hub.Submit(ctx, roomID, "hi again", "ann"); err != nil {
		t.Fatalf("submit after recovery: %v", err)
	}
	mustEvent(t, conn.Events, EventMessage)
}

func TestDetachIsIdempotentAndStopsDelivery(t *testing.T) {
	hub, _, cancel := newTestHub(t)
	defer cancel()

	ctx := context.Background()
	roomID := hub.NewRoomID()

	conn := NewConn("a")
	if err := hub.Attach(ctx, roomID, conn); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := hub.Detach(ctx, roomID, conn); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := hub.Detach(ctx, roomID, conn); err != nil {
		t.Fatalf("double detach: %v", err)
	}

	if _, err := hub.Submit(ctx, roomID, "hi", "ann"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case ev := <-conn.Events:
		t.Fatalf("delivery after detach: %+v", ev)
	default:
	}
}

func TestIdleRoomIsReapedAndRecreated(t *testing.T) {
	st := memory.New()
	logger := zerolog.Nop()
	hub := NewHub(st, &logger)
	hub.IdleTimeout = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	roomID := hub.NewRoomID()
	if _, err := hub.Submit(context.Background(), roomID, "before reap", "ann"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.rooms)
		hub.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("room was not reaped, %d rooms still live", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Addressing the room again transparently re-creates the coordinator;
	// history survives the reap because it lives in the store.
	if _, err := hub.Submit(context.Background(), roomID, "after reap", "ann"); err != nil {
		t.Fatalf("submit after reap: %v", err)
	}
	history, err := hub.History(context.Background(), roomID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages across reap, got %d", len(history))
	}
	if history[0].Content != "before reap" || history[1].Content != "after reap" {
		t.Fatalf("unexpected history order: %+v", history)
	}
}

func TestRoomWithLiveChannelIsNotReaped(t *testing.T) {
	st := memory.New()
	logger := zerolog.Nop()
	hub := NewHub(st, &logger)
	hub.IdleTimeout = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	roomID := hub.NewRoomID()
	conn := NewConn("a")
	if err := hub.Attach(context.Background(), roomID, conn); err != nil {
		t.Fatalf("attach: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	hub.mu.Lock()
	n := len(hub.rooms)
	hub.mu.Unlock()
	if n != 1 {
		t.Fatalf("room with a live channel was reaped")
	}

	// It still delivers.
	if _, err := hub.Submit(context.Background(), roomID, "still here", "ann"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	mustEvent(t, conn.Events, EventMessage)
}

func TestHubClosedAfterShutdown(t *testing.T) {
	hub, _, cancel := newTestHub(t)

	roomID := hub.NewRoomID()
	if _, err := hub.Submit(context.Background(), roomID, "hi", "ann"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := hub.Submit(context.Background(), roomID, "late", "ann")
		if err == ErrClosed {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected ErrClosed after shutdown, got %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
