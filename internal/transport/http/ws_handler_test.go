package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/roomchat/internal/proto"
)

func wsDial(t *testing.T, ctx context.Context, tsURL, roomID string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(tsURL, "http", "ws", 1) + "/rooms/" + roomID + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	return conn
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.Frame {
	t.Helper()

	var frame proto.Frame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestWSRequiresUpgrade(t *testing.T) {
	ts, _, _ := startTestServer(t)
	roomID := createRoom(t, ts)

	resp, err := ts.Client().Get(ts.URL + "/rooms/" + roomID + "/ws")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected status 426, got %d", resp.StatusCode)
	}
}

func TestWSBroadcastReachesAllClients(t *testing.T) {
	ts, _, _ := startTestServer(t)
	roomID := createRoom(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := wsDial(t, ctx, ts.URL, roomID)
	defer connA.Close(websocket.StatusNormalClosure, "done")
	connB := wsDial(t, ctx, ts.URL, roomID)
	defer connB.Close(websocket.StatusNormalClosure, "done")

	if err := wsjson.Write(ctx, connA, proto.Frame{
		Type:    proto.FrameTypeMessage,
		Content: "hi there",
		Author:  "alice",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Both clients receive the broadcast, the sender included.
	frameA := readFrame(t, ctx, connA)
	frameB := readFrame(t, ctx, connB)

	for _, frame := range []proto.Frame{frameA, frameB} {
		if frame.Type != proto.FrameTypeMessage {
			t.Fatalf("unexpected frame type: %+v", frame)
		}
		if frame.Content != "hi there" || frame.Author != "alice" {
			t.Fatalf("unexpected frame payload: %+v", frame)
		}
		if frame.MessageID == "" || frame.Timestamp == "" {
			t.Fatalf("missing id/timestamp: %+v", frame)
		}
	}
	if frameA.MessageID != frameB.MessageID {
		t.Fatalf("clients saw different ids: %q vs %q", frameA.MessageID, frameB.MessageID)
	}

	// The pushed id matches what the request path reports.
	resp, err := ts.Client().Get(ts.URL + "/rooms/" + roomID + "/messages")
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	defer resp.Body.Close()
	var out proto.GetMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Messages) != 1 || out.Messages[0].ID != frameA.MessageID {
		t.Fatalf("history does not match broadcast: %+v", out.Messages)
	}
}

func TestWSMalformedPayloadGetsScopedError(t *testing.T) {
	ts, _, _ := startTestServer(t)
	roomID := createRoom(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := wsDial(t, ctx, ts.URL, roomID)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	observer := wsDial(t, ctx, ts.URL, roomID)
	defer observer.Close(websocket.StatusNormalClosure, "done")

	if err := conn.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("send garbage: %v", err)
	}

	frame := readFrame(t, ctx, conn)
	if frame.Type != proto.FrameTypeError || frame.Message == "" {
		t.Fatalf("expected error frame, got %+v", frame)
	}

	// The connection survives the malformed payload.
	if err := wsjson.Write(ctx, conn, proto.Frame{
		Type:    proto.FrameTypeMessage,
		Content: "still alive",
		Author:  "alice",
	}); err != nil {
		t.Fatalf("send after error: %v", err)
	}
	frame = readFrame(t, ctx, conn)
	if frame.Type != proto.FrameTypeMessage || frame.Content != "still alive" {
		t.Fatalf("expected message frame after recovery, got %+v", frame)
	}

	// The error went to the offending channel only: the observer sees just
	// the valid broadcast.
	frame = readFrame(t, ctx, observer)
	if frame.Type != proto.FrameTypeMessage || frame.Content != "still alive" {
		t.Fatalf("observer saw unexpected frame: %+v", frame)
	}
}

func TestWSInvalidMessageGetsErrorFrame(t *testing.T) {
	ts, _, _ := startTestServer(t)
	roomID := createRoom(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := wsDial(t, ctx, ts.URL, roomID)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := wsjson.Write(ctx, conn, proto.Frame{
		Type:    proto.FrameTypeMessage,
		Content: "   ",
		Author:  "alice",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	frame := readFrame(t, ctx, conn)
	if frame.Type != proto.FrameTypeError {
		t.Fatalf("expected error frame, got %+v", frame)
	}

	// Nothing was persisted.
	resp, err := ts.Client().Get(ts.URL + "/rooms/" + roomID + "/messages")
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	defer resp.Body.Close()
	var out proto.GetMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Messages) != 0 {
		t.Fatalf("invalid message was persisted: %+v", out.Messages)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}
