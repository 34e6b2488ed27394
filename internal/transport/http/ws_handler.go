package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
)

// WSHandler upgrades HTTP connections into live room channels and bridges
// them to the room coordinator.
type WSHandler struct {
	hub             *core.Hub
	maxMessageBytes int64
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, maxMessageBytes int64, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, maxMessageBytes: maxMessageBytes, log: logger}
}

// Serve handles GET /rooms/:id/ws.
func (h *WSHandler) Serve(c *gin.Context) {
	roomID := c.Param("id")

	if !strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		c.String(http.StatusUpgradeRequired, "Expected Upgrade: websocket")
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	channel := core.NewConn(uuid.NewString())
	if err := h.hub.Attach(ctx, roomID, channel); err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Msg("attach live channel")
		conn.Close(websocket.StatusInternalError, "room unavailable")
		return
	}
	defer func() {
		// The request context is already done on most exits; detach with a
		// fresh context so the coordinator always drops the channel.
		_ = h.hub.Detach(context.Background(), roomID, channel)
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, roomID, channel)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, channel)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("room_id", roomID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop parses inbound frames and forwards submissions to the room
// coordinator. A malformed payload gets an error frame on this channel
// only; the connection stays open.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, roomID string, channel *core.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var frame proto.Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != proto.FrameTypeMessage {
			h.log.Debug().Str("room_id", roomID).Str("conn_id", channel.ID).Msg("malformed ws payload")
			if writeErr := wsjson.Write(ctx, conn, proto.Frame{
				Type:    proto.FrameTypeError,
				Message: "invalid message format",
			}); writeErr != nil {
				return writeErr
			}
			continue
		}

		if _, err := h.hub.Submit(ctx, roomID, frame.Content, frame.Author); err != nil {
			// The sender learns about its own successful submit through the
			// room broadcast; only failures are answered directly.
			var coreErr *core.CoreError
			msg := "failed to send message"
			if errors.As(err, &coreErr) {
				msg = coreErr.Message
			}
			if writeErr := wsjson.Write(ctx, conn, proto.Frame{
				Type:    proto.FrameTypeError,
				Message: msg,
			}); writeErr != nil {
				return writeErr
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, channel *core.Conn) error {
	for {
		select {
		case event, ok := <-channel.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, frameFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", channel.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
