package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
)

// RoomHandlers provides HTTP handlers for room creation, history fetch,
// and the fallback submit path.
type RoomHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub: hub,
		log: logger,
	}
}

// CreateRoom allocates a new room identity.
// POST /rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	roomID := h.hub.NewRoomID()
	h.log.Info().Str("room_id", roomID).Msg("room created")
	c.JSON(http.StatusOK, proto.CreateRoomResponse{RoomID: roomID})
}

// GetMessages returns the room's full history, ascending by id.
// GET /rooms/:id/messages
func (h *RoomHandlers) GetMessages(c *gin.Context) {
	roomID := c.Param("id")

	messages, err := h.hub.History(c.Request.Context(), roomID)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to fetch history")
		c.JSON(http.StatusInternalServerError, proto.GetMessagesResponse{
			Success: false,
			Error:   "failed to fetch messages",
		})
		return
	}

	out := make([]proto.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageToProto(msg))
	}
	c.JSON(http.StatusOK, proto.GetMessagesResponse{Success: true, Messages: out})
}

// PostMessage submits a message over the fallback request path.
// POST /rooms/:id/messages
func (h *RoomHandlers) PostMessage(c *gin.Context) {
	roomID := c.Param("id")

	var req proto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, proto.SendMessageResponse{
			Success: false,
			Error:   "content and author are required",
		})
		return
	}

	msg, err := h.hub.Submit(c.Request.Context(), roomID, req.Content, req.Author)
	if err != nil {
		var coreErr *core.CoreError
		if errors.As(err, &coreErr) && coreErr.Code == core.ErrCodeInvalidMessage {
			c.JSON(http.StatusBadRequest, proto.SendMessageResponse{
				Success: false,
				Error:   coreErr.Message,
			})
			return
		}
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to submit message")
		c.JSON(http.StatusInternalServerError, proto.SendMessageResponse{
			Success: false,
			Error:   "failed to send message",
		})
		return
	}

	out := messageToProto(msg)
	c.JSON(http.StatusOK, proto.SendMessageResponse{Success: true, Message: &out})
}
