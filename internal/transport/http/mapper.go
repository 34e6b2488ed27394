package http

import (
	"time"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
)

func messageToProto(msg core.Message) proto.Message {
	return proto.Message{
		ID:        msg.ID,
		Content:   msg.Content,
		Author:    msg.Author,
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339Nano),
		RoomID:    msg.RoomID,
	}
}

func frameFromEvent(event *core.Event) proto.Frame {
	switch event.Kind {
	case core.EventMessage:
		return proto.Frame{
			Type:      proto.FrameTypeMessage,
			Content:   event.Message.Content,
			Author:    event.Message.Author,
			Timestamp: event.Message.Timestamp.UTC().Format(time.RFC3339Nano),
			MessageID: event.Message.ID,
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Frame{Type: proto.FrameTypeError, Message: "unknown error"}
		}
		return proto.Frame{Type: proto.FrameTypeError, Message: event.Error.Message}
	default:
		return proto.Frame{Type: proto.FrameTypeError, Message: "unknown event"}
	}
}
