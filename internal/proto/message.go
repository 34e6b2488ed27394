package proto

// Frame types exchanged over a room's live channel, both directions.
const (
	FrameTypeMessage = "message"
	FrameTypeError   = "error"
)

// Frame is the envelope for live-channel payloads. Clients send
// {type:"message", content, author}; the coordinator answers broadcasts
// with the persisted fields filled in, or {type:"error", message} to the
// originating channel only.
type Frame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Author    string `json:"author,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Message   string `json:"message,omitempty"` // for error frames
}

// Message is a chat message as serialized in REST responses.
type Message struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
	RoomID    string `json:"roomId"`
}

// SendMessageRequest is the body of POST /rooms/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

// SendMessageResponse is the reply to a fallback submit.
type SendMessageResponse struct {
	Success bool     `json:"success"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// GetMessagesResponse is the reply to a history fetch; messages are sorted
// ascending by id.
type GetMessagesResponse struct {
	Success  bool      `json:"success"`
	Messages []Message `json:"messages,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// CreateRoomResponse carries a freshly allocated room identity.
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// ErrorResponse is the generic error body for non-message endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
