package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vovakirdan/roomchat/internal/proto"
)

// API is the request/response client: room creation, history fetch, and
// the fallback submit path used when no live channel is open.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI builds a REST client for the given http(s) base address.
func NewAPI(serverURL string) *API {
	return &API{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateRoom allocates a new room and returns its id.
func (a *API) CreateRoom(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/rooms", nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	var out proto.CreateRoomResponse
	if err := a.doJSON(req, &out); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	if out.RoomID == "" {
		return "", fmt.Errorf("create room: empty room id in response")
	}
	return out.RoomID, nil
}

// FetchHistory returns the room's persisted messages, ascending by id.
func (a *API) FetchHistory(ctx context.Context, roomID string) ([]proto.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/rooms/"+roomID+"/messages", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var out proto.GetMessagesResponse
	if err := a.doJSON(req, &out); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("fetch history: %s", errText(out.Error))
	}
	return out.Messages, nil
}

// SubmitMessage sends a message over the fallback request path and returns
// the persisted message with its assigned id.
func (a *API) SubmitMessage(ctx context.Context, roomID, content, author string) (proto.Message, error) {
	body, err := json.Marshal(proto.SendMessageRequest{Content: content, Author: author})
	if err != nil {
		return proto.Message{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/rooms/"+roomID+"/messages", bytes.NewReader(body))
	if err != nil {
		return proto.Message{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out proto.SendMessageResponse
	if err := a.doJSON(req, &out); err != nil {
		return proto.Message{}, fmt.Errorf("submit message: %w", err)
	}
	if !out.Success || out.Message == nil {
		return proto.Message{}, fmt.Errorf("submit message: %s", errText(out.Error))
	}
	return *out.Message, nil
}

// doJSON executes the request and decodes the body. Error-status responses
// are still decoded: the server reports failures inside the JSON envelope.
func (a *API) doJSON(req *http.Request, out any) error {
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func errText(msg string) string {
	if msg == "" {
		return "request failed"
	}
	return msg
}
