package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/store/memory"
)

// startTestServer spins up the full HTTP stack on an in-memory store.
func startTestServer(t *testing.T) (*httptest.Server, *core.Hub, *memory.MemoryStore) {
	t.Helper()

	st := memory.New()
	logger := zerolog.Nop()
	hub := core.NewHub(st, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		MaxMessageBytes:   1 << 20,
	}

	server := NewServer(hub, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, hub, st
}
