package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
)

// NewServer builds the HTTP server: REST room endpoints plus the per-room
// WebSocket upgrade.
func NewServer(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	rooms := NewRoomHandlers(hub, logger)
	ws := NewWSHandler(hub, cfg.MaxMessageBytes, logger)

	router.GET("/health", healthHandler)
	router.POST("/rooms", rooms.CreateRoom)
	router.GET("/rooms/:id/messages", rooms.GetMessages)
	router.POST("/rooms/:id/messages", rooms.PostMessage)
	router.GET("/rooms/:id/ws", ws.Serve)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, ErrorResponse{Error: "not found"})
	})

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
