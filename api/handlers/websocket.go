// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/wsbridge/backend/internal/conn"
	"github.com/wsbridge/backend/internal/lifecycle"
)

// WebSocketHandler exposes the WebSocket routes served through the lifecycle
// hook.
type WebSocketHandler struct {
	hook *lifecycle.Hook
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(hook *lifecycle.Hook) *WebSocketHandler {
	return &WebSocketHandler{hook: hook}
}

// Echo handles WS /api/ws/echo on an auto-managed route: the hook connects
// the socket before this function runs and closes it afterwards. The handler
// only moves messages.
func (h *WebSocketHandler) Echo(c *gin.Context, ws *conn.Conn) error {
	ctx := c.Request.Context()
	for {
		msg, err := ws.Receive(ctx)
		if err != nil {
			var closed *conn.ClosedError
			if errors.As(err, &closed) {
				// Peer hung up; a normal end of conversation.
				return nil
			}
			return err
		}
		if err := ws.Send(ctx, msg); err != nil {
			return err
		}
	}
}

// Raw handles WS /api/ws/raw on a standalone route: the handler owns the
// whole lifecycle, including the close on every exit path.
func (h *WebSocketHandler) Raw(c *gin.Context, ws *conn.Conn) error {
	ctx := c.Request.Context()
	if err := ws.Connect(ctx); err != nil {
		return err
	}
	defer ws.Close(ctx, conn.StatusNormalClosure, "")

	for {
		msg, err := ws.Receive(ctx)
		if err != nil {
			var closed *conn.ClosedError
			if errors.As(err, &closed) {
				return nil
			}
			return err
		}
		if err := ws.Send(ctx, msg); err != nil {
			return err
		}
	}
}

// RegisterRoutes registers the WebSocket routes on a Gin router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws/echo", h.hook.Handle(lifecycle.Route{Path: "/ws/echo", AutoManage: true}, h.Echo))
	rg.GET("/ws/raw", h.hook.Handle(lifecycle.Route{Path: "/ws/raw"}, h.Raw))
}
