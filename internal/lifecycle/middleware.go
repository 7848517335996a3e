package lifecycle

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wsbridge/backend/internal/conn"
	"github.com/wsbridge/backend/internal/model"
)

// decisionKey stores the per-request Decision in the gin context.
const decisionKey = "wsbridge/lifecycle/decision"

// HandlerFunc is a WebSocket route handler. The returned error propagates to
// the pipeline's error reporting as an ordinary request failure; it never
// prevents the hook from closing an auto-managed socket first.
type HandlerFunc func(c *gin.Context, ws *conn.Conn) error

// Handle binds fn to the route and returns the gin handler that drives the
// full lifecycle: construct handle, Before, handler, After, record, decide.
func (h *Hook) Handle(route Route, fn HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := h.factory.NewConn(c.Writer, c.Request)

		if err := h.Before(c.Request.Context(), route, ws); err != nil {
			// The upgrader has already written the handshake error response
			// when one occurred; Finalize renders anything else. The handler
			// is skipped entirely and the request is a failure.
			_ = c.Error(err)
			c.Abort()
			return
		}

		openedAt := time.Now()
		// Finalization must proceed even after the client vanishes and the
		// request context is cancelled.
		finCtx := context.WithoutCancel(c.Request.Context())
		if route.AutoManage {
			h.collector.ConnectionOpened(route.Path)
			h.recordOpen(finCtx, c, route, ws, openedAt)
		}

		handlerErr := invoke(c, ws, fn)

		dec := h.After(finCtx, route, ws, handlerErr)
		c.Set(decisionKey, dec)

		if handlerErr != nil {
			_ = c.Error(handlerErr)
			if route.AutoManage {
				h.collector.HandlerError(route.Path)
			}
		}

		if route.AutoManage {
			code, _ := ws.CloseStatus()
			received, sent := ws.Stats()
			h.collector.ConnectionClosed(route.Path, int(code), time.Since(openedAt), received, sent)
			h.recordClose(finCtx, route, ws, handlerErr)
		}

		if dec.SuppressResponse {
			c.Abort()
		}
	}
}

// invoke runs the handler, converting a panic into an error so the socket is
// still driven to Closed before the failure is reported.
func invoke(c *gin.Context, ws *conn.Conn, fn HandlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(c, ws)
}

func (h *Hook) recordOpen(ctx context.Context, c *gin.Context, route Route, ws *conn.Conn, at time.Time) {
	if h.recorder == nil {
		return
	}
	rec := &model.ConnectionRecord{
		ID:          ws.ID(),
		Route:       route.Path,
		RemoteAddr:  c.ClientIP(),
		ConnectedAt: at,
	}
	if err := h.recorder.RecordOpen(ctx, rec); err != nil {
		log.Printf("lifecycle: audit open failed on %s: %v", route.Path, err)
	}
}

func (h *Hook) recordClose(ctx context.Context, route Route, ws *conn.Conn, handlerErr error) {
	if h.recorder == nil {
		return
	}
	code, reason := ws.CloseStatus()
	received, sent := ws.Stats()
	now := time.Now()
	rec := &model.ConnectionRecord{
		ID:          ws.ID(),
		Route:       route.Path,
		ClosedAt:    &now,
		CloseCode:   int(code),
		CloseReason: reason,
		MessagesIn:  received,
		MessagesOut: sent,
	}
	if handlerErr != nil {
		rec.HandlerError = handlerErr.Error()
	}
	if err := h.recorder.RecordClose(ctx, rec); err != nil {
		log.Printf("lifecycle: audit close failed on %s: %v", route.Path, err)
	}
}

// DecisionFrom returns the Decision produced for this request, if any.
func DecisionFrom(c *gin.Context) (Decision, bool) {
	v, ok := c.Get(decisionKey)
	if !ok {
		return Decision{}, false
	}
	dec, ok := v.(Decision)
	return dec, ok
}

// Finalize is the pipeline's response step, installed as the outermost
// middleware on routes served by the hook. After the chain runs it consults
// the Decision: a suppressed request is complete as-is (the socket carried
// the response), anything else with recorded errors gets a JSON error body.
// Handler failures on suppressed requests stay visible in c.Errors for the
// host's logging; only the response write is skipped.
func Finalize() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if dec, ok := DecisionFrom(c); ok && dec.SuppressResponse {
			return
		}
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    "REQUEST_FAILED",
				"message": c.Errors.Last().Error(),
			},
		})
	}
}
