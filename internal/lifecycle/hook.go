// Package lifecycle bridges WebSocket connections into the HTTP request
// pipeline.
//
// The pipeline was built for a model where exactly one response is produced
// per request. A WebSocket handler produces zero HTTP responses: the socket
// itself carries them. The Hook wraps a handler's invocation, connecting the
// socket before the handler runs and closing it after (on success and on
// failure), and then produces a Decision telling the pipeline's response step
// to write nothing. The Decision is an explicit value threaded through the
// request context, not a panic, so the pipeline's error reporting still sees
// handler failures.
package lifecycle

import (
	"context"
	"errors"
	"log"

	"github.com/wsbridge/backend/internal/conn"
	"github.com/wsbridge/backend/internal/metrics"
	"github.com/wsbridge/backend/internal/model"
)

// Route is the metadata the hook reads from a WebSocket route.
type Route struct {
	// Path identifies the route in logs, metrics and audit records.
	Path string

	// AutoManage requests the auto-lifecycle: the hook connects the socket
	// before the handler and closes it after. When false the route is
	// standalone and the handler drives Connect and Close itself.
	AutoManage bool
}

// Decision is the hook's verdict on one request, produced once and consumed
// by the pipeline's response step.
type Decision struct {
	// Handled is true when the hook performed connect/close management.
	Handled bool

	// SuppressResponse is true when the pipeline must not write a normal
	// response body.
	SuppressResponse bool
}

// Socket is the slice of the connection handle the hook drives.
// *conn.Conn satisfies it.
type Socket interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context, code conn.StatusCode, reason string) error
	State() conn.State
}

// Recorder receives audit events for managed connections. Implementations
// must tolerate being called with a request context that is already past its
// deadline-free finalization phase.
type Recorder interface {
	RecordOpen(ctx context.Context, rec *model.ConnectionRecord) error
	RecordClose(ctx context.Context, rec *model.ConnectionRecord) error
}

// Hook manages the socket lifecycle around handler invocations. One Hook
// serves all WebSocket routes; all per-request state lives on the handle and
// in the request context.
type Hook struct {
	factory   *conn.Factory
	recorder  Recorder
	collector *metrics.Collector
}

// New creates a Hook. recorder and collector may be nil.
func New(factory *conn.Factory, recorder Recorder, collector *metrics.Collector) *Hook {
	return &Hook{
		factory:   factory,
		recorder:  recorder,
		collector: collector,
	}
}

// Before runs at the pipeline's before-handler extension point. On an
// auto-managed route it connects the socket; a connect failure propagates and
// the caller must skip the handler and treat the request as failed. On a
// standalone route it does nothing.
func (h *Hook) Before(ctx context.Context, route Route, s Socket) error {
	if !route.AutoManage {
		return nil
	}
	return s.Connect(ctx)
}

// After runs at the pipeline's after-handler extension point, on success and
// on failure alike. On a standalone route it is a pass-through producing an
// empty Decision. On an auto-managed route it closes the socket best-effort
// and produces the suppression decision regardless of the handler's outcome.
//
// Close errors are never re-raised: a close failure must not mask handlerErr,
// which remains the request's outcome. An idempotent no-op close is silent;
// a genuine transport failure is logged as a warning.
func (h *Hook) After(ctx context.Context, route Route, s Socket, handlerErr error) Decision {
	if !route.AutoManage {
		return Decision{}
	}

	code := conn.StatusNormalClosure
	reason := ""
	if handlerErr != nil {
		code = conn.StatusInternalError
		reason = "internal error"
	}

	if err := s.Close(ctx, code, reason); err != nil {
		var stateErr *conn.StateError
		if !errors.As(err, &stateErr) {
			log.Printf("lifecycle: close failed on %s: %v", route.Path, err)
		}
	}

	return Decision{Handled: true, SuppressResponse: true}
}
