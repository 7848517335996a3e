package conn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// defaultWriteTimeout bounds a single write to the peer.
	defaultWriteTimeout = 10 * time.Second

	// defaultHandshakeTimeout bounds the upgrade handshake.
	defaultHandshakeTimeout = 10 * time.Second

	// defaultReadLimit is the maximum message size accepted from the peer.
	defaultReadLimit = 8192
)

// Options tune the gorilla-backed transport.
type Options struct {
	// ReadLimit is the maximum message size in bytes accepted from the peer.
	// Zero means defaultReadLimit.
	ReadLimit int64

	// WriteTimeout is the deadline applied to each write. Zero means
	// defaultWriteTimeout.
	WriteTimeout time.Duration

	// HandshakeTimeout bounds the upgrade handshake. Zero means
	// defaultHandshakeTimeout.
	HandshakeTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadLimit == 0 {
		o.ReadLimit = defaultReadLimit
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	return o
}

// Factory builds one connection handle per request, each backed by a gorilla
// transport. The pipeline holds a Factory bound to its WebSocket routes
// instead of a globally registered singleton.
//
// The origin allowlist can be swapped at runtime (config hot reload), so it
// is guarded separately from the per-connection state.
type Factory struct {
	opts     Options
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	origins map[string]struct{}
}

// NewFactory returns a Factory with the given options. With no allowed
// origins configured, all origins are accepted; callers are expected to
// restrict origins at the reverse proxy or via SetAllowedOrigins.
func NewFactory(opts Options) *Factory {
	f := &Factory{opts: opts.withDefaults()}
	f.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: f.opts.HandshakeTimeout,
		CheckOrigin:      f.checkOrigin,
	}
	return f
}

// SetAllowedOrigins replaces the origin allowlist. An empty or nil list
// allows all origins.
func (f *Factory) SetAllowedOrigins(origins []string) {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		set[o] = struct{}{}
	}
	f.mu.Lock()
	f.origins = set
	f.mu.Unlock()
}

func (f *Factory) checkOrigin(r *http.Request) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.origins) == 0 {
		return true
	}
	_, ok := f.origins[r.Header.Get("Origin")]
	return ok
}

// NewConn returns an Idle handle whose Connect will upgrade the given
// request.
func (f *Factory) NewConn(w http.ResponseWriter, r *http.Request) *Conn {
	return New(&gorillaTransport{
		upgrader:     &f.upgrader,
		w:            w,
		r:            r,
		readLimit:    f.opts.ReadLimit,
		writeTimeout: f.opts.WriteTimeout,
	})
}

// gorillaTransport adapts a gorilla *websocket.Conn to the Transport
// interface. It holds the response writer and request until Accept performs
// the upgrade.
type gorillaTransport struct {
	upgrader *websocket.Upgrader
	w        http.ResponseWriter
	r        *http.Request

	ws           *websocket.Conn
	readLimit    int64
	writeTimeout time.Duration
}

func (t *gorillaTransport) Accept(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ws, err := t.upgrader.Upgrade(t.w, t.r, nil)
	if err != nil {
		return err
	}
	ws.SetReadLimit(t.readLimit)
	t.ws = ws
	return nil
}

func (t *gorillaTransport) ReadMessage(ctx context.Context) (Message, error) {
	if t.ws == nil {
		return Message{}, errors.New("transport not accepted")
	}

	stop := t.interruptOnDone(ctx)
	defer stop()

	_ = t.ws.SetReadDeadline(time.Time{})
	mt, data, err := t.ws.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return Message{}, &ClosedError{
				Code:   StatusCode(closeErr.Code),
				Reason: closeErr.Text,
			}
		}
		return Message{}, err
	}

	switch mt {
	case websocket.TextMessage:
		return Message{Type: TextMessage, Data: data}, nil
	case websocket.BinaryMessage:
		return Message{Type: BinaryMessage, Data: data}, nil
	}
	return Message{}, fmt.Errorf("unexpected message type %d", mt)
}

// interruptOnDone pokes the read deadline when ctx is cancelled so a blocked
// ReadMessage returns instead of leaving the goroutine stuck on a dead peer.
func (t *gorillaTransport) interruptOnDone(ctx context.Context) (stop func()) {
	if ctx.Done() == nil {
		return func() {}
	}
	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = t.ws.SetReadDeadline(time.Now())
		case <-finished:
		}
	}()
	return func() { close(finished) }
}

func (t *gorillaTransport) WriteMessage(ctx context.Context, msg Message) error {
	if t.ws == nil {
		return errors.New("transport not accepted")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = t.ws.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.ws.WriteMessage(int(msg.Type), msg.Data)
}

func (t *gorillaTransport) CloseHandshake(ctx context.Context, code StatusCode, reason string) error {
	if t.ws == nil {
		return errors.New("transport not accepted")
	}
	deadline := time.Now().Add(t.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	payload := websocket.FormatCloseMessage(int(code), reason)
	err := t.ws.WriteControl(websocket.CloseMessage, payload, deadline)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

func (t *gorillaTransport) Release() error {
	if t.ws == nil {
		return nil
	}
	return t.ws.Close()
}
