package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wsbridge/backend/internal/conn"
	"github.com/wsbridge/backend/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRecorder collects audit events; safe for use from handler goroutines.
type fakeRecorder struct {
	mu     sync.Mutex
	opens  []*model.ConnectionRecord
	closes []*model.ConnectionRecord
}

func (r *fakeRecorder) RecordOpen(_ context.Context, rec *model.ConnectionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens = append(r.opens, rec)
	return nil
}

func (r *fakeRecorder) RecordClose(_ context.Context, rec *model.ConnectionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes = append(r.closes, rec)
	return nil
}

func (r *fakeRecorder) lastClose() *model.ConnectionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.closes) == 0 {
		return nil
	}
	return r.closes[len(r.closes)-1]
}

func (r *fakeRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.opens), len(r.closes)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func echoHandler(c *gin.Context, ws *conn.Conn) error {
	ctx := c.Request.Context()
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

func newTestServer(t *testing.T, hook *Hook, route Route, fn HandlerFunc) string {
	t.Helper()
	r := gin.New()
	r.Use(Finalize())
	r.GET(route.Path, hook.Handle(route, fn))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + route.Path
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestFinalizeSuppressesResponse(t *testing.T) {
	r := gin.New()
	r.Use(Finalize())
	r.GET("/x", func(c *gin.Context) {
		// a handler error that must stay in the error log but produce no body
		_ = c.Error(errors.New("boom"))
		c.Set(decisionKey, Decision{Handled: true, SuppressResponse: true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Body.Len() != 0 {
		t.Errorf("suppressed request wrote %d response bytes: %q", w.Body.Len(), w.Body.String())
	}
	if w.Code != http.StatusOK {
		t.Errorf("suppressed request status: got %d, want 200", w.Code)
	}
}

func TestFinalizeRendersErrorsWithoutDecision(t *testing.T) {
	r := gin.New()
	r.Use(Finalize())
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", w.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body.Error.Code != "REQUEST_FAILED" || body.Error.Message != "boom" {
		t.Errorf("error body: %+v", body.Error)
	}
}

func TestAutoManagedEcho(t *testing.T) {
	rec := &fakeRecorder{}
	hook := New(conn.NewFactory(conn.Options{}), rec, nil)
	wsURL := newTestServer(t, hook, Route{Path: "/ws/echo", AutoManage: true}, echoHandler)

	client := dial(t, wsURL)

	if err := client.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, reply, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if string(reply) != "hello" {
		t.Errorf("echo: got %q", reply)
	}

	// peer-initiated close ends the handler; the hook finishes the teardown
	deadline := time.Now().Add(time.Second)
	if err := client.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), deadline); err != nil {
		t.Fatalf("write close: %v", err)
	}

	waitFor(t, func() bool { _, closes := rec.counts(); return closes == 1 }, "close record")

	opens, closes := rec.counts()
	if opens != 1 || closes != 1 {
		t.Fatalf("audit records: %d opens, %d closes", opens, closes)
	}
	closed := rec.lastClose()
	if closed.HandlerError != "" {
		t.Errorf("unexpected handler error recorded: %q", closed.HandlerError)
	}
	if closed.MessagesIn != 1 || closed.MessagesOut != 1 {
		t.Errorf("message counts: in %d out %d", closed.MessagesIn, closed.MessagesOut)
	}
	if closed.CloseCode != int(conn.StatusNormalClosure) {
		t.Errorf("close code: got %d", closed.CloseCode)
	}
}

func TestHandlerErrorStillClosesSocket(t *testing.T) {
	rec := &fakeRecorder{}
	hook := New(conn.NewFactory(conn.Options{}), rec, nil)

	var seen []string
	r := gin.New()
	r.Use(Finalize())
	// capture the pipeline's error log after the chain runs
	r.Use(func(c *gin.Context) {
		c.Next()
		seen = c.Errors.Errors()
	})
	route := Route{Path: "/ws/fail", AutoManage: true}
	r.GET(route.Path, hook.Handle(route, func(c *gin.Context, ws *conn.Conn) error {
		return errors.New("boom")
	}))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+route.Path)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("want close frame, got %v", err)
	}
	if closeErr.Code != websocket.CloseInternalServerErr {
		t.Errorf("close code: got %d, want %d", closeErr.Code, websocket.CloseInternalServerErr)
	}

	waitFor(t, func() bool { _, closes := rec.counts(); return closes == 1 }, "close record")
	if got := rec.lastClose().HandlerError; got != "boom" {
		t.Errorf("recorded handler error: %q, want %q", got, "boom")
	}

	// the original error, not a secondary close signal, is what the host saw
	found := false
	for _, e := range seen {
		if e == "boom" {
			found = true
		}
	}
	if !found {
		t.Errorf("handler error missing from pipeline error log: %v", seen)
	}
}

func TestHandlerPanicStillClosesSocket(t *testing.T) {
	rec := &fakeRecorder{}
	hook := New(conn.NewFactory(conn.Options{}), rec, nil)
	route := Route{Path: "/ws/panic", AutoManage: true}
	wsURL := newTestServer(t, hook, route, func(c *gin.Context, ws *conn.Conn) error {
		panic("kaboom")
	})

	client := dial(t, wsURL)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("want close frame, got %v", err)
	}

	waitFor(t, func() bool { _, closes := rec.counts(); return closes == 1 }, "close record")
	if got := rec.lastClose().HandlerError; !strings.Contains(got, "kaboom") {
		t.Errorf("recorded handler error: %q", got)
	}
}

func TestStandaloneHandlerWithoutConnect(t *testing.T) {
	rec := &fakeRecorder{}
	hook := New(conn.NewFactory(conn.Options{}), rec, nil)

	r := gin.New()
	r.Use(Finalize())
	route := Route{Path: "/ws/raw"}
	r.GET(route.Path, hook.Handle(route, func(c *gin.Context, ws *conn.Conn) error {
		// never connects; send must fail fast with a state error
		return ws.Send(c.Request.Context(), conn.Text("x"))
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, route.Path, nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid in state") {
		t.Errorf("state error not surfaced: %q", w.Body.String())
	}

	// nothing was managed: no audit records
	opens, closes := rec.counts()
	if opens != 0 || closes != 0 {
		t.Errorf("standalone route produced audit records: %d/%d", opens, closes)
	}
}

func TestOriginRejectedSkipsHandler(t *testing.T) {
	factory := conn.NewFactory(conn.Options{})
	factory.SetAllowedOrigins([]string{"https://app.example.com"})
	hook := New(factory, nil, nil)

	handlerRan := false
	route := Route{Path: "/ws/echo", AutoManage: true}
	wsURL := newTestServer(t, hook, route, func(c *gin.Context, ws *conn.Conn) error {
		handlerRan = true
		return nil
	})

	header := http.Header{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("want bad handshake, got %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("handshake status: got %d, want 403", resp.StatusCode)
	}
	if handlerRan {
		t.Errorf("handler ran despite connect failure")
	}
}

func TestAllowedOriginAccepted(t *testing.T) {
	factory := conn.NewFactory(conn.Options{})
	factory.SetAllowedOrigins([]string{"https://app.example.com"})
	hook := New(factory, nil, nil)
	wsURL := newTestServer(t, hook, Route{Path: "/ws/echo", AutoManage: true}, echoHandler)

	header := http.Header{"Origin": {"https://app.example.com"}}
	client, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial with allowed origin: %v", err)
	}
	client.Close()
}
