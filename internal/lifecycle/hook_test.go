package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/wsbridge/backend/internal/conn"
)

// fakeSocket records how the hook drives it.
type fakeSocket struct {
	state      conn.State
	connectErr error
	closeErr   error

	connectCalls int
	closeCalls   int
	closeCode    conn.StatusCode
	closeReason  string
}

func (s *fakeSocket) Connect(ctx context.Context) error {
	s.connectCalls++
	if s.connectErr != nil {
		s.state = conn.StateClosed
		return s.connectErr
	}
	s.state = conn.StateOpen
	return nil
}

func (s *fakeSocket) Close(ctx context.Context, code conn.StatusCode, reason string) error {
	s.closeCalls++
	if s.closeErr != nil {
		return s.closeErr
	}
	s.closeCode = code
	s.closeReason = reason
	s.state = conn.StateClosed
	return nil
}

func (s *fakeSocket) State() conn.State { return s.state }

func TestBeforeStandalonePassThrough(t *testing.T) {
	h := New(nil, nil, nil)
	s := &fakeSocket{}

	if err := h.Before(context.Background(), Route{Path: "/ws/raw"}, s); err != nil {
		t.Fatalf("Before: %v", err)
	}
	if s.connectCalls != 0 {
		t.Errorf("standalone route must not be auto-connected, got %d calls", s.connectCalls)
	}
}

func TestBeforeAutoConnects(t *testing.T) {
	h := New(nil, nil, nil)
	s := &fakeSocket{}

	if err := h.Before(context.Background(), Route{Path: "/ws/echo", AutoManage: true}, s); err != nil {
		t.Fatalf("Before: %v", err)
	}
	if s.connectCalls != 1 {
		t.Errorf("connect calls: got %d, want 1", s.connectCalls)
	}
	if s.State() != conn.StateOpen {
		t.Errorf("socket not open after Before: %v", s.State())
	}
}

func TestBeforePropagatesConnectFailure(t *testing.T) {
	h := New(nil, nil, nil)
	want := errors.New("accept refused")
	s := &fakeSocket{connectErr: want}

	err := h.Before(context.Background(), Route{Path: "/ws/echo", AutoManage: true}, s)
	if !errors.Is(err, want) {
		t.Fatalf("Before: got %v, want %v", err, want)
	}
}

func TestAfterStandalonePassThrough(t *testing.T) {
	h := New(nil, nil, nil)
	s := &fakeSocket{state: conn.StateOpen}

	dec := h.After(context.Background(), Route{Path: "/ws/raw"}, s, nil)
	if dec.Handled || dec.SuppressResponse {
		t.Errorf("standalone decision must be empty, got %+v", dec)
	}
	if s.closeCalls != 0 {
		t.Errorf("standalone socket must not be auto-closed")
	}
}

func TestAfterClosesAndSuppresses(t *testing.T) {
	h := New(nil, nil, nil)
	s := &fakeSocket{state: conn.StateOpen}

	dec := h.After(context.Background(), Route{Path: "/ws/echo", AutoManage: true}, s, nil)
	if !dec.Handled || !dec.SuppressResponse {
		t.Errorf("decision: got %+v, want handled+suppressed", dec)
	}
	if s.closeCalls != 1 {
		t.Errorf("close calls: got %d, want 1", s.closeCalls)
	}
	if s.closeCode != conn.StatusNormalClosure {
		t.Errorf("close code: got %d, want %d", s.closeCode, conn.StatusNormalClosure)
	}
}

func TestAfterOnHandlerFailure(t *testing.T) {
	h := New(nil, nil, nil)
	s := &fakeSocket{state: conn.StateOpen}

	dec := h.After(context.Background(), Route{Path: "/ws/echo", AutoManage: true}, s, errors.New("boom"))
	if !dec.Handled || !dec.SuppressResponse {
		t.Errorf("decision on failure: got %+v, want handled+suppressed", dec)
	}
	if s.closeCode != conn.StatusInternalError {
		t.Errorf("close code on failure: got %d, want %d", s.closeCode, conn.StatusInternalError)
	}
	if s.State() != conn.StateClosed {
		t.Errorf("socket not driven to closed: %v", s.State())
	}
}

func TestAfterIgnoresCloseErrors(t *testing.T) {
	h := New(nil, nil, nil)

	// an idle socket (handler closed it, or it was never connected on this
	// path) yields a StateError: silently ignored
	s := &fakeSocket{closeErr: &conn.StateError{Op: "close", State: conn.StateIdle}}
	dec := h.After(context.Background(), Route{Path: "/ws/echo", AutoManage: true}, s, nil)
	if !dec.Handled || !dec.SuppressResponse {
		t.Errorf("decision despite close StateError: got %+v", dec)
	}

	// a genuine transport failure is logged but never re-raised
	s = &fakeSocket{closeErr: &conn.IOError{Op: "close", Err: errors.New("reset")}}
	dec = h.After(context.Background(), Route{Path: "/ws/echo", AutoManage: true}, s, nil)
	if !dec.Handled || !dec.SuppressResponse {
		t.Errorf("decision despite close IOError: got %+v", dec)
	}
}

// After is safe to call again once the socket is closed: the second close is
// a no-op on a real handle and the same decision is produced.
func TestAfterIdempotentOnceFinalized(t *testing.T) {
	h := New(nil, nil, nil)
	s := &fakeSocket{state: conn.StateOpen}
	route := Route{Path: "/ws/echo", AutoManage: true}

	first := h.After(context.Background(), route, s, nil)
	second := h.After(context.Background(), route, s, nil)
	if first != second {
		t.Errorf("decisions differ: %+v vs %+v", first, second)
	}
}
