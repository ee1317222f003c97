package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/chatline/internal/backendtest"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/model"
)

type staticTokens struct {
	mu  sync.Mutex
	tok string
}

func (s *staticTokens) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok
}

func (s *staticTokens) set(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = tok
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func runSocket(t *testing.T, s *Socket) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("Run did not stop")
		}
	})
}

func TestSocketReceivesTypedEvents(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddUser("u1", "Ana", "ana@example.com", "pw")
	s := NewSocket(Config{URL: srv.SocketURL()}, &staticTokens{tok: srv.Token("u1")}, bus.New(), nil, nil)
	runSocket(t, s)

	eventually(t, func() bool { return srv.Connected("u1") == 1 }, "socket never connected")
	if s.State() != StateConnected {
		t.Errorf("State() = %s", s.State())
	}

	if err := srv.Push("u1", model.EvMemberPromoted, map[string]string{"groupId": "g1", "memberId": "u2"}); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-s.Events():
		if ev != (model.MemberPromoted{GroupID: "g1", MemberID: "u2"}) {
			t.Errorf("event = %#v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
	}
}

func TestSocketEmit(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddUser("u1", "Ana", "ana@example.com", "pw")
	s := NewSocket(Config{URL: srv.SocketURL()}, &staticTokens{tok: srv.Token("u1")}, nil, nil, nil)

	if err := s.Emit(context.Background(), model.MemberRemoved{GroupID: "g1", MemberID: "u2"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Emit before connect = %v, want ErrNotConnected", err)
	}

	runSocket(t, s)
	eventually(t, func() bool { return s.State() == StateConnected }, "socket never connected")

	if err := s.Emit(context.Background(), model.MemberRemoved{GroupID: "g1", MemberID: "u2"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	eventually(t, func() bool { return len(srv.Received()) == 1 }, "server did not receive the event")
	got := srv.Received()[0]
	var data model.MemberRemoved
	if err := json.Unmarshal(got.Data, &data); err != nil {
		t.Fatal(err)
	}
	if got.Event != model.EvMemberRemoved || data.MemberID != "u2" {
		t.Errorf("received %s %+v", got.Event, data)
	}
}

func TestSocketWaitsForTokenAndReconnectsOnKick(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddUser("u1", "Ana", "ana@example.com", "pw")
	tokens := &staticTokens{}
	s := NewSocket(Config{URL: srv.SocketURL(), BaseDelay: 10 * time.Millisecond}, tokens, nil, nil, nil)
	runSocket(t, s)

	time.Sleep(50 * time.Millisecond)
	if srv.Connected("u1") != 0 {
		t.Fatal("connected without a token")
	}

	tokens.set(srv.Token("u1"))
	s.Kick()
	eventually(t, func() bool { return srv.Connected("u1") == 1 }, "socket did not connect after Kick")
}

func TestSocketRejectedTokenWaitsForKick(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddUser("u1", "Ana", "ana@example.com", "pw")
	bad := srv.Token("u1")
	srv.Revoke(bad)
	tokens := &staticTokens{tok: bad}
	s := NewSocket(Config{URL: srv.SocketURL(), BaseDelay: 5 * time.Millisecond}, tokens, nil, nil, nil)
	runSocket(t, s)

	eventually(t, func() bool { return s.State() == StateDisconnected }, "state never settled")
	time.Sleep(50 * time.Millisecond)
	if srv.Connected("u1") != 0 {
		t.Fatal("connected with a revoked token")
	}

	tokens.set(srv.Token("u1"))
	s.Kick()
	eventually(t, func() bool { return srv.Connected("u1") == 1 }, "socket did not recover with a fresh token")
}

func TestSocketGivesUpAfterMaxAttempts(t *testing.T) {
	s := NewSocket(Config{
		URL:         "ws://127.0.0.1:1/ws",
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		MaxAttempts: 2,
	}, &staticTokens{tok: "x"}, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Run(ctx)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v, want give-up error", err)
	}
}
