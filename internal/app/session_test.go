package app

import (
	"testing"

	"quiz-arena/internal/protocol"
)

func TestSessionSendPreservesOrder(t *testing.T) {
	s := newSession("addr", 1, 8)
	for _, kind := range []string{protocol.KindQuestion, protocol.KindScoreUpdate, protocol.KindLeaderboard} {
		s.Send(protocol.FromServer(kind, "", nil))
	}
	got := kinds(drain(s))
	want := []string{protocol.KindQuestion, protocol.KindScoreUpdate, protocol.KindLeaderboard}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSessionFullMailboxDropsPeer(t *testing.T) {
	s := newSession("addr", 1, 2)
	for i := 0; i < 3; i++ {
		s.Send(protocol.FromServer(protocol.KindLobbyInfo, "", nil))
	}
	if !s.Closed() {
		t.Fatalf("expected slow peer to be closed")
	}
	if got := len(drain(s)); got != 2 {
		t.Fatalf("expected queued envelopes flushed, got %d", got)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s := newSession("addr", 1, 0)
	s.Close()
	s.Close()
	s.Send(protocol.FromServer(protocol.KindLobbyInfo, "", nil))
	if len(drain(s)) != 0 {
		t.Fatalf("closed session must not queue")
	}
	if s.ID() == "" {
		t.Fatalf("expected session id")
	}
}

func TestSessionIdentity(t *testing.T) {
	s := newSession("addr", 1, 0)
	if _, ok := s.Nickname(); ok {
		t.Fatalf("fresh session must be unnamed")
	}
	s.identify("alice")
	s.identify("bob")
	if nick, _ := s.Nickname(); nick != "alice" {
		t.Fatalf("expected first nickname kept, got %s", nick)
	}
	if s.promote("ADMIN") {
		t.Fatalf("named session must not become admin")
	}

	s.setRoom("12345")
	s.clearRoom("54321")
	if code, _ := s.Room(); code != "12345" {
		t.Fatalf("clearRoom must only drop a matching reference")
	}
	s.clearRoom("12345")
	if _, in := s.Room(); in {
		t.Fatalf("expected room cleared")
	}
}
