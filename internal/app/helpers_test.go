package app

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"testing"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/protocol"
)

type stubSource map[string][]domain.Question

func (s stubSource) Topics(context.Context) ([]string, error) {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s stubSource) Questions(_ context.Context, topic string) ([]domain.Question, error) {
	qs, ok := s[topic]
	if !ok {
		return nil, domain.ErrTopicNotFound
	}
	return slices.Clone(qs), nil
}

type recordingObserver struct {
	opened []string
	closed []string
}

func (o *recordingObserver) RoomOpened(_ context.Context, code, _ string) { o.opened = append(o.opened, code) }
func (o *recordingObserver) RoomClosed(_ context.Context, code string)    { o.closed = append(o.closed, code) }

type harness struct {
	t        *testing.T
	d        *Dispatcher
	clock    *manualClock
	observer *recordingObserver
	n        int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bank := stubSource(domain.WithDefaultTopic(map[string][]domain.Question{
		"Linux": {
			{Kind: domain.KindShort, Text: "Command to list files?", Answer: "ls"},
		},
	}))
	clock := newManualClock()
	observer := &recordingObserver{}
	sessions := NewSessionRegistry("ADMIN", 256)
	rooms := NewRoomRegistry(bank, RoomOptions{
		Clock:    clock,
		Observer: observer,
		Shuffle:  func([]domain.Question) {},
	})
	return &harness{
		t:        t,
		d:        NewDispatcher(sessions, rooms, bank, Options{}),
		clock:    clock,
		observer: observer,
	}
}

// connect opens a session and, for a non-empty nickname, joins the lobby.
func (h *harness) connect(nickname string) *Session {
	h.t.Helper()
	h.n++
	s := h.d.Connect(fmt.Sprintf("127.0.0.1:%d", 40000+h.n))
	if nickname != "" {
		h.send(s, protocol.KindJoinLobby, nickname, nil)
		drain(s)
	}
	return s
}

func (h *harness) admin() *Session {
	h.t.Helper()
	s := h.d.Connect("127.0.0.1:1")
	h.send(s, protocol.KindAdminLogin, "ADMIN", nil)
	if got := ofType(drain(s), protocol.KindAdminLoginSuccess); len(got) != 1 {
		h.t.Fatalf("expected admin login success")
	}
	return s
}

func (h *harness) send(s *Session, kind, user string, data map[string]any) {
	h.t.Helper()
	if data == nil {
		data = map[string]any{}
	}
	frame, err := json.Marshal(map[string]any{"type": kind, "user": user, "data": data})
	if err != nil {
		h.t.Fatalf("marshal frame: %v", err)
	}
	h.d.Handle(context.Background(), s, frame)
}

// createRoom has owner create a room for topic and returns its code.
func (h *harness) createRoom(owner *Session, topic string) string {
	h.t.Helper()
	nick, _ := owner.Nickname()
	h.send(owner, protocol.KindCreateRoom, nick, map[string]any{"topic": topic})
	created := ofType(drain(owner), protocol.KindRoomCreated)
	if len(created) != 1 {
		h.t.Fatalf("expected ROOM_CREATED")
	}
	return created[0].Data.(protocol.RoomCreated).RoomCode
}

func (h *harness) joinRoom(s *Session, code string) {
	h.t.Helper()
	nick, _ := s.Nickname()
	h.send(s, protocol.KindJoinRoom, nick, map[string]any{"room_code": code})
	if got := ofType(drain(s), protocol.KindRoomJoined); len(got) != 1 {
		h.t.Fatalf("%s: expected ROOM_JOINED for %s", nick, code)
	}
}

func (h *harness) answer(s *Session, answer string) {
	h.t.Helper()
	nick, _ := s.Nickname()
	h.send(s, protocol.KindAnswer, nick, map[string]any{"answer": answer})
}

func (h *harness) room(code string) *Room {
	h.t.Helper()
	room, ok := h.d.Rooms().Get(code)
	if !ok {
		h.t.Fatalf("room %s not registered", code)
	}
	return room
}

// drain returns everything queued for s without blocking.
func drain(s *Session) []protocol.Envelope {
	var out []protocol.Envelope
	for {
		select {
		case env, ok := <-s.Outbox():
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func ofType(envs []protocol.Envelope, kind string) []protocol.Envelope {
	var out []protocol.Envelope
	for _, env := range envs {
		if env.Type == kind {
			out = append(out, env)
		}
	}
	return out
}

func kinds(envs []protocol.Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, env := range envs {
		out = append(out, env.Type)
	}
	return out
}

func notice(t *testing.T, env protocol.Envelope) string {
	t.Helper()
	n, ok := env.Data.(protocol.Notice)
	if !ok {
		t.Fatalf("expected notice payload on %s, got %T", env.Type, env.Data)
	}
	return n.Message
}
