package app

import (
	"sync"

	"github.com/google/uuid"

	"quiz-arena/internal/protocol"
)

// Session is one live connection. The transport drains Outbox and releases
// the connection once it is closed.
type Session struct {
	id   string
	addr string
	seq  uint64

	mu       sync.Mutex
	nickname string
	named    bool
	admin    bool
	room     string
	out      chan protocol.Envelope
	closed   bool
}

func newSession(addr string, seq uint64, mailbox int) *Session {
	if mailbox <= 0 {
		mailbox = 64
	}
	return &Session{
		id:   uuid.NewString(),
		addr: addr,
		seq:  seq,
		out:  make(chan protocol.Envelope, mailbox),
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Addr() string { return s.addr }

// Outbox yields queued envelopes in send order and is closed by Close.
func (s *Session) Outbox() <-chan protocol.Envelope { return s.out }

// Nickname returns the lobby identity; ok is false before JOIN_LOBBY or ADMIN_LOGIN.
func (s *Session) Nickname() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname, s.named
}

func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admin
}

// Room returns the code of the room the session belongs to.
func (s *Session) Room() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room, s.room != ""
}

// Send enqueues env without blocking. A peer whose mailbox is full is closed.
func (s *Session) Send(env protocol.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- env:
	default:
		s.closeLocked()
	}
}

// Close stops delivery. Envelopes queued so far are still flushed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// identify sets the nickname the first time; later calls keep the first one.
func (s *Session) identify(nickname string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.named {
		s.nickname = nickname
		s.named = true
	}
	return s.nickname
}

// promote turns an anonymous session into the admin channel.
func (s *Session) promote(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.named || s.admin {
		return false
	}
	s.nickname = name
	s.named = true
	s.admin = true
	return true
}

// setRoom records code as the current room. A closed session keeps no room.
func (s *Session) setRoom(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.room = code
	return true
}

// clearRoom drops the room reference if it still points at code.
func (s *Session) clearRoom(code string) {
	s.mu.Lock()
	if s.room == code {
		s.room = ""
	}
	s.mu.Unlock()
}
