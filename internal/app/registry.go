package app

import (
	"context"
	"log/slog"
	"math/rand"
	"slices"
	"strconv"
	"sync"
	"time"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/telemetry"
)

const (
	roomCodeMin      = 10000
	roomCodeMax      = 99999
	roomCodeAttempts = 1000
)

// QuestionSource supplies validated question lists per topic.
type QuestionSource interface {
	Topics(ctx context.Context) ([]string, error)
	Questions(ctx context.Context, topic string) ([]domain.Question, error)
}

// RoomObserver is told about room lifecycle changes, outside any lock.
type RoomObserver interface {
	RoomOpened(ctx context.Context, code, topic string)
	RoomClosed(ctx context.Context, code string)
}

// SessionRegistry tracks every live connection and the single admin slot.
type SessionRegistry struct {
	adminName string
	mailbox   int

	mu       sync.Mutex
	seq      uint64
	sessions map[string]*Session
	admin    *Session
}

func NewSessionRegistry(adminName string, mailbox int) *SessionRegistry {
	if adminName == "" {
		adminName = "ADMIN"
	}
	return &SessionRegistry{
		adminName: adminName,
		mailbox:   mailbox,
		sessions:  make(map[string]*Session),
	}
}

// register creates and tracks a session for a newly accepted connection.
func (r *SessionRegistry) register(addr string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	s := newSession(addr, r.seq, r.mailbox)
	r.sessions[s.id] = s
	telemetry.SessionConnected()
	return s
}

// deregister forgets s and frees the admin slot if s held it. It reports
// whether s was still registered.
func (r *SessionRegistry) deregister(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.id]; !ok {
		return false
	}
	delete(r.sessions, s.id)
	if r.admin == s {
		r.admin = nil
	}
	telemetry.SessionDisconnected()
	return true
}

func (r *SessionRegistry) registered(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[s.id] == s
}

// designateAdmin claims the admin slot for s if it is free and name is the
// reserved admin identity.
func (r *SessionRegistry) designateAdmin(s *Session, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.admin != nil || name != r.adminName {
		return domain.ErrAdminUnavailable
	}
	if _, ok := r.sessions[s.id]; !ok || !s.promote(name) {
		return domain.ErrAdminUnavailable
	}
	r.admin = s
	return nil
}

// Admin returns the designated admin session, if any.
func (r *SessionRegistry) Admin() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.admin
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns all sessions in connection order.
func (r *SessionRegistry) List() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b *Session) int { return compareSeq(a.seq, b.seq) })
	return out
}

// findPlayer returns the earliest connected non-admin session using nickname.
func (r *SessionRegistry) findPlayer(nickname string) (*Session, bool) {
	for _, s := range r.List() {
		if s.IsAdmin() {
			continue
		}
		if nick, ok := s.Nickname(); ok && nick == nickname {
			return s, true
		}
	}
	return nil, false
}

// RoomOptions configures rooms created by a RoomRegistry.
type RoomOptions struct {
	Timing   Timing
	Clock    Clock
	Observer RoomObserver
	Logger   *slog.Logger
	// Shuffle reorders a room's private copy of the topic questions.
	Shuffle func([]domain.Question)
}

// RoomRegistry owns every active room, keyed by room code.
type RoomRegistry struct {
	bank     QuestionSource
	timing   Timing
	clock    Clock
	observer RoomObserver
	log      *slog.Logger
	shuffle  func([]domain.Question)

	// onAbandoned is installed by the Dispatcher and handed to every room.
	onAbandoned func(*Room)

	mu    sync.Mutex
	rnd   *rand.Rand
	seq   uint64
	rooms map[string]*Room
}

func NewRoomRegistry(bank QuestionSource, opts RoomOptions) *RoomRegistry {
	r := &RoomRegistry{
		bank:     bank,
		timing:   opts.Timing,
		clock:    opts.Clock,
		observer: opts.Observer,
		log:      opts.Logger,
		shuffle:  opts.Shuffle,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		rooms:    make(map[string]*Room),
	}
	if r.timing == (Timing{}) {
		r.timing = DefaultTiming()
	}
	if r.clock == nil {
		r.clock = SystemClock
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.shuffle == nil {
		r.shuffle = func(qs []domain.Question) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.rnd.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
		}
	}
	return r
}

// Create builds a room for topic with a shuffled snapshot of its questions.
func (r *RoomRegistry) Create(ctx context.Context, topic, owner string) (*Room, error) {
	bank, err := r.bank.Questions(ctx, topic)
	if err != nil {
		return nil, err
	}
	questions := slices.Clone(bank)
	r.shuffle(questions)

	r.mu.Lock()
	code, err := r.nextCodeLocked()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	room := newRoom(code, topic, owner, questions, r.timing, r.clock, r.log)
	room.abandoned = r.onAbandoned
	r.seq++
	room.seq = r.seq
	r.rooms[code] = room
	r.mu.Unlock()

	telemetry.RoomOpened()
	r.log.Info("room: created", "room", code, "topic", topic, "owner", owner)
	if r.observer != nil {
		r.observer.RoomOpened(ctx, code, topic)
	}
	return room, nil
}

func (r *RoomRegistry) nextCodeLocked() (string, error) {
	for i := 0; i < roomCodeAttempts; i++ {
		code := strconv.Itoa(roomCodeMin + r.rnd.Intn(roomCodeMax-roomCodeMin+1))
		if _, taken := r.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", domain.ErrRoomCodesExhausted
}

// Get looks up an active room.
func (r *RoomRegistry) Get(code string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	return room, ok
}

// Delete removes the room with code if cond, evaluated under the room lock,
// holds. It returns the members detached from the room.
func (r *RoomRegistry) Delete(ctx context.Context, code string, cond func(*Room) bool) (*Room, []*Session, error) {
	room, ok := r.Get(code)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	members, ok := r.remove(ctx, room, cond)
	if !ok {
		return room, nil, domain.ErrRoomNotFound
	}
	return room, members, nil
}

// remove deletes room if it is still registered and cond holds.
func (r *RoomRegistry) remove(ctx context.Context, room *Room, cond func(*Room) bool) ([]*Session, bool) {
	r.mu.Lock()
	if r.rooms[room.code] != room {
		r.mu.Unlock()
		return nil, false
	}
	members, ok := room.close(cond)
	if ok {
		delete(r.rooms, room.code)
	}
	r.mu.Unlock()

	if !ok {
		return nil, false
	}
	telemetry.RoomClosed()
	r.log.Info("room: deleted", "room", room.code, "members", len(members))
	if r.observer != nil {
		r.observer.RoomClosed(ctx, room.code)
	}
	return members, true
}

// List returns the active rooms in creation order.
func (r *RoomRegistry) List() []*Room {
	r.mu.Lock()
	out := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b *Room) int { return compareSeq(a.seq, b.seq) })
	return out
}

func (r *RoomRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Summaries is the lobby snapshot of every active room.
func (r *RoomRegistry) Summaries() []domain.RoomSummary {
	rooms := r.List()
	out := make([]domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.summary())
	}
	return out
}

// Details is the admin snapshot of every active room.
func (r *RoomRegistry) Details() []domain.RoomDetail {
	rooms := r.List()
	out := make([]domain.RoomDetail, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.detail())
	}
	return out
}

func compareSeq(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
