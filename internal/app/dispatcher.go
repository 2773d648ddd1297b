package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/protocol"
	"quiz-arena/internal/telemetry"
)

// Options configures a Dispatcher.
type Options struct {
	// AdminUpdateInterval is the period of ADMIN_UPDATE pushes in Run.
	AdminUpdateInterval time.Duration
	Logger              *slog.Logger
}

// Dispatcher routes decoded frames to the registries and rooms. It keeps no
// state of its own.
type Dispatcher struct {
	sessions *SessionRegistry
	rooms    *RoomRegistry
	bank     QuestionSource
	interval time.Duration
	log      *slog.Logger
}

func NewDispatcher(sessions *SessionRegistry, rooms *RoomRegistry, bank QuestionSource, opts Options) *Dispatcher {
	d := &Dispatcher{
		sessions: sessions,
		rooms:    rooms,
		bank:     bank,
		interval: opts.AdminUpdateInterval,
		log:      opts.Logger,
	}
	if d.interval <= 0 {
		d.interval = 2 * time.Second
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	rooms.onAbandoned = d.dropAbandoned
	return d
}

func (d *Dispatcher) Sessions() *SessionRegistry { return d.sessions }
func (d *Dispatcher) Rooms() *RoomRegistry       { return d.rooms }

// Connect registers a session for a freshly accepted connection.
func (d *Dispatcher) Connect(addr string) *Session {
	s := d.sessions.register(addr)
	d.log.Info("session: connected", "session", s.id, "addr", addr)
	d.pushAdminUpdate()
	return s
}

// Disconnect closes s and removes it from every registry and its room. A
// closed session can no longer enter a room, so frames still buffered behind
// the disconnect cannot leave it behind as a member. It is safe to call more
// than once.
func (d *Dispatcher) Disconnect(ctx context.Context, s *Session) {
	s.Close()
	if !d.sessions.deregister(s) {
		return
	}
	d.leaveRoom(ctx, s)

	nick, _ := s.Nickname()
	d.log.Info("session: disconnected", "session", s.id, "addr", s.addr, "nickname", nick)
	d.pushAdminUpdate()
}

// Handle decodes one frame and dispatches it. Undecodable frames are dropped.
func (d *Dispatcher) Handle(ctx context.Context, s *Session, frame []byte) {
	req, err := protocol.Decode(frame)
	if err != nil {
		d.log.Debug("dispatch: dropped frame", "session", s.id, "error", err)
		return
	}
	d.Dispatch(ctx, s, req)
}

// Dispatch routes req by kind and sender privilege. Requests sent with the
// wrong privilege or in the wrong state are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, req protocol.Request) {
	if s.Closed() || !d.sessions.registered(s) {
		return
	}
	kind := req.Message.Kind()
	if _, ok := req.Message.(protocol.Unrecognized); ok {
		kind = "UNRECOGNIZED"
	}
	telemetry.MessageReceived(kind)

	if _, ok := req.Message.(protocol.AdminLogin); ok {
		d.adminLogin(ctx, s, req.User)
		return
	}
	if s.IsAdmin() {
		d.dispatchAdmin(ctx, s, req.Message)
		return
	}
	if protocol.IsAdmin(req.Message) {
		return
	}
	if _, ok := req.Message.(protocol.JoinLobby); ok {
		d.joinLobby(ctx, s, req.User)
		return
	}
	if _, named := s.Nickname(); !named {
		return
	}

	switch m := req.Message.(type) {
	case protocol.LobbyChat:
		d.lobbyChat(s, m.Message)
	case protocol.CreateRoom:
		d.createRoom(ctx, s, m.Topic)
	case protocol.JoinRoom:
		d.joinRoom(ctx, s, m.RoomCode)
	case protocol.StartQuiz:
		if room, ok := d.currentRoom(s); ok && room.start() == nil {
			d.pushAdminUpdate()
		}
	case protocol.Answer:
		if room, ok := d.currentRoom(s); ok {
			room.submit(s, m.Answer)
			d.pushAdminUpdate()
		}
	case protocol.LeaveRoom:
		if d.leaveRoom(ctx, s) {
			s.Send(d.lobbyInfo(ctx))
			d.pushAdminUpdate()
		}
	case protocol.DeleteRoom:
		d.deleteOwnRoom(ctx, s)
	case protocol.RoomChat:
		if room, ok := d.currentRoom(s); ok {
			room.chat(s, m.Message)
		}
	}
}

func (d *Dispatcher) dispatchAdmin(ctx context.Context, admin *Session, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.AdminKick:
		d.kick(ctx, admin, m.Nickname)
	case protocol.AdminDeleteRoom:
		_, members, err := d.rooms.Delete(ctx, m.RoomCode, nil)
		if err != nil {
			admin.Send(adminError("Room %s not found", m.RoomCode))
			return
		}
		d.log.Info("admin: room deleted", "room", m.RoomCode)
		d.returnToLobby(ctx, members, protocol.FromAdmin(protocol.KindRoomDeleted, m.RoomCode, protocol.Notice{
			Message: fmt.Sprintf("Room %s was deleted by server admin", m.RoomCode),
		}))
	case protocol.AdminBroadcast:
		room, ok := d.rooms.Get(m.RoomCode)
		if !ok {
			admin.Send(adminError("Room %s not found", m.RoomCode))
			return
		}
		room.broadcast(protocol.FromAdmin(protocol.KindRoomChat, m.RoomCode, protocol.Notice{Message: m.Message}))
	case protocol.AdminMessage:
		target, ok := d.sessions.findPlayer(m.Nickname)
		if !ok {
			admin.Send(adminError("Client %s not found", m.Nickname))
			return
		}
		target.Send(protocol.FromAdmin(protocol.KindAdminMessage, "", protocol.Notice{Message: m.Message}))
	case protocol.AdminForceStart:
		room, ok := d.rooms.Get(m.RoomCode)
		if !ok || room.start() != nil {
			admin.Send(adminError("Cannot start quiz in room %s: Invalid status or no players", m.RoomCode))
			return
		}
		d.log.Info("admin: quiz force started", "room", m.RoomCode)
		d.pushAdminUpdate()
	}
}

func (d *Dispatcher) adminLogin(ctx context.Context, s *Session, user string) {
	if s.IsAdmin() {
		return
	}
	if err := d.sessions.designateAdmin(s, user); err != nil {
		d.log.Warn("admin: login rejected", "session", s.id, "addr", s.addr, "error", err)
		s.Send(protocol.FromServer(protocol.KindAdminLoginError, "", protocol.Notice{
			Message: "Admin login failed: Admin already connected or invalid credentials",
		}))
		d.Disconnect(ctx, s)
		return
	}
	d.log.Info("admin: logged in", "session", s.id, "addr", s.addr)
	s.Send(protocol.FromServer(protocol.KindAdminLoginSuccess, "", protocol.Notice{Message: "Admin login successful"}))
	d.pushAdminUpdate()
}

func (d *Dispatcher) kick(ctx context.Context, admin *Session, nickname string) {
	target, ok := d.sessions.findPlayer(nickname)
	if !ok {
		admin.Send(adminError("Client %s not found", nickname))
		return
	}
	d.log.Info("admin: kicked client", "nickname", nickname, "session", target.id)
	target.Send(protocol.FromAdmin(protocol.KindKicked, "", protocol.Notice{Message: "You have been kicked by server admin"}))
	d.Disconnect(ctx, target)
}

func (d *Dispatcher) joinLobby(ctx context.Context, s *Session, user string) {
	if strings.TrimSpace(user) == "" || user == d.sessions.adminName || user == protocol.UserServer {
		return
	}
	s.identify(user)
	d.leaveRoom(ctx, s)
	s.Send(d.lobbyInfo(ctx))
	d.pushAdminUpdate()
}

func (d *Dispatcher) lobbyChat(from *Session, text string) {
	nick, _ := from.Nickname()
	env := protocol.Envelope{Type: protocol.KindLobbyChat, User: nick, Data: protocol.Notice{Message: text}}
	for _, s := range d.sessions.List() {
		if s == from || s.IsAdmin() {
			continue
		}
		if _, named := s.Nickname(); !named {
			continue
		}
		if _, inRoom := s.Room(); inRoom {
			continue
		}
		s.Send(env)
	}
}

func (d *Dispatcher) createRoom(ctx context.Context, s *Session, topic string) {
	nick, _ := s.Nickname()
	room, err := d.rooms.Create(ctx, topic, nick)
	if err != nil {
		msg := fmt.Sprintf("Topic '%s' is not available", topic)
		if !errors.Is(err, domain.ErrTopicNotFound) {
			d.log.Error("room: create failed", "topic", topic, "error", err)
			msg = "Room could not be created"
		}
		s.Send(protocol.FromServer(protocol.KindCreateError, "", protocol.Notice{Message: msg}))
		return
	}
	s.Send(protocol.FromServer(protocol.KindRoomCreated, "", protocol.RoomCreated{RoomCode: room.code, Topic: room.topic}))
	if err := d.enterRoom(ctx, s, room); err != nil {
		d.log.Warn("room: creator could not join", "room", room.code, "error", err)
		d.rooms.remove(ctx, room, func(r *Room) bool { return len(r.members) == 0 })
	}
	d.pushAdminUpdate()
}

func (d *Dispatcher) joinRoom(ctx context.Context, s *Session, code string) {
	room, ok := d.rooms.Get(code)
	if !ok {
		s.Send(joinError("Room %s does not exist", code))
		return
	}
	if cur, in := s.Room(); !in || cur != code {
		if status := room.Status(); status != domain.StatusWaiting {
			s.Send(joinError("Room %s is %s and cannot be joined", code, strings.ToLower(string(status))))
			return
		}
	}

	err := d.enterRoom(ctx, s, room)
	switch {
	case err == nil:
		d.pushAdminUpdate()
	case errors.Is(err, domain.ErrSessionClosed):
	case errors.Is(err, domain.ErrRoomNotFound):
		s.Send(joinError("Room %s does not exist", code))
	case errors.Is(err, domain.ErrNicknameTaken):
		nick, _ := s.Nickname()
		s.Send(joinError("Nickname %s is already in room %s", nick, code))
	default:
		s.Send(joinError("Room %s is %s and cannot be joined", code, strings.ToLower(string(room.Status()))))
	}
}

// enterRoom moves s into room. The previous room is left only once the join
// has succeeded, so a rejected join keeps s where it was.
func (d *Dispatcher) enterRoom(_ context.Context, s *Session, room *Room) error {
	prev, in := s.Room()
	if err := room.join(s); err != nil {
		return err
	}
	if in && prev != room.code {
		if old, ok := d.rooms.Get(prev); ok {
			old.leave(s)
		}
	}
	return nil
}

// leaveRoom takes s out of its current room. It reports whether s was in one.
func (d *Dispatcher) leaveRoom(_ context.Context, s *Session) bool {
	code, in := s.Room()
	if !in {
		return false
	}
	room, ok := d.rooms.Get(code)
	if !ok {
		s.clearRoom(code)
		return true
	}
	room.leave(s)
	return true
}

func (d *Dispatcher) deleteOwnRoom(ctx context.Context, s *Session) {
	code, in := s.Room()
	if !in {
		return
	}
	nick, _ := s.Nickname()
	_, members, err := d.rooms.Delete(ctx, code, func(r *Room) bool {
		return r.status == domain.StatusWaiting && r.owner == nick
	})
	if err != nil {
		return
	}
	d.returnToLobby(ctx, members, protocol.FromServer(protocol.KindRoomDeleted, code, protocol.Notice{
		Message: fmt.Sprintf("Room %s was deleted by %s", code, nick),
	}))
}

// dropAbandoned deletes room if it still qualifies as abandoned and sends any
// remaining member back to the lobby.
func (d *Dispatcher) dropAbandoned(room *Room) {
	ctx := context.Background()
	members, ok := d.rooms.remove(ctx, room, func(r *Room) bool { return r.abandonedLocked() })
	if !ok {
		return
	}
	d.returnToLobby(ctx, members, protocol.FromServer(protocol.KindRoomDeleted, room.code, protocol.Notice{
		Message: fmt.Sprintf("Room %s was closed: not enough players", room.code),
	}))
}

// returnToLobby notifies members of a deleted room. The lobby snapshot is
// taken once, after the deletion, and sent identically to each of them.
func (d *Dispatcher) returnToLobby(ctx context.Context, members []*Session, notice protocol.Envelope) {
	if len(members) > 0 {
		lobby := d.lobbyInfo(ctx)
		for _, s := range members {
			s.Send(notice)
			s.Send(lobby)
		}
	}
	d.pushAdminUpdate()
}

func (d *Dispatcher) currentRoom(s *Session) (*Room, bool) {
	code, in := s.Room()
	if !in {
		return nil, false
	}
	return d.rooms.Get(code)
}

func (d *Dispatcher) lobbyInfo(ctx context.Context) protocol.Envelope {
	topics, err := d.bank.Topics(ctx)
	if err != nil {
		d.log.Error("lobby: load topics failed", "error", err)
		topics = []string{}
	}
	return protocol.FromServer(protocol.KindLobbyInfo, "", protocol.LobbyInfo{
		Rooms:  d.rooms.Summaries(),
		Topics: topics,
	})
}

// Snapshot is the read-only view pushed to the admin channel.
func (d *Dispatcher) Snapshot() protocol.AdminUpdate {
	clients := make([]domain.ClientDetail, 0)
	for _, s := range d.sessions.List() {
		if s.IsAdmin() {
			continue
		}
		c := domain.ClientDetail{Nickname: "Not set", Address: s.addr, Room: "Lobby", Status: "In Lobby"}
		if nick, ok := s.Nickname(); ok {
			c.Nickname = nick
		}
		if code, ok := s.Room(); ok {
			c.Room = code
			c.Status = "In Room"
		}
		clients = append(clients, c)
	}
	rooms := d.rooms.Details()
	return protocol.AdminUpdate{
		Clients:     clients,
		Rooms:       rooms,
		ClientCount: len(clients),
		RoomCount:   len(rooms),
	}
}

func (d *Dispatcher) pushAdminUpdate() {
	admin := d.sessions.Admin()
	if admin == nil {
		return
	}
	admin.Send(protocol.FromServer(protocol.KindAdminUpdate, "", d.Snapshot()))
}

// Run pushes an admin snapshot every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pushAdminUpdate()
		}
	}
}

// Shutdown notifies every connection, closes it and drops all rooms.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	for _, room := range d.rooms.List() {
		d.rooms.remove(ctx, room, nil)
	}
	sessions := d.sessions.List()
	d.log.Info("server: shutting down", "sessions", len(sessions))

	notice := protocol.FromServer(protocol.KindServerShutdown, "", protocol.Notice{Message: "Server is shutting down"})
	for _, s := range sessions {
		s.Send(notice)
		d.sessions.deregister(s)
		s.Close()
	}
}

func adminError(format string, args ...any) protocol.Envelope {
	return protocol.FromServer(protocol.KindAdminError, "", protocol.Notice{Message: fmt.Sprintf(format, args...)})
}

func joinError(format string, args ...any) protocol.Envelope {
	return protocol.FromServer(protocol.KindJoinError, "", protocol.Notice{Message: fmt.Sprintf(format, args...)})
}
