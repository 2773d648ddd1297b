// Package protocol defines the newline-delimited JSON wire format shared by
// players, the admin channel and the server.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Sender identities used on system-originated envelopes.
const (
	UserServer = "SERVER"
	UserAdmin  = "ADMIN"
)

// Inbound kinds.
const (
	KindJoinLobby       = "JOIN_LOBBY"
	KindLobbyChat       = "LOBBY_CHAT"
	KindCreateRoom      = "CREATE_ROOM"
	KindJoinRoom        = "JOIN_ROOM"
	KindStartQuiz       = "START_QUIZ"
	KindAnswer          = "ANSWER"
	KindLeaveRoom       = "LEAVE_ROOM"
	KindDeleteRoom      = "DELETE_ROOM"
	KindRoomChat        = "ROOM_CHAT"
	KindAdminLogin      = "ADMIN_LOGIN"
	KindAdminKick       = "ADMIN_KICK"
	KindAdminDeleteRoom = "ADMIN_DELETE_ROOM"
	KindAdminBroadcast  = "ADMIN_BROADCAST"
	KindAdminMessage    = "ADMIN_MESSAGE"
	KindAdminForceStart = "ADMIN_FORCE_START"
)

// ErrMalformed is returned for frames that are not a valid envelope.
var ErrMalformed = errors.New("malformed frame")

// Envelope is the outbound record. Data holds one of the payload types below.
type Envelope struct {
	Type     string `json:"type"`
	User     string `json:"user"`
	RoomCode string `json:"room_code,omitempty"`
	Data     any    `json:"data"`
}

// Encode marshals env followed by the frame delimiter.
func Encode(env Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", env.Type, err)
	}
	return append(b, '\n'), nil
}

// Message is a decoded inbound variant.
type Message interface {
	Kind() string
}

// Request is a decoded inbound frame.
type Request struct {
	User     string
	RoomCode string
	Message  Message
}

type (
	JoinLobby  struct{}
	LobbyChat  struct{ Message string }
	CreateRoom struct{ Topic string }
	JoinRoom   struct{ RoomCode string }
	StartQuiz  struct{}
	Answer     struct{ Answer string }
	LeaveRoom  struct{}
	DeleteRoom struct{}
	RoomChat   struct{ Message string }

	AdminLogin      struct{}
	AdminKick       struct{ Nickname string }
	AdminDeleteRoom struct{ RoomCode string }
	AdminBroadcast  struct{ RoomCode, Message string }
	AdminMessage    struct{ Nickname, Message string }
	AdminForceStart struct{ RoomCode string }

	// Unrecognized carries a type tag the server does not handle.
	Unrecognized struct{ Type string }
)

func (JoinLobby) Kind() string       { return KindJoinLobby }
func (LobbyChat) Kind() string       { return KindLobbyChat }
func (CreateRoom) Kind() string      { return KindCreateRoom }
func (JoinRoom) Kind() string        { return KindJoinRoom }
func (StartQuiz) Kind() string       { return KindStartQuiz }
func (Answer) Kind() string          { return KindAnswer }
func (LeaveRoom) Kind() string       { return KindLeaveRoom }
func (DeleteRoom) Kind() string      { return KindDeleteRoom }
func (RoomChat) Kind() string        { return KindRoomChat }
func (AdminLogin) Kind() string      { return KindAdminLogin }
func (AdminKick) Kind() string       { return KindAdminKick }
func (AdminDeleteRoom) Kind() string { return KindAdminDeleteRoom }
func (AdminBroadcast) Kind() string  { return KindAdminBroadcast }
func (AdminMessage) Kind() string    { return KindAdminMessage }
func (AdminForceStart) Kind() string { return KindAdminForceStart }
func (u Unrecognized) Kind() string  { return u.Type }

// IsAdmin reports whether m may only be sent by the admin channel.
func IsAdmin(m Message) bool {
	switch m.(type) {
	case AdminKick, AdminDeleteRoom, AdminBroadcast, AdminMessage, AdminForceStart:
		return true
	}
	return false
}

type inboundEnvelope struct {
	Type     string          `json:"type"`
	User     string          `json:"user"`
	RoomCode string          `json:"room_code"`
	Data     json.RawMessage `json:"data"`
}

type inboundData struct {
	Message  string `json:"message"`
	Topic    string `json:"topic"`
	RoomCode string `json:"room_code"`
	Answer   string `json:"answer"`
	Nickname string `json:"nickname"`
}

// Decode parses one frame. Payload fields of the wrong JSON type make the
// whole frame malformed.
func Decode(frame []byte) (Request, error) {
	frame = bytes.TrimSpace(frame)
	var env inboundEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Request{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	var d inboundData
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Request{}, fmt.Errorf("%w: %s data: %v", ErrMalformed, env.Type, err)
		}
	}

	req := Request{User: env.User, RoomCode: env.RoomCode}
	switch env.Type {
	case KindJoinLobby:
		req.Message = JoinLobby{}
	case KindLobbyChat:
		req.Message = LobbyChat{Message: d.Message}
	case KindCreateRoom:
		req.Message = CreateRoom{Topic: d.Topic}
	case KindJoinRoom:
		req.Message = JoinRoom{RoomCode: d.RoomCode}
	case KindStartQuiz:
		req.Message = StartQuiz{}
	case KindAnswer:
		req.Message = Answer{Answer: d.Answer}
	case KindLeaveRoom:
		req.Message = LeaveRoom{}
	case KindDeleteRoom:
		req.Message = DeleteRoom{}
	case KindRoomChat:
		req.Message = RoomChat{Message: d.Message}
	case KindAdminLogin:
		req.Message = AdminLogin{}
	case KindAdminKick:
		req.Message = AdminKick{Nickname: d.Nickname}
	case KindAdminDeleteRoom:
		req.Message = AdminDeleteRoom{RoomCode: d.RoomCode}
	case KindAdminBroadcast:
		req.Message = AdminBroadcast{RoomCode: d.RoomCode, Message: d.Message}
	case KindAdminMessage:
		req.Message = AdminMessage{Nickname: d.Nickname, Message: d.Message}
	case KindAdminForceStart:
		req.Message = AdminForceStart{RoomCode: d.RoomCode}
	default:
		req.Message = Unrecognized{Type: env.Type}
	}
	return req, nil
}
