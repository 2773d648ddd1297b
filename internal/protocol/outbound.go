package protocol

import (
	"encoding/json"

	"quiz-arena/internal/domain"
)

// Outbound kinds.
const (
	KindLobbyInfo         = "LOBBY_INFO"
	KindRoomCreated       = "ROOM_CREATED"
	KindCreateError       = "CREATE_ERROR"
	KindRoomJoined        = "ROOM_JOINED"
	KindJoinError         = "JOIN_ERROR"
	KindUserJoined        = "USER_JOINED"
	KindUserLeft          = "USER_LEFT"
	KindQuestion          = "QUESTION"
	KindScoreUpdate       = "SCORE_UPDATE"
	KindLeaderboard       = "LEADERBOARD"
	KindQuizEnd           = "QUIZ_END"
	KindRoomDeleted       = "ROOM_DELETED"
	KindKicked            = "KICKED"
	KindAdminLoginSuccess = "ADMIN_LOGIN_SUCCESS"
	KindAdminLoginError   = "ADMIN_LOGIN_ERROR"
	KindAdminError        = "ADMIN_ERROR"
	KindAdminUpdate       = "ADMIN_UPDATE"
	KindServerShutdown    = "SERVER_SHUTDOWN"
)

// Notice is the payload of every message-only envelope (errors, chat, notices).
type Notice struct {
	Message string `json:"message"`
}

type LobbyInfo struct {
	Rooms  []domain.RoomSummary `json:"rooms"`
	Topics []string             `json:"topics"`
}

type RoomCreated struct {
	RoomCode string `json:"room_code"`
	Topic    string `json:"topic"`
}

type RoomJoined struct {
	Topic   string            `json:"topic"`
	Players []string          `json:"players"`
	Status  domain.RoomStatus `json:"status"`
}

// Membership is the payload of USER_JOINED and USER_LEFT.
type Membership struct {
	User    string   `json:"user"`
	Players []string `json:"players"`
}

type Question struct {
	Number    int                 `json:"question_num"`
	Total     int                 `json:"total_questions"`
	Text      string              `json:"question"`
	Kind      domain.QuestionKind `json:"type"`
	Options   []string            `json:"options"`
	TimeLimit int                 `json:"time_limit"`
}

type ScoreUpdate struct {
	Correct       bool   `json:"correct"`
	Points        int    `json:"points"`
	CorrectAnswer string `json:"correct_answer"`
}

// Scores encodes as an array of [nickname, score] pairs.
type Scores []domain.ScoreEntry

func (s Scores) MarshalJSON() ([]byte, error) {
	pairs := make([][2]any, 0, len(s))
	for _, e := range s {
		pairs = append(pairs, [2]any{e.Nickname, e.Score})
	}
	return json.Marshal(pairs)
}

type Leaderboard struct {
	Scores  Scores `json:"scores"`
	IsFinal bool   `json:"is_final"`
}

type QuizEnd struct {
	FinalScores Scores `json:"final_scores"`
}

type AdminUpdate struct {
	Clients     []domain.ClientDetail `json:"clients"`
	Rooms       []domain.RoomDetail   `json:"rooms"`
	ClientCount int                   `json:"client_count"`
	RoomCount   int                   `json:"room_count"`
}

// FromServer builds a SERVER-originated envelope.
func FromServer(kind, roomCode string, data any) Envelope {
	return Envelope{Type: kind, User: UserServer, RoomCode: roomCode, Data: data}
}

// FromAdmin builds an ADMIN-originated envelope.
func FromAdmin(kind, roomCode string, data any) Envelope {
	return Envelope{Type: kind, User: UserAdmin, RoomCode: roomCode, Data: data}
}
