package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/protocol"
)

func TestDecodeVariants(t *testing.T) {
	cases := []struct {
		frame string
		want  protocol.Message
	}{
		{`{"type":"JOIN_LOBBY","user":"alice","data":{}}`, protocol.JoinLobby{}},
		{`{"type":"LOBBY_CHAT","user":"alice","data":{"message":"hi"}}`, protocol.LobbyChat{Message: "hi"}},
		{`{"type":"CREATE_ROOM","user":"alice","data":{"topic":"Linux"}}`, protocol.CreateRoom{Topic: "Linux"}},
		{`{"type":"JOIN_ROOM","user":"alice","data":{"room_code":"12345"}}`, protocol.JoinRoom{RoomCode: "12345"}},
		{`{"type":"START_QUIZ","user":"alice","room_code":"12345","data":{}}`, protocol.StartQuiz{}},
		{`{"type":"ANSWER","user":"alice","data":{"answer":"22"}}`, protocol.Answer{Answer: "22"}},
		{`{"type":"LEAVE_ROOM","user":"alice"}`, protocol.LeaveRoom{}},
		{`{"type":"DELETE_ROOM","user":"alice","data":null}`, protocol.DeleteRoom{}},
		{`{"type":"ROOM_CHAT","user":"alice","data":{"message":"gl"}}`, protocol.RoomChat{Message: "gl"}},
		{`{"type":"ADMIN_LOGIN","user":"ADMIN","data":{}}`, protocol.AdminLogin{}},
		{`{"type":"ADMIN_KICK","user":"ADMIN","data":{"nickname":"bob"}}`, protocol.AdminKick{Nickname: "bob"}},
		{`{"type":"ADMIN_DELETE_ROOM","user":"ADMIN","data":{"room_code":"12345"}}`, protocol.AdminDeleteRoom{RoomCode: "12345"}},
		{`{"type":"ADMIN_BROADCAST","user":"ADMIN","data":{"room_code":"12345","message":"hey"}}`, protocol.AdminBroadcast{RoomCode: "12345", Message: "hey"}},
		{`{"type":"ADMIN_MESSAGE","user":"ADMIN","data":{"nickname":"bob","message":"hey"}}`, protocol.AdminMessage{Nickname: "bob", Message: "hey"}},
		{`{"type":"ADMIN_FORCE_START","user":"ADMIN","data":{"room_code":"12345"}}`, protocol.AdminForceStart{RoomCode: "12345"}},
		{`{"type":"DANCE","user":"alice","data":{}}`, protocol.Unrecognized{Type: "DANCE"}},
	}
	for _, tc := range cases {
		req, err := protocol.Decode([]byte(tc.frame))
		require.NoError(t, err, tc.frame)
		require.Equal(t, tc.want, req.Message, tc.frame)
	}
}

func TestDecodeKeepsEnvelopeFields(t *testing.T) {
	req, err := protocol.Decode([]byte("  {\"type\":\"START_QUIZ\",\"user\":\"alice\",\"room_code\":\"54321\"}\r\n"))
	require.NoError(t, err)
	require.Equal(t, "alice", req.User)
	require.Equal(t, "54321", req.RoomCode)
	require.Equal(t, protocol.KindStartQuiz, req.Message.Kind())
}

func TestDecodeMalformed(t *testing.T) {
	for _, frame := range []string{
		`{not json`,
		`{"user":"alice","data":{}}`,
		`{"type":"ANSWER","user":"alice","data":{"answer":22}}`,
		`{"type":"CREATE_ROOM","user":"alice","data":"Linux"}`,
		`[]`,
	} {
		_, err := protocol.Decode([]byte(frame))
		require.True(t, errors.Is(err, protocol.ErrMalformed), "frame %s: %v", frame, err)
	}
}

func TestIsAdmin(t *testing.T) {
	require.True(t, protocol.IsAdmin(protocol.AdminKick{}))
	require.True(t, protocol.IsAdmin(protocol.AdminForceStart{}))
	require.False(t, protocol.IsAdmin(protocol.AdminLogin{}))
	require.False(t, protocol.IsAdmin(protocol.RoomChat{}))
}

func TestEncodeFramesWithNewline(t *testing.T) {
	frame, err := protocol.Encode(protocol.FromServer(protocol.KindRoomCreated, "", protocol.RoomCreated{RoomCode: "12345", Topic: "Linux"}))
	require.NoError(t, err)
	require.Equal(t, byte('\n'), frame[len(frame)-1])
	require.JSONEq(t, `{"type":"ROOM_CREATED","user":"SERVER","data":{"room_code":"12345","topic":"Linux"}}`, string(frame))
}

func TestScoresEncodeAsPairs(t *testing.T) {
	raw, err := json.Marshal(protocol.QuizEnd{FinalScores: protocol.Scores{
		{Nickname: "alice", Score: 1450},
		{Nickname: "bob", Score: 0},
	}})
	require.NoError(t, err)
	require.JSONEq(t, `{"final_scores":[["alice",1450],["bob",0]]}`, string(raw))

	raw, err = json.Marshal(protocol.Leaderboard{Scores: protocol.Scores{}})
	require.NoError(t, err)
	require.JSONEq(t, `{"scores":[],"is_final":false}`, string(raw))
}

func TestAdminEnvelope(t *testing.T) {
	env := protocol.FromAdmin(protocol.KindRoomDeleted, "12345", protocol.Notice{Message: "bye"})
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"ROOM_DELETED","user":"ADMIN","room_code":"12345","data":{"message":"bye"}}`, string(raw))

	summary, err := json.Marshal(domain.RoomSummary{Code: "12345", Topic: "Linux", Players: 2, Status: domain.StatusInProgress})
	require.NoError(t, err)
	require.JSONEq(t, `{"code":"12345","topic":"Linux","players":2,"status":"In Progress"}`, string(summary))
}
