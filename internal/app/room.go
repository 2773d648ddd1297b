package app

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/protocol"
	"quiz-arena/internal/telemetry"
)

const noAnswer = "No Answer"

// Timing configures one question cycle.
type Timing struct {
	// TimeLimit is the answer window announced to players and used for the speed bonus.
	TimeLimit time.Duration
	// Grace is waited beyond TimeLimit before unanswered players time out.
	Grace time.Duration
	// Pause separates the interim leaderboard from the next question.
	Pause time.Duration
}

// DefaultTiming is 30s to answer, 5s grace and a 3s leaderboard pause.
func DefaultTiming() Timing {
	return Timing{TimeLimit: 30 * time.Second, Grace: 5 * time.Second, Pause: 3 * time.Second}
}

type member struct {
	s    *Session
	nick string
}

type answerRecord struct {
	raw     string
	correct bool
	points  int
}

// Room is one quiz game. All state below mu is guarded by it, including
// state touched from timer callbacks.
type Room struct {
	code      string
	seq       uint64
	topic     string
	owner     string
	questions []domain.Question
	timing    Timing
	clock     Clock
	log       *slog.Logger

	// abandoned is called without the lock held once the room no longer
	// needs to exist.
	abandoned func(*Room)

	mu        sync.Mutex
	status    domain.RoomStatus
	closed    bool
	members   []member
	scores    map[string]int
	index     int
	started   time.Time
	answers   map[string]answerRecord
	concluded bool
	epoch     uint64
	timer     Timer
}

func newRoom(code, topic, owner string, questions []domain.Question, timing Timing, clock Clock, log *slog.Logger) *Room {
	return &Room{
		code:      code,
		topic:     topic,
		owner:     owner,
		questions: questions,
		timing:    timing,
		clock:     clock,
		log:       log.With("room", code),
		status:    domain.StatusWaiting,
		scores:    make(map[string]int),
		answers:   make(map[string]answerRecord),
	}
}

func (r *Room) Code() string  { return r.code }
func (r *Room) Topic() string { return r.topic }

func (r *Room) Status() domain.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Players returns member nicknames in join order.
func (r *Room) Players() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playersLocked()
}

// Scores returns the cumulative scores keyed by nickname.
func (r *Room) Scores() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.scores))
	for k, v := range r.scores {
		out[k] = v
	}
	return out
}

// join adds s while the room is waiting. Joining again from the same session
// only repeats the ROOM_JOINED reply.
func (r *Room) join(s *Session) error {
	nick, _ := s.Nickname()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.ErrRoomNotFound
	}
	if r.memberIndexLocked(s) >= 0 {
		s.Send(r.joinedLocked())
		return nil
	}
	if r.status != domain.StatusWaiting {
		return domain.ErrRoomNotJoinable
	}
	if _, taken := r.scores[nick]; taken {
		return domain.ErrNicknameTaken
	}

	if !s.setRoom(r.code) {
		return domain.ErrSessionClosed
	}
	r.members = append(r.members, member{s: s, nick: nick})
	r.scores[nick] = 0

	s.Send(r.joinedLocked())
	r.broadcastLocked(protocol.FromServer(protocol.KindUserJoined, r.code, protocol.Membership{
		User:    nick,
		Players: r.playersLocked(),
	}))
	return nil
}

// leave removes s in any status. It reports whether s was a member.
func (r *Room) leave(s *Session) bool {
	r.mu.Lock()
	i := r.memberIndexLocked(s)
	if i < 0 {
		r.mu.Unlock()
		return false
	}
	nick := r.members[i].nick
	r.members = slices.Delete(r.members, i, i+1)
	delete(r.scores, nick)
	delete(r.answers, nick)
	s.clearRoom(r.code)

	if len(r.members) > 0 {
		r.broadcastLocked(protocol.FromServer(protocol.KindUserLeft, r.code, protocol.Membership{
			User:    nick,
			Players: r.playersLocked(),
		}))
	}

	var abandoned bool
	if r.status == domain.StatusInProgress {
		switch {
		case len(r.members) == 0:
			r.stopLocked()
			r.status = domain.StatusFinished
			abandoned = true
			r.log.Info("room: game stopped, all players left")
		case !r.concluded && r.allAnsweredLocked():
			r.concludeLocked()
		}
	} else {
		abandoned = len(r.members) <= 1
	}
	r.mu.Unlock()

	if abandoned && r.abandoned != nil {
		r.abandoned(r)
	}
	return true
}

// start begins the question cycle at the first question.
func (r *Room) start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.status != domain.StatusWaiting || len(r.members) == 0 || len(r.questions) == 0 {
		return domain.ErrCannotStart
	}
	r.status = domain.StatusInProgress
	r.index = 0
	r.log.Info("room: quiz started", "players", len(r.members), "questions", len(r.questions))
	r.askLocked()
	return nil
}

// submit records the first answer of s for the current question. Anything
// else is ignored.
func (r *Room) submit(s *Session, raw string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.status != domain.StatusInProgress || r.concluded {
		return
	}
	i := r.memberIndexLocked(s)
	if i < 0 {
		return
	}
	nick := r.members[i].nick
	if _, done := r.answers[nick]; done {
		return
	}

	q := r.questions[r.index]
	correct := q.Matches(raw)
	points := Points(correct, r.clock.Now().Sub(r.started), r.timing.TimeLimit)
	r.scores[nick] += points
	r.answers[nick] = answerRecord{raw: raw, correct: correct, points: points}
	telemetry.AnswerSubmitted(correct)

	s.Send(protocol.FromServer(protocol.KindScoreUpdate, r.code, protocol.ScoreUpdate{
		Correct:       correct,
		Points:        points,
		CorrectAnswer: q.Answer,
	}))

	if r.allAnsweredLocked() {
		r.concludeLocked()
	}
}

// chat relays a player message to everyone else in the room.
func (r *Room) chat(from *Session, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.memberIndexLocked(from)
	if i < 0 {
		return
	}
	env := protocol.Envelope{
		Type:     protocol.KindRoomChat,
		User:     r.members[i].nick,
		RoomCode: r.code,
		Data:     protocol.Notice{Message: text},
	}
	for _, m := range r.members {
		if m.s != from {
			m.s.Send(env)
		}
	}
}

// broadcast delivers env to every member.
func (r *Room) broadcast(env protocol.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(env)
}

// close marks the room deleted if cond holds, cancels pending timers and
// detaches every member. It returns the detached members.
func (r *Room) close(cond func(*Room) bool) ([]*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || (cond != nil && !cond(r)) {
		return nil, false
	}
	r.closed = true
	r.stopLocked()

	out := make([]*Session, 0, len(r.members))
	for _, m := range r.members {
		m.s.clearRoom(r.code)
		out = append(out, m.s)
	}
	r.members = nil
	return out, true
}

func (r *Room) summary() domain.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryLocked()
}

func (r *Room) detail() domain.RoomDetail {
	r.mu.Lock()
	defer r.mu.Unlock()

	progress := "N/A"
	if r.status == domain.StatusInProgress {
		progress = fmt.Sprintf("%d/%d", r.index+1, len(r.questions))
	}
	return domain.RoomDetail{RoomSummary: r.summaryLocked(), Progress: progress}
}

func (r *Room) summaryLocked() domain.RoomSummary {
	return domain.RoomSummary{
		Code:    r.code,
		Topic:   r.topic,
		Players: len(r.members),
		Status:  r.status,
	}
}

// abandonedLocked reports whether the room may be deleted for lack of players.
func (r *Room) abandonedLocked() bool {
	return r.status != domain.StatusInProgress && len(r.members) <= 1
}

// askLocked broadcasts the current question and arms its timeout.
func (r *Room) askLocked() {
	q := r.questions[r.index]
	r.started = r.clock.Now()
	r.answers = make(map[string]answerRecord, len(r.members))
	r.concluded = false

	options := q.Options
	if options == nil {
		options = []string{}
	}
	r.broadcastLocked(protocol.FromServer(protocol.KindQuestion, r.code, protocol.Question{
		Number:    r.index + 1,
		Total:     len(r.questions),
		Text:      q.Text,
		Kind:      q.Kind,
		Options:   options,
		TimeLimit: int(r.timing.TimeLimit / time.Second),
	}))
	r.scheduleLocked(r.timing.TimeLimit+r.timing.Grace, r.timeout)
}

// timeout assigns "No Answer" to everyone still missing and concludes.
func (r *Room) timeout(epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || epoch != r.epoch || r.status != domain.StatusInProgress || r.concluded {
		return
	}
	q := r.questions[r.index]
	for _, m := range r.members {
		if _, ok := r.answers[m.nick]; ok {
			continue
		}
		r.answers[m.nick] = answerRecord{raw: noAnswer}
		m.s.Send(protocol.FromServer(protocol.KindScoreUpdate, r.code, protocol.ScoreUpdate{
			Correct:       false,
			Points:        0,
			CorrectAnswer: q.Answer,
		}))
	}
	r.concludeLocked()
}

// concludeLocked is the single transition out of an open question. The
// concluded flag makes the timeout and full-submission paths exclusive.
func (r *Room) concludeLocked() {
	r.concluded = true
	r.stopLocked()
	r.broadcastLocked(protocol.FromServer(protocol.KindLeaderboard, r.code, protocol.Leaderboard{
		Scores:  r.rankingLocked(),
		IsFinal: false,
	}))
	r.scheduleLocked(r.timing.Pause, r.advance)
}

// advance moves to the next question or finishes the quiz.
func (r *Room) advance(epoch uint64) {
	r.mu.Lock()
	if r.closed || epoch != r.epoch || r.status != domain.StatusInProgress {
		r.mu.Unlock()
		return
	}
	r.index++
	if r.index < len(r.questions) {
		r.askLocked()
		r.mu.Unlock()
		return
	}
	r.finishLocked()
	empty := len(r.members) == 0
	r.mu.Unlock()

	if empty && r.abandoned != nil {
		r.abandoned(r)
	}
}

func (r *Room) finishLocked() {
	r.status = domain.StatusFinished
	r.stopLocked()
	r.index = len(r.questions) - 1
	r.broadcastLocked(protocol.FromServer(protocol.KindQuizEnd, r.code, protocol.QuizEnd{
		FinalScores: r.rankingLocked(),
	}))
	r.log.Info("room: quiz finished", "players", len(r.members))
}

// scheduleLocked arms f for d. Each schedule gets a fresh epoch so that a
// callback already in flight when superseded becomes a no-op.
func (r *Room) scheduleLocked(d time.Duration, f func(epoch uint64)) {
	r.epoch++
	epoch := r.epoch
	r.timer = r.clock.AfterFunc(d, func() { f(epoch) })
}

func (r *Room) stopLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.epoch++
}

func (r *Room) allAnsweredLocked() bool {
	for _, m := range r.members {
		if _, ok := r.answers[m.nick]; !ok {
			return false
		}
	}
	return true
}

// rankingLocked sorts by score descending, keeping join order on ties.
func (r *Room) rankingLocked() protocol.Scores {
	out := make(protocol.Scores, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, domain.ScoreEntry{Nickname: m.nick, Score: r.scores[m.nick]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (r *Room) joinedLocked() protocol.Envelope {
	return protocol.FromServer(protocol.KindRoomJoined, r.code, protocol.RoomJoined{
		Topic:   r.topic,
		Players: r.playersLocked(),
		Status:  r.status,
	})
}

func (r *Room) playersLocked() []string {
	out := make([]string, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.nick)
	}
	return out
}

func (r *Room) memberIndexLocked(s *Session) int {
	return slices.IndexFunc(r.members, func(m member) bool { return m.s == s })
}

// broadcastLocked fans env out over the current membership. Send never
// blocks, so delivery order per peer follows state-change order.
func (r *Room) broadcastLocked(env protocol.Envelope) {
	for _, m := range r.members {
		m.s.Send(env)
	}
}
