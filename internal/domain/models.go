package domain

import (
	"fmt"
	"strings"
)

// QuestionKind tags a question record.
type QuestionKind string

const (
	KindMCQ   QuestionKind = "mcq"
	KindShort QuestionKind = "short"
)

// Question is a single validated quiz record. Options is only populated for mcq.
type Question struct {
	Kind    QuestionKind `json:"type" yaml:"type"`
	Text    string       `json:"question" yaml:"question"`
	Options []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Answer  string       `json:"answer" yaml:"answer"`
}

// Matches reports whether raw equals the expected answer, ignoring case and
// surrounding whitespace. Both kinds use the same comparison.
func (q Question) Matches(raw string) bool {
	return normalize(raw) == normalize(q.Answer)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate checks the required fields for the record's kind.
func (q Question) Validate() error {
	if q.Kind == "" || q.Text == "" || q.Answer == "" {
		return fmt.Errorf("%w: missing type, question or answer", ErrInvalidQuestion)
	}
	switch q.Kind {
	case KindMCQ:
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: mcq without options", ErrInvalidQuestion)
		}
	case KindShort:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, q.Kind)
	}
	return nil
}

// Topic is a named, ordered question list. Immutable once loaded.
type Topic struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// ValidQuestions returns the records of raw that pass validation along with
// one error per rejected record, indexed from 1 like the source files.
func ValidQuestions(raw []Question) ([]Question, []error) {
	valid := make([]Question, 0, len(raw))
	var rejected []error
	for i, q := range raw {
		if err := q.Validate(); err != nil {
			rejected = append(rejected, fmt.Errorf("question %d: %w", i+1, err))
			continue
		}
		valid = append(valid, q)
	}
	return valid, rejected
}

// RoomStatus is the room lifecycle state. Values are the wire strings.
type RoomStatus string

const (
	StatusWaiting    RoomStatus = "Waiting"
	StatusInProgress RoomStatus = "In Progress"
	StatusFinished   RoomStatus = "Finished"
)

// ScoreEntry is one row of a leaderboard.
type ScoreEntry struct {
	Nickname string
	Score    int
}

// RoomSummary is the lobby view of a room.
type RoomSummary struct {
	Code    string     `json:"code"`
	Topic   string     `json:"topic"`
	Players int        `json:"players"`
	Status  RoomStatus `json:"status"`
}

// RoomDetail is the admin view of a room.
type RoomDetail struct {
	RoomSummary
	Progress string `json:"progress"`
}

// ClientDetail is the admin view of a connected player.
type ClientDetail struct {
	Nickname string `json:"nickname"`
	Address  string `json:"address"`
	Room     string `json:"room"`
	Status   string `json:"status"`
}

// ValidBank validates every topic of raw. Topics left without a valid question
// are dropped; rejected records are reported per topic.
func ValidBank(raw map[string][]Question) (map[string][]Question, []error) {
	bank := make(map[string][]Question, len(raw))
	var rejected []error
	for topic, questions := range raw {
		valid, errs := ValidQuestions(questions)
		for _, err := range errs {
			rejected = append(rejected, fmt.Errorf("topic %s: %w", topic, err))
		}
		if len(valid) == 0 {
			rejected = append(rejected, fmt.Errorf("topic %s: %w: no valid questions", topic, ErrInvalidQuestion))
			continue
		}
		bank[topic] = valid
	}
	return bank, rejected
}
