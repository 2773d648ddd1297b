package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-arena/internal/domain"
)

func TestQuestionBankCaches(t *testing.T) {
	loader := &countingLoader{BankLoader: NewStaticBankLoader(sampleBank())}
	bank := NewQuestionBank(loader, time.Minute)

	if _, err := bank.Questions(context.Background(), "Go"); err != nil {
		t.Fatalf("questions: %v", err)
	}
	if _, err := bank.Topics(context.Background()); err != nil {
		t.Fatalf("topics: %v", err)
	}
	if got := loader.count(); got != 1 {
		t.Fatalf("expected loader once, got %d", got)
	}
}

func TestQuestionBankExpires(t *testing.T) {
	loader := &countingLoader{BankLoader: NewStaticBankLoader(sampleBank())}
	bank := NewQuestionBank(loader, time.Minute)
	now := time.Unix(1000, 0)
	bank.clock = func() time.Time { return now }

	if _, err := bank.Topics(context.Background()); err != nil {
		t.Fatalf("topics: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := bank.Topics(context.Background()); err != nil {
		t.Fatalf("topics after expiry: %v", err)
	}
	if got := loader.count(); got != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", got)
	}
}

func TestQuestionBankFiltersInvalid(t *testing.T) {
	raw := sampleBank()
	raw["Go"] = append(raw["Go"], domain.Question{Kind: domain.KindMCQ, Text: "no options", Answer: "x"})
	raw["Empty"] = []domain.Question{{Kind: "essay", Text: "?", Answer: "x"}}
	bank := NewQuestionBank(NewStaticBankLoader(raw), 0)

	topics, err := bank.Topics(context.Background())
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if len(topics) != 2 || topics[0] != "Go" || topics[1] != "Networking" {
		t.Fatalf("unexpected topics %v", topics)
	}
	questions, err := bank.Questions(context.Background(), "Go")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected invalid record dropped, got %d questions", len(questions))
	}
}

func TestQuestionBankUnknownTopic(t *testing.T) {
	bank := NewQuestionBank(NewStaticBankLoader(sampleBank()), time.Minute)
	if _, err := bank.Questions(context.Background(), "History"); !errors.Is(err, domain.ErrTopicNotFound) {
		t.Fatalf("expected ErrTopicNotFound, got %v", err)
	}
}

func TestQuestionBankReturnsCopies(t *testing.T) {
	bank := NewQuestionBank(NewStaticBankLoader(sampleBank()), time.Minute)
	first, err := bank.Questions(context.Background(), "Go")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	first[0].Answer = "mutated"

	second, err := bank.Questions(context.Background(), "Go")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if second[0].Answer == "mutated" {
		t.Fatalf("bank leaked its internal slice")
	}
}

func TestQuestionBankLoadError(t *testing.T) {
	boom := errors.New("boom")
	bank := NewQuestionBank(failingLoader{err: boom}, time.Minute)
	if _, err := bank.Topics(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

type countingLoader struct {
	BankLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadBank(ctx context.Context) (map[string][]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.BankLoader.LoadBank(ctx)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type failingLoader struct{ err error }

func (l failingLoader) LoadBank(context.Context) (map[string][]domain.Question, error) {
	return nil, l.err
}

func sampleBank() map[string][]domain.Question {
	return map[string][]domain.Question{
		"Go": {
			{Kind: domain.KindMCQ, Text: "Which keyword starts a goroutine?", Options: []string{"go", "async", "spawn"}, Answer: "go"},
			{Kind: domain.KindShort, Text: "Zero value of an int?", Answer: "0"},
		},
		"Networking": {
			{Kind: domain.KindShort, Text: "Default HTTPS port?", Answer: "443"},
		},
	}
}
