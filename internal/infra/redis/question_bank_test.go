package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-arena/internal/domain"
)

func TestQuestionBankFillsCache(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := &countingLoader{bank: sampleBank()}
	bank := NewQuestionBank(client, loader, time.Minute)
	ctx := context.Background()

	topics, err := bank.Topics(ctx)
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if len(topics) != 2 || topics[0] != "Go" || topics[1] != "Security" {
		t.Fatalf("unexpected topics %v", topics)
	}
	if !mr.Exists("quiz:bank:topic:Go") {
		t.Fatalf("expected topic cached in redis")
	}

	questions, err := bank.Questions(ctx, "Go")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 1 || questions[0].Answer != "go" {
		t.Fatalf("unexpected questions %+v", questions)
	}
	if got := loader.count(); got != 1 {
		t.Fatalf("expected one load, got %d", got)
	}
}

func TestQuestionBankReloadsAfterExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := &countingLoader{bank: sampleBank()}
	bank := NewQuestionBank(client, loader, time.Minute)
	ctx := context.Background()

	if _, err := bank.Topics(ctx); err != nil {
		t.Fatalf("topics: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := bank.Questions(ctx, "Security"); err != nil {
		t.Fatalf("questions: %v", err)
	}
	if got := loader.count(); got != 2 {
		t.Fatalf("expected reload after ttl, got %d loads", got)
	}
}

func TestQuestionBankUnknownTopic(t *testing.T) {
	_, client := newTestRedis(t)
	bank := NewQuestionBank(client, &countingLoader{bank: sampleBank()}, time.Minute)

	_, err := bank.Questions(context.Background(), "History")
	if !errors.Is(err, domain.ErrTopicNotFound) {
		t.Fatalf("expected ErrTopicNotFound, got %v", err)
	}
}

func TestQuestionBankUnknownTopicServedFromCache(t *testing.T) {
	_, client := newTestRedis(t)
	loader := &countingLoader{bank: sampleBank()}
	bank := NewQuestionBank(client, loader, time.Minute)
	ctx := context.Background()

	if _, err := bank.Topics(ctx); err != nil {
		t.Fatalf("topics: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := bank.Questions(ctx, "History"); !errors.Is(err, domain.ErrTopicNotFound) {
			t.Fatalf("expected ErrTopicNotFound, got %v", err)
		}
	}
	if got := loader.count(); got != 1 {
		t.Fatalf("unknown topics must not reload the bank, got %d loads", got)
	}
}

func TestQuestionBankInvalidate(t *testing.T) {
	mr, client := newTestRedis(t)
	bank := NewQuestionBank(client, &countingLoader{bank: sampleBank()}, 0)
	ctx := context.Background()

	if _, err := bank.Topics(ctx); err != nil {
		t.Fatalf("topics: %v", err)
	}
	if err := bank.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("quiz:bank:topics") || mr.Exists("quiz:bank:topic:Go") {
		t.Fatalf("expected cache keys removed")
	}
}

type countingLoader struct {
	mu    sync.Mutex
	calls int
	bank  map[string][]domain.Question
}

func (l *countingLoader) LoadBank(context.Context) (map[string][]domain.Question, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.bank, nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleBank() map[string][]domain.Question {
	return domain.WithDefaultTopic(map[string][]domain.Question{
		"Go": {{Kind: domain.KindMCQ, Text: "Which keyword starts a goroutine?", Options: []string{"go", "defer"}, Answer: "go"}},
	})
}
