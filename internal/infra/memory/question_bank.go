package memory

import (
	"context"
	"log/slog"
	"math/rand"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-arena/internal/domain"
)

// BankLoader fetches every topic's questions from a backing store.
type BankLoader interface {
	LoadBank(ctx context.Context) (map[string][]domain.Question, error)
}

// QuestionBank caches the validated bank with a TTL so edits to the backing
// store are picked up without a restart. A zero TTL caches forever.
type QuestionBank struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	log    *slog.Logger

	mu        sync.RWMutex
	topics    map[string][]domain.Question
	expiresAt time.Time

	rndMu sync.Mutex
}

func NewQuestionBank(loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		log:    slog.Default(),
	}
}

// Topics lists the topic names in alphabetical order.
func (b *QuestionBank) Topics(ctx context.Context) ([]string, error) {
	bank, err := b.bank(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(bank))
	for name := range bank {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Questions returns a copy of the topic's question list.
func (b *QuestionBank) Questions(ctx context.Context, topic string) ([]domain.Question, error) {
	bank, err := b.bank(ctx)
	if err != nil {
		return nil, err
	}
	questions, ok := bank[topic]
	if !ok {
		return nil, domain.ErrTopicNotFound
	}
	return slices.Clone(questions), nil
}

// Reload drops the cache and loads the bank again.
func (b *QuestionBank) Reload(ctx context.Context) error {
	b.mu.Lock()
	b.topics = nil
	b.mu.Unlock()
	_, err := b.bank(ctx)
	return err
}

func (b *QuestionBank) bank(ctx context.Context) (map[string][]domain.Question, error) {
	if bank, ok := b.cached(); ok {
		return bank, nil
	}

	result, err, _ := b.sf.Do("bank", func() (interface{}, error) {
		if bank, ok := b.cached(); ok {
			return bank, nil
		}

		raw, err := b.loader.LoadBank(ctx)
		if err != nil {
			return nil, err
		}
		bank, rejected := domain.ValidBank(raw)
		for _, err := range rejected {
			b.log.Warn("bank: rejected question", "error", err)
		}

		ttl := b.ttlWithJitter()
		b.mu.Lock()
		b.topics = bank
		b.expiresAt = b.clock().Add(ttl)
		b.mu.Unlock()
		b.log.Info("bank: loaded", "topics", len(bank))
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string][]domain.Question), nil
}

func (b *QuestionBank) cached() (map[string][]domain.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.topics == nil {
		return nil, false
	}
	if b.ttl > 0 && !b.expiresAt.After(b.clock()) {
		return nil, false
	}
	return b.topics, true
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader serves a fixed bank (tests, demos and the built-in topics).
type StaticBankLoader struct {
	topics map[string][]domain.Question
}

func NewStaticBankLoader(topics map[string][]domain.Question) *StaticBankLoader {
	return &StaticBankLoader{topics: topics}
}

func (l *StaticBankLoader) LoadBank(_ context.Context) (map[string][]domain.Question, error) {
	out := make(map[string][]domain.Question, len(l.topics))
	for name, questions := range l.topics {
		out[name] = slices.Clone(questions)
	}
	return out, nil
}
