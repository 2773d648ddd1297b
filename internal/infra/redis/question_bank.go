package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-arena/internal/domain"
)

// BankLoader fetches every topic's questions from a backing store.
type BankLoader interface {
	LoadBank(ctx context.Context) (map[string][]domain.Question, error)
}

// QuestionBank caches validated topics in Redis and falls back to a loader on
// a cache miss. Layout:
//
//	SADD quiz:bank:topics {topic}
//	SET  quiz:bank:topic:{topic} {json question list}
type QuestionBank struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	log    *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    slog.Default(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) Topics(ctx context.Context) ([]string, error) {
	topics, err := b.client.SMembers(ctx, topicsKey).Result()
	if err == nil && len(topics) > 0 {
		sort.Strings(topics)
		return topics, nil
	}
	if err != nil {
		b.log.Warn("bank: redis read failed", "key", topicsKey, "error", err)
	}

	bank, err := b.fill(ctx)
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

func (b *QuestionBank) Questions(ctx context.Context, topic string) ([]domain.Question, error) {
	raw, err := b.client.Get(ctx, topicKey(topic)).Bytes()
	if err == nil {
		var questions []domain.Question
		if err := json.Unmarshal(raw, &questions); err == nil {
			return questions, nil
		}
		b.log.Warn("bank: corrupt cache entry", "topic", topic)
	} else if !errors.Is(err, redis.Nil) {
		b.log.Warn("bank: redis read failed", "topic", topic, "error", err)
	} else if b.knownMissing(ctx, topic) {
		return nil, domain.ErrTopicNotFound
	}

	bank, err := b.fill(ctx)
	if err != nil {
		return nil, err
	}
	questions, ok := bank[topic]
	if !ok {
		return nil, domain.ErrTopicNotFound
	}
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	return out, nil
}

// knownMissing reports whether the cached topic set is populated and lacks
// topic, so an unknown name is answered without reloading the bank.
func (b *QuestionBank) knownMissing(ctx context.Context, topic string) bool {
	pipe := b.client.Pipeline()
	count := pipe.SCard(ctx, topicsKey)
	member := pipe.SIsMember(ctx, topicsKey, topic)
	if _, err := pipe.Exec(ctx); err != nil {
		return false
	}
	return count.Val() > 0 && !member.Val()
}

// Invalidate drops the cached bank so the next read goes to the loader.
func (b *QuestionBank) Invalidate(ctx context.Context) error {
	topics, err := b.client.SMembers(ctx, topicsKey).Result()
	if err != nil {
		return fmt.Errorf("read topics: %w", err)
	}
	keys := []string{topicsKey}
	for _, topic := range topics {
		keys = append(keys, topicKey(topic))
	}
	return b.client.Del(ctx, keys...).Err()
}

// fill loads the bank once per concurrent miss and writes it through to Redis.
// Cache write failures are logged; the loaded bank is still served.
func (b *QuestionBank) fill(ctx context.Context) (map[string][]domain.Question, error) {
	result, err, _ := b.sf.Do("bank", func() (interface{}, error) {
		raw, err := b.loader.LoadBank(ctx)
		if err != nil {
			return nil, err
		}
		bank, rejected := domain.ValidBank(raw)
		for _, err := range rejected {
			b.log.Warn("bank: rejected question", "error", err)
		}

		ttl := b.ttlWithJitter()
		pipe := b.client.TxPipeline()
		pipe.Del(ctx, topicsKey)
		for topic, questions := range bank {
			payload, err := json.Marshal(questions)
			if err != nil {
				return nil, fmt.Errorf("encode topic %s: %w", topic, err)
			}
			pipe.Set(ctx, topicKey(topic), payload, ttl)
			pipe.SAdd(ctx, topicsKey, topic)
		}
		if ttl > 0 {
			pipe.Expire(ctx, topicsKey, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			b.log.Warn("bank: redis write failed", "error", err)
		}
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string][]domain.Question), nil
}

const topicsKey = "quiz:bank:topics"

func topicKey(topic string) string {
	return "quiz:bank:topic:" + topic
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
