package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-arena/internal/domain"
)

// TopicStore keeps each topic's question list as JSONB in quiz_topics.
type TopicStore struct {
	pool *pgxpool.Pool
}

func NewTopicStore(pool *pgxpool.Pool) *TopicStore {
	return &TopicStore{pool: pool}
}

// LoadBank implements memory.BankLoader. Records are validated by the bank.
func (s *TopicStore) LoadBank(ctx context.Context) (map[string][]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT topic, data FROM quiz_topics ORDER BY topic`)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	defer rows.Close()

	bank := make(map[string][]domain.Question)
	for rows.Next() {
		var (
			topic string
			raw   []byte
		)
		if err := rows.Scan(&topic, &raw); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		var questions []domain.Question
		if err := json.Unmarshal(raw, &questions); err != nil {
			return nil, fmt.Errorf("unmarshal topic %s: %w", topic, err)
		}
		bank[topic] = questions
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	return domain.WithDefaultTopic(bank), nil
}

// Save upserts a topic's question list.
func (s *TopicStore) Save(ctx context.Context, topic string, questions []domain.Question) error {
	raw, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal topic %s: %w", topic, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quiz_topics (topic, data) VALUES ($1, $2)
		ON CONFLICT (topic) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		topic, string(raw))
	if err != nil {
		return fmt.Errorf("save topic %s: %w", topic, err)
	}
	return nil
}
