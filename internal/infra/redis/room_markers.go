package redis

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const roomPrefix = "quiz:room:"

// RoomMarkers mirrors live room codes into Redis as liveness markers
// (quiz:room:{code} -> topic). Writes are best effort; a Redis outage never
// affects the room itself.
type RoomMarkers struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewRoomMarkers(client *redis.Client, ttl time.Duration) *RoomMarkers {
	return &RoomMarkers{client: client, ttl: ttl, log: slog.Default()}
}

func (m *RoomMarkers) RoomOpened(ctx context.Context, code, topic string) {
	if err := m.client.Set(ctx, roomPrefix+code, topic, m.ttl).Err(); err != nil {
		m.log.WarnContext(ctx, "room marker: set failed", "room", code, "error", err)
	}
}

func (m *RoomMarkers) RoomClosed(ctx context.Context, code string) {
	if err := m.client.Del(ctx, roomPrefix+code).Err(); err != nil {
		m.log.WarnContext(ctx, "room marker: delete failed", "room", code, "error", err)
	}
}

// Live returns the codes of every marked room.
func (m *RoomMarkers) Live(ctx context.Context) ([]string, error) {
	var codes []string
	iter := m.client.Scan(ctx, 0, roomPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		codes = append(codes, strings.TrimPrefix(iter.Val(), roomPrefix))
	}
	return codes, iter.Err()
}

// Clear removes markers left behind by a previous process.
func (m *RoomMarkers) Clear(ctx context.Context) error {
	codes, err := m.Live(ctx)
	if err != nil || len(codes) == 0 {
		return err
	}
	keys := make([]string, 0, len(codes))
	for _, code := range codes {
		keys = append(keys, roomPrefix+code)
	}
	return m.client.Del(ctx, keys...).Err()
}
