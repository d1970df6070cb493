package flash

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a one-shot per-session message queue: messages pushed during
// one request are drained into the next response and then gone.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

type Message struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, ttl: 10 * time.Minute}
}

func key(sessionID string) string {
	return "flash:" + sessionID
}

func (s *Store) Push(ctx context.Context, sessionID string, kind string, text string) error {
	if sessionID == "" {
		return nil
	}

	payload, err := json.Marshal(Message{Kind: kind, Text: text})
	if err != nil {
		return fmt.Errorf("marshal flash: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key(sessionID), payload)
	pipe.Expire(ctx, key(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push flash: %w", err)
	}
	return nil
}

func (s *Store) Drain(ctx context.Context, sessionID string) ([]Message, error) {
	if sessionID == "" {
		return nil, nil
	}

	pipe := s.rdb.TxPipeline()
	items := pipe.LRange(ctx, key(sessionID), 0, -1)
	pipe.Del(ctx, key(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("drain flash: %w", err)
	}

	raw, err := items.Result()
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
