package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "atelier:tg:session:"

// Redis stores chat state in Redis so pending photos survive bot
// restarts. Expiry is delegated to the server.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing Redis client.
func NewRedis(client *redis.Client) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &Redis{client: client}, nil
}

func redisKey(chatID int64) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, chatID)
}

// Put stores state for a chat until the TTL lapses.
func (r *Redis) Put(ctx context.Context, chatID int64, state State, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrTTLNotPositive
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(chatID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Get loads the state for a chat. The second return is false when the
// chat has no live state.
func (r *Redis) Get(ctx context.Context, chatID int64) (State, bool, error) {
	raw, err := r.client.Get(ctx, redisKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("load session: %w", err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, false, fmt.Errorf("decode session state: %w", err)
	}
	return state, true, nil
}

// Delete drops the state for a chat.
func (r *Redis) Delete(ctx context.Context, chatID int64) error {
	if err := r.client.Del(ctx, redisKey(chatID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
