package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Conversations are abandoned freely, so stale state is garbage-collected by
// TTL rather than an explicit lifecycle.
const redisTTL = 24 * time.Hour

// RedisStore keeps conversation state in Redis so menu position survives
// process restarts when a Redis address is configured.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a store over an already-connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(chatID int64) string {
	return fmt.Sprintf("session:%d", chatID)
}

// Get returns the chat's state, or a zero state when none is stored.
func (s *RedisStore) Get(ctx context.Context, chatID int64) (*State, error) {
	raw, err := s.client.Get(ctx, redisKey(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		// Corrupt state resets the conversation instead of wedging it.
		return &State{}, nil
	}
	return &state, nil
}

// Set stores the chat's state.
func (s *RedisStore) Set(ctx context.Context, chatID int64, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(chatID), raw, redisTTL).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Delete drops the chat's state.
func (s *RedisStore) Delete(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, redisKey(chatID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
