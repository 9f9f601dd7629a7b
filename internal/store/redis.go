package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scala40-server/internal/scala40"
)

const (
	redisGamePrefix = "scala40:game:"
	redisGameIndex  = "scala40:games"
)

// RedisStore keeps each game under its own key. Saves run inside WATCH so a
// concurrent writer aborts the transaction instead of being overwritten.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore uses client as is. A zero ttl keeps games forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func OpenRedis(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, ttl), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func gameKey(gameID string) string {
	return redisGamePrefix + gameID
}

func (s *RedisStore) Save(ctx context.Context, g *scala40.GameState) error {
	data, next, err := encodeNext(g)
	if err != nil {
		return err
	}
	key := gameKey(g.ID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored := 0
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var head struct {
				Version int `json:"version"`
			}
			if err := json.Unmarshal(raw, &head); err != nil {
				return fmt.Errorf("failed to read stored version: %w", err)
			}
			stored = head.Version
		}
		if stored != g.Version {
			return fmt.Errorf("save %s at version %d, stored %d: %w", g.ID, g.Version, stored, scala40.ErrVersionConflict)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.SAdd(ctx, redisGameIndex, g.ID)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("save %s: %w", g.ID, scala40.ErrVersionConflict)
	}
	if err != nil {
		return err
	}
	g.Version = next
	return nil
}

func (s *RedisStore) Load(ctx context.Context, gameID string) (*scala40.GameState, error) {
	raw, err := s.client.Get(ctx, gameKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load %s: %w", gameID, scala40.ErrGameNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", gameID, err)
	}

	var g scala40.GameState
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("failed to deserialize game %s: %w", gameID, err)
	}
	return &g, nil
}

func (s *RedisStore) Delete(ctx context.Context, gameID string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, gameKey(gameID))
		pipe.SRem(ctx, redisGameIndex, gameID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", gameID, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("delete %s: %w", gameID, scala40.ErrGameNotFound)
	}
	return nil
}

// List returns the ids in the index whose keys have not expired.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, redisGameIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := s.client.Exists(ctx, gameKey(id)).Result()
		if err != nil {
			return nil, err
		}
		if n == 1 {
			live = append(live, id)
		}
	}
	return live, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
