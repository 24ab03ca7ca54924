package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/proxy-batch-checker/internal/types"
	"github.com/redis/go-redis/v9"
)

const (
	redisWorkingKey = "proxychecker:working"
	redisStatsKey   = "proxychecker:stats"
	redisTimeout    = 5 * time.Second
)

// redisStats is the value stored under redisStatsKey.
type redisStats struct {
	Stats   types.Stats `json:"stats"`
	Updated time.Time   `json:"updated"`
}

// RedisStorage keeps the working list as a Redis list, replaced in one
// MULTI block together with the JSON-encoded stats.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage connects to addr ("host:port") and pings it.
func NewRedisStorage(addr string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  redisTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStorage{client: client}, nil
}

func (r *RedisStorage) Save(snapshot *types.Snapshot) error {
	stats, err := json.Marshal(redisStats{Stats: snapshot.Stats, Updated: snapshot.Updated})
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	working := make([]interface{}, len(snapshot.Working))
	for i, p := range snapshot.Working {
		working[i] = p
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisWorkingKey)
		if len(working) > 0 {
			pipe.RPush(ctx, redisWorkingKey, working...)
		}
		pipe.Set(ctx, redisStatsKey, stats, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save: %w", err)
	}

	return nil
}

// Load returns nil, nil when nothing has been saved yet.
func (r *RedisStorage) Load() (*types.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, redisStatsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get stats: %w", err)
	}

	var stored redisStats
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}

	working, err := r.client.LRange(ctx, redisWorkingKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get working list: %w", err)
	}

	return &types.Snapshot{
		Working: working,
		Stats:   stored.Stats,
		Updated: stored.Updated,
	}, nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
