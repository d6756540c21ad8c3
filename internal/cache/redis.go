// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for mutation audit records.
var DefaultQueueName = "quizdesk:mutations"

// DefaultChannel is the Redis pub/sub channel carrying game change signals.
var DefaultChannel = "quizdesk:games"

// MutationRecord holds the minimal info needed by the historian.
type MutationRecord struct {
	GameID    uuid.UUID      `json:"game_id"`
	Op        string         `json:"op"`
	OK        bool           `json:"ok"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp int64          `json:"timestamp"` // epoch millis
}

// ConnectRedis opens a client for addr/db and pings it.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// MutationQueue pushes audit records onto a Redis list.
type MutationQueue struct {
	rdb  *redis.Client
	name string
}

// NewMutationQueue returns a queue writing to the named list.
func NewMutationQueue(rdb *redis.Client, name string) *MutationQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &MutationQueue{rdb: rdb, name: name}
}

// Name returns the list key.
func (q *MutationQueue) Name() string { return q.name }

// Push serializes the record to JSON, then pushes it to the Redis queue.
func (q *MutationQueue) Push(ctx context.Context, record MutationRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal MutationRecord: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next record. It returns (nil, nil) when
// the timeout passes without a message.
func (q *MutationQueue) Pop(ctx context.Context, timeout time.Duration) (*MutationRecord, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	if len(res) < 2 {
		return nil, nil
	}
	// res[0] is the queue name and res[1] the payload.
	var rec MutationRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("invalid mutation record: %w", err)
	}
	return &rec, nil
}
