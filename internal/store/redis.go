package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chessmatch/internal/core"
	"chessmatch/internal/game"
)

const (
	gameKeyPrefix   = "chessmatch:game:"
	statusKeyPrefix = "chessmatch:games:"

	// Transient I/O failures are retried a small bounded number of times
	// before surfacing as ErrUnavailable.
	redisAttempts = 3
	redisBackoff  = 50 * time.Millisecond
)

// casScript performs the conditional write: the record is replaced and the
// status index updated only when the stored version still matches. Returns 1
// on success, 0 on version conflict, -1 when the record is gone.
var casScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], 'version')
if not v then
  return -1
end
if v ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[2], 'version', ARGV[3])
if KEYS[2] ~= KEYS[3] then
  redis.call('SMOVE', KEYS[2], KEYS[3], ARGV[4])
end
return 1
`)

// Redis is the durable backend: survives restarts and supports multiple
// processes racing on the same record through the version check-and-set.
type Redis struct {
	cli *redis.Client
}

// NewRedis connects to the Redis instance at url (redis:// form) and verifies
// the connection.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	cli := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pingCtx).Err(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{cli: cli}, nil
}

func gameKey(id string) string {
	return gameKeyPrefix + id
}

func statusKey(s core.Status) string {
	return statusKeyPrefix + string(s)
}

func (r *Redis) Create(ctx context.Context, rec game.Record) (game.Record, error) {
	rec = rec.Clone()
	rec.ID = uuid.NewString()

	data, err := json.Marshal(rec)
	if err != nil {
		return game.Record{}, fmt.Errorf("%w: marshal record: %v", core.ErrInternal, err)
	}

	err = r.withRetry(ctx, func() error {
		_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, gameKey(rec.ID), "data", data, "version", rec.Version)
			pipe.SAdd(ctx, statusKey(rec.Status), rec.ID)
			return nil
		})
		return err
	})
	if err != nil {
		return game.Record{}, err
	}
	return rec, nil
}

func (r *Redis) Get(ctx context.Context, id string) (game.Record, error) {
	var data string
	err := r.withRetry(ctx, func() error {
		var err error
		data, err = r.cli.HGet(ctx, gameKey(id), "data").Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return game.Record{}, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return game.Record{}, err
	}

	var rec game.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return game.Record{}, fmt.Errorf("%w: unmarshal game %s: %v", core.ErrInternal, id, err)
	}
	return rec, nil
}

func (r *Redis) UpdateIfVersion(ctx context.Context, id string, expected uint64, mutate Mutator) (game.Record, error) {
	cur, err := r.Get(ctx, id)
	if err != nil {
		return game.Record{}, err
	}
	if cur.Version != expected {
		return game.Record{}, fmt.Errorf("game %s: stored version %d, expected %d: %w",
			id, cur.Version, expected, ErrVersionConflict)
	}

	next := cur.Clone()
	if err := mutate(&next); err != nil {
		return game.Record{}, err
	}
	next.ID = cur.ID
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(next)
	if err != nil {
		return game.Record{}, fmt.Errorf("%w: marshal game %s: %v", core.ErrInternal, id, err)
	}

	var outcome int
	err = r.withRetry(ctx, func() error {
		res, err := casScript.Run(ctx, r.cli,
			[]string{gameKey(id), statusKey(cur.Status), statusKey(next.Status)},
			expected, data, next.Version, id,
		).Int()
		if err != nil {
			return err
		}
		outcome = res
		return nil
	})
	if err != nil {
		return game.Record{}, err
	}

	switch outcome {
	case 1:
		return next, nil
	case 0:
		return game.Record{}, fmt.Errorf("game %s: concurrent writer won: %w", id, ErrVersionConflict)
	default:
		return game.Record{}, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
}

func (r *Redis) List(ctx context.Context, f Filter) ([]game.Record, error) {
	statuses := []core.Status{core.StatusWaiting, core.StatusActive, core.StatusFinished}
	if f.Status != "" {
		statuses = []core.Status{f.Status}
	}

	var ids []string
	for _, s := range statuses {
		var members []string
		err := r.withRetry(ctx, func() error {
			var err error
			members, err = r.cli.SMembers(ctx, statusKey(s)).Result()
			return err
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, members...)
	}

	var out []game.Record
	for _, id := range ids {
		rec, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue // index raced a deletion, skip
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.cli.Close()
}

// withRetry runs fn up to redisAttempts times, backing off between attempts.
// Logical misses (redis.Nil) and caller cancellation are never retried.
func (r *Redis) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < redisAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * redisBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = fn()
		if err == nil || errors.Is(err, redis.Nil) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
