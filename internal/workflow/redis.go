package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

type redisBackend struct {
	db     *redis.Client
	prefix string
}

// Service whose state lives in Redis, shared by a coordinator and remote workers
func NewRedis(client *redis.Client, opts Options) Service {
	return &service{
		backend: &redisBackend{db: client, prefix: "didit:wf:" + opts.Domain + ":"},
		opts:    opts.withDefaults(),
	}
}

func (r *redisBackend) typesKey() string { return r.prefix + "types" }
func (r *redisBackend) indexKey() string { return r.prefix + "executions" }
func (r *redisBackend) executionKey(id string) string { return r.prefix + "execution:" + id }
func (r *redisBackend) listKey(list string) string { return r.prefix + "list:" + list }

func (r *redisBackend) register(ctx context.Context, kind string, t Type) error {
	return r.db.SAdd(ctx, r.typesKey(), typeKey(kind, t)).Err()
}

func (r *redisBackend) registered(ctx context.Context, kind string, t Type) (bool, error) {
	return r.db.SIsMember(ctx, r.typesKey(), typeKey(kind, t)).Result()
}

func decode(raw string) (*execution, error) {
	var e execution
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Runs an optimistic transaction on `key`, retrying when another writer got there first
func (r *redisBackend) transact(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	backoff := retry.WithMaxRetries(20, retry.WithJitter(5*time.Millisecond, retry.NewConstant(10*time.Millisecond)))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.db.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (r *redisBackend) create(ctx context.Context, e *execution) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}

	key := r.executionKey(e.ID)
	return r.transact(ctx, key, func(tx *redis.Tx) error {
		existing, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			old, err := decode(existing)
			if err != nil {
				return err
			}
			if old.open() {
				return fmt.Errorf("%w: %s", ErrAlreadyStarted, e.ID)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.SAdd(ctx, r.indexKey(), e.ID)
			return nil
		})
		return err
	})
}

func (r *redisBackend) update(ctx context.Context, id string, fn func(*execution) error) error {
	key := r.executionKey(id)
	return r.transact(ctx, key, func(tx *redis.Tx) error {
		existing, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrUnknownExecution, id)
		}
		if err != nil {
			return err
		}

		e, err := decode(existing)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		return err
	})
}

func (r *redisBackend) executions(ctx context.Context) ([]*execution, error) {
	ids, err := r.db.SMembers(ctx, r.indexKey()).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.executionKey(id))
	}
	values, err := r.db.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	all := make([]*execution, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		e, err := decode(raw)
		if err != nil {
			return nil, err
		}
		all = append(all, e)
	}
	return all, nil
}

func (r *redisBackend) remove(ctx context.Context, id string) error {
	_, err := r.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.executionKey(id))
		pipe.SRem(ctx, r.indexKey(), id)
		return nil
	})
	return err
}

func (r *redisBackend) push(ctx context.Context, list, item string) error {
	return r.db.RPush(ctx, r.listKey(list), item).Err()
}

func (r *redisBackend) pop(ctx context.Context, list string, timeout time.Duration) (string, bool, error) {
	result, err := r.db.BLPop(ctx, timeout, r.listKey(list)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return result[1], true, nil
}
