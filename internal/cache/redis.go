package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries as plain keys and each tag as a set of keys,
// so Invalidate is INCR + SMEMBERS + DEL. A tag set's TTL is refreshed by every Set,
// which keeps it alive at least as long as its newest entry. Tag versions are
// counters under their own keys; SetFresh watches them.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Connect returns a client that has answered a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (r *RedisCache) key(k string) string {
	return r.prefix + "c:" + k
}

func (r *RedisCache) tag(t string) string {
	return r.prefix + "t:" + t
}

func (r *RedisCache) version(t string) string {
	return r.prefix + "v:" + t
}

var errStale = errors.New("stamp is stale")

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if ttl <= 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.write(ctx, pipe, key, value, ttl, tags)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) write(ctx context.Context, pipe redis.Pipeliner, key string, value []byte, ttl time.Duration, tags []string) {
	full := r.key(key)
	pipe.Set(ctx, full, value, ttl)
	for _, t := range tags {
		tagKey := r.tag(t)
		pipe.SAdd(ctx, tagKey, full)
		pipe.Expire(ctx, tagKey, ttl)
	}
}

func (r *RedisCache) Stamp(ctx context.Context, tags ...string) (Stamp, error) {
	stamp, err := r.versions(ctx, r.client, tags)
	if err != nil {
		return nil, err
	}
	return stamp, nil
}

// SetFresh watches the stamped version keys, so an INCR landing between the
// comparison and EXEC aborts the transaction.
func (r *RedisCache) SetFresh(ctx context.Context, key string, value []byte, ttl time.Duration, stamp Stamp, tags ...string) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	if len(stamp) == 0 {
		return true, r.Set(ctx, key, value, ttl, tags...)
	}
	names := make([]string, 0, len(stamp))
	watched := make([]string, 0, len(stamp))
	for t := range stamp {
		names = append(names, t)
		watched = append(watched, r.version(t))
	}

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.versions(ctx, tx, names)
		if err != nil {
			return err
		}
		for t, v := range stamp {
			if current[t] != v {
				return errStale
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.write(ctx, pipe, key, value, ttl, tags)
			return nil
		})
		return err
	}, watched...)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("redis set fresh: %w", err)
	}
}

type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func (r *RedisCache) versions(ctx context.Context, c mgetter, tags []string) (Stamp, error) {
	stamp := make(Stamp, len(tags))
	if len(tags) == 0 {
		return stamp, nil
	}
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = r.version(t)
	}
	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			stamp[tags[i]] = 0
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("tag version %s: %w", tags[i], err)
		}
		stamp[tags[i]] = n
	}
	return stamp, nil
}

func (r *RedisCache) Invalidate(ctx context.Context, tags ...string) error {
	for _, t := range tags {
		if err := r.client.Incr(ctx, r.version(t)).Err(); err != nil {
			return fmt.Errorf("redis incr: %w", err)
		}
		tagKey := r.tag(t)
		keys, err := r.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			return fmt.Errorf("redis smembers: %w", err)
		}
		keys = append(keys, tagKey)
		if err = r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}
