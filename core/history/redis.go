package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore keeps each record as a JSON string and indexes ids in a sorted
// set scored by timestamp.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects using a redis:// URL. Keys are namespaced by prefix.
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisStore(rdb, prefix), nil
}

func newRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "teamalloc:history"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) recordKey(id string) string { return s.prefix + ":record:" + id }
func (s *RedisStore) indexKey() string           { return s.prefix + ":index" }

// Append stores the record and indexes it.
func (s *RedisStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.recordKey(rec.ID), b, 0)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(rec.Timestamp.UnixNano()), Member: rec.ID})
		return nil
	})
	return err
}

// Get returns the record with id.
func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	data, err := s.rdb.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return r, nil
}

// Query reads ids in the time window from the index, then filters the
// records in memory.
func (s *RedisStore) Query(ctx context.Context, q Query) ([]Record, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !q.Start.IsZero() {
		rng.Min = strconv.FormatInt(q.Start.UnixNano(), 10)
	}
	if !q.End.IsZero() {
		rng.Max = strconv.FormatInt(q.End.UnixNano(), 10)
	}
	ids, err := s.rdb.ZRevRangeByScore(ctx, s.indexKey(), rng).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var r Record
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			continue
		}
		recs = append(recs, r)
	}
	return filterRecords(recs, q), nil
}

// Delete removes the record and its index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.recordKey(id))
		p.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error { return s.rdb.Close() }
