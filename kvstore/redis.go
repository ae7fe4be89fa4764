package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStore implements Store on Redis. Each item is a JSON string with a
// native key expiry; secondary indexes are Redis sets of item keys.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	nowFunc func() time.Time
}

var _ Store = (*RedisStore)(nil)

// RedisStoreOption configures a RedisStore
type RedisStoreOption func(*RedisStore)

// WithRedisNowFunc overrides the clock used to turn absolute TTLs into key expiries
func WithRedisNowFunc(now func() time.Time) RedisStoreOption {
	return func(s *RedisStore) {
		s.nowFunc = now
	}
}

// Connect creates a redis client and verifies connectivity
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("address", addr).Msg("Redis connected successfully")
	return client, nil
}

// NewRedisStore creates a store whose keys are all namespaced under prefix
func NewRedisStore(client redis.UniversalClient, prefix string, options ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		prefix:  prefix,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *RedisStore) itemKey(key string) string {
	return s.prefix + "item:" + key
}

func (s *RedisStore) indexKey(index, value string) string {
	return s.prefix + "idx:" + index + ":" + value
}

// expiration converts an absolute TTL into a relative key expiry. A negative
// result means the item is already expired.
func (s *RedisStore) expiration(ttl int64) time.Duration {
	if ttl == 0 {
		return 0
	}
	d := time.Unix(ttl, 0).Sub(s.nowFunc())
	if d <= 0 {
		return -1
	}
	return d
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Item, error) {
	data, err := s.client.Get(ctx, s.itemKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[RedisStore.Get] %s: %w", key, err)
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("[RedisStore.Get] decode %s: %w", key, err)
	}
	return &item, nil
}

func (s *RedisStore) Put(ctx context.Context, item *Item) error {
	if item == nil || item.Key == "" {
		return errors.New("[RedisStore.Put] item key cannot be empty")
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("[RedisStore.Put] encode %s: %w", item.Key, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.write(ctx, pipe, item, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("[RedisStore.Put] %s: %w", item.Key, err)
	}
	return nil
}

func (s *RedisStore) write(ctx context.Context, pipe redis.Pipeliner, item *Item, data []byte) {
	exp := s.expiration(item.TTL)
	if exp < 0 {
		pipe.Del(ctx, s.itemKey(item.Key))
		for index, value := range item.Indexes {
			pipe.SRem(ctx, s.indexKey(index, value), item.Key)
		}
		return
	}
	pipe.Set(ctx, s.itemKey(item.Key), data, exp)
	for index, value := range item.Indexes {
		setKey := s.indexKey(index, value)
		pipe.SAdd(ctx, setKey, item.Key)
		if exp == 0 {
			pipe.Persist(ctx, setKey)
			continue
		}
		// An index set lives as long as its longest lived member. GT needs Redis 7.
		pipe.ExpireNX(ctx, setKey, exp)
		pipe.ExpireGT(ctx, setKey, exp)
	}
}

func (s *RedisStore) Update(ctx context.Context, key string, cond Condition, mutate Mutation) error {
	k := s.itemKey(key)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var current Item
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if cond != nil && !cond(current.clone()) {
			return ErrConditionFailed
		}
		next := current.clone()
		if err := mutate(next); err != nil {
			return err
		}
		next.Key = key
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, next, payload)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, k)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return ErrConditionFailed
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConditionFailed):
		return err
	default:
		return fmt.Errorf("[RedisStore.Update] %s: %w", key, err)
	}
}

func (s *RedisStore) Query(ctx context.Context, index, value string) ([]*Item, error) {
	setKey := s.indexKey(index, value)
	keys, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("[RedisStore.Query] %s=%s: %w", index, value, err)
	}

	var out []*Item
	for _, key := range keys {
		item, err := s.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			s.client.SRem(ctx, setKey, key)
			continue
		}
		if err != nil {
			return nil, err
		}
		// The item was rewritten with a different index value
		if item.Indexes[index] != value {
			s.client.SRem(ctx, setKey, key)
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
