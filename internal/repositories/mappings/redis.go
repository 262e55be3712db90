package mappings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "hale:bridge:mappings"

// RedisStore keeps mappings as json values in a single hash, one field per attestation id
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// NewRedisStoreFromURL accepts redis://[user:pass@]host:port/db
func NewRedisStoreFromURL(url string, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, lib.WrapError(ErrStore, err)
	}
	return NewRedisStore(redis.NewClient(opts), key), nil
}

func (s *RedisStore) LoadAll(ctx context.Context) ([]*Mapping, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, lib.WrapError(ErrStore, err)
	}

	data := make(map[string]*Mapping, len(fields))
	for id, raw := range fields {
		m := &Mapping{}
		if err := json.Unmarshal([]byte(raw), m); err != nil {
			return nil, fmt.Errorf("%w: mapping %s: %s", ErrStore, id, err)
		}
		if m.SourceID == "" {
			m.SourceID = id
		}
		data[id] = m
	}
	return sortedCopy(data), nil
}

func (s *RedisStore) Put(ctx context.Context, m *Mapping) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return lib.WrapError(ErrStore, err)
	}
	if err := s.client.HSet(ctx, s.key, m.SourceID, raw).Err(); err != nil {
		return lib.WrapError(ErrStore, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
