package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// HashStore keeps JSON-encoded values in one Redis hash per owner, keyed by
// field. It backs per-user collections that are always read whole.
type HashStore[V any] struct {
	client    *Client
	namespace string
}

// NewHashStore creates a HashStore whose hashes live under
// <prefix>:<namespace>:<owner>.
func NewHashStore[V any](client *Client, namespace string) *HashStore[V] {
	return &HashStore[V]{client: client, namespace: namespace}
}

func (s *HashStore[V]) key(owner string) string {
	return s.client.Key(s.namespace, owner)
}

// All returns every value stored for owner, keyed by field.
func (s *HashStore[V]) All(ctx context.Context, owner string) (map[string]V, error) {
	raw, err := s.client.rdb.HGetAll(ctx, s.key(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("hash store load %q: %w", owner, err)
	}
	out := make(map[string]V, len(raw))
	for field, data := range raw {
		var v V
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("hash store unmarshal %q/%q: %w", owner, field, err)
		}
		out[field] = v
	}
	return out, nil
}

// Get returns (nil, nil) if the field doesn't exist.
func (s *HashStore[V]) Get(ctx context.Context, owner, field string) (*V, error) {
	data, err := s.client.rdb.HGet(ctx, s.key(owner), field).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hash store get %q/%q: %w", owner, field, err)
	}
	var v V
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("hash store unmarshal %q/%q: %w", owner, field, err)
	}
	return &v, nil
}

// Put overwrites a single field.
func (s *HashStore[V]) Put(ctx context.Context, owner, field string, v V) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("hash store marshal %q/%q: %w", owner, field, err)
	}
	if err := s.client.rdb.HSet(ctx, s.key(owner), field, data).Err(); err != nil {
		return fmt.Errorf("hash store put %q/%q: %w", owner, field, err)
	}
	return nil
}

// Delete removes a field.
func (s *HashStore[V]) Delete(ctx context.Context, owner, field string) error {
	if err := s.client.rdb.HDel(ctx, s.key(owner), field).Err(); err != nil {
		return fmt.Errorf("hash store delete %q/%q: %w", owner, field, err)
	}
	return nil
}
