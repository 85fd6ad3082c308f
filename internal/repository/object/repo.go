// Package object resolves search hit ids to domain objects stored as JSON
// values in a key-value store.
package object

import (
	"context"
	"encoding/json"
	"fmt"
)

// DefaultKeyPrefix is used when New gets an empty prefix.
const DefaultKeyPrefix = "lazysearch:obj:"

// store is the consumer interface for objects (ISP).
type store interface {
	GetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// Repo stores objects of type T under <prefix><mapping>:<id>.
type Repo[T any] struct {
	store   store
	prefix  string
	mapping string
}

// New creates an object repository for one mapping.
func New[T any](s store, prefix, mapping string) *Repo[T] {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Repo[T]{store: s, prefix: prefix, mapping: mapping}
}

// Key returns the storage key for id.
func (r *Repo[T]) Key(id string) string {
	return r.prefix + r.mapping + ":" + id
}

// Put stores obj under id.
func (r *Repo[T]) Put(ctx context.Context, id string, obj T) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", id, err)
	}
	if err := r.store.Set(ctx, r.Key(id), data); err != nil {
		return fmt.Errorf("set %s: %w", id, err)
	}
	return nil
}

// Delete removes the object stored under id.
func (r *Repo[T]) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.Key(id)); err != nil {
		return fmt.Errorf("del %s: %w", id, err)
	}
	return nil
}

// ResolveMany loads the objects for ids in one round trip. Ids without a
// stored object are left out; the result keeps the order of ids.
func (r *Repo[T]) ResolveMany(ctx context.Context, ids []string) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.Key(id)
	}

	raw, err := r.store.GetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get %d objects: %w", len(keys), err)
	}

	out := make([]T, 0, len(raw))
	for i, data := range raw {
		if data == nil {
			continue
		}
		var obj T
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", keys[i], err)
		}
		out = append(out, obj)
	}
	return out, nil
}
