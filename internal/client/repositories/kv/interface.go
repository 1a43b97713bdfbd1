// Package kv is the local key-value persistence the reputation store is
// built on. Values are opaque bytes grouped into named stores.
package kv

import "context"

// Repository persists values by (store, key). Get returns an error wrapping
// common.ErrorNotFound when the key is absent; Remove of an absent key is not
// an error.
type Repository interface {
	Get(ctx context.Context, store, key string) ([]byte, error)
	Set(ctx context.Context, store, key string, value []byte) error
	Remove(ctx context.Context, store, key string) error
	GetAll(ctx context.Context, store string) (map[string][]byte, error)
	Clear(ctx context.Context, store string) error
}
