package state

import "context"

// Store is a small durable key/value surface. The bot registry and the
// order idempotency cache both live behind it.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
