// Package metadata implements the local key-value store backing the durable
// surface of the token store. Values are opaque byte slices; callers decide
// the encoding.
package metadata

import "context"

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
