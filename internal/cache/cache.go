package cache

import (
	"context"
	"time"
)

//go:generate mockery --name=BytesCache --output=./mocks --outpkg=mocks --filename=bytes_cache.go --structname=MockBytesCache
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
