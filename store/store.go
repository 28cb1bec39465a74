// Package store keeps normalized configurations by name. Backings register
// themselves under a URI scheme and are opened with Open.
package store

import (
	"context"
	"fmt"
	"strings"
)

var (
	ErrKeyNotFound     = fmt.Errorf("store: not found")
	ErrBackingNotFound = fmt.Errorf("store: backing not found")
	ErrInvalidKey      = fmt.Errorf("store: invalid key")
)

// Store holds serialized configurations. Values are opaque to the store.
type Store interface {
	Get(ctx context.Context, key string) (val []byte, err error)
	Put(ctx context.Context, key string, val []byte) (err error)
	Del(ctx context.Context, key string) (deleted bool, err error)
	List(ctx context.Context) (keys []string, err error)
}

// ValidateKey rejects keys that cannot be used as a file name.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
