package store

import "errors"

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = errors.New("key not found")

// Store is the durable overflow tier behind the bounded cache. Values
// are opaque encoded bytes; a missing key is reported via ErrNotFound,
// every other failure is a real error.
type Store interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	Close() error
}
