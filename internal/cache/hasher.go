package cache

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"strings"
)

const defaultHashName = "fnv1a"

func hashNameOrDefault(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return defaultHashName
	}
	return name
}

// newKeyHasher returns the named key-hash function. The name is stored
// in checkpoints so a restore with a different hash is refused instead
// of silently missing every key.
func newKeyHasher(name string) (func(string) string, error) {
	switch hashNameOrDefault(name) {
	case "fnv1a":
		return func(key string) string {
			h := fnv.New64a()
			h.Write([]byte(key))
			return hex.EncodeToString(h.Sum(nil))
		}, nil
	case "md5":
		return func(key string) string {
			sum := md5.Sum([]byte(key))
			return hex.EncodeToString(sum[:])
		}, nil
	case "sha256":
		return func(key string) string {
			sum := sha256.Sum256([]byte(key))
			return hex.EncodeToString(sum[:])
		}, nil
	default:
		return nil, fmt.Errorf("unknown key hash %q", name)
	}
}
