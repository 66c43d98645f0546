package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NoExpiration marks an entry that never expires (stable identifiers).
const NoExpiration time.Duration = -1

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a namespaced cache key from its parts. Parts are joined before
// hashing so keys stay filesystem-safe for the disk layer.
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return "promessa_v1_" + namespace + "_" + hex.EncodeToString(hash[:16])
}

// GetJSON decodes a cached JSON value into out. A corrupt entry is reported
// as a miss and removed.
func GetJSON(c Cache, key string, out any) bool {
	if c == nil {
		return false
	}
	data, ok := c.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = c.Delete(key)
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key.
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.Set(key, data, ttl)
}
