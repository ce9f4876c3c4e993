package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

const keyPrefix = "rightsprobe:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// TokenKey generates the cache key for a challenge token harvested from host
func TokenKey(host string) string {
	return keyPrefix + "token:" + hashKey(strings.ToLower(host))
}

// SearchKey generates the cache key for one (term, category) query. The
// term keeps its case: the endpoint is not known to fold it.
func SearchKey(term, category string) string {
	return keyPrefix + "search:" + hashKey(strings.TrimSpace(term)+"\x00"+category)
}

func hashKey(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// GetJSON loads a cached value into v. It reports false on a miss or an
// undecodable entry.
func GetJSON(c Cache, key string, v any) bool {
	data, ok := c.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// SetJSON stores v as JSON under key
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(key, data, ttl)
}
