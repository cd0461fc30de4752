package cache

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, content []byte, duration time.Duration) error
	Delete(key string) error
}

// GetOrGenerate returns the cached JSON value for key, or calls generate and
// stores its result. A nil cache always generates. Cache failures are logged
// and never fail the caller.
func GetOrGenerate[T any](c Cache, key string, ttl time.Duration, generate func() (T, error)) (T, error) {
	if c != nil {
		if raw, err := c.Get(key); err == nil && len(raw) > 0 {
			var cached T
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			log.WithField("key", key).Warn("discarding undecodable cache entry")
		}
	}

	val, err := generate()
	if err != nil || c == nil {
		return val, err
	}
	if raw, err := json.Marshal(val); err == nil {
		if err := c.Set(key, raw, ttl); err != nil {
			log.WithError(err).WithField("key", key).Warn("could not write cache entry")
		}
	}
	return val, nil
}

// Invalidate drops key, logging failures.
func Invalidate(c Cache, key string) {
	if c == nil {
		return
	}
	if err := c.Delete(key); err != nil {
		log.WithError(err).WithField("key", key).Warn("could not invalidate cache entry")
	}
}
