package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet bool
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *memCache) Set(key string, content []byte, _ time.Duration) error {
	if m.failSet {
		return errors.New("read only")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = content
	return nil
}

func (m *memCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type lawyer struct {
	Name string `json:"name"`
}

func TestGetOrGenerateCachesResult(t *testing.T) {
	c := newMemCache()
	calls := 0
	gen := func() ([]lawyer, error) {
		calls++
		return []lawyer{{Name: "Ada"}}, nil
	}

	first, err := GetOrGenerate(c, "lawyers", time.Minute, gen)
	require.NoError(t, err)
	second, err := GetOrGenerate(c, "lawyers", time.Minute, gen)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	Invalidate(c, "lawyers")
	_, err = GetOrGenerate(c, "lawyers", time.Minute, gen)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetOrGenerateNilCache(t *testing.T) {
	calls := 0
	for i := 0; i < 2; i++ {
		_, err := GetOrGenerate[int](nil, "k", time.Minute, func() (int, error) {
			calls++
			return 1, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
	Invalidate(nil, "k")
}

func TestGetOrGenerateIgnoresCacheFailures(t *testing.T) {
	c := newMemCache()
	c.failSet = true
	v, err := GetOrGenerate(c, "k", time.Minute, func() (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)

	c.failSet = false
	c.data["bad"] = []byte("{not json")
	v, err = GetOrGenerate(c, "bad", time.Minute, func() (string, error) { return "regenerated", nil })
	require.NoError(t, err)
	assert.Equal(t, "regenerated", v)
}

func TestGetOrGeneratePropagatesErrors(t *testing.T) {
	_, err := GetOrGenerate(newMemCache(), "k", time.Minute, func() (int, error) { return 0, errors.New("db down") })
	require.EqualError(t, err, "db down")
}
