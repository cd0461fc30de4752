package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeDriver struct {
	opens  atomic.Int32
	closes atomic.Int32
	delay  time.Duration

	mu      sync.Mutex
	openErr error
	healthy map[*gorm.DB]bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{healthy: map[*gorm.DB]bool{}}
}

func (f *fakeDriver) Open(ctx context.Context, dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	f.opens.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	db := &gorm.DB{Config: cfg}
	f.healthy[db] = true
	return db, nil
}

func (f *fakeDriver) Ping(ctx context.Context, db *gorm.DB) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.healthy[db] {
		return errors.New("connection reset")
	}
	return nil
}

func (f *fakeDriver) Close(db *gorm.DB) error {
	f.closes.Add(1)
	f.mu.Lock()
	f.healthy[db] = false
	f.mu.Unlock()
	return nil
}

func (f *fakeDriver) setOpenErr(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

func (f *fakeDriver) kill(db *gorm.DB) {
	f.mu.Lock()
	f.healthy[db] = false
	f.mu.Unlock()
}

func newTestManager(drv *fakeDriver) *Manager {
	lg := log.New()
	lg.SetLevel(log.PanicLevel)
	m := NewManager(Options{URL: "postgres://u:p@localhost:5432/ignored", Name: "legal"}, lg)
	m.drv = drv
	return m
}

func TestAcquireReusesHealthyHandle(t *testing.T) {
	drv := newFakeDriver()
	m := newTestManager(drv)

	a, err := m.Acquire(context.Background())
	require.NoError(t, err)
	b, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.EqualValues(t, 1, drv.opens.Load())
}

func TestAcquireConcurrentCallersShareOneAttempt(t *testing.T) {
	drv := newFakeDriver()
	drv.delay = 50 * time.Millisecond
	m := newTestManager(drv)

	const n = 20
	var wg sync.WaitGroup
	handles := make([]*gorm.DB, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := m.Acquire(context.Background())
			assert.NoError(t, err)
			handles[i] = db
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, drv.opens.Load())
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
}

func TestAcquireReconnectsWhenStale(t *testing.T) {
	drv := newFakeDriver()
	m := newTestManager(drv)

	first, err := m.Acquire(context.Background())
	require.NoError(t, err)
	drv.kill(first)

	second, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, drv.opens.Load())
	assert.GreaterOrEqual(t, drv.closes.Load(), int32(1))
}

func TestAcquireFailureLeavesNoCachedState(t *testing.T) {
	drv := newFakeDriver()
	drv.setOpenErr(errors.New("connection refused"))
	m := newTestManager(drv)

	_, err := m.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	drv.setOpenErr(nil)
	db, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.EqualValues(t, 2, drv.opens.Load())
}

func TestAcquireHonoursCallerContext(t *testing.T) {
	drv := newFakeDriver()
	drv.delay = 200 * time.Millisecond
	m := newTestManager(drv)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// the shared attempt still completes for later callers
	db, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, db)
}

func TestCloseDropsHandle(t *testing.T) {
	drv := newFakeDriver()
	m := newTestManager(drv)

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = m.Acquire(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, drv.opens.Load())
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		db   string
		want string
		err  bool
	}{
		{
			name: "url form replaces path",
			uri:  "postgres://u:p@db.local:5432/other?sslmode=disable",
			db:   "legal",
			want: "postgres://u:p@db.local:5432/legal?connect_timeout=10&sslmode=disable&statement_timeout=45000",
		},
		{
			name: "key value form",
			uri:  "host=db.local user=u dbname=other",
			db:   "legal",
			want: "host=db.local user=u dbname=legal connect_timeout=10 statement_timeout=45000",
		},
		{name: "missing name", uri: "postgres://localhost", db: "", err: true},
		{name: "missing uri", uri: " ", db: "legal", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.uri, tt.db, 10*time.Second, 45*time.Second)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
