package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

// Acquirer hands out a ready database handle. *Manager implements it.
type Acquirer interface {
	Acquire(ctx context.Context) (*gorm.DB, error)
}

// Static is an Acquirer over an already open handle, used by tests and tools.
type Static struct{ DB *gorm.DB }

func (s Static) Acquire(context.Context) (*gorm.DB, error) { return s.DB, nil }

// Options configures the connection manager.
type Options struct {
	URL            string
	Name           string
	MaxOpenConns   int
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
	LogLevel       logger.LogLevel
}

// driver opens, checks and closes gorm handles. Swapped out in tests.
type driver interface {
	Open(ctx context.Context, dsn string, cfg *gorm.Config) (*gorm.DB, error)
	Ping(ctx context.Context, db *gorm.DB) error
	Close(db *gorm.DB) error
}

// Manager owns the process-wide database handle. The first Acquire connects;
// later calls reuse the handle while it still answers a ping and reconnect
// otherwise. Concurrent callers share one connection attempt.
type Manager struct {
	opts   Options
	drv    driver
	logger log.FieldLogger

	mu    sync.Mutex
	db    *gorm.DB
	group singleflight.Group
}

// NewManager returns a manager for Postgres. It does not connect.
func NewManager(opts Options, lg log.FieldLogger) *Manager {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}
	if lg == nil {
		lg = log.StandardLogger()
	}
	return &Manager{opts: opts, drv: postgresDriver{maxOpen: opts.MaxOpenConns}, logger: lg}
}

// Acquire returns a ready handle. A failed connection attempt leaves nothing
// cached, so the next call starts over.
func (m *Manager) Acquire(ctx context.Context) (*gorm.DB, error) {
	m.mu.Lock()
	cur := m.db
	m.mu.Unlock()

	if cur != nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := m.drv.Ping(pctx, cur)
		cancel()
		if err == nil {
			return cur, nil
		}
		m.logger.WithError(err).Warn("database handle is stale, reconnecting")
		m.discard(cur)
	}

	ch := m.group.DoChan("connect", func() (any, error) {
		m.mu.Lock()
		if m.db != nil {
			db := m.db
			m.mu.Unlock()
			return db, nil
		}
		m.mu.Unlock()

		db, err := m.connect()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.db = db
		m.mu.Unlock()
		return db, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*gorm.DB), nil
	}
}

// connect runs detached from any single caller's context so one cancelled
// request does not fail the attempt for everyone sharing it.
func (m *Manager) connect() (*gorm.DB, error) {
	dsn, err := buildDSN(m.opts.URL, m.opts.Name, m.opts.ConnectTimeout, m.opts.SocketTimeout)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.ConnectTimeout)
	defer cancel()

	cfg := &gorm.Config{
		Logger: logger.New(m.logger, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  m.opts.LogLevel,
			IgnoreRecordNotFoundError: true,
		}),
	}
	db, err := m.drv.Open(ctx, dsn, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := m.drv.Ping(ctx, db); err != nil {
		_ = m.drv.Close(db)
		return nil, errors.Wrap(err, "ping database")
	}
	m.logger.WithField("database", m.opts.Name).Info("connected to database")
	return db, nil
}

// discard drops db from the cache if it is still the cached handle.
func (m *Manager) discard(db *gorm.DB) {
	m.mu.Lock()
	if m.db == db {
		m.db = nil
	}
	m.mu.Unlock()
	if err := m.drv.Close(db); err != nil {
		m.logger.WithError(err).Debug("closing stale database handle")
	}
}

// Close tears down the pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	db := m.db
	m.db = nil
	m.mu.Unlock()
	if db == nil {
		return nil
	}
	return m.drv.Close(db)
}

// Migrate creates or updates every table.
func (m *Manager) Migrate(ctx context.Context) error {
	db, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		m.logger.WithError(err).Warn("could not ensure pgcrypto, gen_random_uuid may be unavailable")
	}
	return errors.Wrap(db.WithContext(ctx).AutoMigrate(models.All()...), "auto migrate")
}

/* ============================== Postgres ================================ */

type postgresDriver struct{ maxOpen int }

func (d postgresDriver) Open(ctx context.Context, dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(d.maxOpen)
	sqlDB.SetMaxIdleConns(max(1, d.maxOpen/2))
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func (postgresDriver) Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (postgresDriver) Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// buildDSN points uri at database name and adds connect and statement
// timeouts. Both URL and key=value forms are accepted.
func buildDSN(uri, name string, connect, socket time.Duration) (string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" || strings.TrimSpace(name) == "" {
		return "", errors.New("database url and name are required")
	}

	if strings.HasPrefix(uri, "postgres://") || strings.HasPrefix(uri, "postgresql://") {
		u, err := url.Parse(uri)
		if err != nil {
			return "", errors.Wrap(err, "parse DATABASE_URL")
		}
		u.Path = "/" + name
		q := u.Query()
		if connect > 0 {
			q.Set("connect_timeout", fmt.Sprint(int(connect.Seconds())))
		}
		if socket > 0 {
			q.Set("statement_timeout", fmt.Sprint(socket.Milliseconds()))
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	parts := []string{}
	for _, kv := range strings.Fields(uri) {
		if strings.HasPrefix(kv, "dbname=") {
			continue
		}
		parts = append(parts, kv)
	}
	parts = append(parts, "dbname="+name)
	if connect > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(connect.Seconds())))
	}
	if socket > 0 {
		parts = append(parts, fmt.Sprintf("statement_timeout=%d", socket.Milliseconds()))
	}
	return strings.Join(parts, " "), nil
}
