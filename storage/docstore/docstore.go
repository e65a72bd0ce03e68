// Package docstore implements storage.Backend over two stores: atom
// documents live in SQLite, and the pattern, template and incoming-link
// indices live in Redis sets.
//
// Writes go to SQLite first and then to Redis in one MULTI block. There
// is no transaction spanning both stores.
package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/db"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/storage"
)

// DefaultKeyPrefix namespaces every Redis key written by the store.
const DefaultKeyPrefix = "atomdb"

// Store is the document+KV backend.
type Store struct {
	db     *sql.DB
	rdb    *redis.Client
	prefix string
	schema atom.Schema
	logger *zap.SugaredLogger

	// serialises the lookup-then-insert of Decompose
	writeMu sync.Mutex
	owned   bool
}

// Option configures a Store.
type Option func(*Store)

// WithSchema sets the unordered link type set.
func WithSchema(s atom.Schema) Option {
	return func(st *Store) { st.schema = s }
}

// WithLogger sets the logger. A nil logger keeps the store silent.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(st *Store) { st.logger = l }
}

// WithKeyPrefix namespaces Redis keys, letting several stores share one Redis.
func WithKeyPrefix(prefix string) Option {
	return func(st *Store) { st.prefix = prefix }
}

// New wraps an already-migrated database and a connected Redis client.
// Closing the Store does not close either.
func New(sqlDB *sql.DB, rdb *redis.Client, opts ...Option) *Store {
	s := &Store{
		db:     sqlDB,
		rdb:    rdb,
		prefix: DefaultKeyPrefix,
		schema: atom.DefaultSchema(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	return s
}

var _ storage.Backend = (*Store)(nil)

// Config locates both stores for Open.
type Config struct {
	DatabasePath   string
	RedisURL       string
	ConnectTimeout time.Duration
}

// Open opens (and migrates) the SQLite database, connects to Redis, and
// returns a Store that owns both connections.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	probe := New(nil, nil, opts...)

	sqlDB, report, err := db.OpenWithMigrations(cfg.DatabasePath, probe.logger)
	if err != nil {
		return nil, err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		sqlDB.Close()
		return nil, errors.Wrapf(err, "failed to parse Redis URL %q", cfg.RedisURL)
	}
	redisOpts.DialTimeout = cfg.ConnectTimeout
	rdb := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		sqlDB.Close()
		rdb.Close()
		return nil, errors.WithHint(
			errors.Wrap(errors.ErrConnection, err.Error()),
			"check redis.url in am.toml or ATOMDB_REDIS_URL",
		)
	}

	s := New(sqlDB, rdb, opts...)
	s.owned = true
	s.logger.Infow("docstore opened",
		"path", cfg.DatabasePath,
		"redis", redisOpts.Addr,
		"prefix", s.prefix,
		"schema_version", report.Current,
		"migrations_applied", len(report.Applied),
	)
	return s, nil
}

// Schema implements storage.Backend.
func (s *Store) Schema() atom.Schema { return s.schema }

// Close releases connections opened by Open.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	var errs []error
	if err := s.rdb.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "close redis"))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, db.Wrap(err, "close database"))
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (s *Store) key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, kind, id)
}

func (s *Store) String() string { return "docstore(" + s.prefix + ")" }
