// Package store is the embedded persistence layer: a SQLite file holding
// visit records, operator accounts, the blacklist and the singleton license
// row. Opening the store runs the device-integrity guard before any
// business data is served, and every write invalidates the short-TTL read
// cache before returning.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vmscli/internal/cache"
	"vmscli/internal/security"
)

// busyTimeout bounds the wait on a locked database file. The app is single
// user, so contention is transient when it happens at all.
const busyTimeout = 5 * time.Second

// Store wraps the SQLite database, the read cache and the device identity
// the data is bound to.
type Store struct {
	db          *gorm.DB
	cache       *cache.ReadCache
	fingerprint security.FingerprintFunc
	logger      *slog.Logger
	now         func() time.Time
}

// Options tunes Open. Zero values select production defaults.
type Options struct {
	// Fingerprint overrides the device identity source, for tests.
	Fingerprint security.FingerprintFunc
	// CacheTTL overrides the read-cache TTL.
	CacheTTL time.Duration
	// Logger receives structured store and guard events.
	Logger *slog.Logger
}

// Open creates or opens the SQLite file at path, migrates the schema and
// runs the integrity guard. Guard failures are logged, never fatal: the
// guard degrades to leaving state as-is rather than blocking startup.
func Open(path string, opts Options) (*Store, error) {
	if opts.Fingerprint == nil {
		opts.Fingerprint = security.DeviceFingerprint
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf(
		"%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)",
		path, busyTimeout.Milliseconds(),
	)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(
		&Visitor{}, &VisitorBackup{}, &LicenseRecord{}, &User{}, &BlacklistEntry{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	s := &Store{
		db:          db,
		cache:       cache.New(opts.CacheTTL),
		fingerprint: opts.Fingerprint,
		logger:      opts.Logger.With(slog.String("component", "store")),
		now:         time.Now,
	}

	// Reconcile a possibly relocated data store with this device before
	// anything reads business data. Silent, logged, automatic.
	if err := s.verifyDeviceIdentity(); err != nil {
		s.logger.Error("device identity verification failed, leaving state as-is",
			slog.String("error", err.Error()))
	}

	s.logger.Info("store initialized", slog.String("path", path))
	return s, nil
}

// Cache exposes the read cache for callers that layer their own reads.
func (s *Store) Cache() *cache.ReadCache { return s.cache }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
