// Package storage is the sqlite-backed persistence of the gateway: auth keys,
// authorizations, update counters with their log, users and channel
// membership.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var (
	ErrNotFound         = errors.New("storage: not found")
	ErrUsernameOccupied = errors.New("storage: username occupied")
)

// Options tunes the database.
type Options struct {
	// UpdateTTL is how long logged updates are kept for replay.
	UpdateTTL time.Duration
	// CleanupInterval is the period of the expired-update sweep.
	CleanupInterval time.Duration
	BusyTimeout     time.Duration
}

func DefaultOptions() Options {
	return Options{
		UpdateTTL:       7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
		BusyTimeout:     5 * time.Second,
	}
}

// DB owns the sqlite handle and hands out typed views on it.
type DB struct {
	db   *sql.DB
	log  *zap.Logger
	opts Options

	now  func() time.Time
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Open opens (creating if needed) the database at path and starts the
// update log cleanup.
func Open(path string, opts Options, log *zap.Logger) (*DB, error) {
	if opts.UpdateTTL == 0 {
		opts.UpdateTTL = DefaultOptions().UpdateTTL
	}
	if opts.CleanupInterval == 0 {
		opts.CleanupInterval = DefaultOptions().CleanupInterval
	}
	if opts.BusyTimeout == 0 {
		opts.BusyTimeout = DefaultOptions().BusyTimeout
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", path, opts.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; transactions serialize counter increments.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &DB{
		db:   db,
		log:  log.Named("storage"),
		opts: opts,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s, nil
}

func (s *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS auth_keys (
		id INTEGER PRIMARY KEY,
		key BLOB NOT NULL,
		type INTEGER NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0,
		perm_id INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		access_hash INTEGER NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		username TEXT UNIQUE COLLATE NOCASE,
		phone TEXT NOT NULL DEFAULT '',
		is_bot INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS authorizations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		perm_auth_key_id INTEGER UNIQUE NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id),
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS update_state (
		auth_id INTEGER PRIMARY KEY,
		pts INTEGER NOT NULL DEFAULT 0,
		qts INTEGER NOT NULL DEFAULT 0,
		seq INTEGER NOT NULL DEFAULT 0,
		date INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS update_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		auth_id INTEGER NOT NULL,
		pts INTEGER NOT NULL,
		date INTEGER NOT NULL,
		payload BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS channel_members (
		channel_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		PRIMARY KEY (channel_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_update_log_auth ON update_log(auth_id, pts);
	CREATE INDEX IF NOT EXISTS idx_update_log_expires ON update_log(expires_at);
	CREATE INDEX IF NOT EXISTS idx_channel_members_user ON channel_members(user_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// cleanupLoop periodically removes expired update log entries.
func (s *DB) cleanupLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if _, err := s.cleanupExpired(); err != nil {
				s.log.Error("update log cleanup failed", zap.Error(err))
			}
		}
	}
}

func (s *DB) cleanupExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM update_log WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, err
	}
	count, _ := result.RowsAffected()
	if count > 0 {
		s.log.Debug("cleaned up expired updates", zap.Int64("count", count))
	}
	return count, nil
}

// Stats reports table sizes for the status API.
func (s *DB) Stats() (map[string]int64, error) {
	stats := make(map[string]int64)
	for _, table := range []string{"auth_keys", "authorizations", "users", "update_log"} {
		var n int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}

// Close stops the cleanup loop and closes the database.
func (s *DB) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
