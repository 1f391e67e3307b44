package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// Cache errors.
var (
	ErrNotFound     = errors.New("device not cached")
	ErrInvalidEntry = errors.New("invalid cache entry")
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o600
	msPerSecond     = 1000

	connectionTimeout = 5 * time.Second

	// schemaVersion is stored in PRAGMA user_version.
	schemaVersion = 1
)

const schema = `
CREATE TABLE IF NOT EXISTS descriptors (
	identity   TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	digest     TEXT NOT NULL,
	document   BLOB NOT NULL,
	url        TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS descriptors_kind ON descriptors(kind);
`

// Config configures the descriptor cache.
type Config struct {
	// Path is the SQLite file. ":memory:" keeps the cache in memory.
	Path string

	// WALMode enables write-ahead logging.
	WALMode bool

	// BusyTimeout is the lock wait in seconds.
	BusyTimeout int
}

// Entry is one cached descriptor.
type Entry struct {
	Identity string
	Name     string
	Kind     descriptor.DeviceKind

	// Digest is the digest of the wire form as served by the device.
	Digest string

	Document  *descriptor.Document
	URL       string
	UpdatedAt time.Time
}

// Cache stores the last seen descriptor of each device so a controller can
// tell new or changed devices apart from known ones.
type Cache struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates the cache.
func Open(cfg Config) (*Cache, error) {
	dsn := cfg.Path
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=%d", cfg.Path, cfg.BusyTimeout*msPerSecond)
		if cfg.WALMode {
			dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	// One connection: a single writer, and ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := migrate(ctx, db); err != nil {
		db.Close() //nolint:errcheck // best effort on the error path
		return nil, err
	}
	if cfg.Path != ":memory:" {
		_ = os.Chmod(cfg.Path, filePermissions)
	}

	return &Cache{db: db, path: cfg.Path, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("cache schema version %d is newer than %d", version, schemaVersion)
	}
	if version == schemaVersion {
		return nil
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("writing schema version: %w", err)
	}
	return nil
}

// Path returns the database path.
func (c *Cache) Path() string {
	return c.path
}

// Put stores doc, fetched from url, and reports whether it differs from the
// cached version. A device seen for the first time is changed.
func (c *Cache) Put(ctx context.Context, doc *descriptor.Document, url string) (bool, error) {
	if doc == nil || doc.Device.Identity == "" || doc.Digest() == "" {
		return false, fmt.Errorf("%w: document without identity or digest", ErrInvalidEntry)
	}
	data, err := wire.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("encoding document: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, c.wrap("starting transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var prev string
	err = tx.QueryRowContext(ctx, "SELECT digest FROM descriptors WHERE identity = ?", doc.Device.Identity).Scan(&prev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, c.wrap("reading digest", err)
	}
	changed := prev != doc.Digest()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO descriptors (identity, name, kind, digest, document, url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			digest = excluded.digest,
			document = excluded.document,
			url = excluded.url,
			updated_at = excluded.updated_at`,
		doc.Device.Identity, doc.Device.Name, string(doc.Device.Kind), doc.Digest(), data, url, c.now().UnixMilli())
	if err != nil {
		return false, c.wrap("writing descriptor", err)
	}
	if err := tx.Commit(); err != nil {
		return false, c.wrap("committing", err)
	}
	return changed, nil
}

// Get returns the cached entry of a device.
func (c *Cache) Get(ctx context.Context, identity string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT identity, name, kind, digest, document, url, updated_at
		FROM descriptors WHERE identity = ?`, identity)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, identity)
	}
	if err != nil {
		return nil, c.wrap("reading descriptor", err)
	}
	return e, nil
}

// List returns all cached entries ordered by identity.
func (c *Cache) List(ctx context.Context) ([]*Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT identity, name, kind, digest, document, url, updated_at
		FROM descriptors ORDER BY identity`)
	if err != nil {
		return nil, c.wrap("listing descriptors", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, c.wrap("reading descriptor", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, c.wrap("listing descriptors", err)
	}
	return out, nil
}

// Delete forgets a device. Deleting an unknown device is not an error.
func (c *Cache) Delete(ctx context.Context, identity string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM descriptors WHERE identity = ?", identity); err != nil {
		return c.wrap("deleting descriptor", err)
	}
	return nil
}

// Close closes the database.
func (c *Cache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("closing cache: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e       Entry
		kind    string
		data    []byte
		updated int64
	)
	if err := s.Scan(&e.Identity, &e.Name, &kind, &e.Digest, &data, &e.URL, &updated); err != nil {
		return nil, err
	}
	doc, err := descriptor.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, e.Identity, err)
	}
	e.Kind = descriptor.DeviceKind(kind)
	e.Document = doc
	e.UpdatedAt = time.UnixMilli(updated)
	return &e, nil
}

func (c *Cache) wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
