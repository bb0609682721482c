package device

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteDevice is an emulated accelerator whose memory is a private,
// in-memory SQLite database.
//
// The connection pool is pinned to a single connection: every connection to
// ":memory:" opens a distinct database, so a second connection would see
// empty device memory.
type SQLiteDevice struct {
	name     string
	capacity int64

	mu     sync.Mutex
	db     *sql.DB
	used   int64
	closed bool
}

// Option configures a SQLiteDevice.
type Option func(*SQLiteDevice)

// WithName sets the device name reported by Name.
func WithName(name string) Option {
	return func(d *SQLiteDevice) { d.name = name }
}

// WithCapacity limits the total bytes that may be resident at once.
// Zero (the default) means unlimited.
func WithCapacity(bytes int64) Option {
	return func(d *SQLiteDevice) { d.capacity = bytes }
}

// OpenSQLite creates a fresh emulated accelerator.
func OpenSQLite(opts ...Option) (*SQLiteDevice, error) {
	d := &SQLiteDevice{name: "sqlite-accelerator:0"}
	for _, opt := range opts {
		opt(d)
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open device memory: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to device memory: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragma: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	d.db = db
	return d, nil
}

// Name implements Device.
func (d *SQLiteDevice) Name() string {
	return d.name
}

// Upload implements Device.
func (d *SQLiteDevice) Upload(ctx context.Context, data []byte) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}

	size := int64(len(data))
	if d.capacity > 0 && d.used+size > d.capacity {
		return 0, fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrOutOfMemory, size, d.used, d.capacity)
	}

	// A nil slice would be stored as NULL.
	if data == nil {
		data = []byte{}
	}

	res, err := d.db.ExecContext(ctx, "INSERT INTO buffers (size, data) VALUES (?, ?)", size, data)
	if err != nil {
		return 0, fmt.Errorf("allocate device buffer: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("allocate device buffer: %w", err)
	}

	d.used += size
	return Handle(id), nil
}

// Download implements Device.
func (d *SQLiteDevice) Download(ctx context.Context, h Handle) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	var (
		size int64
		data []byte
	)
	err := d.db.QueryRowContext(ctx, "SELECT size, data FROM buffers WHERE id = ?", int64(h)).Scan(&size, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if err != nil {
		return nil, fmt.Errorf("read device buffer %d: %w", h, err)
	}

	if int64(len(data)) != size {
		return nil, fmt.Errorf("device buffer %d is corrupt: %d bytes stored, %d recorded", h, len(data), size)
	}

	// Scan hands back a fresh slice; the caller owns it outright.
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Free implements Device.
func (d *SQLiteDevice) Free(ctx context.Context, h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	var size int64
	err := d.db.QueryRowContext(ctx, "SELECT size FROM buffers WHERE id = ?", int64(h)).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if err != nil {
		return fmt.Errorf("free device buffer %d: %w", h, err)
	}

	if _, err := d.db.ExecContext(ctx, "DELETE FROM buffers WHERE id = ?", int64(h)); err != nil {
		return fmt.Errorf("free device buffer %d: %w", h, err)
	}

	d.used -= size
	return nil
}

// Resident reports the number of live buffers and the bytes they hold.
func (d *SQLiteDevice) Resident(ctx context.Context) (buffers int, bytes int64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, 0, ErrClosed
	}

	var total sql.NullInt64
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*), SUM(size) FROM buffers").Scan(&buffers, &total); err != nil {
		return 0, 0, fmt.Errorf("query device residency: %w", err)
	}
	return buffers, total.Int64, nil
}

// Close implements Device. Closing twice is a no-op.
func (d *SQLiteDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.used = 0
	return d.db.Close()
}
