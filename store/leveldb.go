package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
)

const (
	usernameKeyPrefix = "username:"
	disconnectKey     = "manual_disconnect"

	usernamesDir = "usernames"
	sessionDir   = "session"
)

// LevelDBUsernameCache persists the username cache in its own database.
type LevelDBUsernameCache struct {
	db *leveldb.DB
}

// NewLevelDBUsernameCache wraps an open database.
func NewLevelDBUsernameCache(db *leveldb.DB) *LevelDBUsernameCache {
	return &LevelDBUsernameCache{db: db}
}

func (c *LevelDBUsernameCache) Get(address string) (string, bool, error) {
	if c == nil || c.db == nil {
		return "", false, ErrClosed
	}
	val, err := c.db.Get(usernameKey(address), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("load cached username: %w", err)
	}
	return string(val), true, nil
}

func (c *LevelDBUsernameCache) Put(address, username string) error {
	if c == nil || c.db == nil {
		return ErrClosed
	}
	if err := c.db.Put(usernameKey(address), []byte(username), nil); err != nil {
		return fmt.Errorf("store cached username: %w", err)
	}
	return nil
}

func (c *LevelDBUsernameCache) Delete(address string) error {
	if c == nil || c.db == nil {
		return ErrClosed
	}
	if err := c.db.Delete(usernameKey(address), nil); err != nil {
		return fmt.Errorf("delete cached username: %w", err)
	}
	return nil
}

// Close releases the underlying LevelDB resources.
func (c *LevelDBUsernameCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func usernameKey(address string) []byte {
	return []byte(usernameKeyPrefix + address)
}

// LevelDBDisconnectMarker persists the disconnect marker across restarts.
type LevelDBDisconnectMarker struct {
	db *leveldb.DB
}

// NewLevelDBDisconnectMarker wraps an open database.
func NewLevelDBDisconnectMarker(db *leveldb.DB) *LevelDBDisconnectMarker {
	return &LevelDBDisconnectMarker{db: db}
}

func (m *LevelDBDisconnectMarker) IsSet() (bool, error) {
	if m == nil || m.db == nil {
		return false, ErrClosed
	}
	ok, err := m.db.Has([]byte(disconnectKey), nil)
	if err != nil {
		return false, fmt.Errorf("load disconnect marker: %w", err)
	}
	return ok, nil
}

func (m *LevelDBDisconnectMarker) Set() error {
	if m == nil || m.db == nil {
		return ErrClosed
	}
	if err := m.db.Put([]byte(disconnectKey), []byte("true"), nil); err != nil {
		return fmt.Errorf("store disconnect marker: %w", err)
	}
	return nil
}

func (m *LevelDBDisconnectMarker) Clear() error {
	if m == nil || m.db == nil {
		return ErrClosed
	}
	if err := m.db.Delete([]byte(disconnectKey), nil); err != nil {
		return fmt.Errorf("clear disconnect marker: %w", err)
	}
	return nil
}

// Close releases the underlying LevelDB resources.
func (m *LevelDBDisconnectMarker) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Local bundles the on-disk stores kept under one state directory.
type Local struct {
	Usernames *LevelDBUsernameCache
	Marker    *LevelDBDisconnectMarker
}

// OpenLocal opens (or creates) both stores below dir, each in its own
// database.
func OpenLocal(dir string) (*Local, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, fmt.Errorf("state directory required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve state directory: %w", err)
	}

	usernames, err := leveldb.OpenFile(filepath.Join(abs, usernamesDir), nil)
	if err != nil {
		return nil, fmt.Errorf("open username cache: %w", err)
	}
	session, err := leveldb.OpenFile(filepath.Join(abs, sessionDir), nil)
	if err != nil {
		_ = usernames.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}

	return &Local{
		Usernames: NewLevelDBUsernameCache(usernames),
		Marker:    NewLevelDBDisconnectMarker(session),
	}, nil
}

// Close closes both databases.
func (l *Local) Close() error {
	if l == nil {
		return nil
	}
	return errors.Join(l.Usernames.Close(), l.Marker.Close())
}
