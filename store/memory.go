package store

import (
	"sync"
	"sync/atomic"
)

// MemoryUsernameCache is a process-local UsernameCache.
type MemoryUsernameCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryUsernameCache() *MemoryUsernameCache {
	return &MemoryUsernameCache{entries: make(map[string]string)}
}

func (c *MemoryUsernameCache) Get(address string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	username, ok := c.entries[address]
	return username, ok, nil
}

func (c *MemoryUsernameCache) Put(address, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[address] = username
	return nil
}

func (c *MemoryUsernameCache) Delete(address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, address)
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryUsernameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// MemoryDisconnectMarker is a DisconnectMarker that lives for the process.
type MemoryDisconnectMarker struct {
	set atomic.Bool
}

func (m *MemoryDisconnectMarker) IsSet() (bool, error) { return m.set.Load(), nil }
func (m *MemoryDisconnectMarker) Set() error           { m.set.Store(true); return nil }
func (m *MemoryDisconnectMarker) Clear() error         { m.set.Store(false); return nil }
