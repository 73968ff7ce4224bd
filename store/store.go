// Package store holds the client's local state: the address to username
// cache and the manual-disconnect marker. The two are scoped separately.
package store

import "errors"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// UsernameCache maps account addresses to usernames. Entries are hints and
// must be verified against the contract before use.
type UsernameCache interface {
	Get(address string) (string, bool, error)
	Put(address, username string) error
	Delete(address string) error
}

// DisconnectMarker records that the user disconnected on purpose and must
// not be reconnected automatically.
type DisconnectMarker interface {
	IsSet() (bool, error)
	Set() error
	Clear() error
}
