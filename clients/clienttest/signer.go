package clienttest

import (
	"context"
	"errors"
	"sync"
)

// ErrUserDeclined is what RejectingSigner returns.
var ErrUserDeclined = errors.New("user declined to sign")

// Signer approves everything and records what it signed.
type Signer struct {
	mu          sync.Mutex
	Signed      []string
	Passphrases []string
}

func (s *Signer) SignTransaction(_ context.Context, unsignedTx, passphrase string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Signed = append(s.Signed, unsignedTx)
	s.Passphrases = append(s.Passphrases, passphrase)
	return unsignedTx + signedSuffix, nil
}

// RejectingSigner declines every request.
type RejectingSigner struct{}

func (RejectingSigner) SignTransaction(context.Context, string, string) (string, error) {
	return "", ErrUserDeclined
}
