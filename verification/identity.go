// Package verification resolves wallet addresses to verified usernames and
// checks username availability.
package verification

import (
	"context"
	"time"

	"github.com/vitwit/handlepay/logger"
	"github.com/vitwit/handlepay/metrics"
	"github.com/vitwit/handlepay/scval"
	"github.com/vitwit/handlepay/store"
	"github.com/vitwit/handlepay/types"
)

const (
	metricCacheHit         = "cache_hit"
	metricCacheMiss        = "cache_miss"
	metricCacheInvalidated = "cache_invalidated"
)

// ProfileReader is the subset of the contract identity resolution needs.
type ProfileReader interface {
	GetProfile(ctx context.Context, username string) (*types.UserProfile, error)
	GetUsernameByAddress(ctx context.Context, address string) (string, bool, error)
}

// IdentityService keeps the local address to username cache honest. A
// cached username is only a hint: every resolution re-reads the profile and
// compares its address with the queried one, dropping the entry on mismatch.
type IdentityService struct {
	reader  ProfileReader
	cache   store.UsernameCache
	marker  store.DisconnectMarker
	timeout time.Duration
	logger  logger.Logger
	metrics metrics.Recorder
}

type Option func(*IdentityService)

func WithCache(c store.UsernameCache) Option {
	return func(s *IdentityService) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithDisconnectMarker(m store.DisconnectMarker) Option {
	return func(s *IdentityService) {
		if m != nil {
			s.marker = m
		}
	}
}

func WithTimeout(t time.Duration) Option {
	return func(s *IdentityService) {
		if t > 0 {
			s.timeout = t
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *IdentityService) {
		s.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *IdentityService) {
		s.metrics = r
	}
}

// NewIdentityService creates an identity service. Without options it uses
// process-local stores.
func NewIdentityService(reader ProfileReader, opts ...Option) *IdentityService {
	s := &IdentityService{
		reader:  reader,
		cache:   store.NewMemoryUsernameCache(),
		marker:  &store.MemoryDisconnectMarker{},
		timeout: 30 * time.Second,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveUsername returns the verified username registered to address.
func (s *IdentityService) ResolveUsername(ctx context.Context, address string) (string, bool, error) {
	profile, err := s.ResolveProfile(ctx, address)
	if err != nil || profile == nil {
		return "", false, err
	}
	return profile.Username, true, nil
}

// ResolveProfile returns the verified profile registered to address, or
// nil when there is none.
func (s *IdentityService) ResolveProfile(ctx context.Context, address string) (*types.UserProfile, error) {
	if !scval.ValidStrkey(address) {
		return nil, types.NewError(types.ErrInvalidInput, "invalid address %q", address)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cached, hit, err := s.cache.Get(address)
	if err != nil {
		s.logger.Warn("username cache read failed", map[string]any{
			"address": address,
			"error":   err.Error(),
		})
		hit = false
	}

	if hit {
		s.metrics.IncCounter(metricCacheHit, nil)
		profile, err := s.reader.GetProfile(ctx, cached)
		if err != nil {
			return nil, err
		}
		if !owns(profile, address) {
			s.evict(address, cached, profile)
			return nil, nil
		}
		return profile, nil
	}

	s.metrics.IncCounter(metricCacheMiss, nil)
	username, ok, err := s.reader.GetUsernameByAddress(ctx, address)
	if err != nil || !ok {
		return nil, err
	}

	profile, err := s.reader.GetProfile(ctx, username)
	if err != nil {
		return nil, err
	}
	if !owns(profile, address) {
		s.logger.Warn("reverse lookup disagrees with profile", map[string]any{
			"address":  address,
			"username": username,
		})
		return nil, nil
	}

	s.remember(address, username)
	return profile, nil
}

// Validate reports whether username is currently registered to address.
// A cached pairing that fails validation is removed.
func (s *IdentityService) Validate(ctx context.Context, address, username string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	profile, err := s.reader.GetProfile(ctx, username)
	if err != nil {
		return false, err
	}
	if owns(profile, address) {
		return true, nil
	}

	if cached, hit, err := s.cache.Get(address); err == nil && hit && cached == username {
		s.evict(address, username, profile)
	}
	return false, nil
}

// Remember caches a pairing learned from a successful registration.
func (s *IdentityService) Remember(address, username string) error {
	if !scval.ValidStrkey(address) {
		return types.NewError(types.ErrInvalidInput, "invalid address %q", address)
	}
	return s.cache.Put(address, username)
}

// Invalidate drops any cached username for address.
func (s *IdentityService) Invalidate(address string) error {
	return s.cache.Delete(address)
}

// Disconnect handles a manual disconnect: the cached pairing is dropped and
// auto-connect is disabled until the next explicit Connect.
func (s *IdentityService) Disconnect(address string) error {
	if address != "" {
		if err := s.Invalidate(address); err != nil {
			return err
		}
	}
	if err := s.marker.Set(); err != nil {
		return err
	}
	s.logger.Info("wallet disconnected", map[string]any{"address": address})
	return nil
}

// Connect handles an explicit connect: auto-connect is re-enabled and the
// wallet's profile, if any, is resolved.
func (s *IdentityService) Connect(ctx context.Context, address string) (*types.UserProfile, error) {
	if err := s.marker.Clear(); err != nil {
		return nil, err
	}
	if address == "" {
		return nil, nil
	}
	return s.ResolveProfile(ctx, address)
}

// ShouldAutoConnect reports whether the previous session may be restored.
func (s *IdentityService) ShouldAutoConnect() (bool, error) {
	set, err := s.marker.IsSet()
	if err != nil {
		return false, err
	}
	return !set, nil
}

func (s *IdentityService) remember(address, username string) {
	if err := s.cache.Put(address, username); err != nil {
		s.logger.Warn("username cache write failed", map[string]any{
			"address": address,
			"error":   err.Error(),
		})
	}
}

func (s *IdentityService) evict(address, username string, profile *types.UserProfile) {
	fields := map[string]any{
		"address":  address,
		"username": username,
	}
	if profile != nil {
		fields["profile_address"] = profile.Address
	}
	if err := s.cache.Delete(address); err != nil {
		fields["error"] = err.Error()
	}
	s.logger.Warn("stale username cache entry removed", fields)
	s.metrics.IncCounter(metricCacheInvalidated, nil)
}

func owns(profile *types.UserProfile, address string) bool {
	return profile != nil && profile.Address == address
}
