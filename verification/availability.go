package verification

import (
	"context"
	"sync"
	"time"

	"github.com/vitwit/handlepay/types"
	"github.com/vitwit/handlepay/utils"
)

// Availability is the outcome of a username check.
type Availability struct {
	Username  string `json:"username"`
	Valid     bool   `json:"valid"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// AvailabilityChecker answers "is this username free" for input that keeps
// changing. Every Check supersedes the previous one: the older call is
// cancelled and, if it still completes, reports STALE_REQUEST.
type AvailabilityChecker struct {
	reader   ProfileReader
	debounce time.Duration

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// NewAvailabilityChecker creates a checker that waits debounce before
// querying the contract.
func NewAvailabilityChecker(reader ProfileReader, debounce time.Duration) *AvailabilityChecker {
	return &AvailabilityChecker{reader: reader, debounce: debounce}
}

// Check reports whether username can be registered. Malformed usernames
// are reported unavailable without a contract call.
func (c *AvailabilityChecker) Check(ctx context.Context, username string) (*Availability, error) {
	ctx, gen := c.begin(ctx)
	defer c.finish(gen)

	if err := utils.ValidateUsername(username); err != nil {
		return &Availability{Username: username, Reason: err.Error()}, nil
	}

	if c.debounce > 0 {
		timer := time.NewTimer(c.debounce)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, c.abandoned(ctx, gen, username)
		}
	}

	profile, err := c.reader.GetProfile(ctx, username)
	if !c.current(gen) {
		return nil, stale(username)
	}
	if err != nil {
		return nil, err
	}

	res := &Availability{Username: username, Valid: true, Available: profile == nil}
	if profile != nil {
		res.Reason = types.ContractUsernameAlreadyExists.Message()
	}
	return res, nil
}

// Cancel abandons any in-flight check.
func (c *AvailabilityChecker) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *AvailabilityChecker) begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	c.cancel = cancel
	return ctx, c.generation
}

func (c *AvailabilityChecker) finish(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *AvailabilityChecker) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

func (c *AvailabilityChecker) abandoned(ctx context.Context, gen uint64, username string) error {
	if !c.current(gen) {
		return stale(username)
	}
	return ctx.Err()
}

func stale(username string) error {
	return &types.Error{
		Code:    types.ErrStaleRequest,
		Message: "availability check for " + username + " was superseded",
		Data:    username,
	}
}
