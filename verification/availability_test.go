package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/handlepay/types"
)

func TestAvailability_FreeAndTaken(t *testing.T) {
	reader := &fakeProfiles{
		profiles: map[string]*types.UserProfile{"alice": {Address: addrA, Username: "alice"}},
	}
	c := NewAvailabilityChecker(reader, 0)

	res, err := c.Check(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.True(t, res.Available)

	res, err = c.Check(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.False(t, res.Available)
	assert.NotEmpty(t, res.Reason)
}

func TestAvailability_InvalidFormatSkipsNetwork(t *testing.T) {
	reader := &fakeProfiles{}
	c := NewAvailabilityChecker(reader, 0)

	for _, name := range []string{"ab", "has space", "dash-ed", "this_name_is_definitely_too_long_x"} {
		res, err := c.Check(context.Background(), name)
		require.NoError(t, err)
		assert.False(t, res.Valid, name)
		assert.False(t, res.Available, name)
	}
	assert.Empty(t, reader.calls)
}

func TestAvailability_SupersededDuringDebounce(t *testing.T) {
	reader := &fakeProfiles{}
	c := NewAvailabilityChecker(reader, 50*time.Millisecond)

	errs := make(chan error, 1)
	go func() {
		_, err := c.Check(context.Background(), "ali")
		errs <- err
	}()
	time.Sleep(10 * time.Millisecond)

	res, err := c.Check(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, res.Available)

	err = <-errs
	assert.True(t, types.IsCode(err, types.ErrStaleRequest))
	assert.Equal(t, []string{"get_profile:alice"}, reader.calls)
}

func TestAvailability_SupersededInFlight(t *testing.T) {
	reader := &fakeProfiles{block: make(chan struct{})}
	c := NewAvailabilityChecker(reader, 0)

	errs := make(chan error, 1)
	go func() {
		_, err := c.Check(context.Background(), "alic")
		errs <- err
	}()
	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.calls) == 1
	}, time.Second, time.Millisecond)

	c.Cancel()
	err := <-errs
	assert.True(t, types.IsCode(err, types.ErrStaleRequest))
}

func TestAvailability_CallerCancellation(t *testing.T) {
	c := NewAvailabilityChecker(&fakeProfiles{}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Check(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
}
