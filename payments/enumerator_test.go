package payments

import (
	"context"
	"errors"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/handlepay/clients"
	"github.com/vitwit/handlepay/clients/clienttest"
	"github.com/vitwit/handlepay/scval"
	"github.com/vitwit/handlepay/types"
)

var errNetwork = errors.New("connection reset")

// fakeReader serves an index per username. A zero id at an index means
// "absent"; indices listed in failAt return errNetwork.
type fakeReader struct {
	mu        sync.Mutex
	index     map[string][]uint64
	failAt    map[uint64]bool
	payments  map[uint64]*types.Payment
	failBody  map[uint64]bool
	countErr  error
	bodyDelay time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	lookups     []uint64
}

func (f *fakeReader) GetPaymentCount(_ context.Context, username string) (uint64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return uint64(len(f.index[username])), nil
}

func (f *fakeReader) GetPaymentIDAt(_ context.Context, username string, i uint64) (uint64, bool, error) {
	f.mu.Lock()
	f.lookups = append(f.lookups, i)
	f.mu.Unlock()
	if f.failAt[i] {
		return 0, false, errNetwork
	}
	id := f.index[username][i]
	return id, id != 0, nil
}

func (f *fakeReader) GetPayment(ctx context.Context, id uint64) (*types.Payment, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.bodyDelay > 0 {
		select {
		case <-time.After(f.bodyDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failBody[id] {
		return nil, errNetwork
	}
	return f.payments[id], nil
}

func payment(id uint64) *types.Payment {
	return &types.Payment{PaymentID: id, RecipientUsername: "alice", Amount: big.NewInt(int64(id))}
}

func TestListPaymentIDs_SkipsAbsentIndices(t *testing.T) {
	r := &fakeReader{index: map[string][]uint64{"alice": {11, 0, 13, 0, 15}}}
	e := NewEnumerator(r)

	ids, err := e.ListPaymentIDs(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{11, 13, 15}, ids)
	assert.Equal(t, []uint64{0, 1, 2, 3, 4}, r.lookups, "lookups run sequentially in index order")
}

func TestListPaymentIDs_SkipsFailedIndices(t *testing.T) {
	r := &fakeReader{
		index:  map[string][]uint64{"alice": {11, 12, 13, 14, 15}},
		failAt: map[uint64]bool{1: true, 3: true},
	}
	e := NewEnumerator(r)

	ids, err := e.ListPaymentIDs(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{11, 13, 15}, ids)
}

func TestListPaymentIDs_CountFailureFails(t *testing.T) {
	r := &fakeReader{countErr: types.WrapError(types.ErrTransientIO, errNetwork, "get_payment_count")}
	e := NewEnumerator(r)

	_, err := e.ListPaymentIDs(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTransientIO))
}

func TestListPaymentIDs_EmptyIndex(t *testing.T) {
	e := NewEnumerator(&fakeReader{index: map[string][]uint64{}})

	ids, err := e.ListPaymentIDs(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListPaymentIDs_HonoursCancellation(t *testing.T) {
	r := &fakeReader{index: map[string][]uint64{"alice": {1, 2, 3}}}
	e := NewEnumerator(r)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ListPaymentIDs(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.lookups)
}

type fixedCount struct {
	fakeReader
	count uint64
}

func (f *fixedCount) GetPaymentCount(context.Context, string) (uint64, error) {
	return f.count, nil
}

func TestListPaymentIDs_HugeCountDoesNotPreallocate(t *testing.T) {
	r := &fixedCount{count: math.MaxUint64}
	e := NewEnumerator(r)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var err error
	require.NotPanics(t, func() {
		_, err = e.ListPaymentIDs(ctx, "alice")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.lookups)
}

func newContractReader(t *testing.T, ledger *clienttest.Ledger) *clients.PaymentContract {
	t.Helper()
	client, err := clients.NewContractClient(ledger, ledger, clienttest.ContractID, clienttest.Passphrase)
	require.NoError(t, err)
	return clients.NewPaymentContract(client)
}

func TestListPaymentIDs_SkipsMistypedIDs(t *testing.T) {
	ledger := clienttest.NewLedger()
	for _, id := range []uint64{101, 102, 103} {
		ledger.AddPayment(types.Payment{PaymentID: id, RecipientUsername: "alice", Sender: clienttest.Account(2)})
	}
	ledger.Override = func(inv clients.Invocation) (*scval.Value, bool) {
		if inv.Method == clients.MethodGetPaymentIDAt && inv.Args[1].U64 == 1 {
			return scval.String("102"), true
		}
		return nil, false
	}

	ids, err := NewEnumerator(newContractReader(t, ledger)).ListPaymentIDs(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{101, 103}, ids)
}

func TestListPayments_SkipsUndecodableBodies(t *testing.T) {
	ledger := clienttest.NewLedger()
	for _, id := range []uint64{101, 102, 103} {
		ledger.AddPayment(types.Payment{PaymentID: id, RecipientUsername: "alice", Sender: clienttest.Account(2)})
	}
	ledger.Override = func(inv clients.Invocation) (*scval.Value, bool) {
		if inv.Method != clients.MethodGetPayment {
			return nil, false
		}
		switch inv.Args[0].U64 {
		case 102:
			// map keyed by a number rather than a field name
			return &scval.Value{Tag: scval.TagMap, Map: []scval.MapEntry{
				{Key: scval.U64(1), Val: scval.String("x")},
			}}, true
		case 103:
			return scval.Struct(scval.Field{Name: "payment_id", Value: scval.String("103")}), true
		}
		return nil, false
	}
	reader := newContractReader(t, ledger)

	_, err := reader.GetPayment(context.Background(), 102)
	assert.True(t, types.IsCode(err, types.ErrUnsupportedValueShape))
	_, err = reader.GetPayment(context.Background(), 103)
	assert.Error(t, err)

	got, err := NewEnumerator(reader).ListPayments(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(101), got[0].PaymentID)
}

func TestListPaymentIDs_RateLimited(t *testing.T) {
	r := &fakeReader{index: map[string][]uint64{"alice": {1, 2, 3, 4}}}
	e := NewEnumerator(r, WithRateLimit(50, 1))

	start := time.Now()
	ids, err := e.ListPaymentIDs(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, ids, 4)
	// burst of one, then three waits of 20ms each
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestListPayments_DropsPaymentsThatVanished(t *testing.T) {
	r := &fakeReader{
		index:    map[string][]uint64{"alice": {101, 102, 103}},
		payments: map[uint64]*types.Payment{101: payment(101), 103: payment(103)},
	}
	e := NewEnumerator(r)

	got, err := e.ListPayments(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(101), got[0].PaymentID)
	assert.Equal(t, uint64(103), got[1].PaymentID)
}

func TestListPayments_ToleratesBodyFailures(t *testing.T) {
	r := &fakeReader{
		index:    map[string][]uint64{"alice": {1, 2, 3}},
		payments: map[uint64]*types.Payment{1: payment(1), 2: payment(2), 3: payment(3)},
		failBody: map[uint64]bool{2: true},
	}
	e := NewEnumerator(r)

	got, err := e.ListPayments(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].PaymentID)
	assert.Equal(t, uint64(3), got[1].PaymentID)
}

func TestFetchPayments_BoundedFanOutKeepsOrder(t *testing.T) {
	ids := make([]uint64, 0, 40)
	payments := make(map[uint64]*types.Payment)
	for i := uint64(1); i <= 40; i++ {
		ids = append(ids, i)
		payments[i] = payment(i)
	}
	r := &fakeReader{payments: payments, bodyDelay: 2 * time.Millisecond}
	e := NewEnumerator(r, WithConcurrency(4))

	got, err := e.FetchPayments(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, got, 40)
	for i, p := range got {
		assert.Equal(t, ids[i], p.PaymentID)
	}
	assert.LessOrEqual(t, r.maxInFlight.Load(), int32(4))
	assert.Greater(t, r.maxInFlight.Load(), int32(1))
}

func TestFetchPayments_CancelledContext(t *testing.T) {
	r := &fakeReader{
		payments:  map[uint64]*types.Payment{1: payment(1), 2: payment(2)},
		bodyDelay: time.Second,
	}
	e := NewEnumerator(r)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := e.FetchPayments(ctx, []uint64{1, 2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClampConcurrency(t *testing.T) {
	assert.Equal(t, DefaultConcurrency, clampConcurrency(0))
	assert.Equal(t, MaxConcurrency, clampConcurrency(100))
	assert.Equal(t, 3, clampConcurrency(3))
}
