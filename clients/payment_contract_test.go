package clients_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/handlepay/clients"
	"github.com/vitwit/handlepay/clients/clienttest"
	"github.com/vitwit/handlepay/scval"
	"github.com/vitwit/handlepay/types"
)

func newPaymentContract(t *testing.T) (*clients.PaymentContract, *clienttest.Ledger) {
	t.Helper()
	ledger := clienttest.NewLedger()
	return clients.NewPaymentContract(newContract(t, ledger)), ledger
}

func TestPaymentContract_ProfileLookups(t *testing.T) {
	pc, ledger := newPaymentContract(t)
	alice := clienttest.Account(1)
	want := ledger.AddProfile(alice, "alice")
	ctx := context.Background()

	got, err := pc.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	missing, err := pc.GetProfile(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	name, ok, err := pc.GetUsernameByAddress(ctx, alice)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", name)

	_, ok, err = pc.GetUsernameByAddress(ctx, clienttest.Account(9))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = pc.GetUsernameByAddress(ctx, "garbage")
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))

	free, err := pc.CheckUsername(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, free)

	free, err = pc.CheckUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, free)
}

func TestPaymentContract_IndexLookups(t *testing.T) {
	pc, ledger := newPaymentContract(t)
	ledger.AddIndexEntry("alice", 101)
	ledger.AddIndexEntry("alice", 102)
	ledger.VacateIndex("alice", 1)
	ctx := context.Background()

	n, err := pc.GetPaymentCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	id, ok, err := pc.GetPaymentIDAt(ctx, "alice", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(101), id)

	_, ok, err = pc.GetPaymentIDAt(ctx, "alice", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentContract_ResultTypeMismatch(t *testing.T) {
	pc, ledger := newPaymentContract(t)
	ledger.Override = func(inv clients.Invocation) (*scval.Value, bool) {
		return scval.String("three"), inv.Method == clients.MethodGetPaymentCount
	}

	_, err := pc.GetPaymentCount(context.Background(), "alice")
	assert.True(t, types.IsCode(err, types.ErrTypeMismatch))
}

func TestPaymentContract_CreateAndClaim(t *testing.T) {
	pc, ledger := newPaymentContract(t)
	alice, bob := clienttest.Account(1), clienttest.Account(2)
	ledger.AddProfile(alice, "alice")
	signer := &clienttest.Signer{}
	ctx := context.Background()

	receipt, id, err := pc.CreatePayment(ctx, bob, "alice", clienttest.TokenID, big.NewInt(125_000_000), "lunch", signer)
	require.NoError(t, err)
	assert.Equal(t, types.TxStatusSuccess, receipt.Status)

	payment, err := pc.GetPayment(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, bob, payment.Sender)
	assert.Equal(t, clienttest.TokenID, payment.Token)
	assert.Equal(t, "125000000", payment.Amount.String())
	assert.False(t, payment.Claimed)

	_, err = pc.ClaimPayment(ctx, bob, id, signer)
	assert.True(t, types.IsCode(err, types.ErrContractFailed), "only the recipient may claim")

	_, err = pc.ClaimPayment(ctx, alice, id, signer)
	require.NoError(t, err)

	payment, err = pc.GetPayment(ctx, id)
	require.NoError(t, err)
	assert.True(t, payment.Claimed)
}

func TestPaymentContract_RegisterValidatesCaller(t *testing.T) {
	pc, ledger := newPaymentContract(t)

	_, err := pc.Register(context.Background(), "GBOGUS", "alice", &clienttest.Signer{})
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
	assert.Empty(t, ledger.Calls())
}
