package clients_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/handlepay/clients"
	"github.com/vitwit/handlepay/clients/clienttest"
	"github.com/vitwit/handlepay/scval"
	"github.com/vitwit/handlepay/types"
)

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) IncCounter(name string, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[name+"/"+labels["method"]+"/"+labels["outcome"]]++
}

func (r *countingRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

func newContract(t *testing.T, ledger *clienttest.Ledger, opts ...clients.ContractOption) *clients.ContractClient {
	t.Helper()
	opts = append([]clients.ContractOption{clients.WithPollInterval(time.Millisecond)}, opts...)
	c, err := clients.NewContractClient(ledger, ledger, clienttest.ContractID, clienttest.Passphrase, opts...)
	require.NoError(t, err)
	return c
}

func TestNewContractClient_ValidatesConfig(t *testing.T) {
	ledger := clienttest.NewLedger()

	_, err := clients.NewContractClient(ledger, ledger, "CBAD", clienttest.Passphrase)
	assert.True(t, types.IsCode(err, types.ErrConfigError))

	_, err = clients.NewContractClient(nil, ledger, clienttest.ContractID, clienttest.Passphrase)
	assert.True(t, types.IsCode(err, types.ErrConfigError))

	_, err = clients.NewContractClient(ledger, ledger, clienttest.ContractID, "")
	assert.True(t, types.IsCode(err, types.ErrConfigError))
}

func TestCall_ReturnsRawTree(t *testing.T) {
	ledger := clienttest.NewLedger()
	ledger.AddIndexEntry("alice", 7)
	ledger.AddIndexEntry("alice", 8)
	rec := &countingRecorder{}
	c := newContract(t, ledger, clients.WithMetrics(rec))

	v, err := c.Call(context.Background(), clients.MethodGetPaymentCount, scval.String("alice"))
	require.NoError(t, err)
	assert.Equal(t, scval.U64(2), v)
	assert.Equal(t, 1, rec.counts["contract_call/get_payment_count/ok"])
}

func TestCall_TransportFailureIsTransient(t *testing.T) {
	ledger := clienttest.NewLedger()
	ledger.Hook = func(clients.Invocation) error { return clienttest.ErrUnavailable }
	rec := &countingRecorder{}
	c := newContract(t, ledger, clients.WithMetrics(rec))

	_, err := c.Call(context.Background(), clients.MethodGetProfile, scval.String("alice"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTransientIO))
	assert.ErrorIs(t, err, clienttest.ErrUnavailable)
	assert.Equal(t, 1, rec.counts["contract_call/get_profile/transport_failed"])
}

type garbageTransport struct {
	*clienttest.Ledger
	result string
}

func (g garbageTransport) Simulate(context.Context, string) (*clients.Simulation, error) {
	return &clients.Simulation{ResultXDR: g.result}, nil
}

func TestCall_MalformedResultIsUnsupportedShape(t *testing.T) {
	ledger := clienttest.NewLedger()
	// bool discriminant with its payload cut off
	c, err := clients.NewContractClient(garbageTransport{ledger, "AAAAAA=="}, ledger,
		clienttest.ContractID, clienttest.Passphrase)
	require.NoError(t, err)

	_, err = c.Call(context.Background(), clients.MethodGetProfile, scval.String("alice"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUnsupportedValueShape))
}

func TestCall_EmptyResultIsVoid(t *testing.T) {
	ledger := clienttest.NewLedger()
	c, err := clients.NewContractClient(garbageTransport{ledger, ""}, ledger,
		clienttest.ContractID, clienttest.Passphrase)
	require.NoError(t, err)

	v, err := c.Call(context.Background(), clients.MethodGetProfile, scval.String("alice"))
	require.NoError(t, err)
	assert.Equal(t, scval.Void(), v)
}

func TestSubmit_RunsPhasesInOrder(t *testing.T) {
	ledger := clienttest.NewLedger()
	signer := &clienttest.Signer{}
	c := newContract(t, ledger)
	alice := clienttest.Account(1)

	receipt, err := c.Submit(context.Background(), alice, clients.MethodRegister,
		[]*scval.Value{mustAddress(t, alice), scval.String("alice")}, signer)
	require.NoError(t, err)

	assert.Equal(t, types.TxStatusSuccess, receipt.Status)
	assert.Equal(t, clients.MethodRegister, receipt.Method)
	assert.Len(t, receipt.TxHash, 64)
	assert.NotZero(t, receipt.Ledger)
	assert.Equal(t, int64(100), receipt.Fee)

	require.Len(t, signer.Signed, 1)
	assert.Contains(t, signer.Signed[0], ":assembled")
	assert.Equal(t, clienttest.Passphrase, signer.Passphrases[0])

	profile, ok := ledger.Profile("alice")
	require.True(t, ok)
	assert.Equal(t, alice, profile.Address)
}

func TestSubmit_SignerRejectionStopsBeforeBroadcast(t *testing.T) {
	ledger := clienttest.NewLedger()
	c := newContract(t, ledger)
	alice := clienttest.Account(1)

	receipt, err := c.Submit(context.Background(), alice, clients.MethodRegister,
		[]*scval.Value{mustAddress(t, alice), scval.String("alice")}, clienttest.RejectingSigner{})
	require.Error(t, err)
	assert.Nil(t, receipt)
	assert.True(t, types.IsCode(err, types.ErrSignerRejected))
	assert.True(t, errors.Is(err, clienttest.ErrUserDeclined))
	assert.Zero(t, ledger.Sent())
}

func TestSubmit_SimulationFailureCarriesContractCode(t *testing.T) {
	ledger := clienttest.NewLedger()
	ledger.AddProfile(clienttest.Account(2), "alice")
	c := newContract(t, ledger)
	alice := clienttest.Account(1)

	_, err := c.Submit(context.Background(), alice, clients.MethodRegister,
		[]*scval.Value{mustAddress(t, alice), scval.String("alice")}, &clienttest.Signer{})
	require.Error(t, err)

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrContractFailed, typed.Code)
	assert.Equal(t, types.ContractUsernameAlreadyExists, typed.Data)
	assert.Contains(t, typed.Message, "already taken")
	assert.Zero(t, ledger.Sent())
}

func TestSubmit_RequiresSignerAndSource(t *testing.T) {
	c := newContract(t, clienttest.NewLedger())

	_, err := c.Submit(context.Background(), clienttest.Account(1), clients.MethodRegister, nil, nil)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))

	_, err = c.Submit(context.Background(), "nobody", clients.MethodRegister, nil, &clienttest.Signer{})
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

type stuckTransport struct {
	*clienttest.Ledger
}

func (stuckTransport) GetTransaction(context.Context, string) (*clients.TransactionResult, error) {
	return &clients.TransactionResult{Status: types.TxStatusNotFound}, nil
}

func TestSubmit_ConfirmationTimeoutKeepsReceipt(t *testing.T) {
	ledger := clienttest.NewLedger()
	c, err := clients.NewContractClient(stuckTransport{ledger}, ledger, clienttest.ContractID, clienttest.Passphrase,
		clients.WithPollInterval(time.Millisecond), clients.WithCallTimeout(30*time.Millisecond))
	require.NoError(t, err)
	alice := clienttest.Account(1)

	receipt, err := c.Submit(context.Background(), alice, clients.MethodRegister,
		[]*scval.Value{mustAddress(t, alice), scval.String("alice")}, &clienttest.Signer{})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTransientIO))
	require.NotNil(t, receipt)
	assert.NotEmpty(t, receipt.TxHash)
	assert.Equal(t, types.TxStatusPending, receipt.Status)
}

func mustAddress(t *testing.T, s string) *scval.Value {
	t.Helper()
	v, err := scval.AddressFromStrkey(s)
	require.NoError(t, err)
	return v
}
