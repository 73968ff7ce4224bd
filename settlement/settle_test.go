package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/handlepay/clients"
	"github.com/vitwit/handlepay/clients/clienttest"
	"github.com/vitwit/handlepay/store"
	"github.com/vitwit/handlepay/types"
)

type cacheRegistrar struct {
	cache *store.MemoryUsernameCache
}

func (r cacheRegistrar) Remember(address, username string) error {
	return r.cache.Put(address, username)
}

func newService(t *testing.T) (*SettlementService, *clienttest.Ledger, *store.MemoryUsernameCache) {
	t.Helper()
	ledger := clienttest.NewLedger()
	client, err := clients.NewContractClient(ledger, ledger, clienttest.ContractID, clienttest.Passphrase,
		clients.WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	cache := store.NewMemoryUsernameCache()
	svc := NewSettlementService(clients.NewPaymentContract(client), cacheRegistrar{cache}, clienttest.TokenID, time.Second, nil)
	return svc, ledger, cache
}

func TestRegister_CachesPairing(t *testing.T) {
	svc, ledger, cache := newService(t)
	alice := clienttest.Account(1)

	receipt, err := svc.Register(context.Background(), &RegisterRequest{Address: alice, Username: "alice"}, &clienttest.Signer{})
	require.NoError(t, err)
	assert.Equal(t, types.TxStatusSuccess, receipt.Status)

	_, ok := ledger.Profile("alice")
	assert.True(t, ok)
	name, hit, _ := cache.Get(alice)
	assert.True(t, hit)
	assert.Equal(t, "alice", name)
}

func TestRegister_FailsFastWithoutSigning(t *testing.T) {
	svc, ledger, cache := newService(t)
	signer := &clienttest.Signer{}

	_, err := svc.Register(context.Background(), &RegisterRequest{Address: clienttest.Account(1), Username: "no"}, signer)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))

	_, err = svc.Register(context.Background(), &RegisterRequest{Address: "GBAD", Username: "alice"}, signer)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))

	assert.Empty(t, signer.Signed)
	assert.Empty(t, ledger.Calls())
	assert.Zero(t, cache.Len())
}

func TestRegister_SignerRejectedDoesNotCache(t *testing.T) {
	svc, _, cache := newService(t)

	_, err := svc.Register(context.Background(),
		&RegisterRequest{Address: clienttest.Account(1), Username: "alice"}, clienttest.RejectingSigner{})
	assert.True(t, types.IsCode(err, types.ErrSignerRejected))
	assert.Zero(t, cache.Len())
}

func TestCreatePayment_ConvertsAmount(t *testing.T) {
	svc, ledger, _ := newService(t)
	ledger.AddProfile(clienttest.Account(1), "alice")
	bob := clienttest.Account(2)

	res, err := svc.CreatePayment(context.Background(), &CreatePaymentRequest{
		Sender:            bob,
		RecipientUsername: "alice",
		Amount:            "12.5",
		Message:           "lunch",
	}, &clienttest.Signer{})
	require.NoError(t, err)
	assert.Equal(t, "125000000", res.Stroops.String())

	stored, ok := ledger.Payment(res.PaymentID)
	require.True(t, ok)
	assert.Equal(t, "125000000", stored.Amount.String())
	assert.Equal(t, clienttest.TokenID, stored.Token, "native token is the default")
	assert.Equal(t, bob, stored.Sender)
}

func TestCreatePayment_Validation(t *testing.T) {
	svc, ledger, _ := newService(t)
	ledger.AddProfile(clienttest.Account(1), "alice")
	base := CreatePaymentRequest{Sender: clienttest.Account(2), RecipientUsername: "alice", Amount: "1"}

	cases := map[string]func(r *CreatePaymentRequest){
		"zero amount":       func(r *CreatePaymentRequest) { r.Amount = "0" },
		"negative amount":   func(r *CreatePaymentRequest) { r.Amount = "-3" },
		"sub-stroop amount": func(r *CreatePaymentRequest) { r.Amount = "0.00000001" },
		"bad token":         func(r *CreatePaymentRequest) { r.Token = "CBAD" },
		"bad recipient":     func(r *CreatePaymentRequest) { r.RecipientUsername = "a-b" },
		"long message": func(r *CreatePaymentRequest) {
			r.Message = string(make([]byte, 501))
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			mutate(&req)
			_, err := svc.CreatePayment(context.Background(), &req, &clienttest.Signer{})
			assert.True(t, types.IsCode(err, types.ErrInvalidInput), err)
		})
	}
	assert.Zero(t, ledger.Sent())
}

func TestCreatePayment_UnknownRecipientIsContractFailure(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.CreatePayment(context.Background(), &CreatePaymentRequest{
		Sender: clienttest.Account(2), RecipientUsername: "ghost", Amount: "1",
	}, &clienttest.Signer{})

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrContractFailed, typed.Code)
	assert.Equal(t, types.ContractRecipientNotFound, typed.Data)
}

func TestClaimPayment(t *testing.T) {
	svc, ledger, _ := newService(t)
	alice := clienttest.Account(1)
	ledger.AddProfile(alice, "alice")
	ledger.AddPayment(types.Payment{PaymentID: 101, RecipientUsername: "alice", Sender: clienttest.Account(2)})

	receipt, err := svc.ClaimPayment(context.Background(), &ClaimPaymentRequest{Recipient: alice, PaymentID: 101}, &clienttest.Signer{})
	require.NoError(t, err)
	assert.Equal(t, types.TxStatusSuccess, receipt.Status)

	p, _ := ledger.Payment(101)
	assert.True(t, p.Claimed)
}
