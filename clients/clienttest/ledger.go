// Package clienttest provides an in-memory escrow contract that satisfies
// clients.Transport and clients.EnvelopeBuilder, for use in tests.
package clienttest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/vitwit/handlepay/clients"
	"github.com/vitwit/handlepay/mapper"
	"github.com/vitwit/handlepay/scval"
	"github.com/vitwit/handlepay/types"
)

const (
	// ContractID is a valid contract strkey for tests.
	ContractID = "CC6THIWIYPXPQEZJ7WJSBD4DNG4HBALIVKDF53E3GS46BYFFIHUH34QV"
	// TokenID is a valid token contract strkey for tests.
	TokenID = "CDLZFC3SYJYDZT7K67VZ75HPJVIEUVNIXF47ZG2FB2RMQQVU2HHGCYSC"
	// Passphrase is the network passphrase the ledger expects.
	Passphrase = string(types.NetworkTestnet)

	signedSuffix    = ":signed"
	assembledSuffix = ":assembled"
)

// ErrUnavailable is returned by Hook implementations to simulate an outage.
var ErrUnavailable = errors.New("clienttest: endpoint unavailable")

// Account returns a deterministic account strkey derived from seed.
func Account(seed byte) string {
	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = seed
	}
	s, err := scval.EncodeStrkey(scval.VersionAccountID, pub)
	if err != nil {
		panic(err)
	}
	return s
}

// Ledger is a fake contract deployment. The zero value is not usable;
// call NewLedger.
type Ledger struct {
	mu sync.Mutex

	profiles map[string]*types.UserProfile
	payments map[uint64]*types.Payment
	index    map[string][]uint64
	vacant   map[string]map[uint64]bool

	txs      map[string]clients.Invocation
	results  map[string]*clients.TransactionResult
	nextTx   int
	nextID   uint64
	clock    uint64
	calls    []clients.Invocation
	sent     int

	// Hook runs before every simulation. A non-nil error is returned as a
	// transport failure.
	Hook func(inv clients.Invocation) error
	// Override replaces the return value of a read when ok is true.
	Override func(inv clients.Invocation) (v *scval.Value, ok bool)
}

func NewLedger() *Ledger {
	return &Ledger{
		profiles: make(map[string]*types.UserProfile),
		payments: make(map[uint64]*types.Payment),
		index:    make(map[string][]uint64),
		vacant:   make(map[string]map[uint64]bool),
		txs:      make(map[string]clients.Invocation),
		results:  make(map[string]*clients.TransactionResult),
		nextID:   100,
		clock:    1_700_000_000,
	}
}

// AddProfile registers a profile directly.
func (l *Ledger) AddProfile(address, username string) *types.UserProfile {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addProfile(address, username)
}

// AddPayment stores p and appends its id to the recipient's index.
func (l *Ledger) AddPayment(p types.Payment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := p
	l.payments[p.PaymentID] = &cp
	l.index[p.RecipientUsername] = append(l.index[p.RecipientUsername], p.PaymentID)
}

// AddIndexEntry appends id to username's index without storing a body.
func (l *Ledger) AddIndexEntry(username string, id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.index[username] = append(l.index[username], id)
}

// VacateIndex makes get_payment_id_at(username, i) return none.
func (l *Ledger) VacateIndex(username string, i uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.vacant[username] == nil {
		l.vacant[username] = make(map[uint64]bool)
	}
	l.vacant[username][i] = true
}

// DeletePayment removes a payment body, leaving index entries dangling.
func (l *Ledger) DeletePayment(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.payments, id)
}

// Payment returns a copy of the stored payment.
func (l *Ledger) Payment(id uint64) (types.Payment, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.payments[id]
	if !ok {
		return types.Payment{}, false
	}
	return *p, true
}

// Profile returns a copy of the stored profile.
func (l *Ledger) Profile(username string) (types.UserProfile, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.profiles[username]
	if !ok {
		return types.UserProfile{}, false
	}
	return *p, true
}

// Calls returns the method names simulated so far, in order.
func (l *Ledger) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	for i, c := range l.calls {
		out[i] = c.Method
	}
	return out
}

// CallCount returns how many times method was simulated.
func (l *Ledger) CallCount(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Sent returns how many transactions were broadcast.
func (l *Ledger) Sent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

func (l *Ledger) Build(_ context.Context, inv clients.Invocation) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextTx++
	tx := "tx-" + strconv.Itoa(l.nextTx)
	l.txs[tx] = inv
	return tx, nil
}

func (l *Ledger) Assemble(_ context.Context, tx string, sim *clients.Simulation) (string, error) {
	if sim == nil {
		return "", errors.New("clienttest: assemble without simulation")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.txs[tx]; !ok {
		return "", fmt.Errorf("clienttest: unknown transaction %q", tx)
	}
	return tx + assembledSuffix, nil
}

func (l *Ledger) Simulate(_ context.Context, tx string) (*clients.Simulation, error) {
	l.mu.Lock()
	inv, ok := l.txs[tx]
	if ok {
		l.calls = append(l.calls, inv)
	}
	hook, override := l.Hook, l.Override
	l.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("clienttest: unknown transaction %q", tx)
	}
	if hook != nil {
		if err := hook(inv); err != nil {
			return nil, err
		}
	}
	if override != nil {
		if v, ok := override(inv); ok {
			return simulation(v)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	v, err := l.execute(inv, false)
	if err != nil {
		var ce contractError
		if errors.As(err, &ce) {
			return &clients.Simulation{Error: ce.Error(), LatestLedger: 10}, nil
		}
		return nil, err
	}
	return simulation(v)
}

func (l *Ledger) Send(_ context.Context, signedTx string) (*clients.SendResult, error) {
	if !strings.HasSuffix(signedTx, signedSuffix) {
		return &clients.SendResult{Status: types.TxStatusError, ErrorResultXDR: "txBadAuth"}, nil
	}
	tx := strings.TrimSuffix(strings.TrimSuffix(signedTx, signedSuffix), assembledSuffix)

	l.mu.Lock()
	defer l.mu.Unlock()
	inv, ok := l.txs[tx]
	if !ok {
		return nil, fmt.Errorf("clienttest: unknown transaction %q", tx)
	}
	l.sent++
	hash := fmt.Sprintf("%064x", l.sent)
	res := &clients.TransactionResult{Status: types.TxStatusSuccess, Ledger: uint32(10 + l.sent)}
	if _, err := l.execute(inv, true); err != nil {
		res.Status = types.TxStatusFailed
		res.ResultXDR = err.Error()
	}
	l.results[hash] = res
	return &clients.SendResult{Hash: hash, Status: types.TxStatusPending, LatestLedger: 10}, nil
}

func (l *Ledger) GetTransaction(_ context.Context, hash string) (*clients.TransactionResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.results[hash]
	if !ok {
		return &clients.TransactionResult{Status: types.TxStatusNotFound}, nil
	}
	cp := *res
	return &cp, nil
}

func (l *Ledger) Close() {}

type contractError types.ContractErrorCode

func (e contractError) Error() string {
	return fmt.Sprintf("HostError: Error(Contract, #%d)", uint32(e))
}

// execute runs inv against the state. Writes mutate only when apply is set.
func (l *Ledger) execute(inv clients.Invocation, apply bool) (*scval.Value, error) {
	args, err := decodeArgs(inv.Args)
	if err != nil {
		return nil, err
	}

	switch inv.Method {
	case clients.MethodGetProfile:
		return mapper.EncodeProfile(l.profiles[args.str(0)])
	case clients.MethodGetUsernameByAddress:
		for _, p := range l.profiles {
			if p.Address == args.str(0) {
				return scval.String(p.Username), nil
			}
		}
		return scval.Void(), nil
	case clients.MethodGetPayment:
		return mapper.EncodePayment(l.payments[args.u64(0)])
	case clients.MethodGetPaymentCount:
		return scval.U64(uint64(len(l.index[args.str(0)]))), nil
	case clients.MethodGetPaymentIDAt:
		username, i := args.str(0), args.u64(1)
		ids := l.index[username]
		if i >= uint64(len(ids)) || l.vacant[username][i] {
			return scval.Void(), nil
		}
		return scval.U64(ids[i]), nil
	case clients.MethodRegister:
		caller, username := args.str(0), args.str(1)
		if _, taken := l.profiles[username]; taken {
			return nil, contractError(types.ContractUsernameAlreadyExists)
		}
		for _, p := range l.profiles {
			if p.Address == caller {
				return nil, contractError(types.ContractUserAlreadyRegistered)
			}
		}
		if apply {
			l.addProfile(caller, username)
		}
		return scval.Void(), nil
	case clients.MethodCreatePayment:
		recipient := args.str(1)
		if _, ok := l.profiles[recipient]; !ok {
			return nil, contractError(types.ContractRecipientNotFound)
		}
		amount := args.i128(3)
		if amount == nil || amount.Sign() <= 0 {
			return nil, contractError(types.ContractInvalidAmount)
		}
		id := l.nextID
		if apply {
			l.nextID++
			l.clock++
			l.payments[id] = &types.Payment{
				PaymentID:         id,
				RecipientUsername: recipient,
				Sender:            args.str(0),
				Token:             args.str(2),
				Amount:            amount,
				Message:           args.str(4),
				Timestamp:         l.clock,
			}
			l.index[recipient] = append(l.index[recipient], id)
		}
		return scval.U64(id), nil
	case clients.MethodClaimPayment:
		recipient, id := args.str(0), args.u64(1)
		p, ok := l.payments[id]
		if !ok {
			return nil, contractError(types.ContractPaymentNotFound)
		}
		owner, ok := l.profiles[p.RecipientUsername]
		if !ok || owner.Address != recipient {
			return nil, contractError(types.ContractNotRecipient)
		}
		if apply {
			p.Claimed = true
		}
		return scval.Void(), nil
	default:
		return nil, fmt.Errorf("clienttest: unknown method %q", inv.Method)
	}
}

func (l *Ledger) addProfile(address, username string) *types.UserProfile {
	l.clock++
	p := &types.UserProfile{Address: address, Username: username, CreatedAt: l.clock}
	l.profiles[username] = p
	cp := *p
	return &cp
}

type decodedArgs []scval.Decoded

func decodeArgs(args []*scval.Value) (decodedArgs, error) {
	out := make(decodedArgs, 0, len(args))
	for _, a := range args {
		d, err := scval.Decode(a)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (a decodedArgs) str(i int) string {
	if i >= len(a) {
		return ""
	}
	return a[i].Str
}

func (a decodedArgs) u64(i int) uint64 {
	if i >= len(a) {
		return 0
	}
	return a[i].U64
}

func (a decodedArgs) i128(i int) *big.Int {
	if i >= len(a) {
		return nil
	}
	return a[i].I128
}

func simulation(v *scval.Value) (*clients.Simulation, error) {
	b64, err := scval.ToBase64(v)
	if err != nil {
		return nil, err
	}
	return &clients.Simulation{
		ResultXDR:       b64,
		MinResourceFee:  100,
		TransactionData: "AAAA",
		LatestLedger:    10,
	}, nil
}
