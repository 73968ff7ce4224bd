package clients

import (
	"context"

	"github.com/vitwit/handlepay/scval"
)

// Transport is the RPC surface of the ledger node.
type Transport interface {
	Simulate(ctx context.Context, tx string) (*Simulation, error)
	Send(ctx context.Context, signedTx string) (*SendResult, error)
	GetTransaction(ctx context.Context, hash string) (*TransactionResult, error)
	Close()
}

// Signer signs an unsigned transaction envelope. Implementations are
// external, typically a wallet; a user refusal is returned as an error.
type Signer interface {
	SignTransaction(ctx context.Context, unsignedTx, networkPassphrase string) (string, error)
}

// EnvelopeBuilder turns an invocation into a transaction envelope and,
// after simulation, attaches auth entries and resource fees to it. It owns
// account sequence handling.
type EnvelopeBuilder interface {
	Build(ctx context.Context, inv Invocation) (string, error)
	Assemble(ctx context.Context, tx string, sim *Simulation) (string, error)
}

// Invocation names a contract method call.
type Invocation struct {
	ContractID string
	Method     string
	Args       []*scval.Value
	// Source is the transaction source account. Empty for reads.
	Source string
}

// Simulation is the outcome of a read-only execution.
type Simulation struct {
	// ResultXDR is the base64 XDR return value.
	ResultXDR       string
	Auth            []string
	MinResourceFee  int64
	TransactionData string
	LatestLedger    uint32
	// Error is set when the host reported a failure.
	Error string
}

// SendResult is the immediate answer to a broadcast.
type SendResult struct {
	Hash           string
	Status         string
	LatestLedger   uint32
	ErrorResultXDR string
}

// TransactionResult is the status of a broadcast transaction.
type TransactionResult struct {
	Status        string
	Ledger        uint32
	ResultXDR     string
	ResultMetaXDR string
}
