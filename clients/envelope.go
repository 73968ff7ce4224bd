package clients

import (
	"context"
	"fmt"
	"math"

	"github.com/stellar/go-stellar-sdk/txnbuild"
	"github.com/stellar/go-stellar-sdk/xdr"

	"github.com/vitwit/handlepay/scval"
	"github.com/vitwit/handlepay/types"
)

// DefaultBaseFee is the inclusion fee, in stroops, before resource fees.
const DefaultBaseFee int64 = txnbuild.MinBaseFee

// simulationAccount is the all-zero account. Simulation accepts it as a
// source without the account existing on chain.
const simulationAccount = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"

// AccountSource looks up the current sequence number of an account.
type AccountSource interface {
	SequenceNumber(ctx context.Context, address string) (int64, error)
}

// SorobanEnvelopeBuilder produces single-operation contract invocation
// envelopes. Reads are built from the all-zero account.
type SorobanEnvelopeBuilder struct {
	accounts AccountSource
	baseFee  int64
}

// NewEnvelopeBuilder creates a builder. accounts may be nil when only
// reads are built.
func NewEnvelopeBuilder(accounts AccountSource, baseFee int64) *SorobanEnvelopeBuilder {
	if baseFee < txnbuild.MinBaseFee {
		baseFee = DefaultBaseFee
	}
	return &SorobanEnvelopeBuilder{accounts: accounts, baseFee: baseFee}
}

// Build encodes inv as an unsigned, unassembled envelope.
func (b *SorobanEnvelopeBuilder) Build(ctx context.Context, inv Invocation) (string, error) {
	source := &txnbuild.SimpleAccount{AccountID: simulationAccount}
	if inv.Source != "" {
		version, _, err := scval.DecodeStrkey(inv.Source)
		if err != nil {
			return "", types.WrapError(types.ErrInvalidInput, err, "source account")
		}
		if version != scval.VersionAccountID {
			return "", types.NewError(types.ErrInvalidInput, "source %s is not an account", inv.Source)
		}
		if b.accounts == nil {
			return "", fmt.Errorf("no account source configured for %s", inv.Source)
		}
		seq, err := b.accounts.SequenceNumber(ctx, inv.Source)
		if err != nil {
			return "", err
		}
		source = &txnbuild.SimpleAccount{AccountID: inv.Source, Sequence: seq}
	}

	contract, err := scval.ScAddress(inv.ContractID)
	if err != nil {
		return "", types.WrapError(types.ErrInvalidInput, err, "contract id")
	}
	args := make([]xdr.ScVal, 0, len(inv.Args))
	for i, arg := range inv.Args {
		sc, err := scval.ToXDR(arg)
		if err != nil {
			return "", fmt.Errorf("%s: argument %d: %w", inv.Method, i, err)
		}
		args = append(args, sc)
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        source,
		IncrementSequenceNum: true,
		BaseFee:              b.baseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
		Operations: []txnbuild.Operation{&txnbuild.InvokeHostFunction{
			HostFunction: xdr.HostFunction{
				Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
				InvokeContract: &xdr.InvokeContractArgs{
					ContractAddress: contract,
					FunctionName:    xdr.ScSymbol(inv.Method),
					Args:            args,
				},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", inv.Method, err)
	}
	return tx.Base64()
}

// Assemble attaches the simulated auth entries and resource data to an
// envelope produced by Build and raises its fee by the resource fee.
func (b *SorobanEnvelopeBuilder) Assemble(_ context.Context, tx string, sim *Simulation) (string, error) {
	if sim == nil || sim.TransactionData == "" {
		return "", fmt.Errorf("assemble: simulation carries no transaction data")
	}

	var env xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(tx, &env); err != nil {
		return "", fmt.Errorf("assemble: invalid envelope: %w", err)
	}
	if env.Type != xdr.EnvelopeTypeEnvelopeTypeTx || env.V1 == nil || len(env.V1.Tx.Operations) != 1 {
		return "", fmt.Errorf("assemble: not a single-operation transaction")
	}
	if env.V1.Tx.Ext.V != 0 || len(env.V1.Signatures) > 0 {
		return "", fmt.Errorf("assemble: envelope is already assembled or signed")
	}
	op, ok := env.V1.Tx.Operations[0].Body.GetInvokeHostFunctionOp()
	if !ok {
		return "", fmt.Errorf("assemble: operation is not a contract invocation")
	}

	var data xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(sim.TransactionData, &data); err != nil {
		return "", fmt.Errorf("assemble: transaction data: %w", err)
	}
	op.Auth = make([]xdr.SorobanAuthorizationEntry, 0, len(sim.Auth))
	for i, entry := range sim.Auth {
		var auth xdr.SorobanAuthorizationEntry
		if err := xdr.SafeUnmarshalBase64(entry, &auth); err != nil {
			return "", fmt.Errorf("assemble: auth entry %d: %w", i, err)
		}
		op.Auth = append(op.Auth, auth)
	}

	fee := uint64(env.V1.Tx.Fee) + uint64(max(sim.MinResourceFee, 0))
	if fee > math.MaxUint32 {
		return "", fmt.Errorf("assemble: fee %d overflows", fee)
	}

	env.V1.Tx.Fee = xdr.Uint32(fee)
	env.V1.Tx.Operations[0].Body.InvokeHostFunctionOp = &op
	env.V1.Tx.Ext = xdr.TransactionExt{V: 1, SorobanData: &data}
	return xdr.MarshalBase64(env)
}
