package clients

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vitwit/handlepay/logger"
	"github.com/vitwit/handlepay/metrics"
	"github.com/vitwit/handlepay/scval"
	"github.com/vitwit/handlepay/types"
)

const (
	defaultCallTimeout  = 30 * time.Second
	defaultPollInterval = time.Second

	metricContractCall = "contract_call"
)

// ContractClient invokes methods of one deployed contract. Reads are
// simulated and their raw return value handed back undecoded; writes run
// simulate, sign, send and then wait for the transaction to settle.
type ContractClient struct {
	transport    Transport
	builder      EnvelopeBuilder
	contractID   string
	passphrase   string
	timeout      time.Duration
	pollInterval time.Duration
	logger       logger.Logger
	metrics      metrics.Recorder
}

type ContractOption func(*ContractClient)

func WithLogger(l logger.Logger) ContractOption {
	return func(c *ContractClient) {
		c.logger = l
	}
}

func WithMetrics(r metrics.Recorder) ContractOption {
	return func(c *ContractClient) {
		c.metrics = r
	}
}

func WithCallTimeout(t time.Duration) ContractOption {
	return func(c *ContractClient) {
		if t > 0 {
			c.timeout = t
		}
	}
}

func WithPollInterval(d time.Duration) ContractOption {
	return func(c *ContractClient) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewContractClient creates a client bound to contractID on the network
// identified by passphrase.
func NewContractClient(
	transport Transport,
	builder EnvelopeBuilder,
	contractID string,
	passphrase string,
	opts ...ContractOption,
) (*ContractClient, error) {
	if transport == nil || builder == nil {
		return nil, types.NewError(types.ErrConfigError, "transport and envelope builder are required")
	}
	if !scval.ValidStrkey(contractID) {
		return nil, types.NewError(types.ErrConfigError, "invalid contract id %q", contractID)
	}
	if passphrase == "" {
		return nil, types.NewError(types.ErrConfigError, "network passphrase is required")
	}

	c := &ContractClient{
		transport:    transport,
		builder:      builder,
		contractID:   contractID,
		passphrase:   passphrase,
		timeout:      defaultCallTimeout,
		pollInterval: defaultPollInterval,
		logger:       logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ContractID returns the contract this client is bound to.
func (c *ContractClient) ContractID() string { return c.contractID }

// Passphrase returns the network passphrase used for signing.
func (c *ContractClient) Passphrase() string { return c.passphrase }

// Call simulates a read-only invocation and returns the raw return value.
func (c *ContractClient) Call(ctx context.Context, method string, args ...*scval.Value) (*scval.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	callID := uuid.NewString()
	start := time.Now()

	_, sim, outcome, err := c.simulate(ctx, Invocation{
		ContractID: c.contractID,
		Method:     method,
		Args:       args,
	})
	if err != nil {
		c.observe(method, callID, outcome, start, err)
		return nil, err
	}

	if sim.ResultXDR == "" {
		c.observe(method, callID, OutcomeOK, start, nil)
		return scval.Void(), nil
	}
	val, err := scval.FromBase64(sim.ResultXDR)
	if err != nil {
		if types.CodeOf(err) == "" {
			err = types.WrapError(types.ErrUnsupportedValueShape, err, "%s: malformed return value", method)
		}
		c.observe(method, callID, OutcomeDecodeFailed, start, err)
		return nil, err
	}

	c.observe(method, callID, OutcomeOK, start, nil)
	return val, nil
}

// Submit runs a state-changing invocation signed by signer on behalf of
// source. Once the transaction has been broadcast the receipt is returned
// even when an error is, so callers can report the hash.
func (c *ContractClient) Submit(
	ctx context.Context,
	source string,
	method string,
	args []*scval.Value,
	signer Signer,
) (*types.Receipt, error) {
	if signer == nil {
		return nil, types.NewError(types.ErrInvalidInput, "%s: a signer is required", method)
	}
	if version, _, err := scval.DecodeStrkey(source); err != nil || version != scval.VersionAccountID {
		return nil, types.NewError(types.ErrInvalidInput, "%s: invalid source account %q", method, source)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	callID := uuid.NewString()
	start := time.Now()

	receipt, outcome, err := c.submit(ctx, Invocation{
		ContractID: c.contractID,
		Method:     method,
		Args:       args,
		Source:     source,
	}, signer)
	c.observe(method, callID, outcome, start, err)
	if receipt != nil {
		c.logger.Info("transaction submitted", map[string]any{
			"method":  method,
			"call_id": callID,
			"tx_hash": receipt.TxHash,
			"status":  receipt.Status,
			"ledger":  receipt.Ledger,
		})
	}
	return receipt, err
}

// simulate builds the envelope for inv and simulates it.
func (c *ContractClient) simulate(ctx context.Context, inv Invocation) (string, *Simulation, string, error) {
	tx, err := c.builder.Build(ctx, inv)
	if err != nil {
		return "", nil, OutcomeBuildFailed, types.WrapError(types.ErrTransientIO, err, "%s: build transaction", inv.Method)
	}

	sim, err := c.transport.Simulate(ctx, tx)
	if err != nil {
		return "", nil, OutcomeTransportFailed, types.WrapError(types.ErrTransientIO, err, "%s: simulate", inv.Method)
	}
	if sim.Error != "" {
		return "", nil, OutcomeSimulationFailed, contractFailure(inv.Method, sim.Error)
	}
	return tx, sim, OutcomeOK, nil
}

func (c *ContractClient) submit(ctx context.Context, inv Invocation, signer Signer) (*types.Receipt, string, error) {
	tx, sim, outcome, err := c.simulate(ctx, inv)
	if err != nil {
		return nil, outcome, err
	}

	assembled, err := c.builder.Assemble(ctx, tx, sim)
	if err != nil {
		return nil, OutcomeBuildFailed, types.WrapError(types.ErrTransientIO, err, "%s: assemble transaction", inv.Method)
	}

	signed, err := signer.SignTransaction(ctx, assembled, c.passphrase)
	if err != nil {
		return nil, OutcomeSignerRejected, types.WrapError(types.ErrSignerRejected, err, "%s: signer declined", inv.Method)
	}

	sent, err := c.transport.Send(ctx, signed)
	if err != nil {
		return nil, OutcomeTransportFailed, types.WrapError(types.ErrTransientIO, err, "%s: send", inv.Method)
	}

	receipt := &types.Receipt{
		Method:      inv.Method,
		TxHash:      sent.Hash,
		Status:      sent.Status,
		Fee:         sim.MinResourceFee,
		SubmittedAt: time.Now().UTC(),
		ReturnValue: sim.ResultXDR,
	}

	switch sent.Status {
	case types.TxStatusError:
		receipt.ResultDetail = sent.ErrorResultXDR
		return receipt, OutcomeSendRejected, &types.Error{
			Code:    types.ErrContractFailed,
			Message: inv.Method + ": transaction rejected by the network",
			Data:    sent.ErrorResultXDR,
		}
	case types.TxStatusTryAgainLater:
		return receipt, OutcomeSendRejected, types.NewError(types.ErrTransientIO, "%s: network asked to try again later", inv.Method)
	}

	return c.waitForConfirmation(ctx, receipt)
}

// waitForConfirmation polls until the transaction leaves NOT_FOUND or ctx
// expires.
func (c *ContractClient) waitForConfirmation(ctx context.Context, receipt *types.Receipt) (*types.Receipt, string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		res, err := c.transport.GetTransaction(ctx, receipt.TxHash)
		if err != nil && ctx.Err() == nil {
			c.logger.Warn("transaction status lookup failed", map[string]any{
				"tx_hash": receipt.TxHash,
				"error":   err.Error(),
			})
		}
		if err == nil {
			switch res.Status {
			case types.TxStatusSuccess:
				receipt.Status = res.Status
				receipt.Ledger = res.Ledger
				return receipt, OutcomeOK, nil
			case types.TxStatusFailed:
				receipt.Status = res.Status
				receipt.Ledger = res.Ledger
				receipt.ResultDetail = res.ResultXDR
				return receipt, OutcomeTransactionFailed, &types.Error{
					Code:    types.ErrContractFailed,
					Message: receipt.Method + ": transaction failed on chain",
					Data:    res.ResultXDR,
				}
			}
		}

		select {
		case <-ctx.Done():
			return receipt, OutcomeTimedOut, types.WrapError(types.ErrTransientIO, ctx.Err(),
				"%s: transaction %s not confirmed", receipt.Method, receipt.TxHash)
		case <-ticker.C:
		}
	}
}

func (c *ContractClient) observe(method, callID, outcome string, start time.Time, err error) {
	elapsed := time.Since(start)
	labels := map[string]string{"method": method, "outcome": outcome}
	c.metrics.IncCounter(metricContractCall, labels)
	c.metrics.ObserveLatency(metricContractCall, elapsed, labels)

	fields := map[string]any{
		"method":     method,
		"call_id":    callID,
		"outcome":    outcome,
		"latency_ms": elapsed.Milliseconds(),
	}
	if err == nil {
		c.logger.Debug("contract call", fields)
		return
	}
	fields["error"] = err.Error()
	if errors.Is(err, context.Canceled) {
		c.logger.Debug("contract call cancelled", fields)
		return
	}
	c.logger.Warn("contract call failed", fields)
}

func contractFailure(method, detail string) error {
	e := &types.Error{
		Code:    types.ErrContractFailed,
		Message: method + ": " + detail,
		Data:    detail,
	}
	if code, ok := types.ParseContractError(detail); ok {
		e.Message = method + ": " + code.Message()
		e.Data = code
	}
	return e
}
