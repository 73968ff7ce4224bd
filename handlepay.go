// Package handlepay is a client for the username escrow payment contract:
// payments are addressed to a registered username and held until the
// account that owns the username claims them.
package handlepay

import (
	"context"
	"time"

	"github.com/vitwit/handlepay/clients"
	"github.com/vitwit/handlepay/logger"
	"github.com/vitwit/handlepay/metrics"
	"github.com/vitwit/handlepay/payments"
	"github.com/vitwit/handlepay/settlement"
	"github.com/vitwit/handlepay/store"
	"github.com/vitwit/handlepay/types"
	"github.com/vitwit/handlepay/utils"
	"github.com/vitwit/handlepay/verification"
)

// HandlePay is the main struct that provides all handlepay functionality
type HandlePay struct {
	config *types.Config

	transport clients.Transport
	builder   clients.EnvelopeBuilder
	cache     store.UsernameCache
	marker    store.DisconnectMarker
	local     *store.Local
	debounce  time.Duration

	contract     *clients.PaymentContract
	enumerator   *payments.Enumerator
	identity     *verification.IdentityService
	availability *verification.AvailabilityChecker
	settlement   *settlement.SettlementService

	logger  logger.Logger
	metrics metrics.Recorder
	timeout time.Duration
}

// New creates a HandlePay instance for cfg. A nil cfg selects the testnet
// deployment. Without WithTransport a Soroban RPC transport is created;
// without WithEnvelopeBuilder envelopes are built locally with sequence
// numbers read through that connection.
func New(ctx context.Context, cfg *types.Config, opts ...Option) (*HandlePay, error) {
	if cfg == nil {
		cfg = types.DefaultConfig()
	}
	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "invalid config")
	}

	h := &HandlePay{
		config:  cfg,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: cfg.DefaultTimeout,
	}
	if h.timeout <= 0 {
		h.timeout = types.DefaultCallTimeout
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logger.With(h.logger, map[string]any{"contract": cfg.ContractID})

	if err := h.wire(ctx); err != nil {
		_ = h.Close()
		return nil, err
	}
	return h, nil
}

// NewWithDefaults creates a HandlePay instance for the testnet deployment.
func NewWithDefaults(ctx context.Context, opts ...Option) (*HandlePay, error) {
	return New(ctx, types.DefaultConfig(), opts...)
}

func (h *HandlePay) wire(ctx context.Context) error {
	if h.transport == nil {
		tr, err := clients.NewSorobanTransport(ctx, h.config.RPCUrl)
		if err != nil {
			return types.WrapError(types.ErrConfigError, err, "rpc endpoint %s", h.config.RPCUrl)
		}
		h.transport = tr
	}
	if h.builder == nil {
		accounts, _ := h.transport.(clients.AccountSource)
		h.builder = clients.NewEnvelopeBuilder(accounts, clients.DefaultBaseFee)
	}

	if h.config.StateDir != "" && (h.cache == nil || h.marker == nil) {
		local, err := store.OpenLocal(h.config.StateDir)
		if err != nil {
			return types.WrapError(types.ErrConfigError, err, "open state dir %s", h.config.StateDir)
		}
		h.local = local
		if h.cache == nil {
			h.cache = local.Usernames
		}
		if h.marker == nil {
			h.marker = local.Marker
		}
	}

	client, err := clients.NewContractClient(h.transport, h.builder, h.config.ContractID, h.config.NetworkPassphrase,
		clients.WithLogger(h.logger),
		clients.WithMetrics(h.metrics),
		clients.WithCallTimeout(h.timeout),
	)
	if err != nil {
		return err
	}
	h.contract = clients.NewPaymentContract(client)

	h.enumerator = payments.NewEnumerator(h.contract,
		payments.WithConcurrency(h.config.FetchConcurrency),
		payments.WithRateLimit(h.config.CallsPerSecond, h.config.CallBurst),
		payments.WithLogger(h.logger),
		payments.WithMetrics(h.metrics),
	)
	h.identity = verification.NewIdentityService(h.contract,
		verification.WithCache(h.cache),
		verification.WithDisconnectMarker(h.marker),
		verification.WithTimeout(h.timeout),
		verification.WithLogger(h.logger),
		verification.WithMetrics(h.metrics),
	)
	h.availability = verification.NewAvailabilityChecker(h.contract, h.debounce)
	h.settlement = settlement.NewSettlementService(h.contract, h.identity, h.config.NativeTokenID, h.timeout, h.logger)
	return nil
}

// GetProfile returns the profile registered under username, or nil.
func (h *HandlePay) GetProfile(ctx context.Context, username string) (*types.UserProfile, error) {
	return h.contract.GetProfile(ctx, username)
}

// GetPayment returns the payment with the given id, or nil.
func (h *HandlePay) GetPayment(ctx context.Context, paymentID uint64) (*types.Payment, error) {
	return h.contract.GetPayment(ctx, paymentID)
}

// ListPaymentIDs returns the ids indexed for username, skipping vacant or
// failing slots.
func (h *HandlePay) ListPaymentIDs(ctx context.Context, username string) ([]uint64, error) {
	return h.enumerator.ListPaymentIDs(ctx, username)
}

// ListPayments returns every payment addressed to username in index order.
func (h *HandlePay) ListPayments(ctx context.Context, username string) ([]*types.Payment, error) {
	return h.enumerator.ListPayments(ctx, username)
}

// ResolveUsername returns the verified username of address.
func (h *HandlePay) ResolveUsername(ctx context.Context, address string) (string, bool, error) {
	return h.identity.ResolveUsername(ctx, address)
}

// ResolveProfile returns the verified profile of address, or nil.
func (h *HandlePay) ResolveProfile(ctx context.Context, address string) (*types.UserProfile, error) {
	return h.identity.ResolveProfile(ctx, address)
}

// Validate reports whether username is currently registered to address.
func (h *HandlePay) Validate(ctx context.Context, address, username string) (bool, error) {
	return h.identity.Validate(ctx, address, username)
}

// Invalidate drops the cached username of address.
func (h *HandlePay) Invalidate(address string) error {
	return h.identity.Invalidate(address)
}

// Disconnect forgets address and suppresses auto-connect.
func (h *HandlePay) Disconnect(address string) error {
	return h.identity.Disconnect(address)
}

// Connect clears the disconnect marker and resolves the profile of address.
func (h *HandlePay) Connect(ctx context.Context, address string) (*types.UserProfile, error) {
	return h.identity.Connect(ctx, address)
}

// ShouldAutoConnect reports whether a previous session may be restored.
func (h *HandlePay) ShouldAutoConnect() (bool, error) {
	return h.identity.ShouldAutoConnect()
}

// CheckUsername reports whether username is well formed and unclaimed. A
// newer check supersedes one still in flight, which then fails with
// STALE_REQUEST.
func (h *HandlePay) CheckUsername(ctx context.Context, username string) (*verification.Availability, error) {
	return h.availability.Check(ctx, username)
}

// Register claims username for address and returns the resulting profile.
func (h *HandlePay) Register(ctx context.Context, address, username string, signer clients.Signer) (*types.Receipt, *types.UserProfile, error) {
	receipt, err := h.settlement.Register(ctx, &settlement.RegisterRequest{Address: address, Username: username}, signer)
	if err != nil {
		return receipt, nil, err
	}
	profile, err := h.identity.ResolveProfile(ctx, address)
	if err != nil {
		h.logger.Warn("registered profile not yet readable", map[string]any{
			"address": address,
			"error":   err.Error(),
		})
		return receipt, nil, nil
	}
	return receipt, profile, nil
}

// CreatePayment escrows req.Amount, given in native units, for
// req.RecipientUsername.
func (h *HandlePay) CreatePayment(ctx context.Context, req *settlement.CreatePaymentRequest, signer clients.Signer) (*settlement.PaymentResult, error) {
	return h.settlement.CreatePayment(ctx, req, signer)
}

// ClaimPayment releases paymentID to recipient.
func (h *HandlePay) ClaimPayment(ctx context.Context, recipient string, paymentID uint64, signer clients.Signer) (*types.Receipt, error) {
	return h.settlement.ClaimPayment(ctx, &settlement.ClaimPaymentRequest{Recipient: recipient, PaymentID: paymentID}, signer)
}

// ContractAddress returns the escrow contract id.
func (h *HandlePay) ContractAddress() string {
	return h.config.ContractID
}

// NativeTokenAddress returns the token contract used when a payment names
// no token.
func (h *HandlePay) NativeTokenAddress() string {
	return h.config.NativeTokenID
}

// Close cancels pending availability checks and releases the connection and
// local state.
func (h *HandlePay) Close() error {
	if h.availability != nil {
		h.availability.Cancel()
	}
	if h.transport != nil {
		h.transport.Close()
	}
	if h.local == nil {
		return nil
	}
	err := h.local.Close()
	h.local = nil
	return err
}

// Version information
const (
	Version           = "1.0.0"
	ContractInterface = 1
)

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version":    Version,
		"contract_interface": ContractInterface,
		"contract_methods": []string{
			clients.MethodRegister,
			clients.MethodGetProfile,
			clients.MethodGetUsernameByAddress,
			clients.MethodCreatePayment,
			clients.MethodClaimPayment,
			clients.MethodGetPayment,
			clients.MethodGetPaymentCount,
			clients.MethodGetPaymentIDAt,
		},
		"supported_networks": []string{
			types.NetworkTestnet.String(),
			types.NetworkPublic.String(),
		},
	}
}
