// Package settlement runs the state-changing contract flows: registering a
// username, escrowing a payment and claiming it.
package settlement

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/vitwit/handlepay/clients"
	"github.com/vitwit/handlepay/logger"
	"github.com/vitwit/handlepay/types"
	"github.com/vitwit/handlepay/utils"
)

// Writer is the subset of the contract settlement needs.
type Writer interface {
	Register(ctx context.Context, caller, username string, signer clients.Signer) (*types.Receipt, error)
	CreatePayment(ctx context.Context, sender, recipientUsername, token string, amount *big.Int, message string, signer clients.Signer) (*types.Receipt, uint64, error)
	ClaimPayment(ctx context.Context, recipient string, paymentID uint64, signer clients.Signer) (*types.Receipt, error)
}

// Registrar learns pairings from successful registrations.
type Registrar interface {
	Remember(address, username string) error
}

// RegisterRequest binds a username to the caller's account.
type RegisterRequest struct {
	Address  string `json:"address"  validate:"required,strkey"`
	Username string `json:"username" validate:"required,username"`
}

// CreatePaymentRequest escrows Amount, in native units, for a username.
// Token defaults to the native asset.
type CreatePaymentRequest struct {
	Sender            string `json:"sender"             validate:"required,strkey"`
	RecipientUsername string `json:"recipient_username" validate:"required,username"`
	Token             string `json:"token,omitempty"    validate:"omitempty,strkey"`
	Amount            string `json:"amount"             validate:"required"`
	Message           string `json:"message"            validate:"max=500"`
}

// ClaimPaymentRequest releases an escrowed payment to its recipient.
type ClaimPaymentRequest struct {
	Recipient string `json:"recipient"  validate:"required,strkey"`
	PaymentID uint64 `json:"payment_id"`
}

// PaymentResult is the outcome of CreatePayment.
type PaymentResult struct {
	Receipt   *types.Receipt `json:"receipt"`
	PaymentID uint64         `json:"payment_id"`
	Stroops   *big.Int       `json:"stroops"`
}

// SettlementService validates requests before they reach the signer so
// that malformed input never costs the user a wallet prompt.
type SettlementService struct {
	writer      Writer
	registrar   Registrar
	nativeToken string
	timeout     time.Duration
	logger      logger.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(writer Writer, registrar Registrar, nativeToken string, timeout time.Duration, l logger.Logger) *SettlementService {
	if l == nil {
		l = logger.NoopLogger{}
	}
	if timeout <= 0 {
		timeout = types.DefaultCallTimeout
	}
	return &SettlementService{
		writer:      writer,
		registrar:   registrar,
		nativeToken: nativeToken,
		timeout:     timeout,
		logger:      l,
	}
}

// Register registers req.Username for req.Address and caches the pairing.
func (s *SettlementService) Register(ctx context.Context, req *RegisterRequest, signer clients.Signer) (*types.Receipt, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if err := utils.ValidateUsername(req.Username); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	receipt, err := s.writer.Register(ctx, req.Address, req.Username, signer)
	if err != nil {
		return receipt, err
	}

	if s.registrar != nil {
		if err := s.registrar.Remember(req.Address, req.Username); err != nil {
			s.logger.Warn("could not cache registered username", map[string]any{
				"address": req.Address,
				"error":   err.Error(),
			})
		}
	}
	s.logger.Info("username registered", map[string]any{
		"address":  req.Address,
		"username": req.Username,
		"tx_hash":  receipt.TxHash,
	})
	return receipt, nil
}

// CreatePayment converts req.Amount to stroops and escrows it.
func (s *SettlementService) CreatePayment(ctx context.Context, req *CreatePaymentRequest, signer clients.Signer) (*PaymentResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if err := utils.ValidateMessage(req.Message); err != nil {
		return nil, err
	}

	stroops, err := utils.ToStroops(req.Amount)
	if err != nil {
		return nil, err
	}
	if stroops.Sign() <= 0 {
		return nil, &types.Error{
			Code:    types.ErrInvalidInput,
			Message: types.ContractInvalidAmount.Message(),
			Data:    req.Amount,
		}
	}

	token := req.Token
	if token == "" {
		token = s.nativeToken
	}
	if err := utils.ValidateAddress(token); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	receipt, id, err := s.writer.CreatePayment(ctx, req.Sender, req.RecipientUsername, token, stroops, req.Message, signer)
	if err != nil {
		if receipt != nil {
			return &PaymentResult{Receipt: receipt, Stroops: stroops}, err
		}
		return nil, err
	}

	s.logger.Info("payment created", map[string]any{
		"payment_id": id,
		"recipient":  req.RecipientUsername,
		"stroops":    stroops.String(),
		"tx_hash":    receipt.TxHash,
	})
	return &PaymentResult{Receipt: receipt, PaymentID: id, Stroops: stroops}, nil
}

// ClaimPayment releases payment req.PaymentID to req.Recipient.
func (s *SettlementService) ClaimPayment(ctx context.Context, req *ClaimPaymentRequest, signer clients.Signer) (*types.Receipt, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	receipt, err := s.writer.ClaimPayment(ctx, req.Recipient, req.PaymentID, signer)
	if err != nil {
		return receipt, err
	}

	s.logger.Info("payment claimed", map[string]any{
		"payment_id": req.PaymentID,
		"recipient":  req.Recipient,
		"tx_hash":    receipt.TxHash,
	})
	return receipt, nil
}

func (s *SettlementService) validate(req any) error {
	if err := utils.ValidateStruct(req); err != nil {
		return &types.Error{
			Code:    types.ErrInvalidInput,
			Message: fmt.Sprintf("invalid request: %v", err),
		}
	}
	return nil
}
