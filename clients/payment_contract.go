package clients

import (
	"context"
	"math/big"

	"github.com/vitwit/handlepay/mapper"
	"github.com/vitwit/handlepay/scval"
	"github.com/vitwit/handlepay/types"
)

// Contract method names.
const (
	MethodRegister             = "register"
	MethodGetProfile           = "get_profile"
	MethodGetUsernameByAddress = "get_username_by_address"
	MethodCreatePayment        = "create_payment"
	MethodClaimPayment         = "claim_payment"
	MethodGetPayment           = "get_payment"
	MethodGetPaymentCount      = "get_payment_count"
	MethodGetPaymentIDAt       = "get_payment_id_at"
)

// PaymentContract exposes the escrow contract's methods with Go types.
// Option results map to (nil, nil) or ok=false when absent.
type PaymentContract struct {
	client *ContractClient
}

func NewPaymentContract(client *ContractClient) *PaymentContract {
	return &PaymentContract{client: client}
}

// Client returns the underlying contract client.
func (p *PaymentContract) Client() *ContractClient { return p.client }

func (p *PaymentContract) GetProfile(ctx context.Context, username string) (*types.UserProfile, error) {
	d, err := p.read(ctx, MethodGetProfile, scval.String(username))
	if err != nil {
		return nil, err
	}
	return mapper.Profile(d)
}

func (p *PaymentContract) GetUsernameByAddress(ctx context.Context, address string) (string, bool, error) {
	addr, err := addressArg("address", address)
	if err != nil {
		return "", false, err
	}
	d, err := p.read(ctx, MethodGetUsernameByAddress, addr)
	if err != nil {
		return "", false, err
	}
	switch d.Kind {
	case scval.KindAbsent:
		return "", false, nil
	case scval.KindString:
		return d.Str, true, nil
	default:
		return "", false, resultMismatch(MethodGetUsernameByAddress, scval.KindString, d.Kind)
	}
}

// CheckUsername reports whether no profile is registered under username.
func (p *PaymentContract) CheckUsername(ctx context.Context, username string) (bool, error) {
	profile, err := p.GetProfile(ctx, username)
	if err != nil {
		return false, err
	}
	return profile == nil, nil
}

func (p *PaymentContract) GetPayment(ctx context.Context, paymentID uint64) (*types.Payment, error) {
	d, err := p.read(ctx, MethodGetPayment, scval.U64(paymentID))
	if err != nil {
		return nil, err
	}
	return mapper.Payment(d)
}

func (p *PaymentContract) GetPaymentCount(ctx context.Context, username string) (uint64, error) {
	d, err := p.read(ctx, MethodGetPaymentCount, scval.String(username))
	if err != nil {
		return 0, err
	}
	if d.Kind != scval.KindU64 {
		return 0, resultMismatch(MethodGetPaymentCount, scval.KindU64, d.Kind)
	}
	return d.U64, nil
}

func (p *PaymentContract) GetPaymentIDAt(ctx context.Context, username string, index uint64) (uint64, bool, error) {
	d, err := p.read(ctx, MethodGetPaymentIDAt, scval.String(username), scval.U64(index))
	if err != nil {
		return 0, false, err
	}
	switch d.Kind {
	case scval.KindAbsent:
		return 0, false, nil
	case scval.KindU64:
		return d.U64, true, nil
	default:
		return 0, false, resultMismatch(MethodGetPaymentIDAt, scval.KindU64, d.Kind)
	}
}

func (p *PaymentContract) Register(ctx context.Context, caller, username string, signer Signer) (*types.Receipt, error) {
	addr, err := addressArg("caller", caller)
	if err != nil {
		return nil, err
	}
	return p.client.Submit(ctx, caller, MethodRegister, []*scval.Value{addr, scval.String(username)}, signer)
}

// CreatePayment escrows amount (smallest unit) of token for the recipient.
// The returned id is the simulated return value of the call.
func (p *PaymentContract) CreatePayment(
	ctx context.Context,
	sender string,
	recipientUsername string,
	token string,
	amount *big.Int,
	message string,
	signer Signer,
) (*types.Receipt, uint64, error) {
	senderArg, err := addressArg("sender", sender)
	if err != nil {
		return nil, 0, err
	}
	tokenArg, err := addressArg("token", token)
	if err != nil {
		return nil, 0, err
	}
	amountArg, err := mapper.EncodeAmount(amount)
	if err != nil {
		return nil, 0, err
	}

	receipt, err := p.client.Submit(ctx, sender, MethodCreatePayment, []*scval.Value{
		senderArg,
		scval.String(recipientUsername),
		tokenArg,
		amountArg,
		scval.String(message),
	}, signer)
	if err != nil {
		return receipt, 0, err
	}

	id, err := returnedID(receipt.ReturnValue)
	if err != nil {
		return receipt, 0, err
	}
	return receipt, id, nil
}

func (p *PaymentContract) ClaimPayment(ctx context.Context, recipient string, paymentID uint64, signer Signer) (*types.Receipt, error) {
	addr, err := addressArg("recipient", recipient)
	if err != nil {
		return nil, err
	}
	return p.client.Submit(ctx, recipient, MethodClaimPayment, []*scval.Value{addr, scval.U64(paymentID)}, signer)
}

func (p *PaymentContract) read(ctx context.Context, method string, args ...*scval.Value) (scval.Decoded, error) {
	raw, err := p.client.Call(ctx, method, args...)
	if err != nil {
		return scval.Decoded{}, err
	}
	return scval.Decode(raw)
}

func returnedID(resultXDR string) (uint64, error) {
	if resultXDR == "" {
		return 0, nil
	}
	v, err := scval.FromBase64(resultXDR)
	if err != nil {
		return 0, err
	}
	d, err := scval.Decode(v)
	if err != nil {
		return 0, err
	}
	if d.Kind != scval.KindU64 {
		return 0, resultMismatch(MethodCreatePayment, scval.KindU64, d.Kind)
	}
	return d.U64, nil
}

func addressArg(name, address string) (*scval.Value, error) {
	v, err := scval.AddressFromStrkey(address)
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidInput, err, "invalid %s address", name)
	}
	return v, nil
}

func resultMismatch(method string, expected, actual scval.Kind) error {
	return &types.Error{
		Code:    types.ErrTypeMismatch,
		Message: method + ": expected " + expected.String() + " result, got " + actual.String(),
		Data: types.FieldMismatch{
			Field:    method,
			Expected: expected.String(),
			Actual:   actual.String(),
		},
	}
}
