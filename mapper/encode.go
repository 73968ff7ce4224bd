package mapper

import (
	"math"
	"math/big"

	"github.com/vitwit/handlepay/scval"
	"github.com/vitwit/handlepay/types"
)

var maxAmount = new(big.Int).SetUint64(math.MaxUint64)

// EncodeProfile renders p the way the contract stores it: a symbol-keyed
// map with keys in ascending order. Empty addresses are omitted.
func EncodeProfile(p *types.UserProfile) (*scval.Value, error) {
	if p == nil {
		return scval.Void(), nil
	}

	fields := make([]scval.Field, 0, 3)
	if p.Address != "" {
		addr, err := encodeAddress(FieldAddress, p.Address)
		if err != nil {
			return nil, err
		}
		fields = append(fields, scval.Field{Name: FieldAddress, Value: addr})
	}
	fields = append(fields,
		scval.Field{Name: FieldCreatedAt, Value: scval.U64(p.CreatedAt)},
		scval.Field{Name: FieldUsername, Value: scval.String(p.Username)},
	)
	return scval.Struct(fields...), nil
}

// EncodePayment renders p as a symbol-keyed map in ascending key order.
func EncodePayment(p *types.Payment) (*scval.Value, error) {
	if p == nil {
		return scval.Void(), nil
	}

	amount, err := EncodeAmount(p.Amount)
	if err != nil {
		return nil, err
	}

	fields := []scval.Field{
		{Name: FieldAmount, Value: amount},
		{Name: FieldClaimed, Value: scval.Bool(p.Claimed)},
		{Name: FieldMessage, Value: scval.String(p.Message)},
		{Name: FieldPaymentID, Value: scval.U64(p.PaymentID)},
		{Name: FieldRecipientUsername, Value: scval.String(p.RecipientUsername)},
	}
	if p.Sender != "" {
		sender, err := encodeAddress(FieldSender, p.Sender)
		if err != nil {
			return nil, err
		}
		fields = append(fields, scval.Field{Name: FieldSender, Value: sender})
	}
	fields = append(fields, scval.Field{Name: FieldTimestamp, Value: scval.U64(p.Timestamp)})
	if p.Token != "" {
		token, err := encodeAddress(FieldToken, p.Token)
		if err != nil {
			return nil, err
		}
		fields = append(fields, scval.Field{Name: FieldToken, Value: token})
	}
	return scval.Struct(fields...), nil
}

// EncodeAmount converts a smallest-unit amount into an i128 node. Only the
// range the decoder accepts back is encodable.
func EncodeAmount(amount *big.Int) (*scval.Value, error) {
	if amount == nil {
		return scval.I128(0, 0), nil
	}
	if amount.Sign() < 0 || amount.Cmp(maxAmount) > 0 {
		return nil, &types.Error{
			Code:    types.ErrValueOutOfRange,
			Message: "amount " + amount.String() + " is outside the encodable range",
			Data:    amount.String(),
		}
	}
	return scval.I128(0, amount.Uint64()), nil
}

func encodeAddress(field, addr string) (*scval.Value, error) {
	v, err := scval.AddressFromStrkey(addr)
	if err != nil {
		return nil, &types.Error{
			Code:    types.ErrInvalidInput,
			Message: field + ": " + err.Error(),
			Data:    field,
		}
	}
	return v, nil
}
