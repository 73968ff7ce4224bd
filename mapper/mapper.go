// Package mapper assembles domain records from decoded contract values and
// encodes them back into value trees.
package mapper

import (
	"fmt"
	"math/big"

	"github.com/vitwit/handlepay/scval"
	"github.com/vitwit/handlepay/types"
)

// Profile field names as emitted by the contract.
const (
	FieldAddress   = "address"
	FieldUsername  = "username"
	FieldCreatedAt = "created_at"
)

// Payment field names as emitted by the contract.
const (
	FieldPaymentID         = "payment_id"
	FieldRecipientUsername = "recipient_username"
	FieldSender            = "sender"
	FieldToken             = "token"
	FieldAmount            = "amount"
	FieldMessage           = "message"
	FieldTimestamp         = "timestamp"
	FieldClaimed           = "claimed"
)

// Profile maps an Option<UserProfile> result. An absent value yields
// (nil, nil).
func Profile(d scval.Decoded) (*types.UserProfile, error) {
	if d.IsAbsent() {
		return nil, nil
	}
	if d.Kind != scval.KindMap {
		return nil, mismatch("profile", scval.KindMap, d.Kind)
	}
	return MapProfile(d.Entries)
}

// Payment maps an Option<Payment> result. An absent value yields (nil, nil).
func Payment(d scval.Decoded) (*types.Payment, error) {
	if d.IsAbsent() {
		return nil, nil
	}
	if d.Kind != scval.KindMap {
		return nil, mismatch("payment", scval.KindMap, d.Kind)
	}
	return MapPayment(d.Entries)
}

// MapProfile builds a profile from named entries. Unknown names are ignored.
func MapProfile(entries []scval.Entry) (*types.UserProfile, error) {
	f := fields(entries)

	username, err := f.requiredString(FieldUsername)
	if err != nil {
		return nil, err
	}
	address, err := f.address(FieldAddress)
	if err != nil {
		return nil, err
	}
	createdAt, err := f.u64(FieldCreatedAt)
	if err != nil {
		return nil, err
	}

	return &types.UserProfile{
		Address:   address,
		Username:  username,
		CreatedAt: createdAt,
	}, nil
}

// MapPayment builds a payment from named entries. Unknown names are ignored.
func MapPayment(entries []scval.Entry) (*types.Payment, error) {
	f := fields(entries)

	id, ok := f.lookup(FieldPaymentID)
	if !ok {
		return nil, missing(FieldPaymentID)
	}
	if id.Kind != scval.KindU64 {
		return nil, mismatch(FieldPaymentID, scval.KindU64, id.Kind)
	}

	p := &types.Payment{PaymentID: id.U64}
	var err error
	if p.RecipientUsername, err = f.string(FieldRecipientUsername); err != nil {
		return nil, err
	}
	if p.Sender, err = f.address(FieldSender); err != nil {
		return nil, err
	}
	if p.Token, err = f.address(FieldToken); err != nil {
		return nil, err
	}
	if p.Amount, err = f.i128(FieldAmount); err != nil {
		return nil, err
	}
	if p.Message, err = f.string(FieldMessage); err != nil {
		return nil, err
	}
	if p.Timestamp, err = f.u64(FieldTimestamp); err != nil {
		return nil, err
	}
	if p.Claimed, err = f.bool(FieldClaimed); err != nil {
		return nil, err
	}
	return p, nil
}

// fields is a name lookup over entries; the first entry with a name wins.
type fields []scval.Entry

// lookup treats an entry holding the absent variant like a missing entry.
func (f fields) lookup(name string) (scval.Decoded, bool) {
	for _, e := range f {
		if e.Name == name {
			return e.Value, !e.Value.IsAbsent()
		}
	}
	return scval.Decoded{}, false
}

func (f fields) requiredString(name string) (string, error) {
	d, ok := f.lookup(name)
	if !ok {
		return "", missing(name)
	}
	if d.Kind != scval.KindString {
		return "", mismatch(name, scval.KindString, d.Kind)
	}
	return d.Str, nil
}

func (f fields) string(name string) (string, error) {
	d, ok := f.lookup(name)
	if !ok {
		return "", nil
	}
	if d.Kind != scval.KindString {
		return "", mismatch(name, scval.KindString, d.Kind)
	}
	return d.Str, nil
}

func (f fields) address(name string) (string, error) {
	d, ok := f.lookup(name)
	if !ok {
		return "", nil
	}
	if d.Kind != scval.KindAddress {
		return "", mismatch(name, scval.KindAddress, d.Kind)
	}
	return d.Str, nil
}

func (f fields) u64(name string) (uint64, error) {
	d, ok := f.lookup(name)
	if !ok {
		return 0, nil
	}
	if d.Kind != scval.KindU64 {
		return 0, mismatch(name, scval.KindU64, d.Kind)
	}
	return d.U64, nil
}

func (f fields) i128(name string) (*big.Int, error) {
	d, ok := f.lookup(name)
	if !ok {
		return new(big.Int), nil
	}
	if d.Kind != scval.KindI128 {
		return nil, mismatch(name, scval.KindI128, d.Kind)
	}
	return d.I128, nil
}

func (f fields) bool(name string) (bool, error) {
	d, ok := f.lookup(name)
	if !ok {
		return false, nil
	}
	if d.Kind != scval.KindBool {
		return false, mismatch(name, scval.KindBool, d.Kind)
	}
	return d.Bool, nil
}

func missing(field string) error {
	return &types.Error{
		Code:    types.ErrMissingRequiredField,
		Message: fmt.Sprintf("required field %q is missing", field),
		Data:    field,
	}
}

func mismatch(field string, expected, actual scval.Kind) error {
	return &types.Error{
		Code:    types.ErrTypeMismatch,
		Message: fmt.Sprintf("field %q: expected %s, got %s", field, expected, actual),
		Data: types.FieldMismatch{
			Field:    field,
			Expected: expected.String(),
			Actual:   actual.String(),
		},
	}
}
