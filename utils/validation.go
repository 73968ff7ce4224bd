package utils

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/vitwit/handlepay/scval"
	"github.com/vitwit/handlepay/types"
)

// StroopDecimals is the number of decimal places of the native unit.
const StroopDecimals = 7

// MaxMessageLength is the longest payment message the contract accepts.
const MaxMessageLength = 500

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// IsValidUsername reports whether s is 3-30 characters of [A-Za-z0-9_].
func IsValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// ValidateUsername checks the username charset and length contract
func ValidateUsername(username string) error {
	if !IsValidUsername(username) {
		return &types.Error{
			Code:    types.ErrInvalidInput,
			Message: types.ContractInvalidUsername.Message(),
			Data:    username,
		}
	}
	return nil
}

// ValidateAddress checks that address is an account or contract strkey
func ValidateAddress(address string) error {
	if address == "" {
		return types.NewError(types.ErrInvalidInput, "address cannot be empty")
	}
	if !scval.ValidStrkey(address) {
		return &types.Error{
			Code:    types.ErrInvalidInput,
			Message: types.ContractInvalidAddress.Message(),
			Data:    address,
		}
	}
	return nil
}

// ValidateMessage checks the payment message length
func ValidateMessage(message string) error {
	if len(message) > MaxMessageLength {
		return &types.Error{
			Code:    types.ErrInvalidInput,
			Message: types.ContractMessageTooLong.Message(),
			Data:    len(message),
		}
	}
	return nil
}

// ValidateAmount checks if an amount string is a valid decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ToStroops converts a native-unit decimal string to its smallest-unit
// integer. Amounts finer than one stroop are rejected, not rounded.
func ToStroops(amount string) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidInput, err, "invalid amount %q", amount)
	}

	scaled := dec.Shift(StroopDecimals)
	if !scaled.IsInteger() {
		return nil, types.NewError(types.ErrInvalidInput,
			"amount %q has more than %d decimal places", amount, StroopDecimals)
	}
	return scaled.BigInt(), nil
}

// FromStroops formats a smallest-unit integer in native units, without
// trailing zeros.
func FromStroops(stroops *big.Int) string {
	if stroops == nil {
		return "0"
	}
	return decimal.NewFromBigInt(stroops, -StroopDecimals).String()
}

// ParseStroops parses a base-10 smallest-unit integer
func ParseStroops(value string) (*big.Int, error) {
	if value == "" {
		return nil, types.NewError(types.ErrInvalidInput, "value cannot be empty")
	}

	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, types.NewError(types.ErrInvalidInput, "invalid integer %q", value)
	}

	return n, nil
}
