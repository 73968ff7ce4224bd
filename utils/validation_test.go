package utils

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/handlepay/types"
)

func TestStroopConversion_RoundTrip(t *testing.T) {
	cases := []struct {
		amount  string
		stroops string
	}{
		{"12.5", "125000000"},
		{"0.0000001", "1"},
		{"1", "10000000"},
		{"10000000", "100000000000000"},
		{"0", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.amount, func(t *testing.T) {
			got, err := ToStroops(tc.amount)
			require.NoError(t, err)
			assert.Equal(t, tc.stroops, got.String())
			assert.Equal(t, tc.amount, FromStroops(got))
		})
	}
}

func TestToStroops_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "0.00000001", "1.23456789"} {
		_, err := ToStroops(in)
		assert.True(t, types.IsCode(err, types.ErrInvalidInput), in)
	}
}

func TestFromStroops_Nil(t *testing.T) {
	assert.Equal(t, "0", FromStroops(nil))
	assert.Equal(t, "0.5", FromStroops(big.NewInt(5_000_000)))
}

func TestParseStroops(t *testing.T) {
	n, err := ParseStroops("125000000")
	require.NoError(t, err)
	assert.Equal(t, int64(125_000_000), n.Int64())

	_, err = ParseStroops("12.5")
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

func TestUsernameContract(t *testing.T) {
	valid := []string{"abc", "alice_01", "A_B_C", strings.Repeat("x", 30)}
	invalid := []string{"", "ab", strings.Repeat("x", 31), "bad-name", "space d", "émile"}

	for _, u := range valid {
		assert.NoError(t, ValidateUsername(u), u)
	}
	for _, u := range invalid {
		err := ValidateUsername(u)
		assert.True(t, types.IsCode(err, types.ErrInvalidInput), u)
	}
}

func TestValidateAddressAndMessage(t *testing.T) {
	assert.NoError(t, ValidateAddress(types.DefaultContractID))
	assert.True(t, types.IsCode(ValidateAddress(""), types.ErrInvalidInput))
	assert.True(t, types.IsCode(ValidateAddress("GXYZ"), types.ErrInvalidInput))

	assert.NoError(t, ValidateMessage(strings.Repeat("m", MaxMessageLength)))
	assert.True(t, types.IsCode(ValidateMessage(strings.Repeat("m", MaxMessageLength+1)), types.ErrInvalidInput))
}
