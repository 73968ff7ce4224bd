package scval

import (
	"fmt"
	"strings"

	"github.com/stellar/go-stellar-sdk/strkey"
)

// VersionByte selects the strkey prefix of an encoded identity.
type VersionByte = strkey.VersionByte

const (
	VersionAccountID = strkey.VersionByteAccountID // G...
	VersionContract  = strkey.VersionByteContract  // C...
)

const identityLen = 32

// EncodeStrkey renders a 32-byte identity in its canonical text form.
func EncodeStrkey(version VersionByte, payload []byte) (string, error) {
	if len(payload) != identityLen {
		return "", fmt.Errorf("strkey payload must be %d bytes, got %d", identityLen, len(payload))
	}
	return strkey.Encode(version, payload)
}

// DecodeStrkey parses a canonical account or contract identity and
// verifies its checksum.
func DecodeStrkey(s string) (VersionByte, []byte, error) {
	s = strings.TrimSpace(s)
	version, err := strkey.Version(s)
	if err != nil {
		return 0, nil, fmt.Errorf("strkey %q: %w", s, err)
	}
	if version != VersionAccountID && version != VersionContract {
		return 0, nil, fmt.Errorf("strkey %q: unsupported version byte %d", s, version)
	}
	payload, err := strkey.Decode(version, s)
	if err != nil {
		return 0, nil, fmt.Errorf("strkey %q: %w", s, err)
	}
	if len(payload) != identityLen {
		return 0, nil, fmt.Errorf("strkey %q: unexpected payload length %d", s, len(payload))
	}
	return version, payload, nil
}

// ValidStrkey reports whether s is a well-formed account or contract id.
func ValidStrkey(s string) bool {
	_, _, err := DecodeStrkey(s)
	return err == nil
}

// AddressFromStrkey builds an address node from its canonical text form.
func AddressFromStrkey(s string) (*Value, error) {
	version, payload, err := DecodeStrkey(s)
	if err != nil {
		return nil, err
	}
	if version == VersionContract {
		return ContractAddress(payload), nil
	}
	return AccountAddress(payload), nil
}
