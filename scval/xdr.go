package scval

import (
	"fmt"

	"github.com/stellar/go-stellar-sdk/xdr"

	"github.com/vitwit/handlepay/types"
)

const maxDepth = 32

// FromBase64 parses a base64 XDR value, the form in which simulation
// results are returned by the RPC endpoint.
func FromBase64(s string) (*Value, error) {
	var sc xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(s, &sc); err != nil {
		return nil, fmt.Errorf("scval: invalid xdr: %w", err)
	}
	return FromXDR(sc)
}

// ToBase64 renders v as base64 XDR.
func ToBase64(v *Value) (string, error) {
	sc, err := ToXDR(v)
	if err != nil {
		return "", err
	}
	return xdr.MarshalBase64(sc)
}

// UnmarshalXDR parses exactly one value from raw.
func UnmarshalXDR(raw []byte) (*Value, error) {
	var sc xdr.ScVal
	if err := xdr.SafeUnmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("scval: invalid xdr: %w", err)
	}
	return FromXDR(sc)
}

// MarshalXDR encodes v.
func MarshalXDR(v *Value) ([]byte, error) {
	sc, err := ToXDR(v)
	if err != nil {
		return nil, err
	}
	return sc.MarshalBinary()
}

// FromXDR converts a wire value into a tree. Kinds the contract never
// returns fail with UNSUPPORTED_VALUE_SHAPE.
func FromXDR(sc xdr.ScVal) (*Value, error) {
	return fromXDR(sc, 0)
}

func fromXDR(sc xdr.ScVal, depth int) (*Value, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("scval: nesting deeper than %d", maxDepth)
	}

	switch sc.Type {
	case xdr.ScValTypeScvVoid:
		return Void(), nil
	case xdr.ScValTypeScvBool:
		if sc.B == nil {
			return nil, missingArm(sc.Type)
		}
		return Bool(*sc.B), nil
	case xdr.ScValTypeScvU64:
		if sc.U64 == nil {
			return nil, missingArm(sc.Type)
		}
		return U64(uint64(*sc.U64)), nil
	case xdr.ScValTypeScvI128:
		if sc.I128 == nil {
			return nil, missingArm(sc.Type)
		}
		return I128(int64(sc.I128.Hi), uint64(sc.I128.Lo)), nil
	case xdr.ScValTypeScvString:
		if sc.Str == nil {
			return nil, missingArm(sc.Type)
		}
		return String(string(*sc.Str)), nil
	case xdr.ScValTypeScvSymbol:
		if sc.Sym == nil {
			return nil, missingArm(sc.Type)
		}
		return Symbol(string(*sc.Sym)), nil
	case xdr.ScValTypeScvAddress:
		if sc.Address == nil {
			return nil, missingArm(sc.Type)
		}
		node, err := addressFromXDR(*sc.Address)
		if err != nil {
			return nil, err
		}
		return &Value{Tag: TagAddress, Address: node}, nil
	case xdr.ScValTypeScvMap:
		if sc.Map == nil || *sc.Map == nil {
			return &Value{Tag: TagMap}, nil
		}
		m := **sc.Map
		entries := make([]MapEntry, 0, len(m))
		for _, e := range m {
			key, err := fromXDR(e.Key, depth+1)
			if err != nil {
				return nil, err
			}
			val, err := fromXDR(e.Val, depth+1)
			if err != nil {
				return nil, err
			}
			entries = append(entries, MapEntry{Key: key, Val: val})
		}
		return &Value{Tag: TagMap, Map: entries}, nil
	default:
		return nil, &types.Error{
			Code:    types.ErrUnsupportedValueShape,
			Message: "scval: unsupported value type " + sc.Type.String(),
			Data:    sc.Type.String(),
		}
	}
}

func addressFromXDR(addr xdr.ScAddress) (*AddressNode, error) {
	switch addr.Type {
	case xdr.ScAddressTypeScAddressTypeAccount:
		if addr.AccountId == nil {
			return nil, unsupportedAddress("account arm has no key")
		}
		if addr.AccountId.Type != xdr.PublicKeyTypePublicKeyTypeEd25519 || addr.AccountId.Ed25519 == nil {
			return nil, unsupportedAddress("public key type " + addr.AccountId.Type.String())
		}
		pub := *addr.AccountId.Ed25519
		return &AddressNode{Arm: ArmAccountID, Inner: &AddressNode{Arm: ArmEd25519, Bytes: pub[:]}}, nil
	case xdr.ScAddressTypeScAddressTypeContract:
		if addr.ContractId == nil {
			return nil, unsupportedAddress("contract arm has no hash")
		}
		hash := *addr.ContractId
		return &AddressNode{Arm: ArmContractID, Bytes: hash[:]}, nil
	default:
		return nil, unsupportedAddress("address type " + addr.Type.String())
	}
}

// ToXDR converts a tree into its wire value. Used for invocation
// arguments and test fixtures.
func ToXDR(v *Value) (xdr.ScVal, error) {
	return toXDR(v, 0)
}

func toXDR(v *Value, depth int) (xdr.ScVal, error) {
	if depth > maxDepth {
		return xdr.ScVal{}, fmt.Errorf("scval: nesting deeper than %d", maxDepth)
	}
	if v == nil {
		return xdr.ScVal{Type: xdr.ScValTypeScvVoid}, nil
	}

	switch v.Tag {
	case TagVoid:
		return xdr.ScVal{Type: xdr.ScValTypeScvVoid}, nil
	case TagBool:
		b := v.Bool
		return xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b}, nil
	case TagU64:
		n := xdr.Uint64(v.U64)
		return xdr.ScVal{Type: xdr.ScValTypeScvU64, U64: &n}, nil
	case TagI128:
		parts := xdr.Int128Parts{Hi: xdr.Int64(v.I128.Hi), Lo: xdr.Uint64(v.I128.Lo)}
		return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &parts}, nil
	case TagString:
		s := xdr.ScString(v.Str)
		return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &s}, nil
	case TagSymbol:
		sym := xdr.ScSymbol(v.Str)
		return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}, nil
	case TagAddress:
		addr, err := addressToXDR(v.Address)
		if err != nil {
			return xdr.ScVal{}, err
		}
		return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr}, nil
	case TagMap:
		m := make(xdr.ScMap, 0, len(v.Map))
		for _, e := range v.Map {
			key, err := toXDR(e.Key, depth+1)
			if err != nil {
				return xdr.ScVal{}, err
			}
			val, err := toXDR(e.Val, depth+1)
			if err != nil {
				return xdr.ScVal{}, err
			}
			m = append(m, xdr.ScMapEntry{Key: key, Val: val})
		}
		pm := &m
		return xdr.ScVal{Type: xdr.ScValTypeScvMap, Map: &pm}, nil
	default:
		return xdr.ScVal{}, &types.Error{
			Code:    types.ErrUnsupportedValueShape,
			Message: "scval: cannot encode tag " + quote(string(v.Tag)),
			Data:    string(v.Tag),
		}
	}
}

func addressToXDR(n *AddressNode) (xdr.ScAddress, error) {
	if n == nil {
		return xdr.ScAddress{}, unsupportedAddress("address node has no payload")
	}
	switch n.Arm {
	case ArmAccountID:
		pub := n.Bytes
		if n.Inner != nil {
			pub = n.Inner.Bytes
		}
		if len(pub) != identityLen {
			return xdr.ScAddress{}, unsupportedAddress(fmt.Sprintf("account key must be %d bytes", identityLen))
		}
		var key xdr.Uint256
		copy(key[:], pub)
		id := xdr.AccountId{Type: xdr.PublicKeyTypePublicKeyTypeEd25519, Ed25519: &key}
		return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeAccount, AccountId: &id}, nil
	case ArmContractID:
		if len(n.Bytes) != identityLen {
			return xdr.ScAddress{}, unsupportedAddress(fmt.Sprintf("contract hash must be %d bytes", identityLen))
		}
		var id xdr.ContractId
		copy(id[:], n.Bytes)
		return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &id}, nil
	default:
		return xdr.ScAddress{}, unsupportedAddress("unknown address sub-tag " + quote(string(n.Arm)))
	}
}

// ScAddress returns the wire address of an account or contract strkey.
func ScAddress(s string) (xdr.ScAddress, error) {
	v, err := AddressFromStrkey(s)
	if err != nil {
		return xdr.ScAddress{}, err
	}
	return addressToXDR(v.Address)
}

func missingArm(t xdr.ScValType) error {
	return fmt.Errorf("scval: %s value has no payload", t.String())
}
