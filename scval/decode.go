package scval

import (
	"math/big"
	"strconv"

	"github.com/vitwit/handlepay/types"
)

// Kind enumerates the variants of a decoded value.
type Kind int

const (
	KindAbsent Kind = iota
	KindString
	KindBool
	KindU64
	KindI128
	KindAddress
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindU64:
		return "u64"
	case KindI128:
		return "i128"
	case KindAddress:
		return "address"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Decoded is the typed form of a value tree. Str holds both string
// payloads and canonical address encodings.
type Decoded struct {
	Kind    Kind
	Str     string
	Bool    bool
	U64     uint64
	I128    *big.Int
	Entries []Entry
}

// Entry is a named field of a decoded map, in wire order.
type Entry struct {
	Name  string
	Value Decoded
}

// IsAbsent reports whether the value is the "no value" variant.
func (d Decoded) IsAbsent() bool { return d.Kind == KindAbsent }

// Decode converts a value tree into its typed form. A nil tree or a void
// node decodes to the absent variant; any tag outside the known set fails
// with UNSUPPORTED_VALUE_SHAPE.
func Decode(v *Value) (Decoded, error) {
	if v == nil {
		return Decoded{Kind: KindAbsent}, nil
	}

	switch v.Tag {
	case TagVoid:
		return Decoded{Kind: KindAbsent}, nil
	case TagString, TagSymbol:
		return Decoded{Kind: KindString, Str: v.Str}, nil
	case TagBool:
		return Decoded{Kind: KindBool, Bool: v.Bool}, nil
	case TagU64:
		return Decoded{Kind: KindU64, U64: v.U64}, nil
	case TagI128:
		if v.I128.Hi != 0 {
			return Decoded{}, &types.Error{
				Code:    types.ErrValueOutOfRange,
				Message: "i128 value exceeds the supported 64-bit magnitude",
				Data:    v.I128,
			}
		}
		return Decoded{Kind: KindI128, I128: new(big.Int).SetUint64(v.I128.Lo)}, nil
	case TagAddress:
		addr, err := decodeAddress(v.Address)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: KindAddress, Str: addr}, nil
	case TagMap:
		return decodeMap(v.Map)
	default:
		return Decoded{}, &types.Error{
			Code:    types.ErrUnsupportedValueShape,
			Message: "unsupported value tag " + quote(string(v.Tag)),
			Data:    string(v.Tag),
		}
	}
}

func decodeMap(entries []MapEntry) (Decoded, error) {
	out := make([]Entry, 0, len(entries))
	for i, e := range entries {
		if e.Key == nil || (e.Key.Tag != TagString && e.Key.Tag != TagSymbol) {
			return Decoded{}, &types.Error{
				Code:    types.ErrUnsupportedValueShape,
				Message: "map entry key is not a string or symbol",
				Data:    i,
			}
		}
		val, err := Decode(e.Val)
		if err != nil {
			return Decoded{}, &types.Error{
				Code:    types.CodeOf(err),
				Message: "field " + quote(e.Key.Str) + ": " + err.Error(),
				Data:    e.Key.Str,
			}
		}
		out = append(out, Entry{Name: e.Key.Str, Value: val})
	}
	return Decoded{Kind: KindMap, Entries: out}, nil
}

// decodeAddress unwraps exactly the levels announced by the sub-tags and
// picks the text encoding from the outer arm.
func decodeAddress(n *AddressNode) (string, error) {
	if n == nil {
		return "", unsupportedAddress("address node has no payload")
	}

	switch n.Arm {
	case ArmAccountID:
		pub := n.Bytes
		if n.Inner != nil {
			if n.Inner.Arm != ArmEd25519 || n.Inner.Inner != nil {
				return "", unsupportedAddress("account identity with sub-tag " + quote(string(n.Inner.Arm)))
			}
			pub = n.Inner.Bytes
		}
		s, err := EncodeStrkey(VersionAccountID, pub)
		if err != nil {
			return "", unsupportedAddress(err.Error())
		}
		return s, nil
	case ArmContractID:
		if n.Inner != nil {
			return "", unsupportedAddress("contract identity must carry raw bytes")
		}
		s, err := EncodeStrkey(VersionContract, n.Bytes)
		if err != nil {
			return "", unsupportedAddress(err.Error())
		}
		return s, nil
	default:
		return "", unsupportedAddress("unknown address sub-tag " + quote(string(n.Arm)))
	}
}

func unsupportedAddress(detail string) error {
	return &types.Error{
		Code:    types.ErrUnsupportedValueShape,
		Message: "address: " + detail,
	}
}

func quote(s string) string {
	return strconv.Quote(s)
}
