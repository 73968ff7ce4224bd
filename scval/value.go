// Package scval models the tagged value trees returned by contract
// simulations and decodes them into typed Go values.
package scval

// Tag is the discriminator carried by every node of a value tree.
type Tag string

const (
	TagVoid    Tag = "void"
	TagString  Tag = "str"
	TagSymbol  Tag = "sym"
	TagU64     Tag = "u64"
	TagI128    Tag = "i128"
	TagBool    Tag = "b"
	TagAddress Tag = "address"
	TagMap     Tag = "map"
)

// AddressArm is the sub-tag of an address node.
type AddressArm string

const (
	ArmAccountID  AddressArm = "accountId"
	ArmContractID AddressArm = "contractId"
	ArmEd25519    AddressArm = "publicKeyTypeEd25519"
)

// Int128Parts is a 128-bit signed integer split into halves.
type Int128Parts struct {
	Hi int64
	Lo uint64
}

// AddressNode is one level of an address payload. A node either wraps
// another node (Inner) or carries the raw identity bytes.
type AddressNode struct {
	Arm   AddressArm
	Inner *AddressNode
	Bytes []byte
}

// MapEntry is a key/value pair of a map node, in wire order.
type MapEntry struct {
	Key *Value
	Val *Value
}

// Value is a node of a tagged value tree. Only the field selected by Tag
// is meaningful.
type Value struct {
	Tag     Tag
	Str     string
	U64     uint64
	I128    Int128Parts
	Bool    bool
	Address *AddressNode
	Map     []MapEntry
}

// Void returns the "no value" node.
func Void() *Value { return &Value{Tag: TagVoid} }

// String returns a str node.
func String(s string) *Value { return &Value{Tag: TagString, Str: s} }

// Symbol returns a sym node.
func Symbol(s string) *Value { return &Value{Tag: TagSymbol, Str: s} }

// U64 returns a u64 node.
func U64(n uint64) *Value { return &Value{Tag: TagU64, U64: n} }

// I128 returns an i128 node.
func I128(hi int64, lo uint64) *Value {
	return &Value{Tag: TagI128, I128: Int128Parts{Hi: hi, Lo: lo}}
}

// Bool returns a b node.
func Bool(b bool) *Value { return &Value{Tag: TagBool, Bool: b} }

// AccountAddress wraps an ed25519 public key two levels deep, the way
// account identities arrive on the wire.
func AccountAddress(pub []byte) *Value {
	return &Value{Tag: TagAddress, Address: &AddressNode{
		Arm:   ArmAccountID,
		Inner: &AddressNode{Arm: ArmEd25519, Bytes: pub},
	}}
}

// ContractAddress wraps a contract hash one level deep.
func ContractAddress(hash []byte) *Value {
	return &Value{Tag: TagAddress, Address: &AddressNode{Arm: ArmContractID, Bytes: hash}}
}

// Struct builds a map node keyed by symbols, preserving field order.
func Struct(fields ...Field) *Value {
	entries := make([]MapEntry, 0, len(fields))
	for _, f := range fields {
		entries = append(entries, MapEntry{Key: Symbol(f.Name), Val: f.Value})
	}
	return &Value{Tag: TagMap, Map: entries}
}

// Field is a named value used to build struct-like map nodes.
type Field struct {
	Name  string
	Value *Value
}
