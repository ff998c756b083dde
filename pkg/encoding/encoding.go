// Package encoding implements the Solidity "packed" (abi.encodePacked) layout for a closed
// set of typed values. Values carry no type tags on the wire: signer and verifier must agree
// on the type list out of band.
package encoding

import (
	"fmt"
	"math/big"

	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Kind enumerates the supported primitive types.
type Kind int

const (
	KindUint Kind = iota
	KindInt
	KindAddress
	KindBool
	KindFixedBytes
	KindBytes
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindAddress:
		return "address"
	case KindBool:
		return "bool"
	case KindFixedBytes:
		return "bytesN"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// TypedValue is a value bound to its declared type. The packed bytes are computed when the
// value is constructed, so a TypedValue that exists is always encodable.
type TypedValue struct {
	kind   Kind
	size   int // bit width for uint/int, byte width for bytesN, 0 otherwise
	packed []byte
}

// ParameterList is an ordered list of typed values. Order determines the byte layout.
type ParameterList []TypedValue

// Kind returns the value's kind.
func (tv TypedValue) Kind() Kind {
	return tv.kind
}

// Type returns the canonical Solidity type name, e.g. "uint256" or "bytes32".
func (tv TypedValue) Type() string {
	switch tv.kind {
	case KindUint:
		return fmt.Sprintf("uint%d", tv.size)
	case KindInt:
		return fmt.Sprintf("int%d", tv.size)
	case KindFixedBytes:
		return fmt.Sprintf("bytes%d", tv.size)
	default:
		return tv.kind.String()
	}
}

// Packed returns a copy of the value's packed encoding.
func (tv TypedValue) Packed() []byte {
	out := make([]byte, len(tv.packed))
	copy(out, tv.packed)
	return out
}

// Types returns the canonical type names of the list, in order.
func (pl ParameterList) Types() []string {
	out := make([]string, len(pl))
	for i, tv := range pl {
		out[i] = tv.Type()
	}
	return out
}

// Encode concatenates the packed encoding of every value with no delimiters.
func Encode(params ParameterList) []byte {
	size := 0
	for _, tv := range params {
		size += len(tv.packed)
	}
	out := make([]byte, 0, size)
	for _, tv := range params {
		out = append(out, tv.packed...)
	}
	return out
}

// EncodeValues is the dynamic form of Encode: it parses each (type, value) pair and packs
// the result. It fails with types.ErrInvalidValue on any mismatch.
func EncodeValues(typeNames []string, values []interface{}) ([]byte, error) {
	params, err := ParseAll(typeNames, values)
	if err != nil {
		return nil, err
	}
	return Encode(params), nil
}

func invalidValue(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidValue, fmt.Sprintf(format, args...))
}

func validIntegerBits(bits int) bool {
	return bits >= 8 && bits <= 256 && bits%8 == 0
}

// Uint builds a uintN value. bits must be a multiple of 8 in [8, 256].
func Uint(bits int, v *big.Int) (TypedValue, error) {
	if !validIntegerBits(bits) {
		return TypedValue{}, invalidValue("unsupported uint width %d", bits)
	}
	if v == nil {
		return TypedValue{}, invalidValue("uint%d value is nil", bits)
	}
	if v.Sign() < 0 {
		return TypedValue{}, invalidValue("uint%d cannot hold negative value %s", bits, v)
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return TypedValue{}, invalidValue("value %s overflows uint%d", v, bits)
	}
	return uintFromUint256(bits, u)
}

// Uint256 builds a uint256 value.
func Uint256(v *uint256.Int) (TypedValue, error) {
	if v == nil {
		return TypedValue{}, invalidValue("uint256 value is nil")
	}
	return uintFromUint256(256, v)
}

// Uint64 builds a uintN value from a native integer.
func Uint64(bits int, v uint64) (TypedValue, error) {
	if !validIntegerBits(bits) {
		return TypedValue{}, invalidValue("unsupported uint width %d", bits)
	}
	return uintFromUint256(bits, uint256.NewInt(v))
}

func uintFromUint256(bits int, u *uint256.Int) (TypedValue, error) {
	if u.BitLen() > bits {
		return TypedValue{}, invalidValue("value %s overflows uint%d", u.Dec(), bits)
	}
	word := u.Bytes32()
	width := bits / 8
	packed := make([]byte, width)
	copy(packed, word[32-width:])
	return TypedValue{kind: KindUint, size: bits, packed: packed}, nil
}

// Int builds an intN value encoded as N/8 bytes of two's complement.
func Int(bits int, v *big.Int) (TypedValue, error) {
	if !validIntegerBits(bits) {
		return TypedValue{}, invalidValue("unsupported int width %d", bits)
	}
	if v == nil {
		return TypedValue{}, invalidValue("int%d value is nil", bits)
	}

	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1)) // 2^(bits-1)
	minValue := new(big.Int).Neg(limit)
	if v.Cmp(minValue) < 0 || v.Cmp(limit) >= 0 {
		return TypedValue{}, invalidValue("value %s out of range for int%d", v, bits)
	}

	twos := new(big.Int).Set(v)
	if twos.Sign() < 0 {
		twos.Add(twos, new(big.Int).Lsh(big.NewInt(1), uint(bits)))
	}
	packed := make([]byte, bits/8)
	twos.FillBytes(packed)
	return TypedValue{kind: KindInt, size: bits, packed: packed}, nil
}

// Address builds a 20-byte address value.
func Address(addr common.Address) TypedValue {
	return TypedValue{kind: KindAddress, packed: addr.Bytes()}
}

// Bool builds a single-byte boolean value.
func Bool(b bool) TypedValue {
	packed := []byte{0x00}
	if b {
		packed[0] = 0x01
	}
	return TypedValue{kind: KindBool, packed: packed}
}

// FixedBytes builds a bytesN value. b must be exactly size bytes, size in [1, 32].
func FixedBytes(size int, b []byte) (TypedValue, error) {
	if size < 1 || size > 32 {
		return TypedValue{}, invalidValue("unsupported fixed bytes width %d", size)
	}
	if len(b) != size {
		return TypedValue{}, invalidValue("bytes%d requires exactly %d bytes, got %d", size, size, len(b))
	}
	packed := make([]byte, size)
	copy(packed, b)
	return TypedValue{kind: KindFixedBytes, size: size, packed: packed}, nil
}

// Bytes32 builds a bytes32 value.
func Bytes32(b [32]byte) TypedValue {
	packed := make([]byte, 32)
	copy(packed, b[:])
	return TypedValue{kind: KindFixedBytes, size: 32, packed: packed}
}

// Bytes builds a dynamic bytes value, packed raw with no length prefix.
func Bytes(b []byte) TypedValue {
	packed := make([]byte, len(b))
	copy(packed, b)
	return TypedValue{kind: KindBytes, packed: packed}
}

// String builds a dynamic string value, packed as raw UTF-8 with no length prefix.
func String(s string) TypedValue {
	return TypedValue{kind: KindString, packed: []byte(s)}
}
