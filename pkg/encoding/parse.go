package encoding

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// ParseAll parses parallel type and value lists into a ParameterList.
func ParseAll(typeNames []string, values []interface{}) (ParameterList, error) {
	if len(typeNames) != len(values) {
		return nil, invalidValue("type count %d does not match value count %d", len(typeNames), len(values))
	}
	params := make(ParameterList, 0, len(typeNames))
	for i, typeName := range typeNames {
		tv, err := Parse(typeName, values[i])
		if err != nil {
			return nil, err
		}
		params = append(params, tv)
	}
	return params, nil
}

// ParseJSON parses a type name and a raw JSON value. Numbers are decoded without float
// rounding.
func ParseJSON(typeName string, raw json.RawMessage) (TypedValue, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return TypedValue{}, invalidValue("malformed JSON value for %s: %v", typeName, err)
	}
	return Parse(typeName, value)
}

// Parse builds a TypedValue from a Solidity type name and a loosely typed Go value, the way
// a dynamic packer would. Supported type names: uint<N>, int<N>, uint, int, address, bool,
// bytes<N>, byte, bytes, string.
func Parse(typeName string, value interface{}) (TypedValue, error) {
	name := strings.TrimSpace(typeName)
	switch {
	case name == "address":
		addr, err := toAddress(value)
		if err != nil {
			return TypedValue{}, err
		}
		return Address(addr), nil
	case name == "bool":
		b, err := toBool(value)
		if err != nil {
			return TypedValue{}, err
		}
		return Bool(b), nil
	case name == "string":
		s, ok := value.(string)
		if !ok {
			return TypedValue{}, invalidValue("string requires a Go string, got %T", value)
		}
		return String(s), nil
	case name == "bytes":
		b, err := toBytes(value)
		if err != nil {
			return TypedValue{}, err
		}
		return Bytes(b), nil
	case name == "byte":
		return parseFixedBytes(1, value)
	case strings.HasPrefix(name, "bytes"):
		size, err := parseWidth(name, "bytes")
		if err != nil {
			return TypedValue{}, err
		}
		return parseFixedBytes(size, value)
	case strings.HasPrefix(name, "uint"):
		bits, err := parseIntegerWidth(name, "uint")
		if err != nil {
			return TypedValue{}, err
		}
		if u, ok := value.(*uint256.Int); ok {
			if u == nil {
				return TypedValue{}, invalidValue("%s value is nil", name)
			}
			return uintFromUint256(bits, u)
		}
		v, err := toBigInt(value)
		if err != nil {
			return TypedValue{}, err
		}
		return Uint(bits, v)
	case strings.HasPrefix(name, "int"):
		bits, err := parseIntegerWidth(name, "int")
		if err != nil {
			return TypedValue{}, err
		}
		v, err := toBigInt(value)
		if err != nil {
			return TypedValue{}, err
		}
		return Int(bits, v)
	default:
		return TypedValue{}, invalidValue("unsupported type %q", typeName)
	}
}

func parseIntegerWidth(name, prefix string) (int, error) {
	if name == prefix {
		return 256, nil
	}
	bits, err := parseWidth(name, prefix)
	if err != nil {
		return 0, err
	}
	if !validIntegerBits(bits) {
		return 0, invalidValue("unsupported type %q", name)
	}
	return bits, nil
}

func parseWidth(name, prefix string) (int, error) {
	width, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
	if err != nil {
		return 0, invalidValue("unsupported type %q", name)
	}
	return width, nil
}

func parseFixedBytes(size int, value interface{}) (TypedValue, error) {
	b, err := toBytes(value)
	if err != nil {
		return TypedValue{}, err
	}
	return FixedBytes(size, b)
}

func toBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, invalidValue("integer value is nil")
		}
		return new(big.Int).Set(v), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case json.Number:
		return parseIntegerString(v.String())
	case string:
		return parseIntegerString(v)
	default:
		return nil, invalidValue("cannot use %T as an integer", value)
	}
}

// parseIntegerString accepts decimal ("-12") or 0x-prefixed hex ("0x0c") integers.
func parseIntegerString(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")

	base := 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		base = 16
		digits = digits[2:]
	}
	if digits == "" {
		return nil, invalidValue("malformed integer %q", s)
	}

	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, invalidValue("malformed integer %q", s)
	}
	if negative {
		v.Neg(v)
	}
	return v, nil
}

func toAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		if v == nil {
			return common.Address{}, invalidValue("address value is nil")
		}
		return *v, nil
	case [20]byte:
		return common.Address(v), nil
	case string:
		if !common.IsHexAddress(v) {
			return common.Address{}, invalidValue("malformed address %q", v)
		}
		addr := common.HexToAddress(v)
		// Mixed case carries an EIP-55 checksum; single-case input carries none
		digits := strings.TrimPrefix(strings.TrimPrefix(v, "0x"), "0X")
		if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) && addr.Hex()[2:] != digits {
			return common.Address{}, invalidValue("bad address checksum %q", v)
		}
		return addr, nil
	default:
		return common.Address{}, invalidValue("cannot use %T as an address", value)
	}
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, invalidValue("malformed bool %q", v)
		}
		return b, nil
	default:
		return false, invalidValue("cannot use %T as a bool", value)
	}
}

func toBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case hexutil.Bytes:
		return v, nil
	case [32]byte:
		return v[:], nil
	case common.Hash:
		return v.Bytes(), nil
	case string:
		b, err := hexutil.Decode(v)
		if err != nil {
			return nil, invalidValue("malformed hex bytes %q: %v", v, err)
		}
		return b, nil
	default:
		return nil, invalidValue("cannot use %T as bytes", value)
	}
}
