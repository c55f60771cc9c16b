package evm

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Type is a contract ABI type
type Type = abi.Type

// Supported ABI types
var (
	Uint8    = mustType("uint8")
	Uint256  = mustType("uint256")
	Int256   = mustType("int256")
	Address  = mustType("address")
	Bool     = mustType("bool")
	Bytes32  = mustType("bytes32")
	String   = mustType("string")
	Bytes    = mustType("bytes")
	Uint256s = mustType("uint256[]")
)

func mustType(name string) Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

// Method describes one contract function
type Method struct {
	Name    string
	Inputs  []Type
	Outputs []Type

	abi abi.Method
}

// NewMethod creates a method description
func NewMethod(name string, inputs []Type, outputs ...Type) Method {
	return Method{
		Name:    name,
		Inputs:  inputs,
		Outputs: outputs,
		abi:     abi.NewMethod(name, name, abi.Function, "view", false, false, arguments(inputs), arguments(outputs)),
	}
}

// Signature returns the canonical signature, e.g. "approve(address,uint256)"
func (m Method) Signature() string {
	return m.abi.Sig
}

// Selector returns the first four bytes of keccak256(signature)
func (m Method) Selector() []byte {
	out := make([]byte, len(m.abi.ID))
	copy(out, m.abi.ID)
	return out
}

// Pack encodes a call to the method
func (m Method) Pack(args ...interface{}) ([]byte, error) {
	encoded, err := EncodeArgs(m.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", m.Name, err)
	}
	return append(m.Selector(), encoded...), nil
}

// Unpack decodes the method's return data
func (m Method) Unpack(data []byte) ([]interface{}, error) {
	values, err := DecodeValues(m.Outputs, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", m.Name, err)
	}
	return values, nil
}

// EncodeArgs encodes values for the given types.
// Accepted Go values: *big.Int, int, int64, uint64, uint8 for integers; hex strings for
// addresses; string; bool; []byte for bytes; [32]byte for bytes32; []*big.Int for uint arrays.
func EncodeArgs(types []Type, args []interface{}) ([]byte, error) {
	if len(types) != len(args) {
		return nil, fmt.Errorf("abi: expected %d arguments, got %d", len(types), len(args))
	}

	native := make([]interface{}, len(args))
	for i, t := range types {
		v, err := toNative(t, args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		native[i] = v
	}

	return arguments(types).Pack(native...)
}

// DecodeValues decodes return data.
// Integers decode to *big.Int, addresses to EIP-55 strings, bytes32 to [32]byte.
func DecodeValues(types []Type, data []byte) ([]interface{}, error) {
	values, err := arguments(types).Unpack(data)
	if err != nil {
		return nil, err
	}
	for i, t := range types {
		values[i] = fromNative(t, values[i])
	}
	return values, nil
}

// DecodeRevertReason extracts the reason from Error(string) or Panic(uint256) revert data
func DecodeRevertReason(data []byte) (string, bool) {
	reason, err := abi.UnpackRevert(data)
	if err != nil {
		return "", false
	}
	return reason, true
}

func arguments(types []Type) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		args[i] = abi.Argument{Type: t}
	}
	return args
}

// toNative converts the gateway's loose argument values into the Go types the packer expects
func toNative(t Type, v interface{}) (interface{}, error) {
	switch t.T {
	case abi.UintTy, abi.IntTy:
		n, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		if err := checkRange(n, t); err != nil {
			return nil, err
		}
		return sized(n, t), nil
	case abi.AddressTy:
		switch a := v.(type) {
		case common.Address:
			return a, nil
		case string:
			if !addressRegex.MatchString(a) {
				return nil, fmt.Errorf("abi: invalid address %q", a)
			}
			return common.HexToAddress(a), nil
		}
		return nil, fmt.Errorf("abi: address must be a string, got %T", v)
	case abi.BoolTy:
		if _, ok := v.(bool); !ok {
			return nil, fmt.Errorf("abi: bool expected, got %T", v)
		}
	case abi.StringTy:
		if _, ok := v.(string); !ok {
			return nil, fmt.Errorf("abi: string expected, got %T", v)
		}
	case abi.SliceTy:
		items, ok := v.([]*big.Int)
		if !ok || t.Elem.T != abi.UintTy {
			return v, nil
		}
		for _, item := range items {
			if item == nil {
				return nil, fmt.Errorf("abi: nil integer")
			}
			if err := checkRange(item, *t.Elem); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// fromNative maps unpacked values back to the gateway's representation
func fromNative(t Type, v interface{}) interface{} {
	switch t.T {
	case abi.AddressTy:
		if a, ok := v.(common.Address); ok {
			return a.Hex()
		}
	case abi.UintTy, abi.IntTy:
		if n, ok := v.(*big.Int); ok {
			return n
		}
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return new(big.Int).SetUint64(rv.Uint())
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return big.NewInt(rv.Int())
		}
	}
	return v
}

func toBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("abi: nil integer")
		}
		return n, nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case uint8:
		return big.NewInt(int64(n)), nil
	}
	return nil, fmt.Errorf("abi: integer expected, got %T", v)
}

func checkRange(n *big.Int, t Type) error {
	if t.T == abi.UintTy {
		if n.Sign() < 0 {
			return fmt.Errorf("abi: negative value for %s", t)
		}
		if n.BitLen() > t.Size {
			return fmt.Errorf("abi: value overflows %s", t)
		}
		return nil
	}
	if n.BitLen() >= t.Size {
		return fmt.Errorf("abi: value overflows %s", t)
	}
	return nil
}

// sized narrows n to the fixed width Go type the packer requires for types up to 64 bits
func sized(n *big.Int, t Type) interface{} {
	if t.T == abi.UintTy {
		switch t.Size {
		case 8:
			return uint8(n.Uint64())
		case 16:
			return uint16(n.Uint64())
		case 32:
			return uint32(n.Uint64())
		case 64:
			return n.Uint64()
		}
		return n
	}
	switch t.Size {
	case 8:
		return int8(n.Int64())
	case 16:
		return int16(n.Int64())
	case 32:
		return int32(n.Int64())
	case 64:
		return n.Int64()
	}
	return n
}
