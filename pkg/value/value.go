// Package value provides the immutable immediate value model shared by
// the bytecode emitter and interpreter: arbitrarily wide bit vectors,
// tuples, arrays, function references, channels, and tokens.
//
// Values are constructed once and never mutated. Enum members carry no
// distinct representation; they are the bits of their underlying type.
package value

import (
	"fmt"
	"math/big"
	"strings"
)

// Kind discriminates the payload of a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBits
	KindTuple
	KindArray
	KindBuiltin
	KindFunction
	KindChannel
	KindToken
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindBits:
		return "bits"
	case KindTuple:
		return "tuple"
	case KindArray:
		return "array"
	case KindBuiltin:
		return "builtin"
	case KindFunction:
		return "function"
	case KindChannel:
		return "channel"
	case KindToken:
		return "token"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is an immutable immediate value. The zero Value is invalid.
type Value struct {
	kind   Kind
	signed bool
	width  int
	// bits holds the canonical unsigned magnitude in [0, 2^width),
	// regardless of signedness. Signed interpretation happens at
	// rendering/extraction time.
	bits  *big.Int
	elems []Value
	name  string // builtin/function identifier
}

// maskToWidth reduces v modulo 2^width, mapping negative inputs to
// their two's-complement magnitude.
func maskToWidth(v *big.Int, width int) *big.Int {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(width))
	out := new(big.Int).Mod(v, mod)
	if out.Sign() < 0 {
		out.Add(out, mod)
	}
	return out
}

// MakeBits constructs a bit vector of the given signedness and width
// from an arbitrary-precision integer. The integer is reduced to the
// width's two's-complement range.
func MakeBits(signed bool, width int, v *big.Int) Value {
	return Value{kind: KindBits, signed: signed, width: width, bits: maskToWidth(v, width)}
}

// MakeUBits constructs an unsigned bit vector from a uint64.
func MakeUBits(width int, v uint64) Value {
	return MakeBits(false, width, new(big.Int).SetUint64(v))
}

// MakeSBits constructs a signed bit vector from an int64.
func MakeSBits(width int, v int64) Value {
	return MakeBits(true, width, big.NewInt(v))
}

// MakeBool constructs a u1 from a bool.
func MakeBool(b bool) Value {
	if b {
		return MakeUBits(1, 1)
	}
	return MakeUBits(1, 0)
}

// Convenience constructors for common widths.
func MakeU8(v uint8) Value   { return MakeUBits(8, uint64(v)) }
func MakeU16(v uint16) Value { return MakeUBits(16, uint64(v)) }
func MakeU32(v uint32) Value { return MakeUBits(32, uint64(v)) }
func MakeU64(v uint64) Value { return MakeUBits(64, v) }

// MakeTuple constructs a tuple from the given elements.
func MakeTuple(elems ...Value) Value {
	return Value{kind: KindTuple, elems: append([]Value{}, elems...)}
}

// MakeUnit constructs the empty tuple.
func MakeUnit() Value { return MakeTuple() }

// MakeArray constructs an array from the given elements.
func MakeArray(elems []Value) Value {
	return Value{kind: KindArray, elems: append([]Value{}, elems...)}
}

// MakeString constructs the array-of-u8 representation of a string
// literal.
func MakeString(s string) Value {
	elems := make([]Value, len(s))
	for i := 0; i < len(s); i++ {
		elems[i] = MakeU8(s[i])
	}
	return MakeArray(elems)
}

// MakeBuiltin constructs a reference to a builtin function.
func MakeBuiltin(name string) Value {
	return Value{kind: KindBuiltin, name: name}
}

// MakeFunction constructs a reference to a user-defined function.
func MakeFunction(name string) Value {
	return Value{kind: KindFunction, name: name}
}

// MakeChannel constructs a channel value. Channel identity is an
// interpreter concern; at this level all channels compare equal.
func MakeChannel() Value { return Value{kind: KindChannel} }

// MakeToken constructs a sequencing token.
func MakeToken() Value { return Value{kind: KindToken} }

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsBits reports whether the value is a bit vector.
func (v Value) IsBits() bool { return v.kind == KindBits }

// IsUnit reports whether the value is the empty tuple.
func (v Value) IsUnit() bool { return v.kind == KindTuple && len(v.elems) == 0 }

// IsSigned reports whether a bits value is signed. False for
// non-bits values.
func (v Value) IsSigned() bool { return v.kind == KindBits && v.signed }

// BitCount returns the width of a bits value.
func (v Value) BitCount() (int, error) {
	if v.kind != KindBits {
		return 0, fmt.Errorf("value: BitCount on %s value", v.kind)
	}
	return v.width, nil
}

// Uint64 returns the unsigned magnitude of a bits value that fits in
// 64 bits.
func (v Value) Uint64() (uint64, error) {
	if v.kind != KindBits {
		return 0, fmt.Errorf("value: Uint64 on %s value", v.kind)
	}
	if !v.bits.IsUint64() {
		return 0, fmt.Errorf("value: %s does not fit in uint64", v)
	}
	return v.bits.Uint64(), nil
}

// Int64 returns the two's-complement signed interpretation of a bits
// value that fits in 64 bits.
func (v Value) Int64() (int64, error) {
	if v.kind != KindBits {
		return 0, fmt.Errorf("value: Int64 on %s value", v.kind)
	}
	s := v.signedBig()
	if !s.IsInt64() {
		return 0, fmt.Errorf("value: %s does not fit in int64", v)
	}
	return s.Int64(), nil
}

// signedBig returns the two's-complement signed interpretation.
func (v Value) signedBig() *big.Int {
	if v.width == 0 {
		return big.NewInt(0)
	}
	if v.bits.Bit(v.width-1) == 0 {
		return new(big.Int).Set(v.bits)
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(v.width))
	return new(big.Int).Sub(v.bits, mod)
}

// Name returns the identifier of a builtin or function reference.
func (v Value) Name() (string, error) {
	if v.kind != KindBuiltin && v.kind != KindFunction {
		return "", fmt.Errorf("value: Name on %s value", v.kind)
	}
	return v.name, nil
}

// Elements returns the elements of a tuple or array.
func (v Value) Elements() ([]Value, error) {
	if v.kind != KindTuple && v.kind != KindArray {
		return nil, fmt.Errorf("value: Elements on %s value", v.kind)
	}
	return v.elems, nil
}

// Len returns the element count of a tuple or array.
func (v Value) Len() (int, error) {
	elems, err := v.Elements()
	if err != nil {
		return 0, err
	}
	return len(elems), nil
}

// Eq reports structural equality.
func (v Value) Eq(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBits:
		return v.signed == o.signed && v.width == o.width && v.bits.Cmp(o.bits) == 0
	case KindTuple, KindArray:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Eq(o.elems[i]) {
				return false
			}
		}
		return true
	case KindBuiltin, KindFunction:
		return v.name == o.name
	case KindChannel, KindToken:
		return true
	default:
		return false
	}
}

// String returns the canonical rendering, e.g. "u32:42", "s2:-1",
// "u128:0x5", "(u32:1, u64:2)", "[u8:1, u8:2]", "builtin:assert_eq".
// Widths above 64 bits render in hex.
func (v Value) String() string {
	switch v.kind {
	case KindBits:
		prefix := "u"
		if v.signed {
			prefix = "s"
		}
		if v.width > 64 {
			return fmt.Sprintf("%s%d:0x%s", prefix, v.width, v.bits.Text(16))
		}
		if v.signed {
			return fmt.Sprintf("%s%d:%s", prefix, v.width, v.signedBig().String())
		}
		return fmt.Sprintf("%s%d:%s", prefix, v.width, v.bits.String())
	case KindTuple:
		if len(v.elems) == 1 {
			return fmt.Sprintf("(%s,)", v.elems[0])
		}
		return "(" + joinValues(v.elems) + ")"
	case KindArray:
		return "[" + joinValues(v.elems) + "]"
	case KindBuiltin:
		return "builtin:" + v.name
	case KindFunction:
		return "fn:" + v.name
	case KindChannel:
		return "channel"
	case KindToken:
		return "token"
	default:
		return "<invalid>"
	}
}

func joinValues(elems []Value) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
