// Package sema carries the read-only results of type checking that the
// bytecode emitter consumes: concrete types, precomputed constants,
// parametric bindings, and the cross-module import registry. Nothing in
// this package is mutated during emission, so a single TypeInfo and
// ImportData may serve many concurrent emissions.
package sema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/glint-lang/glint/pkg/value"
)

// TypeKind discriminates Type.
type TypeKind uint8

const (
	TypeInvalid TypeKind = iota
	TypeBits
	TypeTuple
	TypeArray
	TypeEnum
	TypeStruct
	TypeToken
	TypeChan
	TypeFunction
)

// Type is a resolved concrete type. Types are built by the front end
// (or parsed from their canonical rendering) and never mutated.
type Type struct {
	kind   TypeKind
	signed bool
	width  int
	elems  []*Type // tuple / struct member types
	elem   *Type   // array element or channel payload
	size   int     // array size
	name   string  // enum or struct name
	under  *Type   // enum underlying type
	fields []string
}

// BitsType returns a uN[w]/sN[w] type.
func BitsType(signed bool, width int) *Type {
	return &Type{kind: TypeBits, signed: signed, width: width}
}

// U1 through U64 are convenience accessors for common widths.
func U1() *Type  { return BitsType(false, 1) }
func U8() *Type  { return BitsType(false, 8) }
func U32() *Type { return BitsType(false, 32) }
func U64() *Type { return BitsType(false, 64) }

// TupleType returns a tuple of the given member types; no members is
// the unit type.
func TupleType(members ...*Type) *Type {
	return &Type{kind: TypeTuple, elems: members}
}

// UnitType returns the empty tuple type.
func UnitType() *Type { return TupleType() }

// ArrayType returns a size-element array of elem.
func ArrayType(elem *Type, size int) *Type {
	return &Type{kind: TypeArray, elem: elem, size: size}
}

// EnumType returns a named enum over the given underlying bits type.
// The underlying type may be nil when only the name is known (e.g. a
// type parsed back from a cast operand).
func EnumType(name string, underlying *Type) *Type {
	return &Type{kind: TypeEnum, name: name, under: underlying}
}

// StructType returns a named struct with ordered field names and types.
func StructType(name string, fields []string, types []*Type) *Type {
	return &Type{kind: TypeStruct, name: name, fields: fields, elems: types}
}

// TokenType returns the sequencing-token type.
func TokenType() *Type { return &Type{kind: TypeToken} }

// ChanType returns a channel carrying payload.
func ChanType(payload *Type) *Type { return &Type{kind: TypeChan, elem: payload} }

// FunctionType returns an opaque function type.
func FunctionType() *Type { return &Type{kind: TypeFunction} }

// Kind returns the type's kind.
func (t *Type) Kind() TypeKind { return t.kind }

// IsBits reports whether the type is a bit vector.
func (t *Type) IsBits() bool { return t.kind == TypeBits }

// IsSigned reports bits signedness; false otherwise.
func (t *Type) IsSigned() bool { return t.kind == TypeBits && t.signed }

// BitCount returns the width of a bits type, or of an enum's
// underlying type.
func (t *Type) BitCount() (int, error) {
	switch t.kind {
	case TypeBits:
		return t.width, nil
	case TypeEnum:
		if t.under == nil {
			return 0, fmt.Errorf("sema: enum %s has no underlying type", t.name)
		}
		return t.under.BitCount()
	default:
		return 0, fmt.Errorf("sema: BitCount on %s", t)
	}
}

// ArraySize returns the static element count of an array type.
func (t *Type) ArraySize() (int, error) {
	if t.kind != TypeArray {
		return 0, fmt.Errorf("sema: ArraySize on %s", t)
	}
	return t.size, nil
}

// ElementType returns an array's element type or a channel's payload.
func (t *Type) ElementType() (*Type, error) {
	if t.kind != TypeArray && t.kind != TypeChan {
		return nil, fmt.Errorf("sema: ElementType on %s", t)
	}
	return t.elem, nil
}

// Members returns a tuple's member types.
func (t *Type) Members() ([]*Type, error) {
	if t.kind != TypeTuple && t.kind != TypeStruct {
		return nil, fmt.Errorf("sema: Members on %s", t)
	}
	return t.elems, nil
}

// FieldIndex returns the declared position of a struct field.
func (t *Type) FieldIndex(name string) (int, error) {
	if t.kind != TypeStruct {
		return 0, fmt.Errorf("sema: FieldIndex on %s", t)
	}
	for i, f := range t.fields {
		if f == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("sema: struct %s has no field %q", t.name, name)
}

// String renders the canonical type text: "uN[32]", "uN[8][4]",
// "(uN[16], uN[32])", "token", "chan(uN[32])", or the enum/struct name.
func (t *Type) String() string {
	switch t.kind {
	case TypeBits:
		if t.signed {
			return fmt.Sprintf("sN[%d]", t.width)
		}
		return fmt.Sprintf("uN[%d]", t.width)
	case TypeTuple:
		parts := make([]string, len(t.elems))
		for i, m := range t.elems {
			parts[i] = m.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case TypeArray:
		return fmt.Sprintf("%s[%d]", t.elem, t.size)
	case TypeEnum, TypeStruct:
		return t.name
	case TypeToken:
		return "token"
	case TypeChan:
		return fmt.Sprintf("chan(%s)", t.elem)
	case TypeFunction:
		return "fn"
	default:
		return "<invalid>"
	}
}

// ParseType parses the canonical rendering produced by Type.String.
// Named enum/struct types parse to name-only types; callers comparing
// parsed types against built ones should compare renderings.
func ParseType(s string) (*Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("sema: empty type text")
	}
	// Array suffixes nest outermost-last: uN[8][4] is a 4-array of u8.
	if base, size, ok := splitArraySuffix(s); ok {
		elem, err := ParseType(base)
		if err != nil {
			return nil, err
		}
		return ArrayType(elem, size), nil
	}
	switch {
	case s == "token":
		return TokenType(), nil
	case s == "fn":
		return FunctionType(), nil
	case strings.HasPrefix(s, "chan(") && strings.HasSuffix(s, ")"):
		payload, err := ParseType(s[len("chan(") : len(s)-1])
		if err != nil {
			return nil, err
		}
		return ChanType(payload), nil
	case strings.HasPrefix(s, "uN[") || strings.HasPrefix(s, "sN["):
		if !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("sema: malformed bits type %q", s)
		}
		width, err := strconv.Atoi(s[3 : len(s)-1])
		if err != nil {
			return nil, fmt.Errorf("sema: malformed bits width in %q", s)
		}
		return BitsType(s[0] == 's', width), nil
	case strings.HasPrefix(s, "("):
		if !strings.HasSuffix(s, ")") {
			return nil, fmt.Errorf("sema: unterminated tuple type %q", s)
		}
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if inner == "" {
			return UnitType(), nil
		}
		parts, err := splitTypeList(inner)
		if err != nil {
			return nil, err
		}
		members := make([]*Type, len(parts))
		for i, p := range parts {
			m, err := ParseType(p)
			if err != nil {
				return nil, err
			}
			members[i] = m
		}
		return TupleType(members...), nil
	default:
		if !isIdent(s) {
			return nil, fmt.Errorf("sema: cannot parse type %q", s)
		}
		return EnumType(s, nil), nil
	}
}

// splitArraySuffix splits a trailing [N] where N is numeric, so enum
// names and bits widths are not mistaken for array sizes.
func splitArraySuffix(s string) (string, int, bool) {
	if !strings.HasSuffix(s, "]") {
		return "", 0, false
	}
	open := strings.LastIndexByte(s, '[')
	if open <= 0 {
		return "", 0, false
	}
	size, err := strconv.Atoi(s[open+1 : len(s)-1])
	if err != nil {
		return "", 0, false
	}
	base := s[:open]
	// uN[32] ends in a numeric bracket too; only treat it as an array
	// suffix when the base is itself a complete type.
	if base == "uN" || base == "sN" {
		return "", 0, false
	}
	return base, size, true
}

func splitTypeList(s string) ([]string, error) {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("sema: unbalanced brackets in %q", s)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("sema: unbalanced brackets in %q", s)
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts, nil
}

func isIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return len(s) > 0
}

// ZeroValue produces the zero value of a type: zero bits, empty-wise
// tuples/arrays of zeros, an enum's underlying zero, a fresh token or
// channel.
func ZeroValue(t *Type) (value.Value, error) {
	switch t.kind {
	case TypeBits:
		return value.MakeBits(t.signed, t.width, bigZero), nil
	case TypeEnum:
		if t.under == nil {
			return value.Value{}, fmt.Errorf("sema: zero of underlying-less enum %s", t.name)
		}
		return ZeroValue(t.under)
	case TypeTuple, TypeStruct:
		elems := make([]value.Value, len(t.elems))
		for i, m := range t.elems {
			v, err := ZeroValue(m)
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = v
		}
		return value.MakeTuple(elems...), nil
	case TypeArray:
		elems := make([]value.Value, t.size)
		for i := range elems {
			v, err := ZeroValue(t.elem)
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = v
		}
		return value.MakeArray(elems), nil
	case TypeToken:
		return value.MakeToken(), nil
	case TypeChan:
		return value.MakeChannel(), nil
	default:
		return value.Value{}, fmt.Errorf("sema: no zero value for %s", t)
	}
}
