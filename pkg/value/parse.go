package value

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Parse converts a canonical value rendering (as produced by
// Value.String) back into a Value. It is the grammar the bytecode
// reassembler relies on, so the two must stay in lockstep.
func Parse(s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Value{}, fmt.Errorf("value: empty value text")
	case s == "channel":
		return MakeChannel(), nil
	case s == "token":
		return MakeToken(), nil
	case strings.HasPrefix(s, "builtin:"):
		return MakeBuiltin(strings.TrimPrefix(s, "builtin:")), nil
	case strings.HasPrefix(s, "fn:"):
		return MakeFunction(strings.TrimPrefix(s, "fn:")), nil
	case strings.HasPrefix(s, "("):
		return parseAggregate(s, "(", ")", true)
	case strings.HasPrefix(s, "["):
		return parseAggregate(s, "[", "]", false)
	default:
		return parseBits(s)
	}
}

func parseAggregate(s, open, close string, tuple bool) (Value, error) {
	if !strings.HasSuffix(s, close) {
		return Value{}, fmt.Errorf("value: unterminated %q in %q", open, s)
	}
	inner := strings.TrimSpace(s[len(open) : len(s)-len(close)])
	// A one-element tuple renders with a trailing comma.
	inner = strings.TrimSuffix(inner, ",")
	var elems []Value
	if inner != "" {
		parts, err := splitTopLevel(inner)
		if err != nil {
			return Value{}, err
		}
		for _, p := range parts {
			e, err := Parse(p)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, e)
		}
	}
	if tuple {
		return MakeTuple(elems...), nil
	}
	return MakeArray(elems), nil
}

// splitTopLevel splits on commas that are not nested inside () or [].
func splitTopLevel(s string) ([]string, error) {
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
				return nil, fmt.Errorf("value: unbalanced brackets in %q", s)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("value: unbalanced brackets in %q", s)
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts, nil
}

func parseBits(s string) (Value, error) {
	var signed bool
	switch {
	case strings.HasPrefix(s, "u"):
		signed = false
	case strings.HasPrefix(s, "s"):
		signed = true
	default:
		return Value{}, fmt.Errorf("value: cannot parse %q", s)
	}
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return Value{}, fmt.Errorf("value: missing ':' in bits value %q", s)
	}
	width, err := strconv.Atoi(s[1:colon])
	if err != nil || width < 0 {
		return Value{}, fmt.Errorf("value: bad width in %q", s)
	}
	lit := s[colon+1:]
	v := new(big.Int)
	if _, ok := v.SetString(lit, 0); !ok {
		return Value{}, fmt.Errorf("value: bad literal in %q", s)
	}
	return MakeBits(signed, width, v), nil
}
