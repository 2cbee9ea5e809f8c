package bytecode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/glint-lang/glint/pkg/ast"
	"github.com/glint-lang/glint/pkg/sema"
	"github.com/glint-lang/glint/pkg/value"
)

// Format renders a sequence one instruction per line: a zero-padded
// index, the mnemonic, the canonical operand rendering, and a
// " @ file:l:c-l:c" suffix for instructions that carry a source span.
func Format(seq *Sequence) string {
	var b strings.Builder
	for i := range seq.instrs {
		if i > 0 {
			b.WriteByte('\n')
		}
		in := &seq.instrs[i]
		fmt.Fprintf(&b, "%03d %s", i, in.op)
		if text := in.OperandText(); text != "" {
			b.WriteByte(' ')
			b.WriteString(text)
		}
		if !in.span.IsZero() {
			b.WriteString(" @ ")
			b.WriteString(in.span.String())
		}
	}
	return b.String()
}

// Parse reassembles the suffix-free Format output. Source-location
// suffixes are stripped and discarded; everything else round-trips
// exactly, so Parse(Format(seq)) equals seq for sequences emitted
// without source locations. The slot count is derived from the
// highest slot any instruction touches.
func Parse(text string) (*Sequence, error) {
	var instrs []Instruction
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if at := strings.Index(line, " @ "); at >= 0 {
			line = strings.TrimSpace(line[:at])
		}
		in, err := parseLine(line, len(instrs))
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, in)
	}
	return NewSequence("", instrs, maxSlot(instrs)+1), nil
}

func parseLine(line string, index int) (Instruction, error) {
	rest, ok := strings.CutPrefix(line, fmt.Sprintf("%03d ", index))
	if !ok {
		return Instruction{}, fmt.Errorf("bytecode: line %d: expected index prefix %03d, got %q", index, index, line)
	}
	mnemonic, operand, _ := strings.Cut(rest, " ")
	op, ok := OpByName(mnemonic)
	if !ok {
		return Instruction{}, fmt.Errorf("bytecode: line %d: unknown op %q", index, mnemonic)
	}
	in, err := parseOperand(op, operand)
	if err != nil {
		return Instruction{}, fmt.Errorf("bytecode: line %d: %w", index, err)
	}
	return in, nil
}

func parseOperand(op Op, operand string) (Instruction, error) {
	kind := op.Operand()
	if kind == OperandNone {
		if operand != "" {
			return Instruction{}, fmt.Errorf("%s takes no operand, got %q", op, operand)
		}
		return Plain(op, ast.Span{}), nil
	}
	if operand == "" {
		return Instruction{}, fmt.Errorf("%s requires a %s operand", op, kind)
	}
	switch kind {
	case OperandValue:
		v, err := value.Parse(operand)
		if err != nil {
			return Instruction{}, err
		}
		return Literal(v, ast.Span{}), nil
	case OperandSlot:
		slot, err := strconv.Atoi(operand)
		if err != nil {
			return Instruction{}, fmt.Errorf("bad slot %q", operand)
		}
		if op == OpLoad {
			return Load(slot, ast.Span{}), nil
		}
		return Store(slot, ast.Span{}), nil
	case OperandCount:
		count, err := strconv.Atoi(operand)
		if err != nil {
			return Instruction{}, fmt.Errorf("bad count %q", operand)
		}
		return Counted(op, count, ast.Span{}), nil
	case OperandJump:
		disp, err := strconv.Atoi(strings.TrimPrefix(operand, "+"))
		if err != nil {
			return Instruction{}, fmt.Errorf("bad displacement %q", operand)
		}
		return Jump(op, disp, ast.Span{}), nil
	case OperandInvocation:
		site, bindings, ok := cutLast(operand, " : ")
		if !ok {
			return Instruction{}, fmt.Errorf("bad invocation data %q", operand)
		}
		env, err := sema.ParseParametricEnv(bindings)
		if err != nil {
			return Instruction{}, err
		}
		return Call(&InvocationData{CallSite: site, Bindings: env}, ast.Span{}), nil
	case OperandChannel:
		proc, name, ok := strings.Cut(operand, "::")
		if !ok {
			proc, name = "", operand
		}
		return ChannelOp(op, &ChannelData{Proc: proc, Channel: name}, ast.Span{}), nil
	case OperandMatch:
		item, err := parseMatchItem(operand)
		if err != nil {
			return Instruction{}, err
		}
		return MatchArm(item, ast.Span{}), nil
	case OperandType:
		t, err := sema.ParseType(operand)
		if err != nil {
			return Instruction{}, err
		}
		return Typed(op, t, ast.Span{}), nil
	case OperandTrace:
		label, message, ok := strings.Cut(operand, ": ")
		if !ok {
			return Instruction{}, fmt.Errorf("bad trace data %q", operand)
		}
		return Fail(&TraceData{Label: label, Message: message}, ast.Span{}), nil
	default:
		return Instruction{}, fmt.Errorf("bytecode: internal error: unhandled operand kind %s", kind)
	}
}

func parseMatchItem(s string) (*MatchArmItem, error) {
	switch {
	case s == "wildcard":
		return &MatchArmItem{Kind: MatchArmWildcard}, nil
	case strings.HasPrefix(s, "value:"):
		v, err := value.Parse(strings.TrimPrefix(s, "value:"))
		if err != nil {
			return nil, err
		}
		return &MatchArmItem{Kind: MatchArmValue, Value: v}, nil
	case strings.HasPrefix(s, "store:"):
		slot, err := strconv.Atoi(strings.TrimPrefix(s, "store:"))
		if err != nil {
			return nil, fmt.Errorf("bad match item %q", s)
		}
		return &MatchArmItem{Kind: MatchArmStore, Slot: slot}, nil
	case strings.HasPrefix(s, "load:"):
		slot, err := strconv.Atoi(strings.TrimPrefix(s, "load:"))
		if err != nil {
			return nil, fmt.Errorf("bad match item %q", s)
		}
		return &MatchArmItem{Kind: MatchArmLoad, Slot: slot}, nil
	default:
		return nil, fmt.Errorf("bad match item %q", s)
	}
}

// cutLast splits around the final occurrence of sep.
func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// maxSlot scans for the highest slot index any instruction touches.
func maxSlot(instrs []Instruction) int {
	maxSeen := -1
	for i := range instrs {
		in := &instrs[i]
		switch {
		case in.op.Operand() == OperandSlot:
			if in.slot > maxSeen {
				maxSeen = in.slot
			}
		case in.op == OpMatchArm:
			if in.arm.Kind == MatchArmStore || in.arm.Kind == MatchArmLoad {
				if in.arm.Slot > maxSeen {
					maxSeen = in.arm.Slot
				}
			}
		}
	}
	return maxSeen
}
