package bytecode

import (
	"fmt"
	"strconv"

	"github.com/glint-lang/glint/pkg/ast"
	"github.com/glint-lang/glint/pkg/sema"
	"github.com/glint-lang/glint/pkg/value"
)

// InvocationData is the call operand: the call-site rendering plus the
// callee-side parametric bindings chosen for this call.
type InvocationData struct {
	CallSite string
	Bindings *sema.ParametricEnv
}

// String renders "assert_eq(foo, u32:2) : {}".
func (d *InvocationData) String() string {
	return d.CallSite + " : " + d.Bindings.String()
}

// ChannelData is the operand of channel operations, naming the channel
// as Proc::chan.
type ChannelData struct {
	Proc    string
	Channel string
}

// String renders "Counter::input_c", or the bare channel name when
// the channel is not a process member.
func (d *ChannelData) String() string {
	if d.Proc == "" {
		return d.Channel
	}
	return d.Proc + "::" + d.Channel
}

// MatchArmKind discriminates MatchArmItem.
type MatchArmKind uint8

const (
	MatchArmValue MatchArmKind = iota
	MatchArmWildcard
	MatchArmStore
	MatchArmLoad
)

// MatchArmItem is the match_arm operand: the comparison the
// interpreter performs against the duplicated scrutinee. A value item
// compares against a constant, a load item against an existing
// binding, a store item always matches and captures, and a wildcard
// always matches.
type MatchArmItem struct {
	Kind  MatchArmKind
	Value value.Value
	Slot  int
}

// String renders "value:u32:7", "wildcard", "store:2", or "load:1".
func (it *MatchArmItem) String() string {
	switch it.Kind {
	case MatchArmValue:
		return "value:" + it.Value.String()
	case MatchArmWildcard:
		return "wildcard"
	case MatchArmStore:
		return "store:" + strconv.Itoa(it.Slot)
	case MatchArmLoad:
		return "load:" + strconv.Itoa(it.Slot)
	default:
		return fmt.Sprintf("MatchArmKind(%d)", uint8(it.Kind))
	}
}

// TraceData is the fail operand: a label and the message reported when
// the instruction executes.
type TraceData struct {
	Label   string
	Message string
}

// String renders "default: The value was not matched".
func (d *TraceData) String() string {
	return d.Label + ": " + d.Message
}

// Instruction is one bytecode operation with its operand and the
// source span it was lowered from. The operand fields are populated
// according to Op.Operand(); accessors enforce the pairing.
type Instruction struct {
	op    Op
	val   value.Value
	slot  int
	count int
	disp  int
	inv   *InvocationData
	ch    *ChannelData
	arm   *MatchArmItem
	typ   *sema.Type
	trace *TraceData
	span  ast.Span
}

// Plain constructs an operand-less instruction.
func Plain(op Op, span ast.Span) Instruction {
	return Instruction{op: op, span: span}
}

// Literal constructs a literal push.
func Literal(v value.Value, span ast.Span) Instruction {
	return Instruction{op: OpLiteral, val: v, span: span}
}

// Load constructs a slot load.
func Load(slot int, span ast.Span) Instruction {
	return Instruction{op: OpLoad, slot: slot, span: span}
}

// Store constructs a slot store.
func Store(slot int, span ast.Span) Instruction {
	return Instruction{op: OpStore, slot: slot, span: span}
}

// Counted constructs an instruction carrying an element count
// (create_tuple, create_array, join).
func Counted(op Op, count int, span ast.Span) Instruction {
	return Instruction{op: op, count: count, span: span}
}

// Jump constructs a relative jump with the given displacement.
func Jump(op Op, disp int, span ast.Span) Instruction {
	return Instruction{op: op, disp: disp, span: span}
}

// Call constructs a call with its invocation data.
func Call(data *InvocationData, span ast.Span) Instruction {
	return Instruction{op: OpCall, inv: data, span: span}
}

// ChannelOp constructs a recv/recv_non_blocking/send.
func ChannelOp(op Op, data *ChannelData, span ast.Span) Instruction {
	return Instruction{op: op, ch: data, span: span}
}

// MatchArm constructs a match_arm with its item.
func MatchArm(item *MatchArmItem, span ast.Span) Instruction {
	return Instruction{op: OpMatchArm, arm: item, span: span}
}

// Typed constructs a cast or width_slice carrying a target type.
func Typed(op Op, t *sema.Type, span ast.Span) Instruction {
	return Instruction{op: op, typ: t, span: span}
}

// Fail constructs a fail with its trace data.
func Fail(data *TraceData, span ast.Span) Instruction {
	return Instruction{op: OpFail, trace: data, span: span}
}

// Op returns the instruction's operation.
func (in *Instruction) Op() Op { return in.op }

// Span returns the source span the instruction was lowered from.
func (in *Instruction) Span() ast.Span { return in.span }

func (in *Instruction) operandErr(want OperandKind) error {
	return fmt.Errorf("bytecode: internal error: %s operand requested from %s (carries %s)",
		want, in.op, in.op.Operand())
}

// ValueOperand returns the literal value.
func (in *Instruction) ValueOperand() (value.Value, error) {
	if in.op.Operand() != OperandValue {
		return value.Value{}, in.operandErr(OperandValue)
	}
	return in.val, nil
}

// SlotOperand returns the local slot index.
func (in *Instruction) SlotOperand() (int, error) {
	if in.op.Operand() != OperandSlot {
		return 0, in.operandErr(OperandSlot)
	}
	return in.slot, nil
}

// CountOperand returns the element count.
func (in *Instruction) CountOperand() (int, error) {
	if in.op.Operand() != OperandCount {
		return 0, in.operandErr(OperandCount)
	}
	return in.count, nil
}

// JumpOperand returns the signed displacement, in instructions.
func (in *Instruction) JumpOperand() (int, error) {
	if in.op.Operand() != OperandJump {
		return 0, in.operandErr(OperandJump)
	}
	return in.disp, nil
}

// InvocationOperand returns the call data.
func (in *Instruction) InvocationOperand() (*InvocationData, error) {
	if in.op.Operand() != OperandInvocation {
		return nil, in.operandErr(OperandInvocation)
	}
	return in.inv, nil
}

// ChannelOperand returns the channel data.
func (in *Instruction) ChannelOperand() (*ChannelData, error) {
	if in.op.Operand() != OperandChannel {
		return nil, in.operandErr(OperandChannel)
	}
	return in.ch, nil
}

// MatchOperand returns the match-arm item.
func (in *Instruction) MatchOperand() (*MatchArmItem, error) {
	if in.op.Operand() != OperandMatch {
		return nil, in.operandErr(OperandMatch)
	}
	return in.arm, nil
}

// TypeOperand returns the target type.
func (in *Instruction) TypeOperand() (*sema.Type, error) {
	if in.op.Operand() != OperandType {
		return nil, in.operandErr(OperandType)
	}
	return in.typ, nil
}

// TraceOperand returns the fail data.
func (in *Instruction) TraceOperand() (*TraceData, error) {
	if in.op.Operand() != OperandTrace {
		return nil, in.operandErr(OperandTrace)
	}
	return in.trace, nil
}

// OperandText returns the canonical operand rendering, or "" for
// operand-less ops. The disassembler and the wire format share it.
func (in *Instruction) OperandText() string {
	switch in.op.Operand() {
	case OperandNone:
		return ""
	case OperandValue:
		return in.val.String()
	case OperandSlot:
		return strconv.Itoa(in.slot)
	case OperandCount:
		return strconv.Itoa(in.count)
	case OperandJump:
		if in.disp >= 0 {
			return "+" + strconv.Itoa(in.disp)
		}
		return strconv.Itoa(in.disp)
	case OperandInvocation:
		return in.inv.String()
	case OperandChannel:
		return in.ch.String()
	case OperandMatch:
		return in.arm.String()
	case OperandType:
		return in.typ.String()
	case OperandTrace:
		return in.trace.String()
	default:
		return ""
	}
}

// String renders "op operand" without the index column.
func (in *Instruction) String() string {
	if text := in.OperandText(); text != "" {
		return in.op.String() + " " + text
	}
	return in.op.String()
}

// Eq reports whether two instructions have the same op and operand.
// Operands compare by canonical rendering, which the round-trip
// grammar guarantees is faithful.
func (in *Instruction) Eq(o *Instruction) bool {
	return in.op == o.op && in.OperandText() == o.OperandText()
}

// Sequence is a compiled unit: a name, the instruction list, and the
// number of local slots the interpreter must allocate. Immutable once
// built.
type Sequence struct {
	name      string
	instrs    []Instruction
	slotCount int
}

// NewSequence builds a sequence. The instruction slice is owned by the
// sequence afterward.
func NewSequence(name string, instrs []Instruction, slotCount int) *Sequence {
	return &Sequence{name: name, instrs: instrs, slotCount: slotCount}
}

// Name returns the sequence's name (function name, or a synthetic name
// for expression emission).
func (s *Sequence) Name() string { return s.name }

// Instructions returns the instruction list. Callers must not modify
// it.
func (s *Sequence) Instructions() []Instruction { return s.instrs }

// Len returns the instruction count.
func (s *Sequence) Len() int { return len(s.instrs) }

// SlotCount returns the number of local slots the sequence uses.
func (s *Sequence) SlotCount() int { return s.slotCount }

// Eq reports sequence equality: same instructions and slot count. The
// name is identification, not identity.
func (s *Sequence) Eq(o *Sequence) bool {
	if s.slotCount != o.slotCount || len(s.instrs) != len(o.instrs) {
		return false
	}
	for i := range s.instrs {
		if !s.instrs[i].Eq(&o.instrs[i]) {
			return false
		}
	}
	return true
}

// Validate checks the structural invariants a well-formed sequence
// upholds: every jump displacement stays in range and lands on a
// jump_dest.
func (s *Sequence) Validate() error {
	for i := range s.instrs {
		in := &s.instrs[i]
		if in.op.Operand() != OperandJump {
			continue
		}
		dest := i + in.disp
		if dest < 0 || dest >= len(s.instrs) {
			return fmt.Errorf("bytecode: internal error: %03d %s jumps out of range to %d", i, in.op, dest)
		}
		if s.instrs[dest].op != OpJumpDest {
			return fmt.Errorf("bytecode: internal error: %03d %s lands on %s, not jump_dest", i, in.op, s.instrs[dest].op)
		}
	}
	return nil
}
