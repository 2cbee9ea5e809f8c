package bytecode

import "fmt"

// Op is a bytecode operation. The set is closed; the interpreter and
// the disassembler both switch exhaustively over it.
type Op uint8

const (
	OpInvalid Op = iota

	// Arithmetic and bitwise ops. Binary ops consume two values
	// (left below right) and push one.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpConcat

	// Comparisons push a u1.
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	// Short-circuit forms are emitted eagerly; both operands are on
	// the stack.
	OpLogicalAnd
	OpLogicalOr

	// Unary ops.
	OpInvert
	OpNegate

	// Stack manipulation.
	OpPop
	OpDup
	OpSwap

	// Values and locals.
	OpLiteral
	OpLoad
	OpStore

	// Aggregates.
	OpCreateTuple
	OpCreateArray
	OpExpandTuple
	OpIndex
	OpTupleIndex
	OpSlice
	OpWidthSlice
	OpRange
	OpCast

	// Control flow. Displacements are in instructions, relative to
	// the jump itself; every jump lands on a jump_dest.
	OpJumpRel
	OpJumpRelIf
	OpJumpDest
	OpMatchArm
	OpFail

	// Calls.
	OpCall

	// Channel operations.
	OpRecv
	OpRecvNonBlocking
	OpSend
	OpJoin

	opCount
)

// OperandKind says which operand an op carries. Every op carries
// exactly the kind listed for it; a mismatch is an internal
// inconsistency.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandValue
	OperandSlot
	OperandCount
	OperandJump
	OperandInvocation
	OperandChannel
	OperandMatch
	OperandType
	OperandTrace
)

// String returns a human-readable name for the operand kind.
func (k OperandKind) String() string {
	switch k {
	case OperandNone:
		return "none"
	case OperandValue:
		return "value"
	case OperandSlot:
		return "slot"
	case OperandCount:
		return "count"
	case OperandJump:
		return "jump"
	case OperandInvocation:
		return "invocation"
	case OperandChannel:
		return "channel"
	case OperandMatch:
		return "match"
	case OperandType:
		return "type"
	case OperandTrace:
		return "trace"
	default:
		return fmt.Sprintf("OperandKind(%d)", uint8(k))
	}
}

type opInfo struct {
	name    string
	operand OperandKind
}

var opTable = [opCount]opInfo{
	OpAdd:             {"add", OperandNone},
	OpSub:             {"sub", OperandNone},
	OpMul:             {"mul", OperandNone},
	OpDiv:             {"div", OperandNone},
	OpAnd:             {"and", OperandNone},
	OpOr:              {"or", OperandNone},
	OpXor:             {"xor", OperandNone},
	OpShl:             {"shl", OperandNone},
	OpShr:             {"shr", OperandNone},
	OpConcat:          {"concat", OperandNone},
	OpEq:              {"eq", OperandNone},
	OpNe:              {"ne", OperandNone},
	OpLt:              {"lt", OperandNone},
	OpLe:              {"le", OperandNone},
	OpGt:              {"gt", OperandNone},
	OpGe:              {"ge", OperandNone},
	OpLogicalAnd:      {"logical_and", OperandNone},
	OpLogicalOr:       {"logical_or", OperandNone},
	OpInvert:          {"invert", OperandNone},
	OpNegate:          {"negate", OperandNone},
	OpPop:             {"pop", OperandNone},
	OpDup:             {"dup", OperandNone},
	OpSwap:            {"swap", OperandNone},
	OpLiteral:         {"literal", OperandValue},
	OpLoad:            {"load", OperandSlot},
	OpStore:           {"store", OperandSlot},
	OpCreateTuple:     {"create_tuple", OperandCount},
	OpCreateArray:     {"create_array", OperandCount},
	OpExpandTuple:     {"expand_tuple", OperandNone},
	OpIndex:           {"index", OperandNone},
	OpTupleIndex:      {"tuple_index", OperandNone},
	OpSlice:           {"slice", OperandNone},
	OpWidthSlice:      {"width_slice", OperandType},
	OpRange:           {"range", OperandNone},
	OpCast:            {"cast", OperandType},
	OpJumpRel:         {"jump_rel", OperandJump},
	OpJumpRelIf:       {"jump_rel_if", OperandJump},
	OpJumpDest:        {"jump_dest", OperandNone},
	OpMatchArm:        {"match_arm", OperandMatch},
	OpFail:            {"fail", OperandTrace},
	OpCall:            {"call", OperandInvocation},
	OpRecv:            {"recv", OperandChannel},
	OpRecvNonBlocking: {"recv_non_blocking", OperandChannel},
	OpSend:            {"send", OperandChannel},
	OpJoin:            {"join", OperandCount},
}

// String returns the lowercase mnemonic used in disassembly.
func (op Op) String() string {
	if op == OpInvalid || op >= opCount || opTable[op].name == "" {
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
	return opTable[op].name
}

// Valid reports whether op is a defined operation.
func (op Op) Valid() bool {
	return op > OpInvalid && op < opCount && opTable[op].name != ""
}

// Operand returns the operand kind the op carries.
func (op Op) Operand() OperandKind {
	if !op.Valid() {
		return OperandNone
	}
	return opTable[op].operand
}

// opByName maps mnemonics back to ops for reassembly.
var opByName = func() map[string]Op {
	m := make(map[string]Op, opCount)
	for op := OpInvalid + 1; op < opCount; op++ {
		if opTable[op].name != "" {
			m[opTable[op].name] = op
		}
	}
	return m
}()

// OpByName resolves a mnemonic to its Op.
func OpByName(name string) (Op, bool) {
	op, ok := opByName[name]
	return op, ok
}
