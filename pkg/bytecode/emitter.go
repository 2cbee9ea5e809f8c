package bytecode

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/glint-lang/glint/pkg/ast"
	"github.com/glint-lang/glint/pkg/sema"
	"github.com/glint-lang/glint/pkg/value"
)

// Options controls emission.
type Options struct {
	// SourceLocs records source spans on emitted instructions, which
	// Format then renders as " @ file:l:c-l:c" suffixes.
	SourceLocs bool
}

// emitter holds the state of one emission: the growing instruction
// list and the slot table. The sema inputs are read-only.
type emitter struct {
	imports  *sema.ImportData
	ti       *sema.TypeInfo
	bindings *sema.ParametricEnv
	env      map[string]value.Value
	opts     Options

	instrs []Instruction
	slots  *slotTable
}

func newEmitter(imports *sema.ImportData, ti *sema.TypeInfo, bindings *sema.ParametricEnv, opts Options) *emitter {
	return &emitter{
		imports:  imports,
		ti:       ti,
		bindings: bindings,
		opts:     opts,
		slots:    newSlotTable(),
	}
}

// Emit lowers one function to a sequence. Parameters occupy the lowest
// slots in declaration order; callerBindings supplies values for the
// function's parametric names.
func Emit(imports *sema.ImportData, ti *sema.TypeInfo, fn *ast.Function, callerBindings *sema.ParametricEnv, opts Options) (*Sequence, error) {
	e := newEmitter(imports, ti, callerBindings, opts)
	for _, p := range fn.Params {
		e.slots.bind(p.Name)
	}
	if err := e.emitBlock(fn.Body); err != nil {
		return nil, err
	}
	return e.finish(fn.Name)
}

// EmitExpression lowers a standalone expression. Free names resolve
// through env to literal pushes.
func EmitExpression(imports *sema.ImportData, ti *sema.TypeInfo, expr ast.Expr, env map[string]value.Value, callerBindings *sema.ParametricEnv, opts Options) (*Sequence, error) {
	e := newEmitter(imports, ti, callerBindings, opts)
	e.env = env
	if err := e.emitExpr(expr); err != nil {
		return nil, err
	}
	return e.finish("expr")
}

// EmitProcStep lowers a process step body. Member bindings are seeded
// into the lowest slots, in order, before the step's parameters, so
// member references lower to plain loads.
func EmitProcStep(imports *sema.ImportData, ti *sema.TypeInfo, fn *ast.Function, callerBindings *sema.ParametricEnv, members []*ast.NameDef, opts Options) (*Sequence, error) {
	e := newEmitter(imports, ti, callerBindings, opts)
	for _, m := range members {
		e.slots.bind(m)
	}
	for _, p := range fn.Params {
		e.slots.bind(p.Name)
	}
	if err := e.emitBlock(fn.Body); err != nil {
		return nil, err
	}
	return e.finish(fn.Name)
}

func (e *emitter) finish(name string) (*Sequence, error) {
	seq := NewSequence(name, e.instrs, e.slots.count())
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return seq, nil
}

// span filters source locations according to the options.
func (e *emitter) span(n ast.Node) ast.Span {
	if !e.opts.SourceLocs {
		return ast.Span{}
	}
	return n.GetSpan()
}

// emit appends an instruction and returns its index.
func (e *emitter) emit(in Instruction) int {
	e.instrs = append(e.instrs, in)
	return len(e.instrs) - 1
}

// emitJump appends a jump with a placeholder displacement.
func (e *emitter) emitJump(op Op, span ast.Span) int {
	return e.emit(Jump(op, 0, span))
}

// landJumps patches each pending jump to target the next instruction,
// then emits the jump_dest they land on.
func (e *emitter) landJumps(span ast.Span, ats ...int) {
	here := len(e.instrs)
	for _, at := range ats {
		e.instrs[at].disp = here - at
	}
	e.emit(Plain(OpJumpDest, span))
}

// emitBlock lowers a block: non-final expression statements are
// popped, let statements net zero, and the final statement's value is
// the block's value. A block ending in a let (or an empty block)
// yields unit.
func (e *emitter) emitBlock(b *ast.Block) error {
	for i, stmt := range b.Statements {
		last := i == len(b.Statements)-1
		switch s := stmt.(type) {
		case *ast.Let:
			if err := e.emitLet(s); err != nil {
				return err
			}
			if last {
				e.emit(Literal(value.MakeUnit(), e.span(b)))
			}
		case ast.Expr:
			if err := e.emitExpr(s); err != nil {
				return err
			}
			if !last {
				e.emit(Plain(OpPop, e.span(s)))
			}
		default:
			return fmt.Errorf("bytecode: unsupported statement %T at %s", stmt, stmt.GetSpan())
		}
	}
	if len(b.Statements) == 0 {
		e.emit(Literal(value.MakeUnit(), e.span(b)))
	}
	return nil
}

// emitLet lowers `let pattern = rhs`: the right-hand side lands on the
// stack and the pattern consumes it.
func (e *emitter) emitLet(l *ast.Let) error {
	if err := e.emitExpr(l.Rhs); err != nil {
		return err
	}
	return e.destructure(l.Pattern)
}

// destructure consumes the stack top according to a binding pattern:
// leaf names store, wildcards pop, and tuple patterns expand and
// recurse. expand_tuple leaves element 0 topmost, so children are
// visited in declaration order.
func (e *emitter) destructure(t *ast.NameDefTree) error {
	switch {
	case t.Wildcard:
		e.emit(Plain(OpPop, e.span(t)))
	case t.Name != nil:
		e.emit(Store(e.slots.bind(t.Name), e.span(t.Name)))
	default:
		e.emit(Plain(OpExpandTuple, e.span(t)))
		for _, child := range t.Nodes {
			if err := e.destructure(child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *emitter) emitExpr(expr ast.Expr) error {
	switch n := expr.(type) {
	case *ast.Number:
		v, err := e.constOf(n)
		if err != nil {
			return err
		}
		e.emit(Literal(v, e.span(n)))
		return nil
	case *ast.Str:
		e.emit(Literal(value.MakeString(n.Text), e.span(n)))
		return nil
	case *ast.NameRef:
		return e.emitNameRef(n)
	case *ast.ColonRef:
		v, err := e.resolveColonRef(n)
		if err != nil {
			return err
		}
		e.emit(Literal(v, e.span(n)))
		return nil
	case *ast.Binop:
		return e.emitBinop(n)
	case *ast.Unop:
		return e.emitUnop(n)
	case *ast.Block:
		return e.emitBlock(n)
	case *ast.Conditional:
		return e.emitConditional(n)
	case *ast.Match:
		return e.emitMatch(n)
	case *ast.For:
		return e.emitFor(n)
	case *ast.UnrollFor:
		return e.emitUnrollFor(n)
	case *ast.Range:
		return e.emitRange(n)
	case *ast.TupleExpr:
		return e.emitTuple(n)
	case *ast.ArrayExpr:
		return e.emitArray(n)
	case *ast.StructInstance:
		return e.emitStructInstance(n)
	case *ast.SplatStructInstance:
		return e.emitSplatStructInstance(n)
	case *ast.Attr:
		return e.emitAttr(n)
	case *ast.TupleIndex:
		return e.emitTupleIndex(n)
	case *ast.Index:
		return e.emitIndex(n)
	case *ast.Cast:
		return e.emitCast(n)
	case *ast.Invocation:
		return e.emitInvocation(n)
	case *ast.ChannelDecl:
		// A channel declaration produces a (producer, consumer) pair.
		e.emit(Literal(value.MakeTuple(value.MakeChannel(), value.MakeChannel()), e.span(n)))
		return nil
	default:
		return fmt.Errorf("bytecode: unsupported expression %T at %s", expr, expr.GetSpan())
	}
}

func (e *emitter) emitNameRef(n *ast.NameRef) error {
	if n.IsBuiltin() {
		e.emit(Literal(value.MakeBuiltin(n.Name), e.span(n)))
		return nil
	}
	if slot, ok := e.slots.lookup(n.Def); ok {
		e.emit(Load(slot, e.span(n)))
		return nil
	}
	if v, ok := e.Constexpr(n); ok {
		e.emit(Literal(v, e.span(n)))
		return nil
	}
	for _, b := range e.bindings.Bindings() {
		if b.Name == n.Name {
			e.emit(Literal(b.Value, e.span(n)))
			return nil
		}
	}
	if v, ok := e.env[n.Name]; ok {
		e.emit(Literal(v, e.span(n)))
		return nil
	}
	return fmt.Errorf("bytecode: undefined name %q at %s", n.Name, n.Span)
}

// Constexpr consults the type oracle for a precomputed value.
func (e *emitter) Constexpr(expr ast.Expr) (value.Value, bool) {
	return e.ti.Constexpr(expr)
}

// resolveColonRef produces the single value a qualified reference
// denotes, preferring a precomputed constexpr over registry lookup.
func (e *emitter) resolveColonRef(n *ast.ColonRef) (value.Value, error) {
	if v, ok := e.Constexpr(n); ok {
		return v, nil
	}
	return e.imports.ResolveColonRef(n)
}

// constOf produces the constant value of an expression: a recorded
// constexpr, or a numeric literal interpreted against its resolved
// type.
func (e *emitter) constOf(expr ast.Expr) (value.Value, error) {
	if v, ok := e.Constexpr(expr); ok {
		return v, nil
	}
	num, ok := expr.(*ast.Number)
	if !ok {
		return value.Value{}, fmt.Errorf("bytecode: expression %s at %s is not constant", expr, expr.GetSpan())
	}
	t, err := e.ti.TypeOf(num)
	if err != nil {
		return value.Value{}, err
	}
	width, err := t.BitCount()
	if err != nil {
		return value.Value{}, fmt.Errorf("bytecode: number %s at %s: %w", num.Text, num.Span, err)
	}
	// The literal may carry a type prefix ("u32:1"); the digits after
	// the last colon are the payload.
	digits := num.Text
	if i := strings.LastIndexByte(digits, ':'); i >= 0 {
		digits = digits[i+1:]
	}
	mag := new(big.Int)
	if _, ok := mag.SetString(digits, 0); !ok {
		return value.Value{}, fmt.Errorf("bytecode: malformed number %q at %s", num.Text, num.Span)
	}
	return value.MakeBits(t.IsSigned(), width, mag), nil
}

var binopOps = map[ast.BinopKind]Op{
	ast.BinopAdd:        OpAdd,
	ast.BinopSub:        OpSub,
	ast.BinopMul:        OpMul,
	ast.BinopDiv:        OpDiv,
	ast.BinopAnd:        OpAnd,
	ast.BinopOr:         OpOr,
	ast.BinopXor:        OpXor,
	ast.BinopShl:        OpShl,
	ast.BinopShr:        OpShr,
	ast.BinopConcat:     OpConcat,
	ast.BinopEq:         OpEq,
	ast.BinopNe:         OpNe,
	ast.BinopLt:         OpLt,
	ast.BinopLe:         OpLe,
	ast.BinopGt:         OpGt,
	ast.BinopGe:         OpGe,
	ast.BinopLogicalAnd: OpLogicalAnd,
	ast.BinopLogicalOr:  OpLogicalOr,
}

func (e *emitter) emitBinop(n *ast.Binop) error {
	op, ok := binopOps[n.Kind]
	if !ok {
		return fmt.Errorf("bytecode: unsupported binary operator %q at %s", n.Kind.Text(), n.Span)
	}
	if err := e.emitExpr(n.Lhs); err != nil {
		return err
	}
	if err := e.emitExpr(n.Rhs); err != nil {
		return err
	}
	e.emit(Plain(op, e.span(n)))
	return nil
}

func (e *emitter) emitUnop(n *ast.Unop) error {
	if err := e.emitExpr(n.Operand); err != nil {
		return err
	}
	switch n.Kind {
	case ast.UnopInvert:
		e.emit(Plain(OpInvert, e.span(n)))
	case ast.UnopNegate:
		e.emit(Plain(OpNegate, e.span(n)))
	default:
		return fmt.Errorf("bytecode: unsupported unary operator at %s", n.Span)
	}
	return nil
}

func (e *emitter) emitRange(n *ast.Range) error {
	if err := e.emitExpr(n.Start); err != nil {
		return err
	}
	if err := e.emitExpr(n.Limit); err != nil {
		return err
	}
	e.emit(Plain(OpRange, e.span(n)))
	return nil
}

func (e *emitter) emitTuple(n *ast.TupleExpr) error {
	for _, m := range n.Members {
		if err := e.emitExpr(m); err != nil {
			return err
		}
	}
	e.emit(Counted(OpCreateTuple, len(n.Members), e.span(n)))
	return nil
}

func (e *emitter) emitArray(n *ast.ArrayExpr) error {
	if n.IsConstant {
		// Prefolded by the type oracle; one literal regardless of
		// element count.
		v, ok := e.Constexpr(n)
		if !ok {
			return fmt.Errorf("bytecode: constant array at %s has no precomputed value", n.Span)
		}
		e.emit(Literal(v, e.span(n)))
		return nil
	}
	for _, m := range n.Members {
		if err := e.emitExpr(m); err != nil {
			return err
		}
	}
	size := len(n.Members)
	if n.HasEllipsis {
		t, err := e.ti.TypeOf(n)
		if err != nil {
			return err
		}
		size, err = t.ArraySize()
		if err != nil {
			return err
		}
		if len(n.Members) == 0 {
			return fmt.Errorf("bytecode: ellipsis array at %s has no seed element", n.Span)
		}
		for i := len(n.Members); i < size; i++ {
			e.emit(Plain(OpDup, e.span(n)))
		}
	}
	e.emit(Counted(OpCreateArray, size, e.span(n)))
	return nil
}

func (e *emitter) emitStructInstance(n *ast.StructInstance) error {
	byName := make(map[string]ast.Expr, len(n.Fields))
	for _, f := range n.Fields {
		byName[f.Name] = f.Expr
	}
	// Fields are emitted in declaration order regardless of how the
	// instance spells them.
	for _, name := range n.Def.Fields {
		fe, ok := byName[name]
		if !ok {
			return fmt.Errorf("bytecode: struct %s instance at %s missing field %q", n.Def.Name, n.Span, name)
		}
		if err := e.emitExpr(fe); err != nil {
			return err
		}
	}
	e.emit(Counted(OpCreateTuple, len(n.Def.Fields), e.span(n)))
	return nil
}

func (e *emitter) emitSplatStructInstance(n *ast.SplatStructInstance) error {
	byName := make(map[string]ast.Expr, len(n.Fields))
	for _, f := range n.Fields {
		byName[f.Name] = f.Expr
	}
	for i, name := range n.Def.Fields {
		if fe, ok := byName[name]; ok {
			if err := e.emitExpr(fe); err != nil {
				return err
			}
			continue
		}
		// Non-overridden fields read through the splatted base.
		if err := e.emitExpr(n.Splatted); err != nil {
			return err
		}
		e.emit(Literal(value.MakeU64(uint64(i)), e.span(n)))
		e.emit(Plain(OpIndex, e.span(n)))
	}
	e.emit(Counted(OpCreateTuple, len(n.Def.Fields), e.span(n)))
	return nil
}

func (e *emitter) emitAttr(n *ast.Attr) error {
	if err := e.emitExpr(n.Lhs); err != nil {
		return err
	}
	t, err := e.ti.TypeOf(n.Lhs)
	if err != nil {
		return err
	}
	idx, err := t.FieldIndex(n.Name)
	if err != nil {
		return fmt.Errorf("bytecode: attr %s at %s: %w", n, n.Span, err)
	}
	e.emit(Literal(value.MakeU64(uint64(idx)), e.span(n)))
	e.emit(Plain(OpTupleIndex, e.span(n)))
	return nil
}

func (e *emitter) emitTupleIndex(n *ast.TupleIndex) error {
	if err := e.emitExpr(n.Lhs); err != nil {
		return err
	}
	v, err := e.constOf(n.Index)
	if err != nil {
		return err
	}
	e.emit(Literal(v, e.span(n.Index)))
	e.emit(Plain(OpIndex, e.span(n)))
	return nil
}

func (e *emitter) emitIndex(n *ast.Index) error {
	if err := e.emitExpr(n.Lhs); err != nil {
		return err
	}
	switch rhs := n.Rhs.(type) {
	case *ast.ExprIndex:
		if err := e.emitExpr(rhs.Expr); err != nil {
			return err
		}
		e.emit(Plain(OpIndex, e.span(n)))
		return nil
	case *ast.Slice:
		return e.emitSlice(n, rhs)
	case *ast.WidthSlice:
		if err := e.emitExpr(rhs.Start); err != nil {
			return err
		}
		t, err := e.ti.TypeOf(n)
		if err != nil {
			return err
		}
		e.emit(Typed(OpWidthSlice, t, e.span(n)))
		return nil
	default:
		return fmt.Errorf("bytecode: unsupported index form %T at %s", n.Rhs, n.Span)
	}
}

// emitSlice resolves slice bounds to absolute literals. Missing
// bounds default to the subject's edges; negative bounds count back
// from the subject's width.
func (e *emitter) emitSlice(n *ast.Index, s *ast.Slice) error {
	subject, err := e.ti.TypeOf(n.Lhs)
	if err != nil {
		return err
	}
	width, err := subject.BitCount()
	if err != nil {
		return fmt.Errorf("bytecode: slice at %s: %w", n.Span, err)
	}
	bound := func(expr ast.Expr, missing int64) (int64, error) {
		if expr == nil {
			return missing, nil
		}
		v, err := e.constOf(expr)
		if err != nil {
			return 0, err
		}
		b, err := v.Int64()
		if err != nil {
			return 0, err
		}
		if b < 0 {
			b += int64(width)
		}
		return b, nil
	}
	start, err := bound(s.Start, 0)
	if err != nil {
		return err
	}
	limit, err := bound(s.Limit, int64(width))
	if err != nil {
		return err
	}
	e.emit(Literal(value.MakeSBits(32, start), e.span(s)))
	e.emit(Literal(value.MakeSBits(32, limit), e.span(s)))
	e.emit(Plain(OpSlice, e.span(n)))
	return nil
}

func (e *emitter) emitCast(n *ast.Cast) error {
	if err := e.emitExpr(n.Expr); err != nil {
		return err
	}
	t, err := e.ti.TypeOf(n)
	if err != nil {
		return err
	}
	e.emit(Typed(OpCast, t, e.span(n)))
	return nil
}
