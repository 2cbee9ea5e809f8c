package bytecode

import (
	"fmt"

	"github.com/glint-lang/glint/pkg/ast"
	"github.com/glint-lang/glint/pkg/value"
)

// failUnmatchedLabel and failUnmatchedMessage are the trace data of
// the fallthrough guard every match carries.
const (
	failUnmatchedLabel   = "default"
	failUnmatchedMessage = "The value was not matched"
)

// emitConditional lowers if/else. The alternate is emitted first and
// jumped over when the test holds:
//
//	      <test>
//	      jump_rel_if @cons
//	      <alternate>
//	      jump_rel @end
//	@cons jump_dest
//	      <consequent>
//	@end  jump_dest
func (e *emitter) emitConditional(n *ast.Conditional) error {
	if err := e.emitExpr(n.Test); err != nil {
		return err
	}
	consJump := e.emitJump(OpJumpRelIf, e.span(n))
	if n.Alternate == nil {
		e.emit(Literal(value.MakeUnit(), e.span(n)))
	} else if err := e.emitExpr(n.Alternate); err != nil {
		return err
	}
	endJump := e.emitJump(OpJumpRel, e.span(n))
	e.landJumps(e.span(n), consJump)
	if err := e.emitBlock(n.Consequent); err != nil {
		return err
	}
	e.landJumps(e.span(n), endJump)
	return nil
}

// emitMatch lowers a match expression. The scrutinee stays on the
// stack across arm tests; each arm duplicates it, tests it, and pops
// it on entry to the arm body. A fail guard sits after the last arm
// so a scrutinee no arm accepts is a runtime error rather than a
// fall-off.
func (e *emitter) emitMatch(n *ast.Match) error {
	if len(n.Arms) == 0 {
		return fmt.Errorf("bytecode: match at %s has no arms", n.Span)
	}
	if err := e.emitExpr(n.Matched); err != nil {
		return err
	}
	var endJumps []int
	for _, arm := range n.Arms {
		e.emit(Plain(OpDup, e.span(arm)))
		item, err := e.matchArmItem(arm.Pattern)
		if err != nil {
			return err
		}
		e.emit(MatchArm(item, e.span(arm.Pattern)))
		e.emit(Plain(OpInvert, e.span(arm)))
		nextArm := e.emitJump(OpJumpRelIf, e.span(arm))
		e.emit(Plain(OpPop, e.span(arm)))
		if err := e.emitExpr(arm.Expr); err != nil {
			return err
		}
		endJumps = append(endJumps, e.emitJump(OpJumpRel, e.span(arm)))
		e.landJumps(e.span(arm), nextArm)
	}
	e.emit(Fail(&TraceData{Label: failUnmatchedLabel, Message: failUnmatchedMessage}, e.span(n)))
	e.landJumps(e.span(n), endJumps...)
	return nil
}

// matchArmItem converts an arm pattern into the match_arm operand. A
// binding pattern allocates its slot here; the interpreter stores the
// scrutinee as a side effect of the (always true) test.
func (e *emitter) matchArmItem(p *ast.MatchPattern) (*MatchArmItem, error) {
	switch {
	case p.Wildcard:
		return &MatchArmItem{Kind: MatchArmWildcard}, nil
	case p.Name != nil:
		return &MatchArmItem{Kind: MatchArmStore, Slot: e.slots.bind(p.Name)}, nil
	default:
		if ref, ok := p.Expr.(*ast.NameRef); ok && ref.Def != nil {
			if slot, ok := e.slots.lookup(ref.Def); ok {
				return &MatchArmItem{Kind: MatchArmLoad, Slot: slot}, nil
			}
		}
		var v value.Value
		var err error
		if cr, ok := p.Expr.(*ast.ColonRef); ok {
			v, err = e.resolveColonRef(cr)
		} else {
			v, err = e.constOf(p.Expr)
		}
		if err != nil {
			return nil, fmt.Errorf("bytecode: match pattern %s at %s: %w", p, p.Span, err)
		}
		return &MatchArmItem{Kind: MatchArmValue, Value: v}, nil
	}
}

// emitFor lowers a bounded loop. The iterable and a counter live in
// anonymous slots; the accumulator is carried on the operand stack
// between iterations:
//
//	      <iterable>; store iter
//	      literal 0;  store idx
//	      <init>
//	@head jump_dest
//	      load idx; literal count; eq
//	      jump_rel_if @end
//	      load iter; load idx; index
//	      swap; create_tuple 2; expand_tuple
//	      <destructure (element, carry)>
//	      <body>
//	      load idx; literal 1; add; store idx
//	      jump_rel @head
//	@end  jump_dest
func (e *emitter) emitFor(n *ast.For) error {
	count, err := e.iterationCount(n.Iterable)
	if err != nil {
		return err
	}
	if err := e.emitExpr(n.Iterable); err != nil {
		return err
	}
	span := e.span(n)
	iterSlot := e.slots.reserve()
	e.emit(Store(iterSlot, span))
	idxSlot := e.slots.reserve()
	e.emit(Literal(value.MakeU32(0), span))
	e.emit(Store(idxSlot, span))
	if err := e.emitExpr(n.Init); err != nil {
		return err
	}

	head := e.emit(Plain(OpJumpDest, span))
	e.emit(Load(idxSlot, span))
	e.emit(Literal(value.MakeU32(uint32(count)), span))
	e.emit(Plain(OpEq, span))
	exitJump := e.emitJump(OpJumpRelIf, span)

	e.emit(Load(iterSlot, span))
	e.emit(Load(idxSlot, span))
	e.emit(Plain(OpIndex, span))
	// Pair the element with the carried accumulator so the loop
	// pattern destructures both with one expand.
	e.emit(Plain(OpSwap, span))
	e.emit(Counted(OpCreateTuple, 2, span))
	if err := e.destructure(n.Names); err != nil {
		return err
	}
	if err := e.emitBlock(n.Body); err != nil {
		return err
	}

	e.emit(Load(idxSlot, span))
	e.emit(Literal(value.MakeU32(1), span))
	e.emit(Plain(OpAdd, span))
	e.emit(Store(idxSlot, span))
	e.emit(Jump(OpJumpRel, head-len(e.instrs), span))
	e.landJumps(span, exitJump)
	return nil
}

// iterationCount returns the static trip count of a loop iterable.
func (e *emitter) iterationCount(iterable ast.Expr) (int, error) {
	t, err := e.ti.TypeOf(iterable)
	if err != nil {
		return 0, err
	}
	size, err := t.ArraySize()
	if err != nil {
		return 0, fmt.Errorf("bytecode: loop iterable %s at %s: %w", iterable, iterable.GetSpan(), err)
	}
	return size, nil
}

// emitUnrollFor expands the loop body once per element at emission
// time. The iterable must be statically known; no jumps are emitted.
func (e *emitter) emitUnrollFor(n *ast.UnrollFor) error {
	iter, err := e.constOf(n.Iterable)
	if err != nil {
		return fmt.Errorf("bytecode: unroll_for! iterable at %s: %w", n.Iterable.GetSpan(), err)
	}
	elems, err := iter.Elements()
	if err != nil {
		return fmt.Errorf("bytecode: unroll_for! iterable at %s: %w", n.Iterable.GetSpan(), err)
	}
	if err := e.emitExpr(n.Init); err != nil {
		return err
	}
	span := e.span(n)
	for _, elem := range elems {
		e.emit(Literal(elem, span))
		e.emit(Plain(OpSwap, span))
		e.emit(Counted(OpCreateTuple, 2, span))
		if err := e.destructure(n.Names); err != nil {
			return err
		}
		if err := e.emitBlock(n.Body); err != nil {
			return err
		}
	}
	return nil
}
