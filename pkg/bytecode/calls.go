package bytecode

import (
	"fmt"

	"github.com/glint-lang/glint/pkg/ast"
	"github.com/glint-lang/glint/pkg/sema"
	"github.com/glint-lang/glint/pkg/value"
)

// emitInvocation lowers a call: arguments in order, then the callee as
// a literal, then call. Channel and token builtins lower to dedicated
// ops instead.
func (e *emitter) emitInvocation(n *ast.Invocation) error {
	if ref, ok := n.Callee.(*ast.NameRef); ok && ref.IsBuiltin() {
		switch ref.Name {
		case "recv":
			return e.emitRecv(n, OpRecv, false)
		case "recv_if":
			return e.emitRecv(n, OpRecv, true)
		case "recv_non_blocking":
			return e.emitRecv(n, OpRecvNonBlocking, false)
		case "recv_if_non_blocking":
			return e.emitRecv(n, OpRecvNonBlocking, true)
		case "send":
			return e.emitSend(n, false)
		case "send_if":
			return e.emitSend(n, true)
		case "join":
			return e.emitJoin(n)
		}
	}
	for _, arg := range n.Args {
		if err := e.emitExpr(arg); err != nil {
			return err
		}
	}
	if err := e.emitCallee(n.Callee); err != nil {
		return err
	}
	e.emit(Call(&InvocationData{
		CallSite: n.String(),
		Bindings: e.ti.InvocationBindings(n),
	}, e.span(n)))
	return nil
}

func (e *emitter) emitCallee(callee ast.Expr) error {
	switch c := callee.(type) {
	case *ast.NameRef:
		if c.IsBuiltin() {
			e.emit(Literal(value.MakeBuiltin(c.Name), e.span(c)))
			return nil
		}
		if slot, ok := e.slots.lookup(c.Def); ok {
			e.emit(Load(slot, e.span(c)))
			return nil
		}
		e.emit(Literal(value.MakeFunction(c.Name), e.span(c)))
		return nil
	case *ast.ColonRef:
		name, err := e.imports.ResolveCalleeFunc(c)
		if err != nil {
			return err
		}
		e.emit(Literal(value.MakeFunction(name), e.span(c)))
		return nil
	default:
		return fmt.Errorf("bytecode: unsupported callee %s at %s", callee, callee.GetSpan())
	}
}

// channelOf identifies the channel a channel-op argument names. The
// argument must resolve to a channel binding; process members carry
// their owning process for qualification.
func (e *emitter) channelOf(arg ast.Expr) (*ChannelData, error) {
	ref, ok := arg.(*ast.NameRef)
	if !ok || ref.Def == nil {
		return nil, fmt.Errorf("bytecode: channel operand %s at %s is not a channel binding", arg, arg.GetSpan())
	}
	return &ChannelData{Proc: ref.Def.Proc, Channel: ref.Def.Name}, nil
}

// payloadZero builds the default value a receive pushes when its
// predicate is false.
func (e *emitter) payloadZero(ch ast.Expr) (value.Value, error) {
	t, err := e.ti.TypeOf(ch)
	if err != nil {
		return value.Value{}, err
	}
	payload, err := t.ElementType()
	if err != nil {
		return value.Value{}, fmt.Errorf("bytecode: channel operand %s at %s: %w", ch, ch.GetSpan(), err)
	}
	return sema.ZeroValue(payload)
}

// emitRecv lowers recv/recv_if and their non-blocking forms. The op
// consumes token, channel, predicate, default and pushes a
// (token, value) pair (plus a valid flag for non-blocking receives).
// Unconditional forms get a constant-true predicate and a zero
// default.
func (e *emitter) emitRecv(n *ast.Invocation, op Op, conditional bool) error {
	want := 2
	if conditional {
		want = 4
	} else if op == OpRecvNonBlocking {
		want = 3
	}
	if len(n.Args) != want {
		return fmt.Errorf("bytecode: %s at %s expects %d arguments, got %d", n.Callee, n.Span, want, len(n.Args))
	}
	tok, ch := n.Args[0], n.Args[1]
	if err := e.emitExpr(tok); err != nil {
		return err
	}
	if err := e.emitExpr(ch); err != nil {
		return err
	}
	if conditional {
		if err := e.emitExpr(n.Args[2]); err != nil {
			return err
		}
		if err := e.emitExpr(n.Args[3]); err != nil {
			return err
		}
	} else {
		e.emit(Literal(value.MakeBool(true), e.span(n)))
		if op == OpRecvNonBlocking {
			if err := e.emitExpr(n.Args[2]); err != nil {
				return err
			}
		} else {
			zero, err := e.payloadZero(ch)
			if err != nil {
				return err
			}
			e.emit(Literal(zero, e.span(n)))
		}
	}
	data, err := e.channelOf(ch)
	if err != nil {
		return err
	}
	e.emit(ChannelOp(op, data, e.span(n)))
	return nil
}

// emitSend lowers send/send_if. The op consumes token, channel,
// payload, predicate and pushes the resulting token. The conditional
// form is spelled send_if(tok, ch, pred, payload); the payload still
// lands below the predicate.
func (e *emitter) emitSend(n *ast.Invocation, conditional bool) error {
	want := 3
	if conditional {
		want = 4
	}
	if len(n.Args) != want {
		return fmt.Errorf("bytecode: %s at %s expects %d arguments, got %d", n.Callee, n.Span, want, len(n.Args))
	}
	tok, ch := n.Args[0], n.Args[1]
	if err := e.emitExpr(tok); err != nil {
		return err
	}
	if err := e.emitExpr(ch); err != nil {
		return err
	}
	if conditional {
		if err := e.emitExpr(n.Args[3]); err != nil {
			return err
		}
		if err := e.emitExpr(n.Args[2]); err != nil {
			return err
		}
	} else {
		if err := e.emitExpr(n.Args[2]); err != nil {
			return err
		}
		e.emit(Literal(value.MakeBool(true), e.span(n)))
	}
	data, err := e.channelOf(ch)
	if err != nil {
		return err
	}
	e.emit(ChannelOp(OpSend, data, e.span(n)))
	return nil
}

// emitJoin lowers join(tok, ...): all tokens on the stack, then one
// join carrying the count.
func (e *emitter) emitJoin(n *ast.Invocation) error {
	for _, arg := range n.Args {
		if err := e.emitExpr(arg); err != nil {
			return err
		}
	}
	e.emit(Counted(OpJoin, len(n.Args), e.span(n)))
	return nil
}
