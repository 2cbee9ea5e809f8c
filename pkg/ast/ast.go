// Package ast defines the typed abstract syntax tree the bytecode
// emitter consumes. The tree is produced by an external front end and
// arrives fully resolved: every NameRef points at its binding NameDef,
// and the companion sema.TypeInfo carries each expression's concrete
// type and (where applicable) its precomputed constant value.
//
// The node set is closed. Consumers switch exhaustively over it; a new
// node kind is a compile-visible change, not a silently unhandled case.
package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Span is a half-open source region used for diagnostics and for the
// optional source-location suffixes in disassembly.
type Span struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// IsZero reports whether the span carries no location.
func (s Span) IsZero() bool { return s == Span{} }

// String renders "file:line:col-line:col".
func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d-%d:%d", s.File, s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}

// Node is implemented by every AST node.
type Node interface {
	GetSpan() Span
	String() string
}

// Expr is the interface of expression nodes.
type Expr interface {
	Node
	isExpr()
}

// Statement is a block-level statement: a Let or an expression.
type Statement interface {
	Node
	isStmt()
}

// NameDef is a binding occurrence of a name. Its pointer identity is
// the binding identity: shadowing definitions are distinct NameDefs
// even when they spell the same name.
type NameDef struct {
	Span Span
	Name string
	// Proc names the owning process when this def is a proc member
	// (used to qualify channel identities, e.g. "Child::c").
	Proc string
}

func (n *NameDef) GetSpan() Span  { return n.Span }
func (n *NameDef) String() string { return n.Name }

// NameDefTree is a destructuring pattern: a leaf binding, a leaf
// wildcard, or a tuple of sub-patterns. Exactly one of Name, Wildcard,
// Nodes is populated.
type NameDefTree struct {
	Span     Span
	Name     *NameDef
	Wildcard bool
	Nodes    []*NameDefTree
}

// IsLeaf reports whether the tree is a single binding or wildcard.
func (t *NameDefTree) IsLeaf() bool { return len(t.Nodes) == 0 }

func (t *NameDefTree) GetSpan() Span { return t.Span }

func (t *NameDefTree) String() string {
	switch {
	case t.Wildcard:
		return "_"
	case t.Name != nil:
		return t.Name.Name
	default:
		parts := make([]string, len(t.Nodes))
		for i, n := range t.Nodes {
			parts[i] = n.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
}

// Number is a numeric literal. Text preserves the literal as written
// ("u32:2", "0xdeadbeef"); its concrete value comes from the type
// oracle, not from re-parsing here.
type Number struct {
	Span Span
	Text string
}

func (n *Number) GetSpan() Span  { return n.Span }
func (n *Number) String() string { return n.Text }
func (n *Number) isExpr()        {}
func (n *Number) isStmt()        {}

// Str is a string literal, lowered to an array of u8.
type Str struct {
	Span Span
	Text string
}

func (s *Str) GetSpan() Span  { return s.Span }
func (s *Str) String() string { return strconv.Quote(s.Text) }
func (s *Str) isExpr()        {}
func (s *Str) isStmt()        {}

// NameRef is a use of a name. Def is nil for builtins, which have no
// binding occurrence in user code.
type NameRef struct {
	Span Span
	Name string
	Def  *NameDef
}

// IsBuiltin reports whether the ref names a builtin.
func (n *NameRef) IsBuiltin() bool { return n.Def == nil }

func (n *NameRef) GetSpan() Span  { return n.Span }
func (n *NameRef) String() string { return n.Name }
func (n *NameRef) isExpr()        {}
func (n *NameRef) isStmt()        {}

// ColonRef is a qualified reference: an imported constant, an enum
// member, or an imported enum member (nested subject).
type ColonRef struct {
	Span    Span
	Subject Expr // *NameRef or *ColonRef
	Attr    string
}

func (c *ColonRef) GetSpan() Span  { return c.Span }
func (c *ColonRef) String() string { return c.Subject.String() + "::" + c.Attr }
func (c *ColonRef) isExpr()        {}
func (c *ColonRef) isStmt()        {}

// BinopKind enumerates binary operators.
type BinopKind uint8

const (
	BinopAdd BinopKind = iota
	BinopAnd
	BinopConcat
	BinopDiv
	BinopEq
	BinopGe
	BinopGt
	BinopLe
	BinopLogicalAnd
	BinopLogicalOr
	BinopLt
	BinopMul
	BinopNe
	BinopOr
	BinopShl
	BinopShr
	BinopSub
	BinopXor
)

var binopText = map[BinopKind]string{
	BinopAdd: "+", BinopAnd: "&", BinopConcat: "++", BinopDiv: "/",
	BinopEq: "==", BinopGe: ">=", BinopGt: ">", BinopLe: "<=",
	BinopLogicalAnd: "&&", BinopLogicalOr: "||", BinopLt: "<",
	BinopMul: "*", BinopNe: "!=", BinopOr: "|", BinopShl: "<<",
	BinopShr: ">>", BinopSub: "-", BinopXor: "^",
}

// Text returns the operator's source spelling.
func (k BinopKind) Text() string { return binopText[k] }

// Binop is a binary operation.
type Binop struct {
	Span     Span
	Kind     BinopKind
	Lhs, Rhs Expr
}

func (b *Binop) GetSpan() Span { return b.Span }
func (b *Binop) String() string {
	return fmt.Sprintf("%s %s %s", b.Lhs, b.Kind.Text(), b.Rhs)
}
func (b *Binop) isExpr() {}
func (b *Binop) isStmt() {}

// UnopKind enumerates unary operators.
type UnopKind uint8

const (
	UnopInvert UnopKind = iota // bitwise/logical inversion (!)
	UnopNegate                 // arithmetic negation (-)
)

// Unop is a unary operation.
type Unop struct {
	Span    Span
	Kind    UnopKind
	Operand Expr
}

func (u *Unop) GetSpan() Span { return u.Span }
func (u *Unop) String() string {
	if u.Kind == UnopInvert {
		return "!" + u.Operand.String()
	}
	return "-" + u.Operand.String()
}
func (u *Unop) isExpr() {}
func (u *Unop) isStmt() {}

// Let binds the destructured right-hand side. IsConst marks a local
// constant definition, which lowers identically.
type Let struct {
	Span    Span
	Pattern *NameDefTree
	Rhs     Expr
	IsConst bool
}

func (l *Let) GetSpan() Span { return l.Span }
func (l *Let) String() string {
	kw := "let"
	if l.IsConst {
		kw = "const"
	}
	return fmt.Sprintf("%s %s = %s", kw, l.Pattern, l.Rhs)
}
func (l *Let) isStmt() {}

// Block is a sequence of statements; its value is the value of the
// final statement (unit when empty).
type Block struct {
	Span       Span
	Statements []Statement
}

func (b *Block) GetSpan() Span { return b.Span }
func (b *Block) String() string {
	parts := make([]string, len(b.Statements))
	for i, s := range b.Statements {
		parts[i] = s.String()
	}
	return "{ " + strings.Join(parts, "; ") + " }"
}
func (b *Block) isExpr() {}
func (b *Block) isStmt() {}

// Conditional is an if/else expression. Alternate is a *Block or,
// for an else-if chain, a nested *Conditional. A nil Alternate is a
// unit-valued else branch.
type Conditional struct {
	Span       Span
	Test       Expr
	Consequent *Block
	Alternate  Expr
}

func (c *Conditional) GetSpan() Span { return c.Span }
func (c *Conditional) String() string {
	if c.Alternate == nil {
		return fmt.Sprintf("if %s %s", c.Test, c.Consequent)
	}
	return fmt.Sprintf("if %s %s else %s", c.Test, c.Consequent, c.Alternate)
}
func (c *Conditional) isExpr() {}
func (c *Conditional) isStmt() {}

// MatchPattern discriminates a match arm: a literal value test, a
// wildcard, or a name binding. Exactly one of Expr, Name, Wildcard is
// populated.
type MatchPattern struct {
	Span     Span
	Expr     Expr // literal or qualified ref tested for equality
	Name     *NameDef
	Wildcard bool
}

func (p *MatchPattern) GetSpan() Span { return p.Span }
func (p *MatchPattern) String() string {
	switch {
	case p.Wildcard:
		return "_"
	case p.Name != nil:
		return p.Name.Name
	default:
		return p.Expr.String()
	}
}

// MatchArm pairs a pattern with its body expression.
type MatchArm struct {
	Span    Span
	Pattern *MatchPattern
	Expr    Expr
}

func (a *MatchArm) GetSpan() Span  { return a.Span }
func (a *MatchArm) String() string { return a.Pattern.String() + " => " + a.Expr.String() }

// Match is a match expression over a scrutinee.
type Match struct {
	Span    Span
	Matched Expr
	Arms    []*MatchArm
}

func (m *Match) GetSpan() Span { return m.Span }
func (m *Match) String() string {
	parts := make([]string, len(m.Arms))
	for i, a := range m.Arms {
		parts[i] = a.String()
	}
	return fmt.Sprintf("match %s { %s }", m.Matched, strings.Join(parts, ", "))
}
func (m *Match) isExpr() {}
func (m *Match) isStmt() {}

// For is a bounded counted loop: the pattern binds (element,
// accumulator), Init seeds the accumulator, and the body's value
// carries to the next iteration.
type For struct {
	Span     Span
	Names    *NameDefTree
	Iterable Expr
	Body     *Block
	Init     Expr
}

func (f *For) GetSpan() Span { return f.Span }
func (f *For) String() string {
	return fmt.Sprintf("for %s in %s %s(%s)", f.Names, f.Iterable, f.Body, f.Init)
}
func (f *For) isExpr() {}
func (f *For) isStmt() {}

// UnrollFor is the compile-time-unrolled loop form. The iterable must
// be statically known; no runtime jumps are emitted.
type UnrollFor struct {
	Span     Span
	Names    *NameDefTree
	Iterable Expr
	Body     *Block
	Init     Expr
}

func (f *UnrollFor) GetSpan() Span { return f.Span }
func (f *UnrollFor) String() string {
	return fmt.Sprintf("unroll_for! %s in %s %s(%s)", f.Names, f.Iterable, f.Body, f.Init)
}
func (f *UnrollFor) isExpr() {}
func (f *UnrollFor) isStmt() {}

// Range is a half-open range expression start..limit.
type Range struct {
	Span         Span
	Start, Limit Expr
}

func (r *Range) GetSpan() Span  { return r.Span }
func (r *Range) String() string { return r.Start.String() + ".." + r.Limit.String() }
func (r *Range) isExpr()        {}
func (r *Range) isStmt()        {}

// TupleExpr constructs a tuple from member expressions.
type TupleExpr struct {
	Span    Span
	Members []Expr
}

func (t *TupleExpr) GetSpan() Span { return t.Span }
func (t *TupleExpr) String() string {
	if len(t.Members) == 1 {
		return "(" + t.Members[0].String() + ",)"
	}
	return "(" + joinExprs(t.Members) + ")"
}
func (t *TupleExpr) isExpr() {}
func (t *TupleExpr) isStmt() {}

// ArrayExpr constructs an array. IsConstant marks an all-constant
// array the type oracle has prefolded; the emitter pushes it as a
// single literal instead of element-by-element construction.
type ArrayExpr struct {
	Span        Span
	Members     []Expr
	HasEllipsis bool
	IsConstant  bool
}

func (a *ArrayExpr) GetSpan() Span { return a.Span }
func (a *ArrayExpr) String() string {
	s := "[" + joinExprs(a.Members)
	if a.HasEllipsis {
		s += ", ..."
	}
	return s + "]"
}
func (a *ArrayExpr) isExpr() {}
func (a *ArrayExpr) isStmt() {}

// StructDef is the declaration a struct instance refers to; only the
// declared field order matters to emission.
type StructDef struct {
	Span   Span
	Name   string
	Fields []string
}

func (s *StructDef) GetSpan() Span  { return s.Span }
func (s *StructDef) String() string { return s.Name }

// FieldIndex returns the declared position of a field.
func (s *StructDef) FieldIndex(name string) (int, bool) {
	for i, f := range s.Fields {
		if f == name {
			return i, true
		}
	}
	return 0, false
}

// StructField is one `name: expr` member of a struct instance.
type StructField struct {
	Name string
	Expr Expr
}

// StructInstance constructs a struct value; fields may be written in
// any order, emission follows declaration order.
type StructInstance struct {
	Span   Span
	Def    *StructDef
	Fields []StructField
}

func (s *StructInstance) GetSpan() Span { return s.Span }
func (s *StructInstance) String() string {
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = f.Name + ": " + f.Expr.String()
	}
	return fmt.Sprintf("%s { %s }", s.Def.Name, strings.Join(parts, ", "))
}
func (s *StructInstance) isExpr() {}
func (s *StructInstance) isStmt() {}

// SplatStructInstance is the functional-update form
// `S { field: e, ..base }`.
type SplatStructInstance struct {
	Span    Span
	Def     *StructDef
	Fields  []StructField // overridden fields only
	Splatted Expr
}

func (s *SplatStructInstance) GetSpan() Span { return s.Span }
func (s *SplatStructInstance) String() string {
	parts := make([]string, 0, len(s.Fields)+1)
	for _, f := range s.Fields {
		parts = append(parts, f.Name+": "+f.Expr.String())
	}
	parts = append(parts, ".."+s.Splatted.String())
	return fmt.Sprintf("%s { %s }", s.Def.Name, strings.Join(parts, ", "))
}
func (s *SplatStructInstance) isExpr() {}
func (s *SplatStructInstance) isStmt() {}

// Attr is struct field access `lhs.name`.
type Attr struct {
	Span Span
	Lhs  Expr
	Name string
}

func (a *Attr) GetSpan() Span  { return a.Span }
func (a *Attr) String() string { return a.Lhs.String() + "." + a.Name }
func (a *Attr) isExpr()        {}
func (a *Attr) isStmt()        {}

// TupleIndex is positional tuple access `lhs.2`.
type TupleIndex struct {
	Span  Span
	Lhs   Expr
	Index *Number
}

func (t *TupleIndex) GetSpan() Span  { return t.Span }
func (t *TupleIndex) String() string { return t.Lhs.String() + "." + t.Index.Text }
func (t *TupleIndex) isExpr()        {}
func (t *TupleIndex) isStmt()        {}

// IndexRhs is the bracketed part of an Index: a plain element index,
// a bit slice, or a width slice.
type IndexRhs interface {
	Node
	isIndexRhs()
}

// Slice is a bit slice `[start:limit]`; either bound may be nil and
// bounds may be negative (relative to the subject's width).
type Slice struct {
	Span         Span
	Start, Limit Expr
}

func (s *Slice) GetSpan() Span { return s.Span }
func (s *Slice) String() string {
	start, limit := "", ""
	if s.Start != nil {
		start = s.Start.String()
	}
	if s.Limit != nil {
		limit = s.Limit.String()
	}
	return start + ":" + limit
}
func (s *Slice) isIndexRhs() {}

// WidthSlice is `[start +: type]`; the concrete width type is resolved
// by the type oracle, WidthText preserves the source spelling.
type WidthSlice struct {
	Span      Span
	Start     Expr
	WidthText string
}

func (w *WidthSlice) GetSpan() Span  { return w.Span }
func (w *WidthSlice) String() string { return w.Start.String() + " +: " + w.WidthText }
func (w *WidthSlice) isIndexRhs()    {}

// ExprIndex adapts a plain expression to the IndexRhs position.
type ExprIndex struct {
	Expr Expr
}

func (e *ExprIndex) GetSpan() Span  { return e.Expr.GetSpan() }
func (e *ExprIndex) String() string { return e.Expr.String() }
func (e *ExprIndex) isIndexRhs()    {}

// Index is `lhs[rhs]` for arrays, or slicing for bits subjects.
type Index struct {
	Span Span
	Lhs  Expr
	Rhs  IndexRhs
}

func (i *Index) GetSpan() Span  { return i.Span }
func (i *Index) String() string { return i.Lhs.String() + "[" + i.Rhs.String() + "]" }
func (i *Index) isExpr()        {}
func (i *Index) isStmt()        {}

// Cast is `expr as type`. The target type is the cast expression's own
// resolved type; TypeText preserves the source spelling for rendering.
type Cast struct {
	Span     Span
	Expr     Expr
	TypeText string
}

func (c *Cast) GetSpan() Span  { return c.Span }
func (c *Cast) String() string { return c.Expr.String() + " as " + c.TypeText }
func (c *Cast) isExpr()        {}
func (c *Cast) isStmt()        {}

// Invocation is a call. The callee is a NameRef (builtin or function)
// or a ColonRef (imported function); distinguishing them is a tagged
// switch at the call site, not a downcast chain.
type Invocation struct {
	Span   Span
	Callee Expr
	Args   []Expr
}

func (i *Invocation) GetSpan() Span { return i.Span }
func (i *Invocation) String() string {
	return i.Callee.String() + "(" + joinExprs(i.Args) + ")"
}
func (i *Invocation) isExpr() {}
func (i *Invocation) isStmt() {}

// ChannelDecl is `chan<type>`, producing a (producer, consumer) pair.
type ChannelDecl struct {
	Span     Span
	TypeText string
}

func (c *ChannelDecl) GetSpan() Span  { return c.Span }
func (c *ChannelDecl) String() string { return "chan<" + c.TypeText + ">" }
func (c *ChannelDecl) isExpr()        {}
func (c *ChannelDecl) isStmt()        {}

// Param is a function parameter.
type Param struct {
	Name     *NameDef
	TypeText string
}

// Function is one emission unit: a free function, or one of a
// process's lifecycle bodies.
type Function struct {
	Span   Span
	Name   string
	Params []*Param
	Body   *Block
}

func (f *Function) GetSpan() Span { return f.Span }
func (f *Function) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.Name.Name + ": " + p.TypeText
	}
	return fmt.Sprintf("fn %s(%s) %s", f.Name, strings.Join(parts, ", "), f.Body)
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
