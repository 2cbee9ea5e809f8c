package bytecode

import (
	"fmt"
	"testing"

	"github.com/glint-lang/glint/pkg/ast"
	"github.com/glint-lang/glint/pkg/sema"
	"github.com/glint-lang/glint/pkg/value"
)

// fixture bundles the sema inputs every emission needs and some sugar
// for building typed AST fragments by hand.
type fixture struct {
	t       *testing.T
	ti      *sema.TypeInfo
	imports *sema.ImportData
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, ti: sema.NewTypeInfo(), imports: sema.NewImportData()}
}

func (f *fixture) num(text string, typ *sema.Type) *ast.Number {
	n := &ast.Number{Text: text}
	f.ti.SetType(n, typ)
	return n
}

func (f *fixture) u32(v uint32) *ast.Number {
	return f.num(fmt.Sprintf("u32:%d", v), sema.U32())
}

func (f *fixture) emit(fn *ast.Function) *Sequence {
	f.t.Helper()
	seq, err := Emit(f.imports, f.ti, fn, nil, Options{})
	if err != nil {
		f.t.Fatalf("Emit: %v", err)
	}
	return seq
}

func def(name string) *ast.NameDef { return &ast.NameDef{Name: name} }

func ref(d *ast.NameDef) *ast.NameRef { return &ast.NameRef{Name: d.Name, Def: d} }

func builtin(name string) *ast.NameRef { return &ast.NameRef{Name: name} }

func bindLet(d *ast.NameDef, rhs ast.Expr) *ast.Let {
	return &ast.Let{Pattern: &ast.NameDefTree{Name: d}, Rhs: rhs}
}

func block(stmts ...ast.Statement) *ast.Block {
	return &ast.Block{Statements: stmts}
}

func fun(name string, body *ast.Block, params ...*ast.Param) *ast.Function {
	return &ast.Function{Name: name, Params: params, Body: body}
}

func binop(kind ast.BinopKind, lhs, rhs ast.Expr) *ast.Binop {
	return &ast.Binop{Kind: kind, Lhs: lhs, Rhs: rhs}
}

func checkFormat(t *testing.T, seq *Sequence, want string) {
	t.Helper()
	if got := Format(seq); got != want {
		t.Errorf("disassembly mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestLetAndAdd(t *testing.T) {
	f := newFixture(t)
	foo := def("foo")
	seq := f.emit(fun("one_plus_one", block(
		bindLet(foo, f.u32(1)),
		binop(ast.BinopAdd, ref(foo), f.u32(2)),
	)))
	if seq.Len() != 5 {
		t.Fatalf("got %d instructions, want 5", seq.Len())
	}
	checkFormat(t, seq, `000 literal u32:1
001 store 0
002 load 0
003 literal u32:2
004 add`)
	if seq.SlotCount() != 1 {
		t.Errorf("slot count = %d, want 1", seq.SlotCount())
	}
}

func TestBuiltinCallIsPopped(t *testing.T) {
	f := newFixture(t)
	foo := def("foo")
	seq := f.emit(fun("expect_fail", block(
		bindLet(foo, f.num("u32:3", sema.U32())),
		&ast.Invocation{
			Callee: builtin("assert_eq"),
			Args:   []ast.Expr{ref(foo), f.u32(2)},
		},
		ref(foo),
	)))
	checkFormat(t, seq, `000 literal u32:3
001 store 0
002 load 0
003 literal u32:2
004 literal builtin:assert_eq
005 call assert_eq(foo, u32:2) : {}
006 pop
007 load 0`)
}

func TestDestructuringLet(t *testing.T) {
	f := newFixture(t)
	a, b, c, d := def("a"), def("b"), def("c"), def("d")
	inner := &ast.TupleExpr{Members: []ast.Expr{
		f.num("u32:3", sema.U32()),
		f.num("u64:4", sema.U64()),
		f.num("uN[128]:5", sema.BitsType(false, 128)),
	}}
	rhs := &ast.TupleExpr{Members: []ast.Expr{
		f.num("u4:0", sema.BitsType(false, 4)),
		f.num("u8:1", sema.U8()),
		&ast.TupleExpr{Members: []ast.Expr{f.num("u16:2", sema.BitsType(false, 16)), inner}},
	}}
	pattern := &ast.NameDefTree{Nodes: []*ast.NameDefTree{
		{Name: a},
		{Name: b},
		{Nodes: []*ast.NameDefTree{{Name: c}, {Name: d}}},
	}}
	seq := f.emit(fun("has_name_def_tree", block(
		&ast.Let{Pattern: pattern, Rhs: rhs},
		ref(d),
	)))
	checkFormat(t, seq, `000 literal u4:0
001 literal u8:1
002 literal u16:2
003 literal u32:3
004 literal u64:4
005 literal u128:0x5
006 create_tuple 3
007 create_tuple 2
008 create_tuple 3
009 expand_tuple
010 store 0
011 store 1
012 expand_tuple
013 store 2
014 store 3
015 load 3`)
}

func TestTernary(t *testing.T) {
	f := newFixture(t)
	seq := f.emit(fun("do_ternary", block(&ast.Conditional{
		Test:       f.num("u1:1", sema.U1()),
		Consequent: block(f.u32(42)),
		Alternate:  block(f.u32(64)),
	})))
	checkFormat(t, seq, `000 literal u1:1
001 jump_rel_if +3
002 literal u32:64
003 jump_rel +3
004 jump_dest
005 literal u32:42
006 jump_dest`)
}

func TestElseIfChain(t *testing.T) {
	f := newFixture(t)
	seq := f.emit(fun("chain", block(&ast.Conditional{
		Test:       f.num("u1:0", sema.U1()),
		Consequent: block(f.u32(1)),
		Alternate: &ast.Conditional{
			Test:       f.num("u1:1", sema.U1()),
			Consequent: block(f.u32(2)),
			Alternate:  block(f.u32(3)),
		},
	})))
	checkFormat(t, seq, `000 literal u1:0
001 jump_rel_if +9
002 literal u1:1
003 jump_rel_if +3
004 literal u32:3
005 jump_rel +3
006 jump_dest
007 literal u32:2
008 jump_dest
009 jump_rel +3
010 jump_dest
011 literal u32:1
012 jump_dest`)
}

func TestShadowing(t *testing.T) {
	f := newFixture(t)
	x1, x2 := def("x"), def("x")
	seq := f.emit(fun("f", block(
		bindLet(x1, f.u32(42)),
		bindLet(x2, f.u32(64)),
		ref(x2),
	)))
	checkFormat(t, seq, `000 literal u32:42
001 store 0
002 literal u32:64
003 store 1
004 load 1`)
}

func TestMatchArms(t *testing.T) {
	f := newFixture(t)
	x := def("x")
	m := &ast.Match{
		Matched: ref(x),
		Arms: []*ast.MatchArm{
			{Pattern: &ast.MatchPattern{Expr: f.u32(42)}, Expr: f.u32(64)},
			{Pattern: &ast.MatchPattern{Expr: f.u32(64)}, Expr: f.u32(42)},
			{Pattern: &ast.MatchPattern{Wildcard: true}, Expr: binop(ast.BinopAdd, ref(x), f.u32(1))},
		},
	}
	seq := f.emit(fun("do_match", block(bindLet(x, f.u32(77)), m)))
	checkFormat(t, seq, `000 literal u32:77
001 store 0
002 load 0
003 dup
004 match_arm value:u32:42
005 invert
006 jump_rel_if +4
007 pop
008 literal u32:64
009 jump_rel +21
010 jump_dest
011 dup
012 match_arm value:u32:64
013 invert
014 jump_rel_if +4
015 pop
016 literal u32:42
017 jump_rel +13
018 jump_dest
019 dup
020 match_arm wildcard
021 invert
022 jump_rel_if +6
023 pop
024 load 0
025 literal u32:1
026 add
027 jump_rel +3
028 jump_dest
029 fail default: The value was not matched
030 jump_dest`)
}

func TestMatchBindingAndLoadArms(t *testing.T) {
	f := newFixture(t)
	x, sentinel, y := def("x"), def("sentinel"), def("y")
	m := &ast.Match{
		Matched: ref(x),
		Arms: []*ast.MatchArm{
			{Pattern: &ast.MatchPattern{Expr: ref(sentinel)}, Expr: f.u32(0)},
			{Pattern: &ast.MatchPattern{Name: y}, Expr: ref(y)},
		},
	}
	seq := f.emit(fun("bind_match", block(
		bindLet(sentinel, f.u32(5)),
		bindLet(x, f.u32(7)),
		m,
	)))
	checkFormat(t, seq, `000 literal u32:5
001 store 0
002 literal u32:7
003 store 1
004 load 1
005 dup
006 match_arm load:0
007 invert
008 jump_rel_if +4
009 pop
010 literal u32:0
011 jump_rel +11
012 jump_dest
013 dup
014 match_arm store:2
015 invert
016 jump_rel_if +4
017 pop
018 load 2
019 jump_rel +3
020 jump_dest
021 fail default: The value was not matched
022 jump_dest`)
}

func TestBinops(t *testing.T) {
	cases := []struct {
		kind ast.BinopKind
		want Op
	}{
		{ast.BinopAdd, OpAdd},
		{ast.BinopAnd, OpAnd},
		{ast.BinopConcat, OpConcat},
		{ast.BinopDiv, OpDiv},
		{ast.BinopEq, OpEq},
		{ast.BinopGe, OpGe},
		{ast.BinopGt, OpGt},
		{ast.BinopLe, OpLe},
		{ast.BinopLogicalAnd, OpLogicalAnd},
		{ast.BinopLogicalOr, OpLogicalOr},
		{ast.BinopLt, OpLt},
		{ast.BinopMul, OpMul},
		{ast.BinopNe, OpNe},
		{ast.BinopOr, OpOr},
		{ast.BinopShl, OpShl},
		{ast.BinopShr, OpShr},
		{ast.BinopSub, OpSub},
		{ast.BinopXor, OpXor},
	}
	for _, tc := range cases {
		t.Run(tc.want.String(), func(t *testing.T) {
			f := newFixture(t)
			a, b := def("a"), def("b")
			seq := f.emit(fun("binop", block(binop(tc.kind, ref(a), ref(b))),
				&ast.Param{Name: a, TypeText: "u32"},
				&ast.Param{Name: b, TypeText: "u32"}))
			instrs := seq.Instructions()
			if len(instrs) != 3 {
				t.Fatalf("got %d instructions, want 3", len(instrs))
			}
			if instrs[2].Op() != tc.want {
				t.Errorf("op = %s, want %s", instrs[2].Op(), tc.want)
			}
		})
	}
}

func TestUnops(t *testing.T) {
	f := newFixture(t)
	a, b, c := def("a"), def("b"), def("c")
	seq := f.emit(fun("unops", block(
		bindLet(a, f.num("s32:32", sema.BitsType(true, 32))),
		bindLet(b, &ast.Unop{Kind: ast.UnopInvert, Operand: ref(a)}),
		bindLet(c, &ast.Unop{Kind: ast.UnopNegate, Operand: ref(b)}),
		&ast.TupleExpr{},
	)))
	instrs := seq.Instructions()
	if len(instrs) != 9 {
		t.Fatalf("got %d instructions, want 9", len(instrs))
	}
	if instrs[3].Op() != OpInvert {
		t.Errorf("instr 3 = %s, want invert", instrs[3].Op())
	}
	if instrs[6].Op() != OpNegate {
		t.Errorf("instr 6 = %s, want negate", instrs[6].Op())
	}
}

func TestArrayConstruction(t *testing.T) {
	f := newFixture(t)
	a := def("a")
	seq := f.emit(fun("arrays", block(
		bindLet(a, f.u32(32)),
		&ast.ArrayExpr{Members: []ast.Expr{f.u32(0), f.u32(1), ref(a)}},
	)))
	checkFormat(t, seq, `000 literal u32:32
001 store 0
002 literal u32:0
003 literal u32:1
004 load 0
005 create_array 3`)
}

func TestConstantArrayFoldsToOneLiteral(t *testing.T) {
	f := newFixture(t)
	arr := &ast.ArrayExpr{
		Members:    []ast.Expr{f.u32(0), f.u32(1), f.u32(2)},
		IsConstant: true,
	}
	f.ti.NoteConstexpr(arr, value.MakeArray([]value.Value{
		value.MakeU32(0), value.MakeU32(1), value.MakeU32(2),
	}))
	seq := f.emit(fun("const_array", block(arr)))
	checkFormat(t, seq, `000 literal [u32:0, u32:1, u32:2]`)
}

func TestEllipsisArrayDuplicatesSeed(t *testing.T) {
	f := newFixture(t)
	arr := &ast.ArrayExpr{Members: []ast.Expr{f.u32(7)}, HasEllipsis: true}
	f.ti.SetType(arr, sema.ArrayType(sema.U32(), 4))
	seq := f.emit(fun("fill", block(arr)))
	checkFormat(t, seq, `000 literal u32:7
001 dup
002 dup
003 dup
004 create_array 4`)
}

func TestArrayIndex(t *testing.T) {
	f := newFixture(t)
	a := def("a")
	seq := f.emit(fun("index_array", block(
		bindLet(a, f.u32(3)),
		&ast.Index{Lhs: ref(a), Rhs: &ast.ExprIndex{Expr: f.u32(0)}},
	)))
	checkFormat(t, seq, `000 literal u32:3
001 store 0
002 load 0
003 literal u32:0
004 index`)
}

func TestTupleIndexUsesIndexOp(t *testing.T) {
	f := newFixture(t)
	a := def("a")
	seq := f.emit(fun("index_tuple", block(
		bindLet(a, &ast.TupleExpr{Members: []ast.Expr{f.u32(0), f.u32(1)}}),
		&ast.TupleIndex{Lhs: ref(a), Index: f.u32(1)},
	)))
	checkFormat(t, seq, `000 literal u32:0
001 literal u32:1
002 create_tuple 2
003 store 0
004 load 0
005 literal u32:1
006 index`)
}

func TestBitSlices(t *testing.T) {
	tests := []struct {
		name         string
		start, limit int64 // 0 with has* false means an elided bound
		hasStart     bool
		hasLimit     bool
		want         string
	}{
		{
			name: "explicit bounds", start: 16, hasStart: true, limit: 32, hasLimit: true,
			want: `000 literal u32:3735928559
001 store 0
002 load 0
003 literal s32:16
004 literal s32:32
005 slice`,
		},
		{
			name: "negative start counts from width", start: -16, hasStart: true,
			want: `000 literal u32:3735928559
001 store 0
002 load 0
003 literal s32:16
004 literal s32:32
005 slice`,
		},
		{
			name: "negative limit counts from width", limit: -16, hasLimit: true,
			want: `000 literal u32:3735928559
001 store 0
002 load 0
003 literal s32:0
004 literal s32:16
005 slice`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			a := def("a")
			s := &ast.Slice{}
			if tc.hasStart {
				s.Start = f.num(fmt.Sprintf("s32:%d", tc.start), sema.BitsType(true, 32))
			}
			if tc.hasLimit {
				s.Limit = f.num(fmt.Sprintf("s32:%d", tc.limit), sema.BitsType(true, 32))
			}
			aRef := ref(a)
			f.ti.SetType(aRef, sema.U32())
			seq := f.emit(fun("slices", block(
				bindLet(a, f.num("u32:0xdeadbeef", sema.U32())),
				&ast.Index{Lhs: aRef, Rhs: s},
			)))
			checkFormat(t, seq, tc.want)
		})
	}
}

func TestWidthSlice(t *testing.T) {
	f := newFixture(t)
	a := def("a")
	idx := &ast.Index{
		Lhs: ref(a),
		Rhs: &ast.WidthSlice{Start: f.num("u32:8", sema.U32()), WidthText: "u16"},
	}
	f.ti.SetType(idx, sema.BitsType(false, 16))
	seq := f.emit(fun("width_slice", block(
		bindLet(a, f.num("u32:0xdeadbeef", sema.U32())),
		idx,
	)))
	checkFormat(t, seq, `000 literal u32:3735928559
001 store 0
002 load 0
003 literal u32:8
004 width_slice uN[16]`)
}

func TestLocalEnumRef(t *testing.T) {
	f := newFixture(t)
	f.imports.AddEnum(&sema.EnumDef{
		Name:       "MyEnum",
		Underlying: sema.BitsType(false, 23),
		Members: []sema.EnumMember{
			{Name: "VAL_0", Value: value.MakeUBits(23, 0)},
			{Name: "VAL_1", Value: value.MakeUBits(23, 1)},
		},
	})
	seq := f.emit(fun("local_enum_ref", block(&ast.ColonRef{
		Subject: &ast.NameRef{Name: "MyEnum"},
		Attr:    "VAL_1",
	})))
	checkFormat(t, seq, `000 literal u23:1`)
}

func TestEnumRefThroughAlias(t *testing.T) {
	f := newFixture(t)
	f.imports.AddEnum(&sema.EnumDef{
		Name:       "MyEnum",
		Underlying: sema.BitsType(false, 4),
		Members:    []sema.EnumMember{{Name: "VAL_3", Value: value.MakeUBits(4, 3)}},
	})
	f.imports.AddAlias("MyEnumAlias", "MyEnum")
	seq := f.emit(fun("alias_ref", block(&ast.ColonRef{
		Subject: &ast.NameRef{Name: "MyEnumAlias"},
		Attr:    "VAL_3",
	})))
	checkFormat(t, seq, `000 literal u4:3`)
}

func TestImportedEnumRef(t *testing.T) {
	f := newFixture(t)
	mod := sema.NewModule("import_0")
	mod.AddEnum(&sema.EnumDef{
		Name:       "ImportedEnum",
		Underlying: sema.BitsType(false, 4),
		Members: []sema.EnumMember{
			{Name: "VAL_2", Value: value.MakeUBits(4, 2)},
		},
	})
	f.imports.AddModule(mod)
	seq := f.emit(fun("imported_enum_ref", block(&ast.ColonRef{
		Subject: &ast.ColonRef{Subject: &ast.NameRef{Name: "import_0"}, Attr: "ImportedEnum"},
		Attr:    "VAL_2",
	})))
	checkFormat(t, seq, `000 literal u4:2`)
}

func TestImportedConstantFromManifest(t *testing.T) {
	f := newFixture(t)
	mod, err := sema.DecodeManifest(`
[module]
name = "import_0"

[constants]
MY_CONST = "u3:2"
`)
	if err != nil {
		t.Fatalf("DecodeManifest: %v", err)
	}
	f.imports.AddModule(mod)
	seq := f.emit(fun("imported_const_ref", block(&ast.ColonRef{
		Subject: &ast.NameRef{Name: "import_0"},
		Attr:    "MY_CONST",
	})))
	checkFormat(t, seq, `000 literal u3:2`)
}

func TestModuleConstantRef(t *testing.T) {
	f := newFixture(t)
	kFoo := def("kFoo")
	fooRef := ref(kFoo)
	f.ti.NoteConstexpr(fooRef, value.MakeU32(100))
	a := def("a")
	seq := f.emit(fun("handles_const_refs", block(
		bindLet(a, f.u32(200)),
		binop(ast.BinopAdd, ref(a), fooRef),
	)))
	checkFormat(t, seq, `000 literal u32:200
001 store 0
002 load 0
003 literal u32:100
004 add`)
}

var pointDef = &ast.StructDef{Name: "MyStruct", Fields: []string{"x", "y"}}

func TestStructInstance(t *testing.T) {
	f := newFixture(t)
	x := def("x")
	seq := f.emit(fun("handles_struct_instances", block(
		bindLet(x, f.u32(2)),
		&ast.StructInstance{Def: pointDef, Fields: []ast.StructField{
			{Name: "y", Expr: f.num("u64:3", sema.U64())},
			{Name: "x", Expr: ref(x)},
		}},
	)))
	checkFormat(t, seq, `000 literal u32:2
001 store 0
002 load 0
003 literal u64:3
004 create_tuple 2`)
}

func TestSplatStructInstance(t *testing.T) {
	f := newFixture(t)
	threeField := &ast.StructDef{Name: "MyStruct", Fields: []string{"x", "y", "z"}}
	b := def("b")
	seq := f.emit(fun("splat", block(
		bindLet(b, &ast.StructInstance{Def: threeField, Fields: []ast.StructField{
			{Name: "x", Expr: f.num("u16:2", sema.BitsType(false, 16))},
			{Name: "y", Expr: f.u32(3)},
			{Name: "z", Expr: f.num("u64:48879", sema.U64())},
		}}),
		&ast.SplatStructInstance{
			Def:      threeField,
			Fields:   []ast.StructField{{Name: "y", Expr: f.num("u32:61453", sema.U32())}},
			Splatted: ref(b),
		},
	)))
	checkFormat(t, seq, `000 literal u16:2
001 literal u32:3
002 literal u64:48879
003 create_tuple 3
004 store 0
005 load 0
006 literal u64:0
007 index
008 literal u32:61453
009 load 0
010 literal u64:2
011 index
012 create_tuple 3`)
}

func TestAttrLowersToTupleIndex(t *testing.T) {
	f := newFixture(t)
	inst := &ast.StructInstance{Def: pointDef, Fields: []ast.StructField{
		{Name: "x", Expr: f.u32(0)},
		{Name: "y", Expr: f.num("u64:48879", sema.U64())},
	}}
	f.ti.SetType(inst, sema.StructType("MyStruct", []string{"x", "y"},
		[]*sema.Type{sema.U32(), sema.U64()}))
	seq := f.emit(fun("handles_attr", block(&ast.Attr{Lhs: inst, Name: "y"})))
	checkFormat(t, seq, `000 literal u32:0
001 literal u64:48879
002 create_tuple 2
003 literal u64:1
004 tuple_index`)
}

func TestCasts(t *testing.T) {
	f := newFixture(t)
	a := def("a")
	toU64 := &ast.Cast{Expr: ref(a), TypeText: "u64"}
	f.ti.SetType(toU64, sema.U64())
	seq := f.emit(fun("cast_bits_to_bits", block(
		bindLet(a, f.num("s16:-4", sema.BitsType(true, 16))),
		toU64,
	)))
	checkFormat(t, seq, `000 literal s16:-4
001 store 0
002 load 0
003 cast uN[64]`)
}

func TestCastToEnumRendersEnumName(t *testing.T) {
	f := newFixture(t)
	a := def("a")
	toEnum := &ast.Cast{Expr: ref(a), TypeText: "MyEnum"}
	f.ti.SetType(toEnum, sema.EnumType("MyEnum", sema.BitsType(false, 3)))
	seq := f.emit(fun("cast_bits_to_enum", block(
		bindLet(a, f.num("u3:2", sema.BitsType(false, 3))),
		toEnum,
	)))
	checkFormat(t, seq, `000 literal u3:2
001 store 0
002 load 0
003 cast MyEnum`)
}

func TestParamsOccupyLowestSlots(t *testing.T) {
	f := newFixture(t)
	x, y := def("x"), def("y")
	a, x2, y2 := def("a"), def("x"), def("y")
	u48 := sema.BitsType(false, 48)
	castX := &ast.Cast{Expr: ref(x), TypeText: "u48"}
	castY := &ast.Cast{Expr: ref(y), TypeText: "u48"}
	f.ti.SetType(castX, u48)
	f.ti.SetType(castY, u48)
	seq := f.emit(fun("has_params", block(
		bindLet(a, f.num("u48:100", u48)),
		bindLet(x2, binop(ast.BinopAdd, castX, ref(a))),
		bindLet(y2, binop(ast.BinopAdd, ref(x2), castY)),
		binop(ast.BinopAdd, ref(x2), ref(y2)),
	), &ast.Param{Name: x, TypeText: "u32"}, &ast.Param{Name: y, TypeText: "u64"}))
	checkFormat(t, seq, `000 literal u48:100
001 store 2
002 load 0
003 cast uN[48]
004 load 2
005 add
006 store 3
007 load 3
008 load 1
009 cast uN[48]
010 add
011 store 4
012 load 3
013 load 4
014 add`)
	if seq.SlotCount() != 5 {
		t.Errorf("slot count = %d, want 5", seq.SlotCount())
	}
}

func TestStringLiteral(t *testing.T) {
	f := newFixture(t)
	seq := f.emit(fun("main", block(&ast.Str{Text: "hi"})))
	checkFormat(t, seq, `000 literal [u8:104, u8:105]`)
}

func TestParametricCallCarriesBindings(t *testing.T) {
	f := newFixture(t)
	inv := &ast.Invocation{
		Callee: &ast.NameRef{Name: "foo", Def: def("foo")},
		Args:   []ast.Expr{f.num("u16:4", sema.BitsType(false, 16))},
	}
	f.ti.NoteInvocationBindings(inv, sema.NewParametricEnv(
		sema.ParametricBinding{Name: "N", Value: value.MakeU32(16)},
	))
	seq := f.emit(fun("main", block(inv)))
	checkFormat(t, seq, `000 literal u16:4
001 literal fn:foo
002 call foo(u16:4) : {N: u32:16}`)
}

func TestImportedCallee(t *testing.T) {
	f := newFixture(t)
	mod := sema.NewModule("helpers")
	mod.AddFunc("clamp")
	f.imports.AddModule(mod)
	inv := &ast.Invocation{
		Callee: &ast.ColonRef{Subject: &ast.NameRef{Name: "helpers"}, Attr: "clamp"},
		Args:   []ast.Expr{f.u32(5)},
	}
	seq := f.emit(fun("main", block(inv)))
	checkFormat(t, seq, `000 literal u32:5
001 literal fn:helpers::clamp
002 call helpers::clamp(u32:5) : {}`)
}

func TestCountedLoop(t *testing.T) {
	f := newFixture(t)
	i, accum := def("i"), def("accum")
	iterable := &ast.Invocation{
		Callee: builtin("range"),
		Args:   []ast.Expr{f.u32(0), f.u32(8)},
	}
	f.ti.SetType(iterable, sema.ArrayType(sema.U32(), 8))
	loop := &ast.For{
		Names:    &ast.NameDefTree{Nodes: []*ast.NameDefTree{{Name: i}, {Name: accum}}},
		Iterable: iterable,
		Body:     block(binop(ast.BinopAdd, ref(accum), ref(i))),
		Init:     f.u32(1),
	}
	seq := f.emit(fun("main", block(loop)))
	if seq.Len() != 30 {
		t.Fatalf("got %d instructions, want 30", seq.Len())
	}
	checkFormat(t, seq, `000 literal u32:0
001 literal u32:8
002 literal builtin:range
003 call range(u32:0, u32:8) : {}
004 store 0
005 literal u32:0
006 store 1
007 literal u32:1
008 jump_dest
009 load 1
010 literal u32:8
011 eq
012 jump_rel_if +17
013 load 0
014 load 1
015 index
016 swap
017 create_tuple 2
018 expand_tuple
019 store 2
020 store 3
021 load 3
022 load 2
023 add
024 load 1
025 literal u32:1
026 add
027 store 1
028 jump_rel -20
029 jump_dest`)
}

func TestLoopOverRangeExprWithWildcardPattern(t *testing.T) {
	f := newFixture(t)
	rng := &ast.Range{Start: f.u32(0), Limit: f.u32(4)}
	f.ti.SetType(rng, sema.ArrayType(sema.U32(), 4))
	loop := &ast.For{
		Names: &ast.NameDefTree{Nodes: []*ast.NameDefTree{
			{Wildcard: true},
			{Nodes: []*ast.NameDefTree{}},
		}},
		Iterable: rng,
		Body:     block(&ast.TupleExpr{}),
		Init:     &ast.TupleExpr{},
	}
	seq := f.emit(fun("main", block(loop)))
	checkFormat(t, seq, `000 literal u32:0
001 literal u32:4
002 range
003 store 0
004 literal u32:0
005 store 1
006 create_tuple 0
007 jump_dest
008 load 1
009 literal u32:4
010 eq
011 jump_rel_if +15
012 load 0
013 load 1
014 index
015 swap
016 create_tuple 2
017 expand_tuple
018 pop
019 expand_tuple
020 create_tuple 0
021 load 1
022 literal u32:1
023 add
024 store 1
025 jump_rel -18
026 jump_dest`)
}

func TestUnrolledLoop(t *testing.T) {
	f := newFixture(t)
	i, acc := def("i"), def("acc")
	iterable := &ast.ArrayExpr{IsConstant: true}
	f.ti.NoteConstexpr(iterable, value.MakeArray([]value.Value{
		value.MakeU32(1), value.MakeU32(2),
	}))
	loop := &ast.UnrollFor{
		Names:    &ast.NameDefTree{Nodes: []*ast.NameDefTree{{Name: i}, {Name: acc}}},
		Iterable: iterable,
		Body:     block(binop(ast.BinopAdd, ref(acc), ref(i))),
		Init:     f.u32(0),
	}
	seq := f.emit(fun("main", block(loop)))
	checkFormat(t, seq, `000 literal u32:0
001 literal u32:1
002 swap
003 create_tuple 2
004 expand_tuple
005 store 0
006 store 1
007 load 1
008 load 0
009 add
010 literal u32:2
011 swap
012 create_tuple 2
013 expand_tuple
014 store 0
015 store 1
016 load 1
017 load 0
018 add`)
}

func TestProcConfig(t *testing.T) {
	f := newFixture(t)
	p, c := def("p"), def("c")
	seq := f.emit(fun("config", block(
		&ast.Let{
			Pattern: &ast.NameDefTree{Nodes: []*ast.NameDefTree{{Name: p}, {Name: c}}},
			Rhs:     &ast.ChannelDecl{TypeText: "u32"},
		},
		&ast.TupleExpr{Members: []ast.Expr{ref(c), f.u32(100)}},
	)))
	checkFormat(t, seq, `000 literal (channel, channel)
001 expand_tuple
002 store 0
003 store 1
004 load 1
005 literal u32:100
006 create_tuple 2`)
}

func TestProcStepReceive(t *testing.T) {
	f := newFixture(t)
	c := &ast.NameDef{Name: "c", Proc: "Child"}
	x := &ast.NameDef{Name: "x", Proc: "Child"}
	y := &ast.NameDef{Name: "y", Proc: "Child"}
	tok, a := def("tok"), def("a")
	tok2, b := def("tok"), def("b")

	cRef := ref(c)
	f.ti.SetType(cRef, sema.ChanType(sema.U32()))
	recv := &ast.Invocation{Callee: builtin("recv"), Args: []ast.Expr{ref(tok), cRef}}
	u64t := sema.U64()
	castX := &ast.Cast{Expr: ref(x), TypeText: "u64"}
	castB := &ast.Cast{Expr: ref(b), TypeText: "u64"}
	f.ti.SetType(castX, u64t)
	f.ti.SetType(castB, u64t)
	body := block(
		&ast.Let{
			Pattern: &ast.NameDefTree{Nodes: []*ast.NameDefTree{{Name: tok2}, {Name: b}}},
			Rhs:     recv,
		},
		binop(ast.BinopAdd,
			binop(ast.BinopAdd,
				binop(ast.BinopAdd, ref(a), castX),
				ref(y)),
			castB),
	)
	step := fun("next", body,
		&ast.Param{Name: tok, TypeText: "token"},
		&ast.Param{Name: a, TypeText: "u64"})
	seq, err := EmitProcStep(f.imports, f.ti, step, nil, []*ast.NameDef{c, x, y}, Options{})
	if err != nil {
		t.Fatalf("EmitProcStep: %v", err)
	}
	if seq.Len() != 17 {
		t.Fatalf("got %d instructions, want 17", seq.Len())
	}
	checkFormat(t, seq, `000 load 3
001 load 0
002 literal u1:1
003 literal u32:0
004 recv Child::c
005 expand_tuple
006 store 5
007 store 6
008 load 4
009 load 1
010 cast uN[64]
011 add
012 load 2
013 add
014 load 6
015 cast uN[64]
016 add`)
}

func TestSendAndJoin(t *testing.T) {
	f := newFixture(t)
	out := &ast.NameDef{Name: "out", Proc: "Echo"}
	tok, v := def("tok"), def("v")
	outRef := ref(out)
	f.ti.SetType(outRef, sema.ChanType(sema.U32()))
	send := &ast.Invocation{Callee: builtin("send"), Args: []ast.Expr{ref(tok), outRef, ref(v)}}
	tok2 := def("tok2")
	join := &ast.Invocation{Callee: builtin("join"), Args: []ast.Expr{ref(tok), ref(tok2)}}
	body := block(bindLet(tok2, send), join)
	step := fun("next", body,
		&ast.Param{Name: tok, TypeText: "token"},
		&ast.Param{Name: v, TypeText: "u32"})
	seq, err := EmitProcStep(f.imports, f.ti, step, nil, []*ast.NameDef{out}, Options{})
	if err != nil {
		t.Fatalf("EmitProcStep: %v", err)
	}
	checkFormat(t, seq, `000 load 1
001 load 0
002 load 2
003 literal u1:1
004 send Echo::out
005 store 3
006 load 1
007 load 3
008 join 2`)
}

func TestExpressionEmission(t *testing.T) {
	f := newFixture(t)
	cr := &ast.ColonRef{Subject: &ast.NameRef{Name: "mod"}, Attr: "MY_CONST"}
	f.ti.NoteConstexpr(cr, value.MakeU32(4))
	expr := binop(ast.BinopAdd, cr, f.u32(1))
	seq, err := EmitExpression(f.imports, f.ti, expr, nil, nil, Options{})
	if err != nil {
		t.Fatalf("EmitExpression: %v", err)
	}
	checkFormat(t, seq, `000 literal u32:4
001 literal u32:1
002 add`)
}

func TestExpressionEmissionWithEnv(t *testing.T) {
	f := newFixture(t)
	free := &ast.NameRef{Name: "n", Def: def("n")}
	expr := binop(ast.BinopMul, free, f.u32(3))
	env := map[string]value.Value{"n": value.MakeU32(7)}
	seq, err := EmitExpression(f.imports, f.ti, expr, env, nil, Options{})
	if err != nil {
		t.Fatalf("EmitExpression: %v", err)
	}
	checkFormat(t, seq, `000 literal u32:7
001 literal u32:3
002 mul`)
}

func TestParametricNameResolvesFromCallerBindings(t *testing.T) {
	f := newFixture(t)
	n := &ast.NameRef{Name: "N", Def: def("N")}
	x := def("x")
	fnAst := fun("parametric", block(binop(ast.BinopShl, ref(x), n)),
		&ast.Param{Name: x, TypeText: "u32"})
	bindings := sema.NewParametricEnv(sema.ParametricBinding{Name: "N", Value: value.MakeU32(2)})
	seq, err := Emit(f.imports, f.ti, fnAst, bindings, Options{})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	checkFormat(t, seq, `000 load 0
001 literal u32:2
002 shl`)
}

func TestSourceLocationsSuffix(t *testing.T) {
	f := newFixture(t)
	n := f.u32(1)
	n.Span = ast.Span{File: "test.x", StartLine: 2, StartCol: 3, EndLine: 2, EndCol: 8}
	seq, err := Emit(f.imports, f.ti, fun("main", block(n)), nil, Options{SourceLocs: true})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	want := "000 literal u32:1 @ test.x:2:3-2:8"
	if got := Format(seq); got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestUndefinedNameFails(t *testing.T) {
	f := newFixture(t)
	_, err := Emit(f.imports, f.ti, fun("broken", block(ref(def("ghost")))), nil, Options{})
	if err == nil {
		t.Fatal("expected error for undefined name")
	}
}

func TestBlockEndingInLetYieldsUnit(t *testing.T) {
	f := newFixture(t)
	x := def("x")
	seq := f.emit(fun("unit_tail", block(bindLet(x, f.u32(1)))))
	checkFormat(t, seq, `000 literal u32:1
001 store 0
002 literal ()`)
}
