package sema

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/glint-lang/glint/pkg/ast"
	"github.com/glint-lang/glint/pkg/value"
)

var bigZero = big.NewInt(0)

// ParametricEnv is an ordered set of parametric bindings for one
// instantiation of a parametric function, e.g. {N: u32:16}.
type ParametricEnv struct {
	bindings []ParametricBinding
}

// ParametricBinding is a single name -> value binding.
type ParametricBinding struct {
	Name  string
	Value value.Value
}

// NewParametricEnv builds an env with the given bindings, in order.
func NewParametricEnv(bindings ...ParametricBinding) *ParametricEnv {
	return &ParametricEnv{bindings: bindings}
}

// Bindings returns the bindings in declaration order.
func (e *ParametricEnv) Bindings() []ParametricBinding {
	if e == nil {
		return nil
	}
	return e.bindings
}

// String renders the canonical form: "{}" when empty, "{N: u32:16}"
// otherwise. A nil env renders as empty.
func (e *ParametricEnv) String() string {
	if e == nil || len(e.bindings) == 0 {
		return "{}"
	}
	parts := make([]string, len(e.bindings))
	for i, b := range e.bindings {
		parts[i] = fmt.Sprintf("%s: %s", b.Name, b.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ParseParametricEnv parses the rendering produced by String.
func ParseParametricEnv(s string) (*ParametricEnv, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, fmt.Errorf("sema: malformed bindings %q", s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return NewParametricEnv(), nil
	}
	parts, err := splitTypeList(inner)
	if err != nil {
		return nil, err
	}
	bindings := make([]ParametricBinding, 0, len(parts))
	for _, p := range parts {
		colon := strings.IndexByte(p, ':')
		if colon < 0 {
			return nil, fmt.Errorf("sema: malformed binding %q", p)
		}
		v, err := value.Parse(p[colon+1:])
		if err != nil {
			return nil, fmt.Errorf("sema: binding %q: %w", p, err)
		}
		bindings = append(bindings, ParametricBinding{
			Name:  strings.TrimSpace(p[:colon]),
			Value: v,
		})
	}
	return NewParametricEnv(bindings...), nil
}

// TypeInfo is the emitter's oracle for everything the type checker
// already decided: concrete expression types, precomputed constants,
// and per-invocation parametric bindings. It is populated before
// emission and read-only afterward.
type TypeInfo struct {
	types       map[ast.Node]*Type
	constexprs  map[ast.Expr]value.Value
	invocations map[*ast.Invocation]*ParametricEnv
}

// NewTypeInfo returns an empty oracle.
func NewTypeInfo() *TypeInfo {
	return &TypeInfo{
		types:       make(map[ast.Node]*Type),
		constexprs:  make(map[ast.Expr]value.Value),
		invocations: make(map[*ast.Invocation]*ParametricEnv),
	}
}

// SetType records the resolved type of a node.
func (ti *TypeInfo) SetType(n ast.Node, t *Type) { ti.types[n] = t }

// TypeOf returns the resolved type of a node.
func (ti *TypeInfo) TypeOf(n ast.Node) (*Type, error) {
	t, ok := ti.types[n]
	if !ok {
		return nil, fmt.Errorf("sema: no type recorded for %s @ %s", n, n.GetSpan())
	}
	return t, nil
}

// NoteConstexpr records the precomputed constant value of an
// expression.
func (ti *TypeInfo) NoteConstexpr(e ast.Expr, v value.Value) { ti.constexprs[e] = v }

// Constexpr returns the precomputed constant value of an expression,
// if the type checker established one.
func (ti *TypeInfo) Constexpr(e ast.Expr) (value.Value, bool) {
	v, ok := ti.constexprs[e]
	return v, ok
}

// NoteInvocationBindings records the callee-side parametric bindings
// chosen for an invocation.
func (ti *TypeInfo) NoteInvocationBindings(inv *ast.Invocation, env *ParametricEnv) {
	ti.invocations[inv] = env
}

// InvocationBindings returns the callee bindings for an invocation; a
// nil result means the callee is not parametric.
func (ti *TypeInfo) InvocationBindings(inv *ast.Invocation) *ParametricEnv {
	return ti.invocations[inv]
}

// EnumMember is one named member of an enum definition.
type EnumMember struct {
	Name  string
	Value value.Value
}

// EnumDef is a resolved enum definition.
type EnumDef struct {
	Name       string
	Underlying *Type
	Members    []EnumMember
}

// Type returns the enum's Type.
func (e *EnumDef) Type() *Type { return EnumType(e.Name, e.Underlying) }

// MemberValue returns the value of the named member.
func (e *EnumDef) MemberValue(name string) (value.Value, error) {
	for _, m := range e.Members {
		if m.Name == name {
			return m.Value, nil
		}
	}
	return value.Value{}, fmt.Errorf("sema: enum %s has no member %q", e.Name, name)
}

// Module is the resolved export surface of one module: its constants,
// enum definitions, and function names.
type Module struct {
	Name   string
	consts map[string]value.Value
	enums  map[string]*EnumDef
	funcs  map[string]bool
}

// NewModule returns an empty module with the given name.
func NewModule(name string) *Module {
	return &Module{
		Name:   name,
		consts: make(map[string]value.Value),
		enums:  make(map[string]*EnumDef),
		funcs:  make(map[string]bool),
	}
}

// AddConst registers an exported constant.
func (m *Module) AddConst(name string, v value.Value) { m.consts[name] = v }

// AddEnum registers an exported enum definition.
func (m *Module) AddEnum(e *EnumDef) { m.enums[e.Name] = e }

// AddFunc registers an exported function name.
func (m *Module) AddFunc(name string) { m.funcs[name] = true }

// Const returns an exported constant by name.
func (m *Module) Const(name string) (value.Value, bool) {
	v, ok := m.consts[name]
	return v, ok
}

// Enum returns an exported enum definition by name.
func (m *Module) Enum(name string) (*EnumDef, bool) {
	e, ok := m.enums[name]
	return e, ok
}

// HasFunc reports whether the module exports the named function.
func (m *Module) HasFunc(name string) bool { return m.funcs[name] }

// ConstNames returns exported constant names, sorted.
func (m *Module) ConstNames() []string {
	names := make([]string, 0, len(m.consts))
	for n := range m.consts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ImportData resolves qualified references: imported modules by name,
// plus the current module's own enums and type aliases. Assembled
// before emission, read-only during it.
type ImportData struct {
	modules map[string]*Module
	enums   map[string]*EnumDef
	aliases map[string]string
}

// NewImportData returns an empty registry.
func NewImportData() *ImportData {
	return &ImportData{
		modules: make(map[string]*Module),
		enums:   make(map[string]*EnumDef),
		aliases: make(map[string]string),
	}
}

// AddModule registers an imported module under its binding name.
func (d *ImportData) AddModule(m *Module) { d.modules[m.Name] = m }

// Module returns a registered module.
func (d *ImportData) Module(name string) (*Module, bool) {
	m, ok := d.modules[name]
	return m, ok
}

// AddEnum registers an enum of the current module.
func (d *ImportData) AddEnum(e *EnumDef) { d.enums[e.Name] = e }

// AddAlias registers a local type alias for an enum, e.g.
// "MyEnumAlias" -> "MyEnum".
func (d *ImportData) AddAlias(alias, target string) { d.aliases[alias] = target }

// LocalEnum returns a current-module enum, following aliases.
func (d *ImportData) LocalEnum(name string) (*EnumDef, bool) {
	for {
		if target, ok := d.aliases[name]; ok {
			name = target
			continue
		}
		e, ok := d.enums[name]
		return e, ok
	}
}

// ResolveColonRef resolves a qualified reference to the single value
// it denotes: a local or imported enum member, or an imported
// constant.
func (d *ImportData) ResolveColonRef(cr *ast.ColonRef) (value.Value, error) {
	switch subj := cr.Subject.(type) {
	case *ast.NameRef:
		if e, ok := d.LocalEnum(subj.Name); ok {
			return e.MemberValue(cr.Attr)
		}
		if m, ok := d.modules[subj.Name]; ok {
			if v, ok := m.Const(cr.Attr); ok {
				return v, nil
			}
			return value.Value{}, fmt.Errorf("sema: module %s exports no constant %q", m.Name, cr.Attr)
		}
		return value.Value{}, fmt.Errorf("sema: unknown qualifier %q in %s", subj.Name, cr)
	case *ast.ColonRef:
		// mod::Enum::MEMBER: the inner ref names an imported enum.
		inner, ok := subj.Subject.(*ast.NameRef)
		if !ok {
			return value.Value{}, fmt.Errorf("sema: unresolvable qualified ref %s", cr)
		}
		m, ok := d.modules[inner.Name]
		if !ok {
			return value.Value{}, fmt.Errorf("sema: unknown module %q in %s", inner.Name, cr)
		}
		e, ok := m.Enum(subj.Attr)
		if !ok {
			return value.Value{}, fmt.Errorf("sema: module %s exports no enum %q", m.Name, subj.Attr)
		}
		return e.MemberValue(cr.Attr)
	default:
		return value.Value{}, fmt.Errorf("sema: unresolvable qualified ref %s", cr)
	}
}

// ResolveCalleeFunc resolves a qualified callee (mod::fn) to its
// fully qualified name, verifying the module exports it.
func (d *ImportData) ResolveCalleeFunc(cr *ast.ColonRef) (string, error) {
	subj, ok := cr.Subject.(*ast.NameRef)
	if !ok {
		return "", fmt.Errorf("sema: unresolvable callee %s", cr)
	}
	m, ok := d.modules[subj.Name]
	if !ok {
		return "", fmt.Errorf("sema: unknown module %q in callee %s", subj.Name, cr)
	}
	if !m.HasFunc(cr.Attr) {
		return "", fmt.Errorf("sema: module %s exports no function %q", m.Name, cr.Attr)
	}
	return m.Name + "::" + cr.Attr, nil
}
