// Package value implements the runtime value model (component F of
// spec.md): a closed set of tagged value variants behind a common Value
// interface, each carrying an inherent refcount and flag bits
// (ATTR_BASED, CALLABLE, LOAD_AS_REF) instead of a class hierarchy.
//
// This generalizes the teacher's pkg/vm/vm.go value types (Block, Array,
// Instance, backed by bytecode.ClassDefinition) into the closed enum of
// value variants spec.md §9's design note asks for ("a closed enum of
// value variants with an inherent method table"), with explicit refcount
// fields mirroring spec.md §3's ownership invariants
// (on_create/on_destroy/on_set/copy).
package value

import (
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kristofer/feral/pkg/diag"
)

// TypeID identifies a value's runtime type: the fixed built-in types plus
// one id per struct/enum definition created at runtime.
type TypeID int

const (
	TypeNil TypeID = iota
	TypeBool
	TypeInt
	TypeFlt
	TypeStr
	TypeChar
	TypeTypeID
	TypeVec
	TypeMap
	TypeFn
	TypeModule
	TypeStructDef
	TypeStruct
	TypeIterator
	TypeMutex
	TypeThread

	firstUserTypeID // struct/enum definitions start numbering from here
)

// FirstUserTypeID is firstUserTypeID exported for callers (pkg/vm's
// per-instance user-type-id allocator) that mint TypeIDs for runtime
// struct/enum definitions; the unexported constant stays the source of
// truth for the built-in switch above.
const FirstUserTypeID = firstUserTypeID

func (t TypeID) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFlt:
		return "flt"
	case TypeStr:
		return "str"
	case TypeChar:
		return "char"
	case TypeTypeID:
		return "typeid"
	case TypeVec:
		return "vec"
	case TypeMap:
		return "map"
	case TypeFn:
		return "fn"
	case TypeModule:
		return "module"
	case TypeStructDef:
		return "struct_def"
	case TypeStruct:
		return "struct"
	case TypeIterator:
		return "iterator"
	case TypeMutex:
		return "mutex"
	case TypeThread:
		return "thread"
	default:
		return "user_type"
	}
}

// Flags are the per-value behavior bits of spec.md §3.
type Flags uint8

const (
	// AttrBased marks a value whose attributes are a user-mutable bag
	// (structs, modules) rather than a fixed field set.
	AttrBased Flags = 1 << iota
	// Callable marks a value that implements Callable.
	Callable
	// LoadAsRef marks a value whose OpLoadData should push a reference
	// to the existing binding rather than a Copy() of it (vectors, maps,
	// structs: anything whose identity matters across aliasing).
	LoadAsRef
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Base is embedded by every concrete value type: the refcount and flag
// bits common to all of them, plus the source location the value was
// created at (for diagnostics, not identity).
type Base struct {
	RefCount int
	TID      TypeID
	Flgs     Flags
	Loc      diag.Loc
}

func (b *Base) Type() TypeID  { return b.TID }
func (b *Base) Flags() Flags  { return b.Flgs }
func (b *Base) Refs() int     { return b.RefCount }
func (b *Base) IncRef()       { b.RefCount++ }

// DecRef drops the refcount by one and reports whether it reached zero
// (the caller's cue to run on_destroy and release any owned children).
func (b *Base) DecRef() bool {
	b.RefCount--
	return b.RefCount <= 0
}

// Value is implemented by every runtime value variant.
type Value interface {
	Type() TypeID
	Flags() Flags
	Refs() int
	IncRef()
	DecRef() bool
	// Copy returns an independent value with the same logical content and
	// a fresh refcount of 1 (spec.md's on_create/copy semantics). For
	// LoadAsRef-flagged container types, Copy is shallow: child elements
	// are shared (refcounted), not deep-cloned.
	Copy() Value
}

// Callable is implemented by values that can appear as the receiver of
// OpCall/OpMemCall: Fn and any native-module value wired as a function.
type Callable interface {
	Value
	// Call invokes the value with positional args and named kwargs, per
	// spec.md §4.5's calling convention. Via OpMemCall, args[0] is the
	// receiver (except for a namespace module's functions); via OpCall,
	// args holds only the call's own arguments.
	Call(args []Value, kwargs map[string]Value) (Value, error)
}

// AttrHolder is implemented by AttrBased values: attribute access goes to
// the value's own bag before falling through to its type's method table.
type AttrHolder interface {
	Value
	GetAttr(name string) (Value, bool)
	SetAttr(name string, v Value) bool
}

// ---- Nil ----

type Nil struct{ Base }

func NewNil() *Nil {
	return &Nil{Base{RefCount: 1, TID: TypeNil}}
}
func (n *Nil) Copy() Value { return NewNil() }

// ---- Bool ----

type Bool struct {
	Base
	Val bool
}

func NewBool(v bool) *Bool {
	return &Bool{Base{RefCount: 1, TID: TypeBool}, v}
}
func (b *Bool) Copy() Value { return NewBool(b.Val) }

// ---- Int ----

type Int struct {
	Base
	Val int64
}

func NewInt(v int64) *Int {
	return &Int{Base{RefCount: 1, TID: TypeInt}, v}
}
func (i *Int) Copy() Value { return NewInt(i.Val) }

// ---- Flt ----

type Flt struct {
	Base
	Val float64
}

func NewFlt(v float64) *Flt {
	return &Flt{Base{RefCount: 1, TID: TypeFlt}, v}
}
func (f *Flt) Copy() Value { return NewFlt(f.Val) }

// ---- Char ----

type Char struct {
	Base
	Val rune
}

func NewChar(v rune) *Char {
	return &Char{Base{RefCount: 1, TID: TypeChar}, v}
}
func (c *Char) Copy() Value { return NewChar(c.Val) }

// ---- Str ----

type Str struct {
	Base
	Val string
}

func NewStr(v string) *Str {
	return &Str{Base{RefCount: 1, TID: TypeStr}, v}
}
func (s *Str) Copy() Value { return NewStr(s.Val) }

// ---- TypeIDV: a type used as a first-class value (the receiver of `in`
// type-function registration, and the result of a `typeof`-style query) ----

type TypeIDV struct {
	Base
	Val TypeID
}

func NewTypeIDV(v TypeID) *TypeIDV {
	return &TypeIDV{Base{RefCount: 1, TID: TypeTypeID}, v}
}
func (t *TypeIDV) Copy() Value { return NewTypeIDV(t.Val) }

// ---- Vec ----

type Vec struct {
	Base
	Elems []Value
}

func NewVec(elems []Value) *Vec {
	return &Vec{Base{RefCount: 1, TID: TypeVec, Flgs: LoadAsRef}, elems}
}

// Copy performs a shallow copy: a new backing slice, same element
// references (each IncRef'd), matching LoadAsRef-container semantics.
func (v *Vec) Copy() Value {
	cp := make([]Value, len(v.Elems))
	for i, e := range v.Elems {
		e.IncRef()
		cp[i] = e
	}
	return NewVec(cp)
}

// ---- Map: insertion-ordered string-keyed map (string-keying matches the
// language's "maps are keyed by stringified keys" design; see DESIGN.md) ----

type Map struct {
	Base
	Keys []string
	Vals map[string]Value
}

func NewMap() *Map {
	return &Map{Base: Base{RefCount: 1, TID: TypeMap, Flgs: LoadAsRef}, Vals: make(map[string]Value)}
}

func (m *Map) Set(key string, v Value) {
	if _, exists := m.Vals[key]; !exists {
		m.Keys = append(m.Keys, key)
	}
	m.Vals[key] = v
}

func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.Vals[key]
	return v, ok
}

func (m *Map) Copy() Value {
	cp := NewMap()
	for _, k := range m.Keys {
		v := m.Vals[k]
		v.IncRef()
		cp.Set(k, v)
	}
	return cp
}

// ---- Module ----

type Module struct {
	Base
	ID      int
	Path    string
	Globals map[string]Value
}

func NewModule(id int, path string) *Module {
	return &Module{Base: Base{RefCount: 1, TID: TypeModule, Flgs: AttrBased | LoadAsRef}, ID: id, Path: path, Globals: make(map[string]Value)}
}
func (m *Module) Copy() Value { m.IncRef(); return m }

func (m *Module) GetAttr(name string) (Value, bool) {
	v, ok := m.Globals[name]
	return v, ok
}
func (m *Module) SetAttr(name string, v Value) bool {
	m.Globals[name] = v
	return true
}

// ---- Fn ----

// Param is one function-signature parameter: a name and (for defaulted
// parameters) a pre-evaluated default value.
type Param struct {
	Name    string
	Default Value // nil if the parameter has no default
}

// NativeFn is the Go-side implementation of a function value bridged from
// a native module (spec.md §4.7/§6.4's native ABI).
type NativeFn func(args []Value, kwargs map[string]Value) (Value, error)

type Fn struct {
	Base
	Name      string
	Params    []Param
	Variadic  bool
	KwArgName string

	// Exactly one of Native or (CodeStart/CodeEnd) is set: a value
	// bridged from a native module, or a compiled function body
	// identified by its instruction-index range in the owning module's
	// bytecode.
	Native    NativeFn
	CodeStart int
	CodeEnd   int
	ModuleID  int
}

func NewFn(name string, params []Param, variadic bool, kwArgName string, codeStart, codeEnd, moduleID int) *Fn {
	return &Fn{
		Base:      Base{RefCount: 1, TID: TypeFn, Flgs: Callable},
		Name:      name,
		Params:    params,
		Variadic:  variadic,
		KwArgName: kwArgName,
		CodeStart: codeStart,
		CodeEnd:   codeEnd,
		ModuleID:  moduleID,
	}
}

func NewNativeFn(name string, fn NativeFn) *Fn {
	return &Fn{Base: Base{RefCount: 1, TID: TypeFn, Flgs: Callable}, Name: name, Native: fn}
}

func (f *Fn) Copy() Value { f.IncRef(); return f }

// Call implements Callable for a native function; compiled functions are
// invoked by pkg/vm (which needs the interpreter loop, not just the Fn
// value, to execute their body) via its own call-protocol code path.
func (f *Fn) Call(args []Value, kwargs map[string]Value) (Value, error) {
	if f.Native != nil {
		return f.Native(args, kwargs)
	}
	return nil, errNotNativelyCallable
}

var errNotNativelyCallable = &notNativeError{}

type notNativeError struct{}

func (*notNativeError) Error() string {
	return "function has a compiled body; must be invoked through the interpreter's call protocol"
}

// ---- StructDef / Struct ----

// StructDef is a user-defined struct or enum's type descriptor: field
// names (struct) or member values (enum), plus its method table.
type StructDef struct {
	Base
	Name      string
	FieldDefs []string
	Methods   map[string]*Fn
	IsEnum    bool
	EnumVals  map[string]Value
}

func NewStructDef(typeID TypeID, name string, fields []string) *StructDef {
	return &StructDef{
		Base:      Base{RefCount: 1, TID: TypeStructDef, Flgs: AttrBased},
		Name:      name,
		FieldDefs: fields,
		Methods:   make(map[string]*Fn),
	}
}
func (d *StructDef) Copy() Value { d.IncRef(); return d }

func (d *StructDef) GetAttr(name string) (Value, bool) {
	if fn, ok := d.Methods[name]; ok {
		return fn, true
	}
	if d.IsEnum {
		if v, ok := d.EnumVals[name]; ok {
			return v, true
		}
	}
	return nil, false
}
func (d *StructDef) SetAttr(name string, v Value) bool {
	if fn, ok := v.(*Fn); ok {
		d.Methods[name] = fn
		return true
	}
	return false
}

// Struct is an instance of a StructDef: an attribute bag plus a back
// pointer to its def for method dispatch fallthrough.
type Struct struct {
	Base
	Def   *StructDef
	Attrs map[string]Value
}

func NewStruct(def *StructDef) *Struct {
	def.IncRef()
	return &Struct{
		Base:  Base{RefCount: 1, TID: def.TID, Flgs: AttrBased | LoadAsRef},
		Def:   def,
		Attrs: make(map[string]Value),
	}
}

func (s *Struct) Copy() Value {
	cp := NewStruct(s.Def)
	for k, v := range s.Attrs {
		v.IncRef()
		cp.Attrs[k] = v
	}
	return cp
}

func (s *Struct) GetAttr(name string) (Value, bool) {
	if v, ok := s.Attrs[name]; ok {
		return v, true
	}
	if s.Def != nil {
		return s.Def.GetAttr(name)
	}
	return nil, false
}
func (s *Struct) SetAttr(name string, v Value) bool {
	s.Attrs[name] = v
	return true
}

// ---- Iterator ----

// Iterator pairs a source value with its begin/end/next/at methods.
// pkg/compiler's for-in expansion calls those methods on the source
// directly and does not construct an Iterator.
type Iterator struct {
	Base
	Source Value
	Begin  Callable
	End    Callable
	Next   Callable
	At     Callable
}

func NewIterator(source Value, begin, end, next, at Callable) *Iterator {
	return &Iterator{Base: Base{RefCount: 1, TID: TypeIterator}, Source: source, Begin: begin, End: end, Next: next, At: at}
}
func (it *Iterator) Copy() Value { it.IncRef(); return it }

// ---- Mutex ----

// Mutex is the standard mutex type supplemented from original_source's
// mutex_type.hpp (spec.md §5 names "explicit mutex types supplied as a
// standard library" without specifying them): a thin wrapper over
// sync.Mutex, LoadAsRef since every reference to a given mutex value must
// resolve to the same lock.
type Mutex struct {
	Base
	L *sync.Mutex
}

func NewMutex() *Mutex {
	return &Mutex{Base: Base{RefCount: 1, TID: TypeMutex, Flgs: LoadAsRef}, L: &sync.Mutex{}}
}
func (m *Mutex) Copy() Value { m.IncRef(); return m }

// ---- Thread ----

// Thread is the standard thread type supplemented from original_source's
// Thread.cpp: a handle to one goroutine running a feral Fn, joined through
// an errgroup.Group so an error returned by the Fn surfaces as an ordinary
// join() error. A panic inside the Fn is not recovered.
type Thread struct {
	Base
	Group  *errgroup.Group
	Result Value
	Err    error
	done   chan struct{}
}

func NewThread(g *errgroup.Group, done chan struct{}) *Thread {
	return &Thread{Base: Base{RefCount: 1, TID: TypeThread, Flgs: LoadAsRef}, Group: g, done: done}
}
func (t *Thread) Copy() Value { t.IncRef(); return t }

// Join blocks until the thread's goroutine finishes, then returns its
// recorded result/error pair exactly once settle has run.
func (t *Thread) Join() (Value, error) {
	<-t.done
	if t.Err != nil {
		return nil, t.Err
	}
	if t.Result == nil {
		return NewNil(), nil
	}
	return t.Result, nil
}

// Settle records a thread's outcome and unblocks any Join call. Called
// exactly once, by the goroutine pkg/prelude's thread.spawn starts.
func (t *Thread) Settle(result Value, err error) {
	t.Result = result
	t.Err = err
	close(t.done)
}

// Display renders v the way `print`/`println` show it: literal for
// scalars, bracketed/braced for containers, name-only for callables and
// struct defs (mirroring original_source's Prelude.cpp print formatting).
func Display(v Value) string {
	switch t := v.(type) {
	case *Nil:
		return "nil"
	case *Bool:
		if t.Val {
			return "true"
		}
		return "false"
	case *Int:
		return strconv.FormatInt(t.Val, 10)
	case *Flt:
		return strconv.FormatFloat(t.Val, 'g', -1, 64)
	case *Char:
		return string(t.Val)
	case *Str:
		return t.Val
	case *Vec:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = Display(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Map:
		parts := make([]string, len(t.Keys))
		for i, k := range t.Keys {
			parts[i] = k + ": " + Display(t.Vals[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Fn:
		if t.Name != "" {
			return "<fn " + t.Name + ">"
		}
		return "<fn>"
	case *TypeIDV:
		return "<type " + t.Val.String() + ">"
	case *StructDef:
		return "<struct_def " + t.Name + ">"
	case *Struct:
		name := "struct"
		if t.Def != nil {
			name = t.Def.Name
		}
		parts := make([]string, 0, len(t.Attrs))
		if t.Def != nil {
			for _, f := range t.Def.FieldDefs {
				if fv, ok := t.Attrs[f]; ok {
					parts = append(parts, f+": "+Display(fv))
				}
			}
		}
		return name + "{" + strings.Join(parts, ", ") + "}"
	case *Module:
		return "<module " + t.Path + ">"
	case *Mutex:
		return "<mutex>"
	case *Thread:
		return "<thread>"
	default:
		return "<value>"
	}
}

// Truthy implements the boolean-coercion rule of spec.md §4.6: nil and
// false-Bool are false, Int/Flt zero are false, empty Str/Vec/Map are
// false, everything else is true.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case *Nil:
		return false
	case *Bool:
		return t.Val
	case *Int:
		return t.Val != 0
	case *Flt:
		return t.Val != 0
	case *Str:
		return t.Val != ""
	case *Vec:
		return len(t.Elems) != 0
	case *Map:
		return len(t.Keys) != 0
	default:
		return true
	}
}
