package value

import (
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestNewValuesStartWithRefCountOne(t *testing.T) {
	vals := []Value{NewNil(), NewBool(true), NewInt(1), NewFlt(1.5), NewStr("x"), NewChar('a')}
	for _, v := range vals {
		if v.Refs() != 1 {
			t.Errorf("%T: expected refcount 1, got %d", v, v.Refs())
		}
	}
}

func TestIncDecRef(t *testing.T) {
	i := NewInt(42)
	i.IncRef()
	if i.Refs() != 2 {
		t.Fatalf("expected refcount 2, got %d", i.Refs())
	}
	if i.DecRef() {
		t.Fatalf("expected DecRef to report still-alive")
	}
	if !i.DecRef() {
		t.Fatalf("expected DecRef to report dead at refcount 0")
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{NewNil(), false},
		{NewBool(false), false},
		{NewBool(true), true},
		{NewInt(0), false},
		{NewInt(1), true},
		{NewFlt(0), false},
		{NewStr(""), false},
		{NewStr("x"), true},
		{NewVec(nil), false},
		{NewVec([]Value{NewInt(1)}), true},
	}
	for _, c := range cases {
		if got := Truthy(c.v); got != c.want {
			t.Errorf("Truthy(%T) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestVecCopyIsShallowAndIndependent(t *testing.T) {
	elem := NewInt(1)
	v := NewVec([]Value{elem})
	cp := v.Copy().(*Vec)
	cp.Elems = append(cp.Elems, NewInt(2))
	if len(v.Elems) != 1 {
		t.Fatalf("expected original Vec's backing slice untouched, got len %d", len(v.Elems))
	}
	if elem.Refs() != 2 {
		t.Fatalf("expected shared element refcount bumped to 2, got %d", elem.Refs())
	}
}

func TestMapSetGetPreservesInsertionOrder(t *testing.T) {
	m := NewMap()
	m.Set("b", NewInt(2))
	m.Set("a", NewInt(1))
	if len(m.Keys) != 2 || m.Keys[0] != "b" || m.Keys[1] != "a" {
		t.Fatalf("expected insertion order [b a], got %v", m.Keys)
	}
	v, ok := m.Get("a")
	if !ok || v.(*Int).Val != 1 {
		t.Fatalf("got %#v, %v", v, ok)
	}
}

func TestStructGetAttrFallsThroughToDef(t *testing.T) {
	def := NewStructDef(firstUserTypeID, "Point", []string{"x", "y"})
	method := NewNativeFn("describe", func(args []Value, kwargs map[string]Value) (Value, error) {
		return NewStr("a point"), nil
	})
	def.Methods["describe"] = method

	s := NewStruct(def)
	s.Attrs["x"] = NewInt(1)

	if v, ok := s.GetAttr("x"); !ok || v.(*Int).Val != 1 {
		t.Fatalf("expected own attribute x, got %#v", v)
	}
	if v, ok := s.GetAttr("describe"); !ok || v != method {
		t.Fatalf("expected method fallthrough to def, got %#v", v)
	}
}

func TestTypeTableDispatchOrder(t *testing.T) {
	tt := NewTypeTable()
	allFn := NewNativeFn("to_s", nil)
	intFn := NewNativeFn("to_s", nil)
	tt.Register(TypeNil, "to_s", allFn)
	tt.Register(TypeInt, "to_s", intFn)

	fn, ok := tt.Lookup(NewInt(1), "to_s")
	if !ok || fn != intFn {
		t.Fatalf("expected type-specific to_s to win over All, got %#v", fn)
	}

	fn, ok = tt.Lookup(NewFlt(1), "to_s")
	if !ok || fn != allFn {
		t.Fatalf("expected fallthrough to All for Flt, got %#v", fn)
	}
}

func TestTypeTableOwnAttrWinsOverTypeTable(t *testing.T) {
	def := NewStructDef(firstUserTypeID, "Box", nil)
	tt := NewTypeTable()
	tableFn := NewNativeFn("open", nil)
	ownFn := NewNativeFn("open", nil)
	tt.Register(def.TID, "open", tableFn)

	s := NewStruct(def)
	s.Attrs["open"] = ownFn

	fn, ok := tt.Lookup(s, "open")
	if !ok || fn != ownFn {
		t.Fatalf("expected own attribute to win, got %#v", fn)
	}
}

func TestMutexCopyIsSharedIdentity(t *testing.T) {
	m := NewMutex()
	cp := m.Copy().(*Mutex)
	if cp != m {
		t.Fatalf("expected Copy to return the same Mutex, got a distinct value")
	}
	if m.Refs() != 2 {
		t.Fatalf("expected Copy to IncRef, got refcount %d", m.Refs())
	}
}

func TestThreadJoinBlocksUntilSettle(t *testing.T) {
	var g errgroup.Group
	done := make(chan struct{})
	th := NewThread(&g, done)

	settled := make(chan struct{})
	go func() {
		th.Settle(NewInt(7), nil)
		close(settled)
	}()
	<-settled

	result, err := th.Join()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	i, ok := result.(*Int)
	if !ok || i.Val != 7 {
		t.Fatalf("expected result 7, got %#v", result)
	}
}

func TestThreadJoinPropagatesError(t *testing.T) {
	var g errgroup.Group
	done := make(chan struct{})
	th := NewThread(&g, done)
	th.Settle(nil, errNotNativelyCallable)

	if _, err := th.Join(); err == nil {
		t.Fatalf("expected Join to propagate the settled error")
	}
}
