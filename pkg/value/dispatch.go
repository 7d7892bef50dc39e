package value

// TypeTable is the method registry pkg/vm consults for OpAttr/OpMemCall:
// one table per TypeID plus a special All table consulted for every
// type. Lookup order (spec.md §4.5): the receiver's own attribute bag
// (AttrHolder.GetAttr) first, then its TypeID's table, then All.
type TypeTable struct {
	perType map[TypeID]map[string]*Fn
	all     map[string]*Fn
}

func NewTypeTable() *TypeTable {
	return &TypeTable{perType: make(map[TypeID]map[string]*Fn), all: make(map[string]*Fn)}
}

// Register binds name to fn for the given type. A TypeNil receiver type
// registers into All instead (spec.md's "registering against nil installs
// a method visible on every type").
func (tt *TypeTable) Register(t TypeID, name string, fn *Fn) {
	if t == TypeNil {
		tt.all[name] = fn
		return
	}
	m, ok := tt.perType[t]
	if !ok {
		m = make(map[string]*Fn)
		tt.perType[t] = m
	}
	m[name] = fn
}

// Lookup resolves name against receiver: its own attribute bag (if
// AttrBased), then its type's table, then All.
func (tt *TypeTable) Lookup(receiver Value, name string) (*Fn, bool) {
	if holder, ok := receiver.(AttrHolder); ok {
		if v, ok := holder.GetAttr(name); ok {
			if fn, ok := v.(*Fn); ok {
				return fn, true
			}
		}
	}
	if m, ok := tt.perType[receiver.Type()]; ok {
		if fn, ok := m[name]; ok {
			return fn, true
		}
	}
	if fn, ok := tt.all[name]; ok {
		return fn, true
	}
	return nil, false
}
