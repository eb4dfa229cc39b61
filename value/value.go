// Package value implements the universal dynamic value used throughout the
// engine: script inputs/outputs, inter-module payloads, and parsed documents
// all flow through Value.
package value

import (
	"fmt"
	"sort"
)

// Kind tags the type a Value currently holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the tagged union described by the data model: null, bool,
// integer, float, string, array-of-Value, or an ordered object (key -> Value).
// The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	obj  *object
}

// object preserves key insertion order, matching "ordered key->Value map".
type object struct {
	keys   []string
	values map[string]Value
}

func newObject() *object {
	return &object{values: make(map[string]Value)}
}

func (o *object) set(key string, v Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *object) get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Null is the singleton null Value.
var Null = Value{kind: KindNull}

func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Int(i int64) Value       { return Value{kind: KindInt, i: i} }
func Float(f float64) Value   { return Value{kind: KindFloat, f: f} }
func String(s string) Value   { return Value{kind: KindString, s: s} }

// Array builds an array Value from the given elements. The element slice is
// copied, so later changes to the caller's slice do not affect the Value.
func Array(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arr: cp}
}

// NewObject returns an empty, ordered object Value.
func NewObject() Value {
	return Value{kind: KindObject, obj: newObject()}
}

// Kind reports the tag currently held.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsInt() bool    { return v.kind == KindInt }
func (v Value) IsFloat() bool  { return v.kind == KindFloat }
func (v Value) IsString() bool { return v.kind == KindString }
func (v Value) IsArray() bool  { return v.kind == KindArray }
func (v Value) IsObject() bool { return v.kind == KindObject }

// Bool returns the boolean payload; false for any other kind.
func (v Value) Bool() bool {
	if v.kind == KindBool {
		return v.b
	}
	return false
}

// Int returns the integer payload, widening a float by truncation.
func (v Value) Int() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	default:
		return 0
	}
}

// Float returns the float payload, widening an integer.
func (v Value) Float() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	default:
		return 0
	}
}

// String returns the string payload; for non-string kinds it renders a
// literal textual form.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindArray:
		return fmt.Sprintf("%v", v.arr)
	default:
		return fmt.Sprintf("%v", ToAny(v))
	}
}

// Array returns the element slice; nil for any other kind.
func (v Value) Array() []Value {
	if v.kind == KindArray {
		return v.arr
	}
	return nil
}

// Keys returns the object's keys in insertion order; nil for any other kind.
func (v Value) Keys() []string {
	if v.kind == KindObject && v.obj != nil {
		return v.obj.keys
	}
	return nil
}

// Get looks up a key on an object Value. Returns Null, false for any other
// kind or a missing key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject || v.obj == nil {
		return Null, false
	}
	return v.obj.get(key)
}

// GetPath walks a dotted path of object keys, e.g. "main.age".
func (v Value) GetPath(path string) (Value, bool) {
	cur := v
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			if i == start {
				return Null, false
			}
			key := path[start:i]
			next, ok := cur.Get(key)
			if !ok {
				return Null, false
			}
			cur = next
			start = i + 1
		}
	}
	return cur, true
}

// Set returns a new object Value with key set to val. The receiver's own
// object is not mutated in place from the caller's point of view — Set
// operates on a deep-copied backing store so Values remain safe to share.
func (v Value) Set(key string, val Value) Value {
	var out *object
	if v.kind == KindObject && v.obj != nil {
		out = v.obj.clone()
	} else {
		out = newObject()
	}
	out.set(key, val)
	return Value{kind: KindObject, obj: out}
}

func (o *object) clone() *object {
	cp := newObject()
	cp.keys = append([]string(nil), o.keys...)
	cp.values = make(map[string]Value, len(o.values))
	for k, v := range o.values {
		cp.values[k] = v.Clone()
	}
	return cp
}

// Clone performs a deep copy, satisfying the "Values are cloneable by deep
// copy" invariant in the data model.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		cp := make([]Value, len(v.arr))
		for i, e := range v.arr {
			cp[i] = e.Clone()
		}
		return Value{kind: KindArray, arr: cp}
	case KindObject:
		if v.obj == nil {
			return Value{kind: KindObject, obj: newObject()}
		}
		return Value{kind: KindObject, obj: v.obj.clone()}
	default:
		return v
	}
}

// Equal reports deep structural equality.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		// integers and floats compare numerically across kinds.
		if (a.kind == KindInt || a.kind == KindFloat) && (b.kind == KindInt || b.kind == KindFloat) {
			return a.Float() == b.Float()
		}
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		ak, bk := a.Keys(), b.Keys()
		if len(ak) != len(bk) {
			return false
		}
		for _, k := range ak {
			av, _ := a.Get(k)
			bv, ok := b.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromAny converts a generic Go value (as produced by encoding/json,
// gopkg.in/yaml.v3, or github.com/BurntSushi/toml decoding into `any`) into
// a Value. Unrecognized types become Null.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case float32:
		return Float(float64(t))
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromAny(e)
		}
		return Array(items...)
	case []Value:
		return Array(t...)
	case map[string]any:
		out := NewObject()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = out.Set(k, FromAny(t[k]))
		}
		return out
	case map[any]any:
		out := NewObject()
		for k, vv := range t {
			out = out.Set(fmt.Sprintf("%v", k), FromAny(vv))
		}
		return out
	default:
		return Null
	}
}

// ToAny converts a Value back into a plain Go value tree (map[string]any,
// []any, bool, int64, float64, string, nil) suitable for marshaling with
// encoding/json, yaml.v3, or toml.
func ToAny(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = ToAny(e)
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.Keys()))
		for _, k := range v.Keys() {
			e, _ := v.Get(k)
			out[k] = ToAny(e)
		}
		return out
	default:
		return nil
	}
}
