package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ValueKind discriminates the runtime type of a property Value.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "bool"
	KindMap    ValueKind = "map"
	KindList   ValueKind = "list"
	KindNull   ValueKind = "null"
)

// Value is a tagged property value. Nodes and edges carry schemaless property
// maps; the explicit tag keeps serialization stable so properties survive a
// snapshot/restore round trip without type drift.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	Map  map[string]Value
	List []Value
}

// Properties is the schemaless property bag attached to nodes and edges.
type Properties map[string]Value

func String(s string) Value    { return Value{Kind: KindString, Str: s} }
func Number(f float64) Value   { return Value{Kind: KindNumber, Num: f} }
func Boolean(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func Null() Value              { return Value{Kind: KindNull} }
func ListOf(vs ...Value) Value { return Value{Kind: KindList, List: vs} }
func MapOf(m map[string]Value) Value {
	return Value{Kind: KindMap, Map: m}
}

// StringList extracts a list value as plain strings, skipping non-string
// elements. Used for item linkage properties like "item_ids".
func (v Value) StringList() []string {
	if v.Kind != KindList {
		return nil
	}
	out := make([]string, 0, len(v.List))
	for _, e := range v.List {
		if e.Kind == KindString {
			out = append(out, e.Str)
		}
	}
	return out
}

// MarshalJSON encodes a Value as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return nil, fmt.Errorf("cannot encode non-finite number property")
		}
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindMap:
		return json.Marshal(v.Map)
	case KindList:
		return json.Marshal(v.List)
	case KindNull:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown property value kind %q", v.Kind)
	}
}

// UnmarshalJSON decodes arbitrary JSON into a tagged Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = fromInterface(raw)
	return nil
}

func fromInterface(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case bool:
		return Boolean(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case float64:
		return Number(t)
	case []interface{}:
		list := make([]Value, len(t))
		for i, e := range t {
			list[i] = fromInterface(e)
		}
		return Value{Kind: KindList, List: list}
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = fromInterface(e)
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// Clone deep-copies a property bag. Stores hand out copies so callers cannot
// mutate graph state behind the store's back.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v.clone()
	}
	return out
}

func (v Value) clone() Value {
	switch v.Kind {
	case KindMap:
		m := make(map[string]Value, len(v.Map))
		for k, e := range v.Map {
			m[k] = e.clone()
		}
		return Value{Kind: KindMap, Map: m}
	case KindList:
		list := make([]Value, len(v.List))
		for i, e := range v.List {
			list[i] = e.clone()
		}
		return Value{Kind: KindList, List: list}
	default:
		return v
	}
}
