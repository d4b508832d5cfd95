package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind identifies the dynamic type held by a Value
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Value is a rule operand or an entity field reading
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
}

func Null() Value { return Value{} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func List(values ...Value) Value { return Value{kind: KindList, list: values} }

// Strings builds a list of string values
func Strings(ss []string) Value {
	values := make([]Value, len(ss))
	for i, s := range ss {
		values[i] = String(s)
	}
	return List(values...)
}

// FromAny converts decoded JSON/YAML data into a Value
func FromAny(v interface{}) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Null(), err
		}
		return Number(n), nil
	case []string:
		return Strings(t), nil
	case []interface{}:
		values := make([]Value, 0, len(t))
		for _, e := range t {
			ev, err := FromAny(e)
			if err != nil {
				return Null(), err
			}
			values = append(values, ev)
		}
		return List(values...), nil
	default:
		return Null(), fmt.Errorf("unsupported value type %T", v)
	}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Items returns the elements of a list value
func (v Value) Items() []Value { return v.list }

// AsString returns the string content; other kinds are not converted
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsNumber returns the numeric content. Numeric strings are accepted.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		return n, err == nil
	}
	return 0, false
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsStrings returns the string elements of a list
func (v Value) AsStrings() ([]string, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]string, 0, len(v.list))
	for _, e := range v.list {
		s, ok := e.AsString()
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Equal compares by kind; numbers compare numerically and lists element-wise
func (v Value) Equal(o Value) bool {
	if v.kind == KindNumber || o.kind == KindNumber {
		a, okA := v.AsNumber()
		b, okB := o.AsNumber()
		return okA && okB && a == b
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return true
}

// Interface converts the value back to plain Go data
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "null"
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) MarshalYAML() (interface{}, error) {
	return v.Interface(), nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = parsed
	return nil
}
