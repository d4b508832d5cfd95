package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Value
		expected bool
	}{
		{"Strings", String("a"), String("a"), true},
		{"Different strings", String("a"), String("b"), false},
		{"Number and numeric string", Number(3), String("3.0"), true},
		{"Number and word", Number(3), String("three"), false},
		{"Bools", Bool(true), Bool(true), true},
		{"Bool and string", Bool(true), String("true"), false},
		{"Empty lists", List(), Strings(nil), true},
		{"Lists element-wise", Strings([]string{"a", "b"}), Strings([]string{"a", "b"}), true},
		{"List order matters", Strings([]string{"a", "b"}), Strings([]string{"b", "a"}), false},
		{"Nulls", Null(), Null(), true},
		{"Null and empty string", Null(), String(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Equal(tt.b))
			assert.Equal(t, tt.expected, tt.b.Equal(tt.a))
		})
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny([]interface{}{"x", 2, true, nil})
	require.NoError(t, err)
	require.Equal(t, KindList, v.Kind())
	assert.Equal(t, "[x, 2, true, null]", v.String())

	_, err = FromAny(map[string]interface{}{"a": 1})
	assert.Error(t, err)

	_, err = FromAny([]interface{}{struct{}{}})
	assert.Error(t, err)
}

func TestValue_AsStrings(t *testing.T) {
	ss, ok := Strings([]string{"a", "b"}).AsStrings()
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ss)

	_, ok = List(String("a"), Number(1)).AsStrings()
	assert.False(t, ok)

	_, ok = String("a").AsStrings()
	assert.False(t, ok)
}

func TestValue_JSON(t *testing.T) {
	var cond Condition
	require.NoError(t, json.Unmarshal([]byte(`{"field":"id","operator":"in","value":["p1",2]}`), &cond))
	assert.True(t, cond.Value.Equal(List(String("p1"), Number(2))))

	data, err := json.Marshal(cond.Value)
	require.NoError(t, err)
	assert.JSONEq(t, `["p1",2]`, string(data))
}
