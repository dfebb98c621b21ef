package value

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinfer/matcsv/pkg/matfile"
)

type stringer struct{}

func (stringer) String() string { return "custom" }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Value
	}{
		{
			name:     "nil",
			input:    nil,
			expected: Empty(),
		},
		{
			name:     "float scalar",
			input:    29.0,
			expected: Float(29),
		},
		{
			name:     "string scalar",
			input:    "S2",
			expected: String("S2"),
		},
		{
			name:     "bool scalar",
			input:    true,
			expected: Bool(true),
		},
		{
			name:  "struct keeps field order",
			input: &matfile.Struct{Fields: []string{"name", "age"}, Values: []any{"S2", 29.0}},
			expected: Mapping{Fields: []Field{
				{Key: "name", Value: String("S2")},
				{Key: "age", Value: Float(29)},
			}},
		},
		{
			name:  "cell recurses",
			input: &matfile.Cell{Elems: []any{1.0, &matfile.Struct{Fields: []string{"a"}, Values: []any{"x"}}}},
			expected: Sequence{Elems: []Value{
				Float(1),
				Mapping{Fields: []Field{{Key: "a", Value: String("x")}}},
			}},
		},
		{
			name:     "vector",
			input:    &matfile.Numeric{Kind: matfile.KindFloat, Dims: []int{3}, Float: []float64{1, 2, 3}},
			expected: FloatVector([]float64{1, 2, 3}),
		},
		{
			name: "column-major matrix becomes row-major",
			input: &matfile.Numeric{Kind: matfile.KindInt, Dims: []int{2, 3},
				Int: []int64{1, 4, 2, 5, 3, 6}},
			expected: IntMatrix(2, 3, []int64{1, 2, 3, 4, 5, 6}),
		},
		{
			name: "rank 3 splits along first axis",
			input: &matfile.Numeric{Kind: matfile.KindFloat, Dims: []int{2, 2, 2},
				// element (i,j,k) at i + 2j + 4k, value = 100i + 10j + k
				Float: []float64{0, 100, 10, 110, 1, 101, 11, 111}},
			expected: Sequence{Elems: []Value{
				FloatMatrix(2, 2, []float64{0, 1, 10, 11}),
				FloatMatrix(2, 2, []float64{100, 101, 110, 111}),
			}},
		},
		{
			name:     "mismatched numeric degrades to text",
			input:    &matfile.Numeric{Class: matfile.ClassDouble, Kind: matfile.KindFloat, Dims: []int{3}, Float: []float64{1}},
			expected: String("<double array [3]: 1 values for dims [3]>"),
		},
		{
			name:     "opaque degrades to text",
			input:    &matfile.Opaque{Class: matfile.ClassFunction},
			expected: String("<function_handle>"),
		},
		{
			name:  "plain map sorted",
			input: map[string]any{"b": 1, "a": "x"},
			expected: Mapping{Fields: []Field{
				{Key: "a", Value: String("x")},
				{Key: "b", Value: Int(1)},
			}},
		},
		{
			name:     "plain list",
			input:    []any{int64(1), "two"},
			expected: Sequence{Elems: []Value{Int(1), String("two")}},
		},
		{
			name:     "stringer",
			input:    stringer{},
			expected: String("custom"),
		},
		{
			name:     "unknown type",
			input:    struct{ X int }{3},
			expected: String("{3}"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := &matfile.Struct{
		Fields: []string{"emg", "info"},
		Values: []any{
			&matfile.Numeric{Kind: matfile.KindFloat, Dims: []int{2, 2}, Float: []float64{1, 2, 3, 4}},
			map[string]any{"z": 1.0, "y": []any{"a", "b"}},
		},
	}
	first := Normalize(raw)
	second := Normalize(raw)
	assert.Empty(t, cmp.Diff(first, second))
}

func TestNormalizeDuplicateFieldsStayUnique(t *testing.T) {
	got := Normalize(&matfile.Struct{Fields: []string{"a", "a"}, Values: []any{1.0, 2.0}})
	m, ok := got.(Mapping)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, m.Keys())
	v, _ := m.Get("a")
	assert.Equal(t, Float(2), v)
}

func TestNormalizeSparse(t *testing.T) {
	got := Normalize(&matfile.Sparse{Rows: 2, Cols: 2, Kind: matfile.KindFloat,
		RowIndex: []int{1}, ColStart: []int{0, 1, 1}, Float: []float64{7}})
	assert.Equal(t, FloatMatrix(2, 2, []float64{0, 0, 7, 0}), got)

	huge := Normalize(&matfile.Sparse{Rows: 1 << 20, Cols: 1 << 20, ColStart: make([]int, 1<<20+1)})
	s, ok := huge.(Scalar)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(s.S, "<sparse"))
}

func TestScalarText(t *testing.T) {
	assert.Equal(t, "29", Float(29).Text())
	assert.Equal(t, "0.5", Float(0.5).Text())
	assert.Equal(t, "1e-05", Float(0.00001).Text())
	assert.Equal(t, "1e+16", Float(1e16).Text())
	assert.Equal(t, "", Float(math.NaN()).Text())
	assert.Equal(t, "-inf", Float(math.Inf(-1)).Text())
	assert.Equal(t, "True", Bool(true).Text())
	assert.Equal(t, "(1-2j)", Complex(complex(1, -2)).Text())
	assert.Equal(t, "", Empty().Text())
}

func TestScalarConstructors(t *testing.T) {
	tests := []struct {
		s    Scalar
		kind ScalarKind
		text string
	}{
		{Empty(), KindEmpty, ""},
		{Float(2.5), KindFloat, "2.5"},
		{Int(-3), KindInt, "-3"},
		{Uint(7), KindUint, "7"},
		{Bool(false), KindBool, "False"},
		{String("S2"), KindString, "S2"},
		{Complex(complex(0, 1)), KindComplex, "(0+1j)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.s.Kind)
		assert.Equal(t, tt.text, tt.s.Text())
	}
}

func TestRender(t *testing.T) {
	v := Mapping{Fields: []Field{
		{Key: "m", Value: FloatMatrix(2, 2, []float64{1, 2, 3, 4})},
		{Key: "v", Value: FloatVector([]float64{5, 6})},
		{Key: "s", Value: Sequence{Elems: []Value{String("a"), Int(1)}}},
	}}
	assert.Equal(t, `{m: [[1 2] [3 4]], v: [5 6], s: ["a", 1]}`, Render(v))
	assert.True(t, Flat(Sequence{Elems: []Value{Int(1)}}))
	assert.False(t, Flat(Sequence{Elems: []Value{v}}))
}
