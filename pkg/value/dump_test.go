package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDump(t *testing.T) {
	v := Mapping{Fields: []Field{
		{Key: "name", Value: String("S2")},
		{Key: "age", Value: Float(29)},
		{Key: "emg", Value: FloatMatrix(2, 2, []float64{1, 2, 3, 4})},
		{Key: "nested", Value: Mapping{Fields: []Field{{Key: "ok", Value: Bool(true)}}}},
		{Key: "gap", Value: Float(math.NaN())},
	}}

	out := Dump(v)
	assert.Contains(t, out, "name: S2\n")
	assert.Contains(t, out, "age: 29\n")
	assert.Contains(t, out, "[1, 2]")
	assert.Contains(t, out, "[3, 4]")
	assert.Contains(t, out, "ok: true")
	assert.Contains(t, out, "gap: .nan")

	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	root := doc.Content[0]
	var keys []string
	for i := 0; i < len(root.Content); i += 2 {
		keys = append(keys, root.Content[i].Value)
	}
	assert.Equal(t, []string{"name", "age", "emg", "nested", "gap"}, keys)
	assert.Equal(t, Dump(v), Dump(v))
}

func TestDumpIsValidYAML(t *testing.T) {
	v := Sequence{Elems: []Value{
		String("a: b"),
		Int(-3),
		FloatVector([]float64{0.5}),
		Empty(),
		Complex(complex(1, 2)),
	}}
	var decoded []any
	assert.NoError(t, yaml.Unmarshal([]byte(Dump(v)), &decoded))
	assert.Equal(t, []any{"a: b", -3, []any{0.5}, nil, "(1+2j)"}, decoded)
}

func TestDumpNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, Dump(Mapping{}))
	assert.NotEmpty(t, Dump(Sequence{}))
	assert.NotEmpty(t, Dump(nil))
}
