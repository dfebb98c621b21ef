package cel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpressionPool(t *testing.T) {
	pool, err := NewExpressionPool()
	require.NoError(t, err)

	columns := []string{"stimulus_0", "repetition_0", "subject name"}
	values := []string{"3", "1.0", "S2"}

	tests := []struct {
		name     string
		expr     string
		expected any
	}{
		{"column variable", `stimulus_0 + "-" + repetition_0`, "3-1.0"},
		{"row map", `row["subject name"]`, "S2"},
		{"to_i", `to_i(stimulus_0) * 10 + to_i(repetition_0)`, int64(31)},
		{"pad", `pad(stimulus_0, 3)`, "003"},
		{"length", `length(row["subject name"])`, int64(2)},
		{"to_s", `to_s(to_i(stimulus_0) + 1)`, "4"},
		{"ext strings", `[stimulus_0, repetition_0].join("_")`, "3_1.0"},
		{"conditional", `to_i(stimulus_0) > 2 ? "high" : "low"`, "high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, err := pool.GetExpression(tt.expr, columns)
			require.NoError(t, err)
			got, err := pool.EvaluateExpression(program, RowParams(columns, values))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExpressionPoolCaches(t *testing.T) {
	pool, err := NewExpressionPool()
	require.NoError(t, err)

	_, err = pool.GetExpression(`a + b`, []string{"a", "b"})
	require.NoError(t, err)
	_, err = pool.GetExpression(`a + b`, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Len())

	_, err = pool.GetExpression(`a + b`, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())
}

func TestExpressionPoolErrors(t *testing.T) {
	pool, err := NewExpressionPool()
	require.NoError(t, err)

	_, err = pool.GetExpression(`missing_column + "x"`, []string{"a"})
	assert.Error(t, err)

	_, err = pool.GetExpression(`a +`, []string{"a"})
	assert.Error(t, err)

	program, err := pool.GetExpression(`to_i(a)`, []string{"a"})
	require.NoError(t, err)
	_, err = pool.EvaluateExpression(program, RowParams([]string{"a"}, []string{"x"}))
	assert.Error(t, err)

	program, err = pool.GetExpression(`error("bad row")`, nil)
	require.NoError(t, err)
	_, err = pool.EvaluateExpression(program, RowParams(nil, nil))
	assert.ErrorContains(t, err, "bad row")
}

func TestIdentifier(t *testing.T) {
	assert.True(t, Identifier("stimulus_0"))
	assert.True(t, Identifier("_x"))
	assert.False(t, Identifier("0"))
	assert.False(t, Identifier("subject name"))
	assert.False(t, Identifier("in"))
	assert.False(t, Identifier(RowVariable))
	assert.False(t, Identifier(""))
}

func TestStringToInt(t *testing.T) {
	assert.Equal(t, int64(3), stringToInt("3").Value())
	assert.Equal(t, int64(3), stringToInt("3.0").Value())
	assert.Equal(t, int64(-2), stringToInt(" -2 ").Value())
}
