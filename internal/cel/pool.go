// Package cel compiles and evaluates CEL expressions over table rows.
package cel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// ExpressionPool caches compiled CEL expressions
type ExpressionPool struct {
	mu          sync.RWMutex
	expressions map[string]cel.Program
	env         *cel.Env
}

// NewExpressionPool creates a new expression pool with a configured CEL environment
func NewExpressionPool() (*ExpressionPool, error) {
	env, err := NewEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create environment: %w", err)
	}

	return &ExpressionPool{
		env:         env,
		expressions: make(map[string]cel.Program),
	}, nil
}

// GetExpression retrieves or compiles an expression for a table with the
// given columns. Every column whose name is a valid identifier is declared
// as a string variable; all columns are reachable through row["name"].
func (e *ExpressionPool) GetExpression(exprStr string, columns []string) (cel.Program, error) {
	vars := columnVariables(columns)
	key := exprStr + "\x00" + strings.Join(vars, "\x00")

	e.mu.RLock()
	if program, ok := e.expressions[key]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	envOpts := make([]cel.EnvOption, 0, len(vars))
	for _, name := range vars {
		envOpts = append(envOpts, cel.Variable(name, cel.StringType))
	}
	extEnv, err := e.env.Extend(envOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to extend environment: %w", err)
	}

	ast, issues := extEnv.Compile(exprStr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", exprStr, issues.Err())
	}

	program, err := extEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	e.mu.Lock()
	e.expressions[key] = program
	e.mu.Unlock()

	return program, nil
}

// Len returns the number of cached programs.
func (e *ExpressionPool) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.expressions)
}

// EvaluateExpression evaluates a compiled expression with parameters
func (e *ExpressionPool) EvaluateExpression(program cel.Program, params map[string]any) (any, error) {
	if params == nil {
		params = make(map[string]any)
	}

	activation, err := cel.NewActivation(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create activation: %w", err)
	}

	val, _, err := program.Eval(activation)
	if err != nil {
		return nil, fmt.Errorf("expression evaluation error: %w", err)
	}

	return adaptCELResult(val.Value()), nil
}

// RowParams binds one row: the row map plus a variable per identifier
// column.
func RowParams(columns, values []string) map[string]any {
	row := make(map[string]string, len(columns))
	params := make(map[string]any, len(columns)+1)
	for i, c := range columns {
		row[c] = values[i]
		if Identifier(c) {
			params[c] = values[i]
		}
	}
	params[RowVariable] = row
	return params
}

// Identifier reports whether name can be used as a CEL variable.
func Identifier(name string) bool {
	if name == "" || reserved[name] || name == RowVariable {
		return false
	}
	for i, c := range name {
		isWordChar := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || (i > 0 && c >= '0' && c <= '9')
		if !isWordChar {
			return false
		}
	}
	return true
}

var reserved = map[string]bool{
	"true": true, "false": true, "null": true, "in": true,
	"as": true, "break": true, "const": true, "continue": true, "else": true,
	"for": true, "function": true, "if": true, "import": true, "let": true,
	"loop": true, "package": true, "namespace": true, "return": true,
	"var": true, "void": true, "while": true,
}

func columnVariables(columns []string) []string {
	var vars []string
	seen := make(map[string]bool)
	for _, c := range columns {
		if Identifier(c) && !seen[c] {
			seen[c] = true
			vars = append(vars, c)
		}
	}
	return vars
}

// adaptCELResult converts CEL result values to Go native types
func adaptCELResult(val any) any {
	switch v := val.(type) {
	case types.Int:
		return int64(v)
	case types.Uint:
		return uint64(v)
	case types.Double:
		return float64(v)
	case types.Bool:
		return bool(v)
	case types.String:
		return string(v)
	case types.Bytes:
		return []byte(v)
	case types.Null:
		return nil
	case ref.Val:
		if lister, ok := v.(traits.Lister); ok {
			size := lister.Size().(types.Int)
			result := make([]any, size)
			for i := types.Int(0); i < size; i++ {
				result[i] = adaptCELResult(lister.Get(i).Value())
			}
			return result
		}
		return v.Value()
	default:
		return v
	}
}
