package cel

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

// RowVariable names the map of every column of the current row.
const RowVariable = "row"

// NewEnvironment creates the base environment for row expressions. Column
// variables are added per expression by the pool.
func NewEnvironment() (*cel.Env, error) {
	opts := []cel.EnvOption{
		cel.Variable(RowVariable, cel.MapType(cel.StringType, cel.StringType)),

		// Enable standard CEL library functions
		cel.StdLib(),
		ext.Strings(),

		StringFunctions(),
		ErrorHandlingFunctions(),
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

func ErrorHandlingFunctions() cel.EnvOption {
	return cel.Lib(&errorLib{})
}

type errorLib struct{}

func (*errorLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("error",
			cel.Overload("error_string", []*cel.Type{cel.StringType}, cel.AnyType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					msg, ok := val.(types.String)
					if !ok {
						return types.NewErr("expected string for error message")
					}
					return types.NewErr("%s", msg)
				}),
			),
		),
	}
}

func (*errorLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}
