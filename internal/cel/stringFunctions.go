package cel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// StringFunctions returns CEL function declarations for working with cell
// text.
func StringFunctions() cel.EnvOption {
	return cel.Lib(&stringLib{})
}

type stringLib struct{}

func (*stringLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		// to_s function
		cel.Function("to_s",
			cel.Overload("to_s_any", []*cel.Type{cel.AnyType}, cel.StringType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					if d, ok := val.(types.Double); ok {
						return types.String(strconv.FormatFloat(float64(d), 'f', -1, 64))
					}
					return types.String(fmt.Sprintf("%v", val.Value()))
				}),
			),
		),
		// length counts runes
		cel.Function("length",
			cel.Overload("length_string", []*cel.Type{cel.StringType}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					str, ok := val.(types.String)
					if !ok {
						return types.NewErr("expected string type for length")
					}
					return types.Int(len([]rune(string(str))))
				}),
			),
		),
		// to_i parses decimal cell text; "3.0" is accepted as 3
		cel.Function("to_i",
			cel.Overload("to_i_string", []*cel.Type{cel.StringType}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					str, ok := val.(types.String)
					if !ok {
						return types.NewErr("expected string for to_i")
					}
					return stringToInt(string(str))
				}),
			),
		),
		// pad left-pads with zeros to a minimum width
		cel.Function("pad",
			cel.Overload("pad_string_int", []*cel.Type{cel.StringType, cel.IntType}, cel.StringType,
				cel.BinaryBinding(func(val, width ref.Val) ref.Val {
					str, ok := val.(types.String)
					if !ok {
						return types.NewErr("first argument must be string")
					}
					w, ok := width.(types.Int)
					if !ok {
						return types.NewErr("width must be integer")
					}
					s := string(str)
					if n := int(w) - len([]rune(s)); n > 0 {
						s = strings.Repeat("0", n) + s
					}
					return types.String(s)
				}),
			),
		),
	}
}

func (*stringLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

func stringToInt(str string) ref.Val {
	s := strings.TrimSpace(str)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return types.Int(i)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return types.NewErr("cannot convert %q to integer", str)
	}
	return types.Int(int64(f))
}
