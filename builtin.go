package rtcvoice

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
)

// CurrentTimeTool reports the local wall-clock time.
func CurrentTimeTool() Tool {
	return NewSimpleTool("getCurrentTime", "Get the current local date and time",
		func() (any, error) {
			return time.Now().Format("Monday, January 2, 2006 15:04:05"), nil
		})
}

// CalculateTool evaluates an arithmetic expression. Input is compiled as an
// expression with no environment bindings, so it cannot reference functions
// or variables of the host program.
func CalculateTool() Tool {
	return NewTool("calculate", "Evaluate an arithmetic expression, e.g. \"(2+3)*4\"",
		func(args struct {
			Expression string `json:"expression" jsonschema:"description=The arithmetic expression to evaluate"`
		}) (any, error) {
			if args.Expression == "" {
				return nil, fmt.Errorf("expression is empty")
			}
			program, err := expr.Compile(args.Expression)
			if err != nil {
				return nil, fmt.Errorf("parse expression: %w", err)
			}
			result, err := expr.Run(program, nil)
			if err != nil {
				return nil, fmt.Errorf("evaluate expression: %w", err)
			}
			return fmt.Sprintf("%v", result), nil
		})
}
