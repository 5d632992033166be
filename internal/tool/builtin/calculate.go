package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
)

// CalculateTool evaluates mathematical expressions on behalf of the model.
type CalculateTool struct{}

func NewCalculateTool() *CalculateTool {
	return &CalculateTool{}
}

func (t *CalculateTool) Name() string {
	return "calculate"
}

func (t *CalculateTool) Description() string {
	return "Perform mathematical calculations. Supports +, -, *, /, **, sqrt, and the usual math functions."
}

func (t *CalculateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"expression": map[string]interface{}{
				"type":        "string",
				"description": "The mathematical expression to evaluate",
			},
		},
		"required": []string{"expression"},
	}
}

// mathEnv is the evaluation scope: math functions and constants only, no
// variables and no access to anything outside the expression.
var mathEnv = map[string]interface{}{
	"sqrt":  math.Sqrt,
	"cbrt":  math.Cbrt,
	"abs":   math.Abs,
	"pow":   math.Pow,
	"log":   math.Log,
	"log2":  math.Log2,
	"log10": math.Log10,
	"exp":   math.Exp,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
	"mod":   math.Mod,
	"pi":    math.Pi,
	"e":     math.E,
}

func (t *CalculateTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	_ = ctx

	var args struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	expression := strings.TrimSpace(args.Expression)
	if expression == "" {
		return nil, fmt.Errorf("expression is empty")
	}

	value, err := expr.Eval(expression, mathEnv)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expression, err)
	}

	return json.Marshal(map[string]interface{}{
		"expression": expression,
		"result":     value,
	})
}
