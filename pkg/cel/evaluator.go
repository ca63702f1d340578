package cel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// Evaluator compiles boolean filter expressions over a single document
// variable plus the current time as `now`.
type Evaluator struct {
	env     *cel.Env
	docName string
}

// NewEvaluator declares docName as map(string, dyn), e.g. "announcement".
func NewEvaluator(docName string) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable(docName, cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("now", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env, docName: docName}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

// Filter is a compiled boolean expression, safe for concurrent use.
type Filter struct {
	expression string
	docName    string
	program    cel.Program
}

func (e *Evaluator) CompileFilter(expression string) (*Filter, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Filter{expression: expression, docName: e.docName, program: program}, nil
}

func (f *Filter) Expression() string {
	return f.expression
}

func (f *Filter) Matches(ctx context.Context, doc map[string]interface{}, now time.Time) (bool, error) {
	vars := map[string]interface{}{
		f.docName: doc,
		"now":     now,
	}

	result, _, err := f.program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
