// Package cel provides a CEL-based expression evaluator for the "cel"
// condition operator, the escape hatch rule authors reach for when the
// built-in comparison operators cannot express a condition.
package cel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// maxExpressionLength is the maximum allowed length for CEL expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit, bounding how much work
// a single expression may do before being aborted.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket/brace
// nesting depth.
const maxNestingDepth = 50

// evalTimeout is the maximum wall-clock time allowed for a single
// CEL evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations)
// context cancellation is checked.
const interruptCheckFreq = 100

// Evaluator compiles and evaluates CEL expressions against a sanitised
// issuance context. It implements policy.CELEvaluator.
type Evaluator struct {
	env *cel.Env

	mu    sync.Mutex
	cache map[string]cel.Program
}

// newEnvironment builds the CEL environment a rule's condition runs
// in: a single `ctx` variable holding the sanitised issuance context
// as a string-to-string map. Rule authors reference context keys as
// ctx["dest_host"], ctx["tool_name"], and so on.
func newEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)),
	)
}

// NewEvaluator creates a new CEL evaluator.
func NewEvaluator() (*Evaluator, error) {
	env, err := newEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create cel environment: %w", err)
	}
	return &Evaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// validateNesting checks that the expression does not exceed the
// maximum allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that a CEL expression is syntactically
// valid and safe to evaluate, without evaluating it. The rule admin
// surface calls this at write time so a bad "cel" condition is
// rejected before it ever reaches an agent's issuance path.
func (e *Evaluator) ValidateExpression(expr string) error {
	if expr == "" {
		return errors.New("expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	_, err := e.compile(expr)
	if err != nil {
		return fmt.Errorf("invalid cel expression: %w", err)
	}
	return nil
}

// compile returns a compiled program for expr, compiling once per
// distinct expression and caching the result: the same rule condition
// is evaluated on every issuance call that reaches it, so recompiling
// it each time would be wasted work.
func (e *Evaluator) compile(expr string) (cel.Program, error) {
	e.mu.Lock()
	prg, ok := e.cache[expr]
	e.mu.Unlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}
	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// Evaluate implements policy.CELEvaluator. It compiles (or reuses a
// cached compilation of) expression and evaluates it against context,
// exposed to the expression as the `ctx` map. Any compile failure,
// non-boolean result, or timeout is returned as an error, which
// matchCondition treats as the condition failing closed.
func (e *Evaluator) Evaluate(expression string, context_ map[string]string) (bool, error) {
	if expression == "" {
		return false, errors.New("expression is empty")
	}
	if len(expression) > maxExpressionLength {
		return false, fmt.Errorf("expression too long: %d characters (max %d)", len(expression), maxExpressionLength)
	}
	if err := validateNesting(expression); err != nil {
		return false, err
	}

	prg, err := e.compile(expression)
	if err != nil {
		return false, err
	}

	if context_ == nil {
		context_ = map[string]string{}
	}

	evalCtx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(evalCtx, map[string]any{"ctx": context_})
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}
	return boolResult, nil
}
