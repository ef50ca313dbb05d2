package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
)

// Classifier decides whether a failure is worth retrying.
type Classifier interface {
	IsTransient(s status.Status) bool
}

// DefaultClassifier retries the codes resource APIs use for overload,
// throttling and timeouts.
type DefaultClassifier struct{}

func (DefaultClassifier) IsTransient(s status.Status) bool {
	return status.IsTransient(s.Code)
}

// CELClassifier evaluates a boolean CEL expression against each failure.
// The expression sees:
//
//	code       int     numeric status code (14 for UNAVAILABLE)
//	code_name  string  status code name ("Unavailable")
//	message    string  status message
//
// Example: `code_name == "Unavailable" || message.contains("rateLimitExceeded")`
type CELClassifier struct {
	expression string
	program    cel.Program
	// Fallback classifies failures when evaluation errors (DefaultClassifier if nil)
	Fallback Classifier
}

// NewCELClassifier compiles expression. The expression must evaluate to bool.
func NewCELClassifier(expression string) (*CELClassifier, error) {
	env, err := cel.NewEnv(
		cel.Variable("code", cel.IntType),
		cel.Variable("code_name", cel.StringType),
		cel.Variable("message", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile retry expression %q: %w", expression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("retry expression %q must evaluate to bool, got %s", expression, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL program for %q: %w", expression, err)
	}

	return &CELClassifier{expression: expression, program: program}, nil
}

// Expression returns the source expression.
func (c *CELClassifier) Expression() string {
	return c.expression
}

func (c *CELClassifier) IsTransient(s status.Status) bool {
	out, _, err := c.program.Eval(map[string]interface{}{
		"code":      int64(s.Code),
		"code_name": s.Code.String(),
		"message":   s.Message,
	})
	if err != nil {
		return c.fallback().IsTransient(s)
	}
	transient, ok := out.Value().(bool)
	if !ok {
		return c.fallback().IsTransient(s)
	}
	return transient
}

func (c *CELClassifier) fallback() Classifier {
	if c.Fallback != nil {
		return c.Fallback
	}
	return DefaultClassifier{}
}
