package opts

import (
	"cmp"
	"errors"
	"fmt"
)

// ErrRuleEvaluation matches every EvaluationError.
var ErrRuleEvaluation = errors.New("opts: rule evaluation failed")

// EvaluationError reports a keyword rule that could not be compiled or did
// not produce a boolean. Rule is the Type.keyword the rule was checked for.
type EvaluationError struct {
	Engine string
	Expr   string
	Rule   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	expr := "<empty>"
	if e.Expr != "" {
		expr = fmt.Sprintf("%q", e.Expr)
	}
	if e.Rule == "" {
		return fmt.Sprintf("opts: %s rule %s: %v", e.Engine, expr, e.Err)
	}
	return fmt.Sprintf("opts: %s rule %s for %s: %v", e.Engine, expr, e.Rule, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *EvaluationError) Is(target error) bool {
	return target == ErrRuleEvaluation
}

// wrapEvaluationError attaches engine, expression and rule to err, filling
// only the fields an existing EvaluationError leaves empty.
func wrapEvaluationError(engine, expr, rule string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Rule: rule, Err: err}
	}
	evalErr.Engine = cmp.Or(evalErr.Engine, engine)
	evalErr.Expr = cmp.Or(evalErr.Expr, expr)
	evalErr.Rule = cmp.Or(evalErr.Rule, rule)
	return evalErr
}
