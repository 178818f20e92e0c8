package opts

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEvaluator runs rules with github.com/expr-lang/expr. Registered
// functions are compiled in as typed functions.
type exprEvaluator struct {
	cfg ruleEvaluatorConfig
}

// NewExprEvaluator constructs the default rule evaluator.
func NewExprEvaluator(opts ...RuleEvaluatorOption) Evaluator {
	return &exprEvaluator{cfg: newRuleEvaluatorConfig(opts)}
}

func (e *exprEvaluator) Name() string { return "expr" }

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, ctx.label(), err)
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if err := checkExpression("expr", expression); err != nil {
		return nil, err
	}
	program, err := loadProgram(e.cfg, "expr", expression, e.compile)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, "", err)
	}
	return compiledRule{run: func(ctx RuleContext) (any, error) {
		result, err := exprlang.Run(program, e.environment(ctx))
		if err != nil {
			return nil, wrapEvaluationError("expr", expression, ctx.label(), err)
		}
		return result, nil
	}}, nil
}

func (e *exprEvaluator) compile(expression string) (*exprvm.Program, error) {
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for name, fn := range e.cfg.bindings() {
		options = append(options, exprlang.Function(name, fn))
	}
	return exprlang.Compile(expression, options...)
}

func (e *exprEvaluator) environment(ctx RuleContext) map[string]any {
	env := ctx.bindings()
	env["call"] = e.cfg.callFunction
	return env
}
