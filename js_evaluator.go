//go:build js_eval

package opts

import (
	"fmt"

	"github.com/dop251/goja"
)

// jsEvaluator runs rules with goja, one runtime per evaluation.
type jsEvaluator struct {
	cfg ruleEvaluatorConfig
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...RuleEvaluatorOption) Evaluator {
	return &jsEvaluator{cfg: newRuleEvaluatorConfig(opts)}
}

func (e *jsEvaluator) Name() string { return "js" }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, ctx.label(), err)
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if err := checkExpression("js", expression); err != nil {
		return nil, err
	}
	program, err := loadProgram(e.cfg, "js", expression, func(expression string) (*goja.Program, error) {
		return goja.Compile("rule", fmt.Sprintf("(function(){ return (%s); })()", expression), true)
	})
	if err != nil {
		return nil, wrapEvaluationError("js", expression, "", err)
	}
	return compiledRule{run: func(ctx RuleContext) (any, error) {
		vm := goja.New()
		for key, value := range ctx.bindings() {
			if err := vm.Set(key, value); err != nil {
				return nil, err
			}
		}
		_ = vm.Set("call", e.cfg.callFunction)
		for name, fn := range e.cfg.bindings() {
			_ = vm.Set(name, fn)
		}
		value, err := vm.RunProgram(program)
		if err != nil {
			return nil, wrapEvaluationError("js", expression, ctx.label(), err)
		}
		return value.Export(), nil
	}}, nil
}
