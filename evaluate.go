package opts

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoEvaluator = errors.New("opts: evaluator not configured")

// checkRules evaluates the backend's keyword rules against every expanded
// value they apply to.
func (e *Engine) checkRules(backend string, expanded Expanded) error {
	rules := e.registry.Rules(backend)
	if len(rules) == 0 {
		return nil
	}
	for _, key := range expanded.Keys() {
		typ := typeOf(key)
		for _, group := range sortedGroups {
			keywords := expanded[key][group]
			for _, keyword := range keywords.Names() {
				for _, rule := range rules {
					if !rule.appliesTo(typ, keyword) {
						continue
					}
					if err := e.evaluateRule(backend, typ, rule, keywords[keyword]); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (e *Engine) evaluateRule(backend, typ string, rule KeywordRule, value any) error {
	evaluator, err := e.resolveEvaluator()
	if err != nil {
		return err
	}
	ctx := RuleContext{
		Value:   value,
		Keyword: rule.Keyword,
		Element: typ,
		Backend: backend,
	}.withDefaults()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	result, err := evaluator.Evaluate(ctx, rule.Expr)
	event := EvaluatorLogEvent{
		Engine:  engine,
		Expr:    rule.Expr,
		Rule:    ctx.label(),
		Backend: backend,
		Outcome: RuleAccepted,
	}
	if err == nil {
		accepted, ok := result.(bool)
		switch {
		case !ok:
			err = fmt.Errorf("rule must evaluate to a boolean, got %T", result)
		case !accepted:
			event.Outcome = RuleRejected
		}
	}
	event.Duration = time.Since(start)
	if err != nil {
		event.Outcome = RuleFailed
		event.Err = wrapEvaluationError(engine, rule.Expr, ctx.label(), err)
	}
	e.evaluatorLogger().LogEvaluation(event)

	switch event.Outcome {
	case RuleFailed:
		return event.Err
	case RuleRejected:
		return &InvalidValueError{
			Keyword: rule.Keyword,
			Type:    typ,
			Backend: backend,
			Rule:    rule.Expr,
			Value:   value,
		}
	}
	return nil
}

// resolveEvaluator returns the configured evaluator, building the default
// expr evaluator on first use.
func (e *Engine) resolveEvaluator() (Evaluator, error) {
	e.evaluatorOnce.Do(func() {
		if e.cfg.evaluator != nil {
			e.evaluator = e.cfg.evaluator
			return
		}
		e.evaluator = NewExprEvaluator(RuleProgramCache(e.cfg.programCache), RuleFunctions(e.cfg.functions))
	})
	if e.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	return e.evaluator, nil
}

// NewEvaluatorByName builds one of the bundled evaluators ("expr", "cel" or
// "js") sharing cache and registry.
func NewEvaluatorByName(name string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	options := []RuleEvaluatorOption{RuleProgramCache(cache), RuleFunctions(registry)}
	switch name {
	case "", "expr":
		return NewExprEvaluator(options...), nil
	case "cel":
		return NewCELEvaluator(options...), nil
	case "js", "javascript", "goja":
		evaluator := NewJSEvaluator(options...)
		if evaluator == nil {
			return nil, fmt.Errorf("%w: js evaluator requires the js_eval build tag", ErrNoEvaluator)
		}
		return evaluator, nil
	default:
		return nil, &ConfigurationError{Key: "rules.engine", Reason: fmt.Sprintf("unknown evaluator %q", name)}
	}
}

func evaluatorEngineName(e Evaluator) string {
	if named, ok := e.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "custom"
}
