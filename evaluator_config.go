package opts

import "fmt"

// RuleEvaluatorOption configures the bundled rule evaluators.
type RuleEvaluatorOption func(*ruleEvaluatorConfig)

type ruleEvaluatorConfig struct {
	cache     ProgramCache
	functions *FunctionRegistry
}

// RuleProgramCache shares compiled programs through cache. Entries are keyed
// by engine and expression, so one cache can back several evaluators.
func RuleProgramCache(cache ProgramCache) RuleEvaluatorOption {
	return func(cfg *ruleEvaluatorConfig) {
		cfg.cache = cache
	}
}

// RuleFunctions binds registry on top of the built-in helpers.
func RuleFunctions(registry *FunctionRegistry) RuleEvaluatorOption {
	return func(cfg *ruleEvaluatorConfig) {
		if registry != nil {
			cfg.functions = cfg.functions.Overlay(registry)
		}
	}
}

func newRuleEvaluatorConfig(opts []RuleEvaluatorOption) ruleEvaluatorConfig {
	cfg := ruleEvaluatorConfig{functions: BuiltinFunctions()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// callFunction backs the generic call(name, args...) binding.
func (cfg ruleEvaluatorConfig) callFunction(name string, args ...any) (any, error) {
	return cfg.functions.Call(name, args...)
}

// bindings returns one callable per registered function.
func (cfg ruleEvaluatorConfig) bindings() map[string]func(...any) (any, error) {
	out := map[string]func(...any) (any, error){}
	for _, name := range cfg.functions.Names() {
		out[name] = func(args ...any) (any, error) {
			return cfg.functions.Call(name, args...)
		}
	}
	return out
}

// loadProgram returns the program cached for engine and expression,
// compiling and storing it on a miss.
func loadProgram[P any](cfg ruleEvaluatorConfig, engine, expression string, compile func(string) (P, error)) (P, error) {
	key := engine + ":" + expression
	if cfg.cache != nil {
		if cached, ok := cfg.cache.Get(key); ok {
			if program, ok := cached.(P); ok {
				return program, nil
			}
		}
	}
	program, err := compile(expression)
	if err != nil {
		var zero P
		return zero, err
	}
	if cfg.cache != nil {
		cfg.cache.Set(key, program)
	}
	return program, nil
}

func checkExpression(engine, expression string) error {
	if expression == "" {
		return &EvaluationError{Engine: engine, Err: fmt.Errorf("expression must not be empty")}
	}
	return nil
}

// compiledRule adapts an evaluator specific run function to CompiledRule.
type compiledRule struct {
	run func(RuleContext) (any, error)
}

func (r compiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.run(ctx.withDefaults())
}
