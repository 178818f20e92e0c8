package opts

import (
	"reflect"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celEvaluator runs rules with cel-go. Registered functions are reachable
// through call("name", [args]).
type celEvaluator struct {
	cfg ruleEvaluatorConfig
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...RuleEvaluatorOption) Evaluator {
	return &celEvaluator{cfg: newRuleEvaluatorConfig(opts)}
}

func (e *celEvaluator) Name() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.label(), err)
	}
	return rule.Evaluate(ctx)
}

func (e *celEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if err := checkExpression("cel", expression); err != nil {
		return nil, err
	}
	program, err := loadProgram(e.cfg, "cel", expression, e.compile)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, "", err)
	}
	return compiledRule{run: func(ctx RuleContext) (any, error) {
		out, _, err := program.Eval(ctx.bindings())
		if err != nil {
			return nil, wrapEvaluationError("cel", expression, ctx.label(), err)
		}
		return out.Value(), nil
	}}, nil
}

func (e *celEvaluator) compile(expression string) (celgo.Program, error) {
	env, err := celgo.NewEnv(
		celgo.Variable("value", celgo.DynType),
		celgo.Variable("keyword", celgo.StringType),
		celgo.Variable("element", celgo.StringType),
		celgo.Variable("backend", celgo.StringType),
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
		celgo.Function("call",
			celgo.Overload("call_string",
				[]*celgo.Type{celgo.StringType},
				celgo.DynType,
				celgo.UnaryBinding(func(name ref.Val) ref.Val {
					return e.invoke(name, nil)
				}),
			),
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.invoke),
			),
		),
	)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return env.Program(ast)
}

var anySliceType = reflect.TypeOf([]any{})

func (e *celEvaluator) invoke(nameVal, argsVal ref.Val) ref.Val {
	name, ok := nameVal.Value().(string)
	if !ok {
		return types.NewErr("opts: call name must be string")
	}
	var args []any
	if argsVal != nil {
		native, err := argsVal.ConvertToNative(anySliceType)
		if err != nil {
			return types.NewErr("opts: call arguments: %v", err)
		}
		args, _ = native.([]any)
	}
	result, err := e.cfg.callFunction(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
