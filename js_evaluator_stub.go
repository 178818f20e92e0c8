//go:build !js_eval

package opts

// NewJSEvaluator returns nil: goja rules need the js_eval build tag.
func NewJSEvaluator(...RuleEvaluatorOption) Evaluator {
	return nil
}
