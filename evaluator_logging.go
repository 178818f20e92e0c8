package opts

import (
	"context"
	"log/slog"
	"time"
)

// RuleOutcome classifies one keyword rule evaluation.
type RuleOutcome string

const (
	RuleAccepted RuleOutcome = "accepted"
	RuleRejected RuleOutcome = "rejected"
	RuleFailed   RuleOutcome = "failed"
)

// EvaluatorLogEvent describes a rule evaluation.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Rule     string
	Backend  string
	Outcome  RuleOutcome
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

type slogEvaluatorLogger struct {
	logger *slog.Logger
}

// SlogEvaluatorLogger writes accepted evaluations at debug level, rejected
// values at info and failures at warn.
func SlogEvaluatorLogger(logger *slog.Logger) EvaluatorLogger {
	if logger == nil {
		return noopEvaluatorLogger{}
	}
	return slogEvaluatorLogger{logger: logger}
}

func (l slogEvaluatorLogger) LogEvaluation(event EvaluatorLogEvent) {
	level := slog.LevelDebug
	switch event.Outcome {
	case RuleRejected:
		level = slog.LevelInfo
	case RuleFailed:
		level = slog.LevelWarn
	}
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	attrs := []slog.Attr{
		slog.String("engine", event.Engine),
		slog.String("rule", event.Rule),
		slog.String("backend", event.Backend),
		slog.String("expr", event.Expr),
		slog.String("outcome", string(event.Outcome)),
		slog.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	l.logger.LogAttrs(ctx, level, "opts: rule evaluated", attrs...)
}

// WithEvaluatorLogger replaces the engine's evaluation logger. Nil silences
// evaluation logging.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *engineConfig) {
		if logger == nil {
			logger = noopEvaluatorLogger{}
		}
		cfg.evaluatorLogger = logger
	}
}
