// Package hydrate decodes JSON plot documents into typed structs.
package hydrate

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goliatone/go-plotopts/layering"
)

// Context names the document being decoded.
type Context struct {
	Source string
}

// Stage is the decoding step that failed.
type Stage string

const (
	StageRead      Stage = "read"
	StageParse     Stage = "parse"
	StageNormalize Stage = "normalize"
	StageDecode    Stage = "decode"
	StageValidate  Stage = "validate"
)

// Error reports a failure at one stage of decoding Source.
type Error struct {
	Source string
	Stage  Stage
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hydrate: %s %s: %v", e.Stage, e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Normalizer rewrites the raw payload before it is decoded. It receives a
// copy and may return it modified.
type Normalizer func(Context, map[string]any) (map[string]any, error)

// Validator checks the decoded value.
type Validator[T any] func(Context, *T) error

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder turns JSON objects into T, matching keys against json struct tags.
type Decoder[T any] struct {
	normalizers []Normalizer
	validators  []Validator[T]
	hooks       []mapstructure.DecodeHookFunc
	strict      bool
	weak        bool
}

// WithNormalizer runs fn on the payload before decoding.
func WithNormalizer[T any](fn Normalizer) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if fn != nil {
			d.normalizers = append(d.normalizers, fn)
		}
	}
}

// WithValidator runs fn on the decoded value.
func WithValidator[T any](fn Validator[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if fn != nil {
			d.validators = append(d.validators, fn)
		}
	}
}

// WithStrict rejects payload keys without a matching field.
func WithStrict[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

// WithWeaklyTypedInput converts between scalar kinds, such as "400" into an
// int field.
func WithWeaklyTypedInput[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.weak = true
	}
}

// WithDecodeHook adds a mapstructure decode hook.
func WithDecodeHook[T any](hook mapstructure.DecodeHookFunc) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.hooks = append(d.hooks, hook)
		}
	}
}

// TrimSpace is a decode hook trimming values bound to string fields.
func TrimSpace() mapstructure.DecodeHookFunc {
	return mapstructure.DecodeHookFuncKind(func(from, to reflect.Kind, data any) (any, error) {
		if from == reflect.String && to == reflect.String {
			return strings.TrimSpace(data.(string)), nil
		}
		return data, nil
	})
}

func NewDecoder[T any](options ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, option := range options {
		if option != nil {
			option(d)
		}
	}
	return d
}

// DecodeReader reads a JSON object from r.
func (d *Decoder[T]) DecodeReader(ctx Context, r io.Reader) (T, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		var zero T
		return zero, &Error{Source: ctx.Source, Stage: StageRead, Err: err}
	}
	return d.DecodeJSON(ctx, raw)
}

// DecodeJSON parses raw as a JSON object and decodes it.
func (d *Decoder[T]) DecodeJSON(ctx Context, raw []byte) (T, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		var zero T
		return zero, &Error{Source: ctx.Source, Stage: StageParse, Err: err}
	}
	return d.Decode(ctx, payload)
}

// Decode converts payload into T. The payload is left untouched.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var out T
	fail := func(stage Stage, err error) (T, error) {
		var zero T
		return zero, &Error{Source: ctx.Source, Stage: stage, Err: err}
	}
	if payload == nil {
		return fail(StageParse, fmt.Errorf("document is empty"))
	}

	current := layering.Clone(payload)
	for _, normalize := range d.normalizers {
		next, err := normalize(ctx, current)
		if err != nil {
			return fail(StageNormalize, err)
		}
		if next != nil {
			current = next
		}
	}

	config := &mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		ErrorUnused:      d.strict,
		WeaklyTypedInput: d.weak,
	}
	if len(d.hooks) > 0 {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(d.hooks...)
	}
	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return fail(StageDecode, err)
	}
	if err := decoder.Decode(current); err != nil {
		return fail(StageDecode, err)
	}

	for _, validate := range d.validators {
		if err := validate(ctx, &out); err != nil {
			return fail(StageValidate, err)
		}
	}
	return out, nil
}
