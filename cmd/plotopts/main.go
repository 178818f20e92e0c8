// Command plotopts validates plot option documents against configured
// backends and inspects backend option tables.
//
//	plotopts [--config file] [--backend name] validate doc.json
//	plotopts [--config file] schema [--openapi] name
//	plotopts [--config file] [--backend name] suggest Type keyword
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/pflag"

	opts "github.com/goliatone/go-plotopts"
	"github.com/goliatone/go-plotopts/internal/hydrate"
	"github.com/goliatone/go-plotopts/pkg/config"
	"github.com/goliatone/go-plotopts/schema/openapi"
)

const (
	exitOK      = 0
	exitInvalid = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	cfg    config.Config
	logger *slog.Logger
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("plotopts", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.StringP("config", "c", "", "configuration file")
	backend := flags.StringP("backend", "b", "", "backend used for unrouted options")
	flags.SetInterspersed(false)
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	rest := flags.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, "usage: plotopts [flags] validate|schema|suggest ...")
		flags.PrintDefaults()
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, cfg: cfg, logger: cfg.Logger(stderr)}

	switch rest[0] {
	case "validate":
		return a.validate(ctx, rest[1:])
	case "schema":
		return a.schema(ctx, rest[1:])
	case "suggest":
		return a.suggest(ctx, rest[1:])
	default:
		fmt.Fprintf(stderr, "plotopts: unknown command %q\n", rest[0])
		return exitUsage
	}
}

func (a *app) engine(ctx context.Context, options ...opts.Option) (*opts.Engine, error) {
	return config.NewEngine(ctx, a.cfg, append([]opts.Option{opts.WithLogger(a.logger)}, options...)...)
}

// document is the JSON input of validate.
type document struct {
	Backend string                `json:"backend"`
	Text    string                `json:"text"`
	Options opts.RawSpecification `json:"options"`
}

func (a *app) validate(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(a.stderr, "usage: plotopts validate <file.json|->")
		return exitUsage
	}
	doc, err := a.readDocument(args[0])
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return exitUsage
	}
	engine, err := a.engine(ctx)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return exitUsage
	}
	result, err := engine.Opts(ctx, opts.Request{Text: doc.Text, Spec: doc.Options, Backend: doc.Backend})
	if err != nil {
		return a.report(err)
	}
	return a.writeJSON(descriptorsJSON(result.Descriptors))
}

func (a *app) readDocument(name string) (document, error) {
	decoder := hydrate.NewDecoder(
		hydrate.WithStrict[document](),
		hydrate.WithDecodeHook[document](hydrate.TrimSpace()),
		hydrate.WithValidator(func(_ hydrate.Context, doc *document) error {
			if doc.Text == "" && len(doc.Options) == 0 {
				return errors.New("document has neither text nor options")
			}
			return nil
		}),
	)
	ctx := hydrate.Context{Source: name}
	if name == "-" {
		ctx.Source = "stdin"
		return decoder.DecodeReader(ctx, a.stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return document{}, fmt.Errorf("read %s: %w", name, err)
	}
	defer f.Close()
	return decoder.DecodeReader(ctx, f)
}

func (a *app) schema(ctx context.Context, args []string) int {
	flags := pflag.NewFlagSet("schema", pflag.ContinueOnError)
	flags.SetOutput(a.stderr)
	asOpenAPI := flags.Bool("openapi", false, "emit an OpenAPI document")
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	backend := a.cfg.Backend
	if flags.NArg() > 0 {
		backend = flags.Arg(0)
	}

	var options []opts.Option
	if *asOpenAPI {
		options = append(options, openapi.Option(openapi.WithConfig(a.cfg.Schema.OpenAPI)))
	}
	engine, err := a.engine(ctx, options...)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return exitUsage
	}
	doc, err := engine.Schema(backend)
	if err != nil {
		return a.report(err)
	}
	return a.writeJSON(doc.Document)
}

func (a *app) suggest(ctx context.Context, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(a.stderr, "usage: plotopts suggest <Type> <keyword>")
		return exitUsage
	}
	engine, err := a.engine(ctx)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return exitUsage
	}
	backend := engine.Registry().Current()
	table, ok := engine.Registry().TypeTable(backend, args[0])
	if !ok {
		return a.report(&opts.UnknownTypeError{Type: args[0], Backend: backend})
	}
	matcher, err := a.cfg.Matcher()
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return exitUsage
	}
	keyword := args[1]
	if table.Accepts(keyword) {
		group, _ := table.GroupOf(keyword)
		fmt.Fprintf(a.stdout, "%s is a %s option of %s on %s\n", keyword, group, args[0], backend)
		return exitOK
	}
	suggestions := matcher.Suggestions(keyword, table.Keywords())
	for _, s := range suggestions {
		fmt.Fprintln(a.stdout, s)
	}
	if len(suggestions) == 0 {
		return exitInvalid
	}
	return exitOK
}

func (a *app) report(err error) int {
	fmt.Fprintln(a.stderr, err)
	var invalid *opts.InvalidOptionError
	if errors.As(err, &invalid) && len(invalid.Valid) > 0 {
		valid := slices.Clone(invalid.Valid)
		slices.Sort(valid)
		fmt.Fprintf(a.stderr, "valid options: %v\n", valid)
	}
	return exitInvalid
}

func (a *app) writeJSON(value any) int {
	encoder := json.NewEncoder(a.stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		fmt.Fprintln(a.stderr, err)
		return exitInvalid
	}
	return exitOK
}

type descriptorOutput struct {
	Key     string                    `json:"key"`
	Backend string                    `json:"backend"`
	Options map[string]map[string]any `json:"options"`
}

func descriptorsJSON(descriptors []opts.Descriptor) []descriptorOutput {
	out := make([]descriptorOutput, 0, len(descriptors))
	for _, descriptor := range descriptors {
		options := map[string]map[string]any{}
		for group, keywords := range descriptor.Options {
			if len(keywords) > 0 {
				options[string(group)] = keywords
			}
		}
		out = append(out, descriptorOutput{Key: descriptor.Key, Backend: descriptor.Backend, Options: options})
	}
	return out
}
