// Package generator generates the bootstrap code for a set of annotated beans.
package generator

import (
	"io"
	"log/slog"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/ioc/internal/codewriter"
	"github.com/alecthomas/ioc/internal/extension"
	"github.com/alecthomas/ioc/internal/extension/element"
	"github.com/alecthomas/ioc/internal/graph"
	"github.com/alecthomas/ioc/internal/injector"
	"github.com/alecthomas/ioc/internal/meta"
)

type generatorOptions struct {
	logger       *slog.Logger
	tags         []string
	picks        []string
	roots        []string
	alternatives []string
	mocks        bool
	extensions   []extension.Configurator
}

type Option func(*generatorOptions) error

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *generatorOptions) error {
		if logger == nil {
			return errors.Errorf("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTags adds a build constraint to the generated file.
func WithTags(tags ...string) Option {
	return func(o *generatorOptions) error {
		o.tags = append(o.tags, tags...)
		return nil
	}
}

// WithPicks selects between ambiguous injectables.
//
// Each pick is either a provider function reference or a type reference.
func WithPicks(picks ...string) Option {
	return func(o *generatorOptions) error {
		o.picks = append(o.picks, picks...)
		return nil
	}
}

// WithRoots restricts generation to the given injectables and their transitive dependencies.
func WithRoots(roots ...string) Option {
	return func(o *generatorOptions) error {
		o.roots = append(o.roots, roots...)
		return nil
	}
}

// WithAlternatives enables alternative beans.
func WithAlternatives(refs ...string) Option {
	return func(o *generatorOptions) error {
		o.alternatives = append(o.alternatives, refs...)
		return nil
	}
}

// WithTestMocks enables beans marked as mocks.
func WithTestMocks(enable bool) Option {
	return func(o *generatorOptions) error {
		o.mocks = enable
		return nil
	}
}

// WithExtensions replaces the default set of extensions.
func WithExtensions(extensions ...extension.Configurator) Option {
	return func(o *generatorOptions) error {
		o.extensions = extensions
		return nil
	}
}

func newOptions(options []Option) (*generatorOptions, error) {
	opts := &generatorOptions{
		logger:     slog.New(slog.DiscardHandler),
		extensions: []extension.Configurator{element.New()},
	}
	for _, opt := range options {
		if err := opt(opts); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return opts, nil
}

// Analyse registers everything in universe and builds the dependency graph.
func Analyse(universe *meta.Universe, options ...Option) (*graph.Registry, *graph.Graph, error) {
	opts, err := newOptions(options)
	if err != nil {
		return nil, nil, err
	}
	return analyse(universe, opts)
}

func analyse(universe *meta.Universe, opts *generatorOptions) (*graph.Registry, *graph.Graph, error) {
	registry := graph.NewRegistry(
		graph.WithLogger(opts.logger),
		graph.WithPicks(opts.picks...),
		graph.WithAlternatives(opts.alternatives...),
		graph.WithTestMocks(opts.mocks),
	)
	if err := extension.Configure(registry, opts.extensions...); err != nil {
		return nil, nil, err
	}

	var errs []error
	for _, t := range universe.Types {
		if _, err := registry.RegisterType(t); err != nil {
			errs = append(errs, err)
		}
	}
	for _, fn := range universe.Providers {
		if _, err := registry.RegisterProducer(fn); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}

	if err := extension.Initialise(registry, universe.Types, opts.extensions...); err != nil {
		return nil, nil, err
	}

	g, err := registry.Build(opts.roots...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to build dependency graph")
	}
	return registry, g, nil
}

// Generate the bootstrap function for universe.
//
// Nothing is written to out unless generation succeeds.
func Generate(out io.Writer, universe *meta.Universe, options ...Option) error {
	opts, err := newOptions(options)
	if err != nil {
		return err
	}
	if universe.Dest == nil {
		return errors.Errorf("no destination package")
	}
	registry, g, err := analyse(universe, opts)
	if err != nil {
		return err
	}

	w := codewriter.New(universe.Dest.Path(), universe.Dest.Name())
	body := w.Block()
	ctx := injector.NewContext(registry, g, body)
	if err := ctx.InjectAll(); err != nil {
		return errors.Wrap(err, "failed to generate bootstrap")
	}
	ctx.Finish()

	rt := w.Import(injector.RuntimePackage)
	w.Import("context")
	w.L("// IOCBootstrap creates every singleton bean and returns a bean manager for looking up beans.")
	w.L("func IOCBootstrap(ctx context.Context, options ...%s.Option) (*%s.BeanManager, error) {", rt, rt)
	w.In(func(w *codewriter.Writer) {
		w.L("cctx := %s.NewCreationalContext(ctx, options...)", rt)
		w.Append(body)
		w.L("return cctx.BeanManager(), nil")
	})
	w.L("}")

	source, err := w.Bytes(codewriter.WithTags(opts.tags...))
	if err != nil {
		return err
	}
	if _, err := out.Write(source); err != nil {
		return errors.Wrap(err, "failed to write generated code")
	}
	opts.logger.Debug("Generated bootstrap", "package", universe.Dest.Path(), "beans", len(g.Order()))
	return nil
}
