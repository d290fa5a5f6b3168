// Package strategy selects and emits how each injectable is constructed.
package strategy

import (
	"fmt"
	"go/types"
	"strings"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/ioc/internal/codewriter"
	"github.com/alecthomas/ioc/internal/graph"
	"github.com/alecthomas/ioc/internal/meta"
)

// A Resolver supplies the expression for an injection site, emitting any statements
// required to compute it into w first.
type Resolver interface {
	Arg(w *codewriter.Writer, site *graph.Site) (string, error)
}

// Result of emitting construction statements.
type Result struct {
	// Constructed is true once statements assigning the new instance have been emitted.
	Constructed bool
	// Value is the variable holding the new instance.
	Value string
}

// Strategy emits the statements producing an instance of a single injectable.
//
// Generated statements run inside a creational callback with named results "out" and
// "err", and with the creational context in scope as "cctx".
type Strategy interface {
	// Name of the strategy, for diagnostics.
	Name() string
	// Construct declares value and assigns it a new instance.
	Construct(w *codewriter.Writer, value string, resolver Resolver) (Result, error)
	// Inject performs post-construction wiring of value.
	Inject(w *codewriter.Writer, value string, resolver Resolver) error
}

// NoViableStrategyError is returned when an injectable can not be constructed.
type NoViableStrategyError struct {
	Injectable *graph.Injectable
	Reason     string
}

func (e *NoViableStrategyError) Error() string {
	pos := ""
	if e.Injectable.Position.IsValid() {
		pos = e.Injectable.Position.String() + ": "
	}
	return fmt.Sprintf("%sno viable construction strategy for %s: %s", pos, e.Injectable, e.Reason)
}

// Selector chooses exactly one strategy per injectable.
type Selector struct {
	chosen map[*graph.Injectable]Strategy
}

// NewSelector creates a Selector.
func NewSelector() *Selector {
	return &Selector{chosen: map[*graph.Injectable]Strategy{}}
}

// Select the strategy for an injectable. The choice is memoised.
func (s *Selector) Select(inj *graph.Injectable) (Strategy, error) {
	if strategy, ok := s.chosen[inj]; ok {
		return strategy, nil
	}
	strategy, err := selectStrategy(inj)
	if err != nil {
		return nil, err
	}
	s.chosen[inj] = strategy
	return strategy, nil
}

func selectStrategy(inj *graph.Injectable) (Strategy, error) {
	switch inj.Kind {
	case graph.KindType:
		if inj.Bean == nil {
			return nil, &NoViableStrategyError{Injectable: inj, Reason: "missing type declaration"}
		}
		if inj.Bean.Constructor != nil {
			return &Constructor{inj: inj, fn: inj.Bean.Constructor}, nil
		}
		if elem, ok := pointerToStruct(inj.Type); ok {
			return &Constructor{inj: inj, literal: elem}, nil
		}
		return nil, &NoViableStrategyError{Injectable: inj, Reason: "no //ioc:constructor and not a struct"}

	case graph.KindProducer:
		if inj.Producer == nil {
			return nil, &NoViableStrategyError{Injectable: inj, Reason: "missing provider function"}
		}
		return &Factory{inj: inj}, nil

	case graph.KindExtensionProvided:
		if inj.Body == nil {
			return nil, &NoViableStrategyError{Injectable: inj, Reason: "extension did not supply a body generator"}
		}
		return &Extension{inj: inj}, nil
	}
	return nil, &NoViableStrategyError{Injectable: inj, Reason: fmt.Sprintf("unsupported kind %s", inj.Kind)}
}

// Constructor invokes a designated constructor, or allocates a zero value struct.
//
// Fields and setters are injected after construction.
type Constructor struct {
	inj     *graph.Injectable
	fn      *meta.Func
	literal types.Type
}

var _ Strategy = (*Constructor)(nil)

func (c *Constructor) Name() string {
	if c.fn != nil {
		return "constructor " + c.fn.Func.Name()
	}
	return "composite literal"
}

func (c *Constructor) Construct(w *codewriter.Writer, value string, resolver Resolver) (Result, error) {
	if c.fn == nil {
		w.L("%s := &%s{}", value, w.Type(c.literal))
		return Result{Constructed: true, Value: value}, nil
	}
	if err := call(w, value, c.fn, sitesOf(c.inj, graph.SiteConstructorParam), resolver); err != nil {
		return Result{}, err
	}
	return Result{Constructed: true, Value: value}, nil
}

func (c *Constructor) Inject(w *codewriter.Writer, value string, resolver Resolver) error {
	for _, site := range sitesOf(c.inj, graph.SiteField) {
		arg, err := resolver.Arg(w, site)
		if err != nil {
			return err
		}
		w.L("%s.%s = %s", value, site.Name, arg)
	}
	for _, setter := range c.inj.Bean.Setters {
		var args []string
		for _, site := range c.inj.Sites {
			if site.Setter != setter {
				continue
			}
			arg, err := resolver.Arg(w, site)
			if err != nil {
				return err
			}
			args = append(args, arg)
		}
		invocation := fmt.Sprintf("%s.%s(%s)", value, setter.Func.Name(), strings.Join(args, ", "))
		if !setter.ReturnsError {
			w.L("%s", invocation)
			continue
		}
		w.L("if err := %s; err != nil {", invocation)
		w.In(func(w *codewriter.Writer) {
			w.Import("fmt")
			w.L(`return out, fmt.Errorf("%s: %%w", err)`, setter.Func.Name())
		})
		w.L("}")
	}
	return nil
}

// Factory delegates construction to a provider function.
type Factory struct {
	inj *graph.Injectable
}

var _ Strategy = (*Factory)(nil)

func (f *Factory) Name() string { return "provider " + f.inj.Producer.Func.Name() }

func (f *Factory) Construct(w *codewriter.Writer, value string, resolver Resolver) (Result, error) {
	if err := call(w, value, f.inj.Producer, sitesOf(f.inj, graph.SiteProducerParam), resolver); err != nil {
		return Result{}, err
	}
	return Result{Constructed: true, Value: value}, nil
}

func (f *Factory) Inject(*codewriter.Writer, string, Resolver) error { return nil }

// Extension delegates construction to the injectable's body generator.
type Extension struct {
	inj *graph.Injectable
}

var _ Strategy = (*Extension)(nil)

func (e *Extension) Name() string { return "extension" }

func (e *Extension) Construct(w *codewriter.Writer, value string, _ Resolver) (Result, error) {
	w.L("var %s %s", value, w.Type(e.inj.Type))
	if err := e.inj.Body.CreateInstance(w, e.inj, value); err != nil {
		return Result{}, errors.Errorf("%s: %w", e.inj, err)
	}
	w.L("if err != nil {")
	w.In(func(w *codewriter.Writer) {
		w.L("return out, err")
	})
	w.L("}")
	return Result{Constructed: true, Value: value}, nil
}

func (e *Extension) Inject(*codewriter.Writer, string, Resolver) error { return nil }

// call emits an invocation of fn with the resolved sites as arguments, assigning the
// result to a new variable named value.
func call(w *codewriter.Writer, value string, fn *meta.Func, sites []*graph.Site, resolver Resolver) error {
	args := make([]string, len(sites))
	for i, site := range sites {
		arg, err := resolver.Arg(w, site)
		if err != nil {
			return err
		}
		args[i] = arg
	}
	invocation := fmt.Sprintf("%s(%s)", w.Func(fn.Func), strings.Join(args, ", "))
	if !fn.ReturnsError {
		w.L("%s := %s", value, invocation)
		return nil
	}
	w.L("%s, err := %s", value, invocation)
	w.L("if err != nil {")
	w.In(func(w *codewriter.Writer) {
		w.Import("fmt")
		w.L(`return out, fmt.Errorf("%s: %%w", err)`, fn.Func.Name())
	})
	w.L("}")
	return nil
}

func sitesOf(inj *graph.Injectable, kind graph.SiteKind) []*graph.Site {
	var out []*graph.Site
	for _, site := range inj.Sites {
		if site.Kind == kind {
			out = append(out, site)
		}
	}
	return out
}

func pointerToStruct(t types.Type) (types.Type, bool) {
	ptr, ok := t.(*types.Pointer)
	if !ok {
		return nil, false
	}
	if _, ok := ptr.Elem().Underlying().(*types.Struct); !ok {
		return nil, false
	}
	return ptr.Elem(), true
}
