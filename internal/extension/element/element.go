// Package element binds types annotated with //ioc:element to elements created by the
// host document.
//
//	//ioc:element button
//	//ioc:native
//	type Button struct { js.Value }
//
// Each injection of *Button creates a new "button" element via [ioc.CreateElement].
package element

import (
	"strconv"

	"github.com/alecthomas/ioc/internal/codewriter"
	"github.com/alecthomas/ioc/internal/directiveparser"
	"github.com/alecthomas/ioc/internal/graph"
	"github.com/alecthomas/ioc/internal/injector"
	"github.com/alecthomas/ioc/internal/meta"
)

// Extension registers an exact-type provider for every element type.
type Extension struct{}

// New creates the element extension.
func New() *Extension { return &Extension{} }

func (e *Extension) Configure(*graph.Registry) error { return nil }

func (e *Extension) AfterInitialization(registry *graph.Registry) error {
	registry.RegisterExtensionTypeCallback(e.visit)
	return nil
}

func (e *Extension) visit(registry *graph.Registry, t *meta.Type) error {
	element, ok := meta.Directive[*directiveparser.DirectiveElement](t.Directives)
	if !ok {
		return nil
	}
	if _, ok := meta.Directive[*directiveparser.DirectiveNative](t.Directives); !ok {
		return &graph.ExtensionError{
			Position: t.Position,
			Type:     t.String(),
			Contract: "//ioc:element is only valid on types also marked //ioc:native",
		}
	}
	if _, ok := t.Bean(); ok {
		return &graph.ExtensionError{
			Position: t.Position,
			Type:     t.String(),
			Contract: "element types are created by the document and can not also be an //ioc:bean",
		}
	}
	handle := graph.Handle{Type: t.Type, Qualifier: registry.QualifierFactory().CreateDefault()}
	registry.RegisterExactTypeInjectableProvider(handle, &provider{handle: handle, decl: t, tag: element.Tag})
	registry.Logger().Debug("Registered element provider", "type", t, "tag", element.Tag)
	return nil
}

type provider struct {
	handle     graph.Handle
	decl       *meta.Type
	tag        string
	injectable *graph.Injectable
}

func (p *provider) Injectable(_ *graph.Site, names graph.NameGenerator) (*graph.Injectable, error) {
	if p.injectable == nil {
		p.injectable = &graph.Injectable{
			Handle:   p.handle,
			Kind:     graph.KindExtensionProvided,
			Wiring:   graph.DependentBean,
			Position: p.decl.Position,
			Name:     names.GenerateFor(p.handle.Type, p.handle.Qualifier, graph.KindExtensionProvided),
			Body:     body(p.tag),
		}
	}
	return p.injectable, nil
}

// body creates an element with the given tag.
type body string

func (b body) CreateInstance(w *codewriter.Writer, inj *graph.Injectable, value string) error {
	rt := w.Import(injector.RuntimePackage)
	if rt != "" {
		rt += "."
	}
	w.L("%s, err = %sCreateElement[%s](cctx, %s)", value, rt, w.Type(inj.Type), strconv.Quote(string(b)))
	return nil
}
