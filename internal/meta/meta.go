// Package meta describes annotated types as supplied by a scanner.
package meta

import (
	"go/token"
	"go/types"

	"github.com/alecthomas/ioc/internal/directiveparser"
	"github.com/alecthomas/ioc/internal/qualifier"
)

// Type is an annotated type declaration.
type Type struct {
	Position token.Position
	// Named is the declared type.
	Named *types.Named
	// Type is the type injected for this declaration, *T for structs and T otherwise.
	Type        types.Type
	Directives  []directiveparser.Directive
	Constructor *Func
	Fields      []*Field
	Setters     []*Func
}

// Directive returns the first directive of type D, if any.
func Directive[D directiveparser.Directive](directives []directiveparser.Directive) (D, bool) {
	for _, directive := range directives {
		if d, ok := directive.(D); ok {
			return d, true
		}
	}
	var zero D
	return zero, false
}

// Bean returns the bean directive for the type, if any.
func (t *Type) Bean() (*directiveparser.DirectiveBean, bool) {
	return Directive[*directiveparser.DirectiveBean](t.Directives)
}

// Qualifiers declared on the type.
func (t *Type) Qualifiers() []qualifier.Qualifier {
	if bean, ok := t.Bean(); ok {
		return qualifier.FromStrings(bean.Qualifiers)
	}
	return nil
}

func (t *Type) String() string { return types.TypeString(t.Type, nil) }

// Func is a constructor, provider or setter.
type Func struct {
	Position  token.Position
	Func      *types.Func
	Directive directiveparser.Directive
	Params    []*Param
	// Returns is the first result, nil for setters.
	Returns types.Type
	// ReturnsError is true if the function returns (T, error), or error for setters.
	ReturnsError bool
}

// Provider returns the provider directive of the function, if any.
func (f *Func) Provider() (*directiveparser.DirectiveProvider, bool) {
	d, ok := f.Directive.(*directiveparser.DirectiveProvider)
	return d, ok
}

func (f *Func) String() string { return f.Func.FullName() }

// Param is a function parameter injection point.
type Param struct {
	Name       string
	Type       types.Type
	Qualifiers []qualifier.Qualifier
}

// Field is a struct field injection point.
type Field struct {
	Position   token.Position
	Name       string
	Type       types.Type
	Qualifiers []qualifier.Qualifier
}

// Universe is everything discovered by a scan.
type Universe struct {
	// Dest is the package generated code is written to.
	Dest      *types.Package
	Types     []*Type
	Providers []*Func
}
