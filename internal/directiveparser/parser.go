// Package directiveparser implements a parser for the //ioc: compiler directives.
package directiveparser

import (
	"slices"
	"strings"

	"github.com/alecthomas/errors"
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	annotationParser = participle.MustBuild[annotation](
		participle.Lexer(directiveLexer),
		participle.Union[Directive](
			&DirectiveBean{},
			&DirectiveProvider{},
			&DirectiveConstructor{},
			&DirectiveParam{},
			&DirectiveInject{},
			&DirectiveElement{},
			&DirectiveNative{},
		),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
	)
	directiveLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "String", Pattern: `"(\\.|[^"])*"`},
		{Name: "Punct", Pattern: `[-:=,]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})
)

// Scope names accepted by bean and provider directives.
const (
	ScopeSingleton = "singleton"
	ScopeDependent = "dependent"
)

// reservedQualifier can only be expressed with the "new" keyword.
const reservedQualifier = "New"

type annotation struct {
	Directive Directive `parser:"'ioc' ':' @@"`
}

// Directive is a single parsed //ioc: comment.
type Directive interface {
	directive()
	// Validate the directive.
	Validate() error
	String() string
}

// DirectiveBean marks a type as an injectable bean.
//
//	//ioc:bean [singleton|dependent] [alternative] [mock] [qualifier=<name>,...]
type DirectiveBean struct {
	Scope       string   `parser:"'bean' (  @('singleton' | 'dependent')"`
	Alternative bool     `parser:"        | @'alternative'"`
	Mock        bool     `parser:"        | @'mock'"`
	Qualifiers  []string `parser:"        | 'qualifier' '=' @Ident (',' @Ident)*)*"`
}

func (d *DirectiveBean) directive() {}
func (d *DirectiveBean) String() string {
	return "ioc:bean" + scopeOptions(d.Scope, d.Alternative, d.Mock, d.Qualifiers)
}
func (d *DirectiveBean) Validate() error {
	return validateScopeOptions(d.Scope, d.Qualifiers)
}

// Singleton returns true if the bean was declared with singleton scope.
func (d *DirectiveBean) Singleton() bool { return d.Scope == ScopeSingleton }

// DirectiveProvider marks a function as a factory for the type it returns.
//
//	//ioc:provider [singleton|dependent] [alternative] [mock] [qualifier=<name>,...]
type DirectiveProvider struct {
	Scope       string   `parser:"'provider' (  @('singleton' | 'dependent')"`
	Alternative bool     `parser:"            | @'alternative'"`
	Mock        bool     `parser:"            | @'mock'"`
	Qualifiers  []string `parser:"            | 'qualifier' '=' @Ident (',' @Ident)*)*"`
}

func (d *DirectiveProvider) directive() {}
func (d *DirectiveProvider) String() string {
	return "ioc:provider" + scopeOptions(d.Scope, d.Alternative, d.Mock, d.Qualifiers)
}
func (d *DirectiveProvider) Validate() error {
	return validateScopeOptions(d.Scope, d.Qualifiers)
}

// Singleton returns true if the provider was declared with singleton scope.
func (d *DirectiveProvider) Singleton() bool { return d.Scope == ScopeSingleton }

// DirectiveConstructor designates a function as the constructor of the type it returns.
type DirectiveConstructor struct {
	Constructor bool `parser:"@'constructor'"`
}

func (d *DirectiveConstructor) directive()      {}
func (d *DirectiveConstructor) String() string  { return "ioc:constructor" }
func (d *DirectiveConstructor) Validate() error { return nil }

// DirectiveParam qualifies a single parameter of a constructor, provider or setter.
//
//	//ioc:param <name> [new] [qualifier=<name>,...]
type DirectiveParam struct {
	Name       string   `parser:"'param' @Ident"`
	New        bool     `parser:"(  @'new'"`
	Qualifiers []string `parser:" | 'qualifier' '=' @Ident (',' @Ident)*)*"`
}

func (d *DirectiveParam) directive() {}
func (d *DirectiveParam) String() string {
	return "ioc:param " + d.Name + siteOptions(d.New, d.Qualifiers)
}
func (d *DirectiveParam) Validate() error {
	return validateQualifiers(d.Qualifiers)
}

// DirectiveInject marks a method as a setter injection point.
//
//	//ioc:inject [new] [qualifier=<name>,...]
type DirectiveInject struct {
	New        bool     `parser:"'inject' (  @'new'"`
	Qualifiers []string `parser:"          | 'qualifier' '=' @Ident (',' @Ident)*)*"`
}

func (d *DirectiveInject) directive() {}
func (d *DirectiveInject) String() string {
	return "ioc:inject" + siteOptions(d.New, d.Qualifiers)
}
func (d *DirectiveInject) Validate() error {
	return validateQualifiers(d.Qualifiers)
}

// DirectiveElement binds a type to a DOM element tag name.
//
//	//ioc:element <tag>
type DirectiveElement struct {
	Tag string `parser:"'element' (@(Ident ('-' Ident)*) | @String)"`
}

func (d *DirectiveElement) directive()     {}
func (d *DirectiveElement) String() string { return "ioc:element " + d.Tag }
func (d *DirectiveElement) Validate() error {
	if d.Tag == "" {
		return errors.Errorf("element tag name must not be empty")
	}
	return nil
}

// DirectiveNative marks a type as a native element binding.
type DirectiveNative struct {
	Native bool `parser:"@'native'"`
}

func (d *DirectiveNative) directive()      {}
func (d *DirectiveNative) String() string  { return "ioc:native" }
func (d *DirectiveNative) Validate() error { return nil }

// Parse an ioc compiler directive, without the leading "//".
func Parse(text string) (Directive, error) {
	if text == "" {
		return nil, errors.Errorf("empty directive")
	}
	result, err := annotationParser.ParseString("", text)
	if err != nil {
		return nil, errors.Errorf("failed to parse directive: %w", err)
	}
	if err := result.Directive.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	return result.Directive, nil
}

func scopeOptions(scope string, alternative, mock bool, qualifiers []string) string {
	out := ""
	if scope != "" {
		out += " " + scope
	}
	if alternative {
		out += " alternative"
	}
	if mock {
		out += " mock"
	}
	if len(qualifiers) > 0 {
		out += " qualifier=" + strings.Join(qualifiers, ",")
	}
	return out
}

func siteOptions(isNew bool, qualifiers []string) string {
	out := ""
	if isNew {
		out += " new"
	}
	if len(qualifiers) > 0 {
		out += " qualifier=" + strings.Join(qualifiers, ",")
	}
	return out
}

func validateScopeOptions(scope string, qualifiers []string) error {
	switch scope {
	case "", ScopeSingleton, ScopeDependent:
	default:
		return errors.Errorf("only one of %q or %q may be specified", ScopeSingleton, ScopeDependent)
	}
	return validateQualifiers(qualifiers)
}

func validateQualifiers(qualifiers []string) error {
	if slices.Contains(qualifiers, reservedQualifier) {
		return errors.Errorf("qualifier %q is reserved, use the \"new\" option instead", reservedQualifier)
	}
	return nil
}
