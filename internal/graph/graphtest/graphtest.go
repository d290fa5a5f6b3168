// Package graphtest builds annotated type descriptors for tests.
package graphtest

import (
	"fmt"
	"go/token"
	"go/types"

	"github.com/alecthomas/ioc/internal/directiveparser"
	"github.com/alecthomas/ioc/internal/meta"
	"github.com/alecthomas/ioc/internal/qualifier"
)

// Package is the package all test types are declared in.
var Package = types.NewPackage("github.com/example/app", "app")

var line = 0

func position(file string) token.Position {
	line++
	return token.Position{Filename: file, Line: line, Column: 1}
}

// Struct declares an empty named struct type.
func Struct(name string) *types.Named {
	return types.NewNamed(types.NewTypeName(token.NoPos, Package, name, nil), types.NewStruct(nil, nil), nil)
}

// Interface declares a named interface with a single method "name()" so that only
// types with that method implement it.
func Interface(name string) *types.Named {
	sig := types.NewSignatureType(nil, nil, nil, nil, nil, false)
	method := types.NewFunc(token.NoPos, Package, name, sig)
	iface := types.NewInterfaceType([]*types.Func{method}, nil)
	iface.Complete()
	return types.NewNamed(types.NewTypeName(token.NoPos, Package, name, nil), iface, nil)
}

// Implement adds the marker method of iface to named, with a pointer receiver.
func Implement(named *types.Named, iface *types.Named) {
	method := iface.Underlying().(*types.Interface).Method(0)
	recv := types.NewVar(token.NoPos, Package, "", types.NewPointer(named))
	sig := types.NewSignatureType(recv, nil, nil, nil, nil, false)
	named.AddMethod(types.NewFunc(token.NoPos, Package, method.Name(), sig))
}

// Directives parses directives, panicking on error.
func Directives(directives ...string) []directiveparser.Directive {
	out := make([]directiveparser.Directive, 0, len(directives))
	for _, text := range directives {
		directive, err := directiveparser.Parse(text)
		if err != nil {
			panic(fmt.Sprintf("%s: %s", text, err))
		}
		out = append(out, directive)
	}
	return out
}

// Bean declares an annotated type injected as a pointer to named.
func Bean(named *types.Named, directives ...string) *meta.Type {
	return &meta.Type{
		Position:   position(named.Obj().Name() + ".go"),
		Named:      named,
		Type:       types.NewPointer(named),
		Directives: Directives(directives...),
	}
}

// Param creates a parameter injection point.
func Param(name string, t types.Type, qualifiers ...qualifier.Qualifier) *meta.Param {
	return &meta.Param{Name: name, Type: t, Qualifiers: qualifiers}
}

// Field creates a field injection point.
func Field(name string, t types.Type, qualifiers ...qualifier.Qualifier) *meta.Field {
	return &meta.Field{Position: position("fields.go"), Name: name, Type: t, Qualifiers: qualifiers}
}

// Func creates a function in [Package] returning returns and optionally an error.
func Func(name string, directive string, returns types.Type, returnsError bool, params ...*meta.Param) *meta.Func {
	vars := make([]*types.Var, len(params))
	for i, param := range params {
		vars[i] = types.NewVar(token.NoPos, Package, param.Name, param.Type)
	}
	var results []*types.Var
	if returns != nil {
		results = append(results, types.NewVar(token.NoPos, Package, "", returns))
	}
	if returnsError {
		results = append(results, types.NewVar(token.NoPos, nil, "", types.Universe.Lookup("error").Type()))
	}
	sig := types.NewSignatureType(nil, nil, nil, types.NewTuple(vars...), types.NewTuple(results...), false)
	fn := &meta.Func{
		Position:     position(name + ".go"),
		Func:         types.NewFunc(token.NoPos, Package, name, sig),
		Params:       params,
		Returns:      returns,
		ReturnsError: returnsError,
	}
	if directive != "" {
		fn.Directive = Directives(directive)[0]
	}
	return fn
}

// Constructor attaches a designated constructor to t.
func Constructor(t *meta.Type, returnsError bool, params ...*meta.Param) *meta.Type {
	t.Constructor = Func("New"+t.Named.Obj().Name(), "ioc:constructor", t.Type, returnsError, params...)
	return t
}

// Provider creates a provider function.
func Provider(name, directive string, returns types.Type, params ...*meta.Param) *meta.Func {
	return Func(name, directive, returns, false, params...)
}

// Setter creates a setter method on t.
func Setter(t *meta.Type, name, directive string, params ...*meta.Param) *meta.Func {
	vars := make([]*types.Var, len(params))
	for i, param := range params {
		vars[i] = types.NewVar(token.NoPos, Package, param.Name, param.Type)
	}
	recv := types.NewVar(token.NoPos, Package, "", t.Type)
	sig := types.NewSignatureType(recv, nil, nil, types.NewTuple(vars...), nil, false)
	fn := &meta.Func{
		Position: position(name + ".go"),
		Func:     types.NewFunc(token.NoPos, Package, name, sig),
		Params:   params,
	}
	if directive != "" {
		fn.Directive = Directives(directive)[0]
	}
	t.Setters = append(t.Setters, fn)
	return fn
}
