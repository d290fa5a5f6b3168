// Package scan loads Go packages and collects //ioc: annotated declarations.
package scan

import (
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/alecthomas/errors"
	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"

	"github.com/alecthomas/ioc/internal/directiveparser"
	"github.com/alecthomas/ioc/internal/logging"
	"github.com/alecthomas/ioc/internal/meta"
	"github.com/alecthomas/ioc/internal/qualifier"
)

type scanOptions struct {
	patterns []string
	tags     []string
	logger   *slog.Logger
}

type Option func(*scanOptions) error

// WithPatterns adds additional package patterns to search for annotations.
func WithPatterns(patterns ...string) Option {
	return func(o *scanOptions) error {
		o.patterns = append(o.patterns, patterns...)
		return nil
	}
}

// WithTags sets the build tags used when loading packages.
func WithTags(tags ...string) Option {
	return func(o *scanOptions) error {
		o.tags = tags
		return nil
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *scanOptions) error {
		if logger == nil {
			return errors.Errorf("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// Scan statically loads the package in dest and any additional patterns, then collects
// every declaration annotated with an //ioc: directive.
func Scan(dest string, options ...Option) (*meta.Universe, error) {
	opts := &scanOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range options {
		if err := opt(opts); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	destImport, err := importPathForDir(dest)
	if err != nil {
		return nil, errors.Errorf("failed to determine import path for destination directory %s: %w", dest, err)
	}

	fset := token.NewFileSet()
	cfg := &packages.Config{
		Logf: logging.Legacy(opts.logger, slog.LevelDebug).Printf,
		Fset: fset,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedTypes | packages.NeedSyntax |
			packages.NeedTypesInfo,
	}
	if len(opts.tags) > 0 {
		cfg.BuildFlags = []string{"-tags=" + strings.Join(opts.tags, ",")}
	}
	pkgs, err := packages.Load(cfg, append(slices.Clone(opts.patterns), dest)...)
	if err != nil {
		return nil, errors.Errorf("failed to load packages: %w", err)
	}
	slices.SortFunc(pkgs, func(a, b *packages.Package) int { return strings.Compare(a.PkgPath, b.PkgPath) })

	s := &scanner{
		fset:     fset,
		logger:   opts.logger,
		universe: &meta.Universe{},
		byName:   map[*types.TypeName]*meta.Type{},
	}
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			return nil, errors.Errorf("%s: %s", pkg.PkgPath, pkg.Errors[0])
		}
		if pkg.PkgPath == destImport {
			s.universe.Dest = pkg.Types
		}
	}
	if s.universe.Dest == nil {
		return nil, errors.Errorf("destination package %q not found", destImport)
	}
	for _, pkg := range pkgs {
		if err := s.collectTypes(pkg); err != nil {
			return nil, err
		}
	}
	for _, pkg := range pkgs {
		if err := s.collectFuncs(pkg); err != nil {
			return nil, err
		}
	}
	return s.universe, nil
}

type scanner struct {
	fset     *token.FileSet
	logger   *slog.Logger
	universe *meta.Universe
	byName   map[*types.TypeName]*meta.Type
}

// Parse all directives in a comment group.
func parseDirectives(doc *ast.CommentGroup) ([]directiveparser.Directive, error) {
	if doc == nil {
		return nil, nil
	}
	var out []directiveparser.Directive
	for _, comment := range doc.List {
		if !strings.HasPrefix(comment.Text, "//ioc:") {
			continue
		}
		directive, err := directiveparser.Parse(comment.Text[2:])
		if err != nil {
			return nil, err
		}
		out = append(out, directive)
	}
	return out, nil
}

func (s *scanner) collectTypes(pkg *packages.Package) error {
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				typeSpec := spec.(*ast.TypeSpec) //nolint:forcetypeassert
				doc := typeSpec.Doc
				if doc == nil && len(gen.Specs) == 1 {
					doc = gen.Doc
				}
				directives, err := parseDirectives(doc)
				if err != nil {
					return errors.Errorf("%s: %w", s.fset.Position(typeSpec.Pos()), err)
				} else if len(directives) == 0 {
					continue
				}
				t, err := s.createType(pkg, typeSpec, directives)
				if err != nil {
					return err
				}
				s.universe.Types = append(s.universe.Types, t)
				s.byName[t.Named.Obj()] = t
			}
		}
	}
	return nil
}

func (s *scanner) createType(pkg *packages.Package, spec *ast.TypeSpec, directives []directiveparser.Directive) (*meta.Type, error) {
	pos := s.fset.Position(spec.Pos())
	for _, directive := range directives {
		switch directive.(type) {
		case *directiveparser.DirectiveBean, *directiveparser.DirectiveElement, *directiveparser.DirectiveNative:
		default:
			return nil, errors.Errorf("%s: %s is not valid on a type", pos, directive)
		}
	}
	obj, ok := pkg.TypesInfo.Defs[spec.Name].(*types.TypeName)
	if !ok {
		return nil, errors.Errorf("%s: could not resolve type %s", pos, spec.Name.Name)
	}
	named, ok := obj.Type().(*types.Named)
	if !ok || spec.TypeParams != nil {
		return nil, errors.Errorf("%s: %s must be a non-generic named type", pos, spec.Name.Name)
	}
	if err := s.accessible(pos, obj, "type"); err != nil {
		return nil, err
	}
	t := &meta.Type{
		Position:   pos,
		Named:      named,
		Type:       named,
		Directives: directives,
	}
	strct, ok := named.Underlying().(*types.Struct)
	if !ok {
		return t, nil
	}
	t.Type = types.NewPointer(named)
	for i := range strct.NumFields() {
		field := strct.Field(i)
		tag, ok := reflect.StructTag(strct.Tag(i)).Lookup("inject")
		if !ok {
			continue
		}
		if field.Embedded() {
			return nil, errors.Errorf("%s: embedded field %s can not be injected", s.fset.Position(field.Pos()), field.Name())
		}
		if err := s.accessible(s.fset.Position(field.Pos()), field, "field"); err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, &meta.Field{
			Position:   s.fset.Position(field.Pos()),
			Name:       field.Name(),
			Type:       field.Type(),
			Qualifiers: parseTag(tag),
		})
	}
	s.logger.Debug("Found annotated type", "type", t, "fields", len(t.Fields))
	return t, nil
}

// parseTag parses an inject struct tag, eg. `inject:"Primary,new"`.
func parseTag(tag string) []qualifier.Qualifier {
	var out []qualifier.Qualifier
	for part := range strings.SplitSeq(tag, ",") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
		case "new":
			out = append(out, qualifier.New)
		default:
			out = append(out, qualifier.Qualifier(part))
		}
	}
	return out
}

func (s *scanner) collectFuncs(pkg *packages.Package) error {
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			directives, err := parseDirectives(fn.Doc)
			if err != nil {
				return errors.Errorf("%s: %w", s.fset.Position(fn.Pos()), err)
			} else if len(directives) == 0 {
				continue
			}
			if err := s.createFunc(pkg, fn, directives); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *scanner) createFunc(pkg *packages.Package, decl *ast.FuncDecl, directives []directiveparser.Directive) error {
	pos := s.fset.Position(decl.Pos())
	funcObj, ok := pkg.TypesInfo.Defs[decl.Name].(*types.Func)
	if !ok {
		return errors.Errorf("%s: could not resolve function %s", pos, decl.Name.Name)
	}
	sig := funcObj.Signature()
	if sig.TypeParams() != nil || sig.RecvTypeParams() != nil {
		return errors.Errorf("%s: %s must not be generic", pos, decl.Name.Name)
	}

	var (
		primary directiveparser.Directive
		params  = map[string]*directiveparser.DirectiveParam{}
	)
	for _, directive := range directives {
		switch directive := directive.(type) {
		case *directiveparser.DirectiveParam:
			params[directive.Name] = directive
		case *directiveparser.DirectiveConstructor, *directiveparser.DirectiveProvider, *directiveparser.DirectiveInject:
			if primary != nil {
				return errors.Errorf("%s: %s conflicts with %s", pos, directive, primary)
			}
			primary = directive
		default:
			return errors.Errorf("%s: %s is not valid on a function", pos, directive)
		}
	}
	if primary == nil {
		return errors.Errorf("%s: //ioc:param requires //ioc:constructor, //ioc:provider or //ioc:inject", pos)
	}

	fn := &meta.Func{Position: pos, Func: funcObj, Directive: primary}
	for i := range sig.Params().Len() {
		param := sig.Params().At(i)
		p := &meta.Param{Name: param.Name(), Type: param.Type()}
		if directive, ok := params[param.Name()]; ok {
			p.Qualifiers = qualifier.FromStrings(directive.Qualifiers)
			if directive.New {
				p.Qualifiers = append(p.Qualifiers, qualifier.New)
			}
			delete(params, param.Name())
		}
		fn.Params = append(fn.Params, p)
	}
	if unmatched := slices.Sorted(maps.Keys(params)); len(unmatched) > 0 {
		return errors.Errorf("%s: //ioc:param %s does not match a parameter of %s", pos, unmatched[0], decl.Name.Name)
	}
	if sig.Variadic() {
		return errors.Errorf("%s: %s must not be variadic", pos, decl.Name.Name)
	}
	if err := s.accessible(pos, funcObj, "function"); err != nil {
		return err
	}

	if _, ok := primary.(*directiveparser.DirectiveInject); ok {
		return s.attachSetter(fn, sig)
	}
	if sig.Recv() != nil {
		return errors.Errorf("%s: %s must be a function, not a method", pos, primary)
	}
	results := sig.Results()
	switch {
	case results.Len() == 1:
	case results.Len() == 2 && isErrorType(results.At(1).Type()):
		fn.ReturnsError = true
	default:
		return errors.Errorf("%s: %s must return (T) or (T, error)", pos, decl.Name.Name)
	}
	fn.Returns = results.At(0).Type()
	if named, ok := typeName(fn.Returns); ok {
		if err := s.accessible(pos, named, "result type"); err != nil {
			return err
		}
	}

	if _, ok := primary.(*directiveparser.DirectiveProvider); ok {
		s.universe.Providers = append(s.universe.Providers, fn)
		s.logger.Debug("Found provider", "provider", fn, "provides", types.TypeString(fn.Returns, nil))
		return nil
	}
	t := s.typeFor(fn.Returns)
	if t == nil {
		return errors.Errorf("%s: constructor %s returns %s which is not an //ioc:bean", pos, decl.Name.Name, types.TypeString(fn.Returns, nil))
	}
	if t.Constructor != nil {
		return errors.Errorf("%s: %s already has constructor %s", pos, t, t.Constructor.Func.Name())
	}
	t.Constructor = fn
	return nil
}

func (s *scanner) attachSetter(fn *meta.Func, sig *types.Signature) error {
	if sig.Recv() == nil {
		return errors.Errorf("%s: //ioc:inject is only valid on methods", fn.Position)
	}
	t := s.typeFor(sig.Recv().Type())
	if t == nil {
		return errors.Errorf("%s: //ioc:inject method %s has a receiver that is not an //ioc:bean", fn.Position, fn.Func.Name())
	}
	switch results := sig.Results(); {
	case results.Len() == 0:
	case results.Len() == 1 && isErrorType(results.At(0).Type()):
		fn.ReturnsError = true
	default:
		return errors.Errorf("%s: //ioc:inject method %s must return nothing or error", fn.Position, fn.Func.Name())
	}
	t.Setters = append(t.Setters, fn)
	return nil
}

// accessible returns an error if obj is unexported and declared outside the destination
// package, where generated code can not reference it.
func (s *scanner) accessible(pos token.Position, obj types.Object, what string) error {
	if obj.Exported() || obj.Pkg() == s.universe.Dest {
		return nil
	}
	return errors.Errorf("%s: %s %s is not exported from %s and can not be referenced from %s",
		pos, what, obj.Name(), obj.Pkg().Path(), s.universe.Dest.Path())
}

// typeName returns the declaration of T or *T if it is a named type.
func typeName(t types.Type) (*types.TypeName, bool) {
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	named, ok := types.Unalias(t).(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return nil, false
	}
	return named.Obj(), true
}

// typeFor returns the annotated type declaration for T or *T.
func (s *scanner) typeFor(t types.Type) *meta.Type {
	obj, ok := typeName(t)
	if !ok {
		return nil
	}
	return s.byName[obj]
}

func isErrorType(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

func importPathForDir(dir string) (string, error) {
	if !modfile.IsDirectoryPath(dir) {
		return dir, nil
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Errorf("failed to get absolute path for directory %s: %w", dir, err)
	}
	dir = root
	// Search up directories for go.mod file
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			break
		}
		if root == filepath.Dir(root) {
			return "", errors.Errorf("couldn't find a go.mod file above %s", dir)
		}
		root = filepath.Dir(root)
	}
	dir, err = filepath.Rel(root, dir)
	if err != nil {
		return "", errors.Errorf("failed to get relative path for directory %s: %w", dir, err)
	}
	goModPath := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(goModPath) //nolint
	if err != nil {
		return "", errors.Errorf("failed to read go.mod file at %s: %w", goModPath, err)
	}
	mod, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return "", errors.Errorf("failed to parse go.mod file at %s: %w", goModPath, err)
	}
	return path.Join(mod.Module.Mod.Path, filepath.ToSlash(dir)), nil
}
