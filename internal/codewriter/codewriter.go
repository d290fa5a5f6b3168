// Package codewriter assembles generated Go source.
package codewriter

import (
	"fmt"
	"go/types"
	"path"
	"slices"
	"strings"

	"github.com/alecthomas/errors"
	"golang.org/x/tools/imports"
)

type importSet struct {
	pkgPath string
	byPath  map[string]string
	byAlias map[string]string
}

// Writer accumulates indented lines of Go source.
//
// Writers created with [Writer.Block] share the import set of their parent, so nested
// code blocks can be assembled independently and appended later.
type Writer struct {
	pkgName string
	imports *importSet
	buf     *strings.Builder
	indent  int
}

// New creates a Writer for a file in the package with the given import path and name.
func New(pkgPath, pkgName string) *Writer {
	return &Writer{
		pkgName: pkgName,
		imports: &importSet{
			pkgPath: pkgPath,
			byPath:  map[string]string{},
			byAlias: map[string]string{},
		},
		buf: &strings.Builder{},
	}
}

// Block returns an empty Writer sharing this Writer's imports.
func (w *Writer) Block() *Writer {
	return &Writer{pkgName: w.pkgName, imports: w.imports, buf: &strings.Builder{}}
}

// Import a package, returning the identifier used to refer to it.
//
// Returns "" for the destination package itself.
func (w *Writer) Import(pkgPath string) string {
	return w.ImportAs(pkgPath, path.Base(pkgPath))
}

// ImportAs imports a package preferring the given name, returning the identifier used to refer to it.
func (w *Writer) ImportAs(pkgPath, name string) string {
	set := w.imports
	if pkgPath == set.pkgPath {
		return ""
	}
	if alias, ok := set.byPath[pkgPath]; ok {
		return alias
	}
	alias := name
	for i := 2; ; i++ {
		if _, taken := set.byAlias[alias]; !taken {
			break
		}
		alias = fmt.Sprintf("%s%d", name, i)
	}
	set.byPath[pkgPath] = alias
	set.byAlias[alias] = pkgPath
	return alias
}

// Type renders a type reference, importing any packages it refers to.
func (w *Writer) Type(t types.Type) string {
	return types.TypeString(t, w.qualifier)
}

// Func renders a reference to a package-level function.
func (w *Writer) Func(fn *types.Func) string {
	if fn.Pkg() == nil {
		return fn.Name()
	}
	if alias := w.qualifier(fn.Pkg()); alias != "" {
		return alias + "." + fn.Name()
	}
	return fn.Name()
}

func (w *Writer) qualifier(pkg *types.Package) string {
	return w.ImportAs(pkg.Path(), pkg.Name())
}

// L writes an indented line.
func (w *Writer) L(format string, args ...any) {
	w.Indent()
	w.W(format, args...)
	w.buf.WriteByte('\n')
}

// W writes formatted text with no indentation or trailing newline.
func (w *Writer) W(format string, args ...any) {
	if len(args) == 0 {
		w.buf.WriteString(format)
		return
	}
	fmt.Fprintf(w.buf, format, args...)
}

// Indent writes the current indentation.
func (w *Writer) Indent() {
	w.buf.WriteString(strings.Repeat("\t", w.indent))
}

// In calls fn with the indentation increased by one level.
func (w *Writer) In(fn func(w *Writer)) {
	w.indent++
	defer func() { w.indent-- }()
	fn(w)
}

// Append the lines of block at the current indentation.
func (w *Writer) Append(block *Writer) {
	text := strings.TrimSuffix(block.buf.String(), "\n")
	if text == "" {
		return
	}
	for line := range strings.SplitSeq(text, "\n") {
		if line == "" {
			w.buf.WriteByte('\n')
			continue
		}
		w.Indent()
		w.buf.WriteString(line)
		w.buf.WriteByte('\n')
	}
}

// Len returns the number of bytes written.
func (w *Writer) Len() int { return w.buf.Len() }

func (w *Writer) String() string { return w.buf.String() }

// FileOption configures the file header produced by [Writer.Bytes].
type FileOption func(*fileOptions)

type fileOptions struct {
	tags      []string
	generator string
}

// WithTags adds a //go:build constraint requiring all of tags.
func WithTags(tags ...string) FileOption {
	return func(o *fileOptions) { o.tags = tags }
}

// WithGenerator sets the name of the generator in the "Code generated" header.
func WithGenerator(name string) FileOption {
	return func(o *fileOptions) { o.generator = name }
}

// Bytes renders the complete, formatted source file.
func (w *Writer) Bytes(options ...FileOption) ([]byte, error) {
	opts := &fileOptions{generator: "iocgen"}
	for _, opt := range options {
		opt(opts)
	}
	out := &strings.Builder{}
	fmt.Fprintf(out, "// Code generated by %s. DO NOT EDIT.\n\n", opts.generator)
	if len(opts.tags) > 0 {
		fmt.Fprintf(out, "//go:build %s\n\n", strings.Join(opts.tags, " && "))
	}
	fmt.Fprintf(out, "package %s\n\n", w.pkgName)
	if len(w.imports.byPath) > 0 {
		paths := make([]string, 0, len(w.imports.byPath))
		for pkgPath := range w.imports.byPath {
			paths = append(paths, pkgPath)
		}
		slices.Sort(paths)
		out.WriteString("import (\n")
		for _, pkgPath := range paths {
			alias := w.imports.byPath[pkgPath]
			if alias == path.Base(pkgPath) {
				fmt.Fprintf(out, "\t%q\n", pkgPath)
			} else {
				fmt.Fprintf(out, "\t%s %q\n", alias, pkgPath)
			}
		}
		out.WriteString(")\n\n")
	}
	out.WriteString(w.buf.String())
	formatted, err := imports.Process("ioc_gen.go", []byte(out.String()), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, errors.Errorf("failed to format generated code: %w\n%s", err, out.String())
	}
	return formatted, nil
}
