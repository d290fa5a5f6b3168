// Package injector emits the creational callbacks, singleton variables and proxy
// patch-ups that make up the bootstrap sequence.
package injector

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alecthomas/ioc/internal/codewriter"
	"github.com/alecthomas/ioc/internal/graph"
	"github.com/alecthomas/ioc/internal/strategy"
)

// RuntimePackage is the import path of the runtime support package used by generated code.
const RuntimePackage = "github.com/alecthomas/ioc"

// Ref is an expression producing an instance of an injectable.
type Ref struct {
	Expr string
	// Fallible is true if Expr evaluates to (T, error).
	Fallible bool
}

// Context is the state of a single generation pass.
//
// It owns the active code block stack and the global statement buffer, which are not
// safe for concurrent use.
type Context struct {
	registry  *graph.Registry
	graph     *graph.Graph
	selector  *strategy.Selector
	logger    *slog.Logger
	global    *codewriter.Writer
	stack     []*codewriter.Writer
	injectors map[*graph.Injectable]*TypeInjector
	proxies   map[*graph.Injectable]*ProxyInjector
	// Singleton variables declared in the global block, in declaration order.
	singletons []string
	used       map[string]bool
	// Identifiers claimed by injectors.
	names   map[string]bool
	counter int
}

// NewContext creates a Context emitting global statements to w.
//
// Generated statements assume "ctx" and "cctx" are in scope and that the enclosing
// function returns (..., error).
func NewContext(registry *graph.Registry, g *graph.Graph, w *codewriter.Writer) *Context {
	return &Context{
		registry:  registry,
		graph:     g,
		selector:  strategy.NewSelector(),
		logger:    registry.Logger(),
		global:    w,
		injectors: map[*graph.Injectable]*TypeInjector{},
		proxies:   map[*graph.Injectable]*ProxyInjector{},
		used:      map[string]bool{},
		names:     map[string]bool{},
	}
}

// Push a code block, making it the active block.
func (c *Context) Push(w *codewriter.Writer) { c.stack = append(c.stack, w) }

// Pop the active code block.
//
// Panics if the stack is empty or w is not the active block.
func (c *Context) Pop(w *codewriter.Writer) {
	if len(c.stack) == 0 {
		panic("injector: pop of empty code block stack")
	}
	if top := c.stack[len(c.stack)-1]; top != w {
		panic("injector: unbalanced code block stack")
	}
	c.stack = c.stack[:len(c.stack)-1]
}

// Depth of the code block stack.
func (c *Context) Depth() int { return len(c.stack) }

// Injector returns the TypeInjector for an injectable, creating it on first use.
func (c *Context) Injector(inj *graph.Injectable) *TypeInjector {
	if t, ok := c.injectors[inj]; ok {
		return t
	}
	t := &TypeInjector{ctx: c, inj: inj}
	c.injectors[inj] = t
	return t
}

// Proxy returns the ProxyInjector for an injectable if one has been registered.
func (c *Context) Proxy(inj *graph.Injectable) (*ProxyInjector, bool) {
	p, ok := c.proxies[inj]
	return p, ok
}

// proxy returns the proxy for inj, declaring it in the global block on first use.
//
// A single proxy is shared by every cycle inj participates in.
func (c *Context) proxy(inj *graph.Injectable) *ProxyInjector {
	if p, ok := c.proxies[inj]; ok {
		return p
	}
	p := &ProxyInjector{inj: inj, variable: c.Injector(inj).name() + "_proxy"}
	c.proxies[inj] = p
	w := c.global
	rt := runtime(w)
	w.L("%s := %sNewProxy[%s](cctx, cctx.GetBeanReference(%s, %s))", p.variable, rt,
		w.Type(elem(inj.Type)), reflectType(w, inj), qualifiers(inj))
	c.logger.Debug("Declared proxy", "injectable", inj, "variable", p.variable)
	return p
}

// InjectAll emits code for every injectable in the graph, in emission order.
func (c *Context) InjectAll() error {
	for _, inj := range c.graph.Order() {
		if err := c.Injector(inj).Inject(); err != nil {
			return err
		}
	}
	return nil
}

// Finish references any singleton variables that were never consumed, so the generated
// code compiles.
func (c *Context) Finish() {
	if depth := c.Depth(); depth != 0 {
		panic(fmt.Sprintf("injector: %d code blocks still pushed", depth))
	}
	for _, name := range c.singletons {
		if !c.used[name] {
			c.global.L("_ = %s", name)
		}
	}
}

// Arg implements [strategy.Resolver], hoisting fallible references into a local variable.
func (c *Context) Arg(w *codewriter.Writer, site *graph.Site) (string, error) {
	target := c.graph.Resolved(site)
	if target == nil {
		return "", &graph.UnresolvableError{Site: site}
	}
	ref, err := c.Injector(target).GetBeanInstance(site)
	if err != nil {
		return "", err
	}
	if !ref.Fallible {
		return ref.Expr, nil
	}
	c.counter++
	local := fmt.Sprintf("dep%d_%s", c.counter, graph.SimpleName(target.Type))
	w.L("%s, err := %s", local, ref.Expr)
	w.L("if err != nil {")
	w.In(func(w *codewriter.Writer) {
		w.L("return out, err")
	})
	w.L("}")
	return local, nil
}

// claimName returns a unique identifier for inj, based on its generated name.
func (c *Context) claimName(inj *graph.Injectable) string {
	base := inj.Name
	if base == "" {
		base = c.registry.Names().GenerateFor(inj.Type, inj.Qualifier, inj.Kind)
	}
	name := base
	for i := 2; c.names[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	c.names[name] = true
	return name
}

func (c *Context) use(variable string) { c.used[variable] = true }

// runtime returns the qualifier prefix for runtime package identifiers.
func runtime(w *codewriter.Writer) string {
	if alias := w.Import(RuntimePackage); alias != "" {
		return alias + "."
	}
	return ""
}

func reflectType(w *codewriter.Writer, inj *graph.Injectable) string {
	return fmt.Sprintf("%s.TypeFor[%s]()", w.Import("reflect"), w.Type(inj.Type))
}

func qualifiers(inj *graph.Injectable) string {
	names := inj.Qualifier.Names()
	if len(names) == 0 {
		return "nil"
	}
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = strconv.Quote(name)
	}
	return "[]string{" + strings.Join(quoted, ", ") + "}"
}
