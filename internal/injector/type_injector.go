package injector

import (
	"go/types"
	"slices"
	"strings"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/ioc/internal/codewriter"
	"github.com/alecthomas/ioc/internal/graph"
	"github.com/alecthomas/ioc/internal/strategy"
)

// State of a [TypeInjector].
type State int

const (
	// Unresolved injectors have emitted nothing.
	Unresolved State = iota
	// Building injectors are emitting their creational callback.
	Building
	// Injected injectors have emitted their callback, and singleton variable if any.
	Injected
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Building:
		return "building"
	case Injected:
		return "injected"
	}
	return "unknown"
}

// TypeInjector lazily emits the code producing instances of a single injectable.
type TypeInjector struct {
	ctx      *Context
	inj      *graph.Injectable
	state    State
	variable string
}

// Injectable the injector emits code for.
func (t *TypeInjector) Injectable() *graph.Injectable { return t.inj }

// State of the injector.
func (t *TypeInjector) State() State { return t.state }

// Variable holding the singleton instance. Only declared for injected singletons.
func (t *TypeInjector) Variable() string { return t.name() }

// Callback is the variable holding the creational callback.
func (t *TypeInjector) Callback() string { return t.name() + "_creationalCallback" }

// name is derived from the injectable's stable name.
func (t *TypeInjector) name() string {
	if t.variable == "" {
		t.variable = t.ctx.claimName(t.inj)
	}
	return t.variable
}

// GetBeanInstance returns a reference to an instance for an injection site.
//
// site may be nil for references that are not tied to a site. Once injected, singletons
// are referenced by their variable unless the site forces a new instance, and everything
// else is produced by invoking the creational callback. A site deferred by the graph is
// given the target's proxy if the target has not been injected yet.
func (t *TypeInjector) GetBeanInstance(site *graph.Site) (Ref, error) {
	forceNew := site != nil && site.New
	deferred := site != nil && !forceNew && t.ctx.graph.Deferred(site)
	switch t.state {
	case Injected:
		if t.inj.Singleton() && !forceNew {
			t.ctx.use(t.variable)
			return Ref{Expr: t.variable}, nil
		}
		return Ref{Expr: t.Callback() + ".GetInstance(cctx)", Fallible: true}, nil

	case Building:
		if deferred {
			return t.ctx.proxy(t.inj).Reference(), nil
		}
		return Ref{}, t.cycleError()

	default:
		if deferred {
			return t.ctx.proxy(t.inj).Reference(), nil
		}
		if err := t.Inject(); err != nil {
			return Ref{}, err
		}
		return t.GetBeanInstance(site)
	}
}

// Inject emits the creational callback for the injectable if it has not been emitted.
//
// The callback is appended to the global block once complete, followed by its
// registration with the creational context. Singletons are then instantiated once at
// bootstrap and cached in a variable.
func (t *TypeInjector) Inject() error {
	if t.state != Unresolved {
		return nil
	}
	t.state = Building
	c := t.ctx
	inj := t.inj
	strat, err := c.selector.Select(inj)
	if err != nil {
		return err
	}
	c.logger.Debug("Injecting", "injectable", inj, "strategy", strat.Name())
	if c.graph.IsProxyTarget(inj) {
		c.proxy(inj)
	}

	value := t.name()
	body := c.global.Block()
	if err := t.emitBody(body, strat, value); err != nil {
		return err
	}

	w := c.global
	rt := runtime(w)
	typ := w.Type(inj.Type)
	w.L("%s := %sCreationalCallback[%s](func(cctx *%sCreationalContext) (out %s, err error) {", t.Callback(), rt, typ, rt, typ)
	w.In(func(w *codewriter.Writer) { w.Append(body) })
	w.L("})")
	scope := "Dependent"
	if inj.Singleton() {
		scope = "Singleton"
	}
	w.L("cctx.AddCallback(cctx.GetBeanReference(%s, %s), %s%s, %s.Any())", reflectType(w, inj), qualifiers(inj), rt, scope, t.Callback())
	if inj.Singleton() {
		w.L("%s, err := %s.GetInstance(cctx)", value, t.Callback())
		w.L("if err != nil {")
		w.In(func(w *codewriter.Writer) {
			w.L("return nil, err")
		})
		w.L("}")
		c.singletons = append(c.singletons, value)
	}
	t.state = Injected
	return nil
}

// emitBody emits the body of the creational callback into the pushed block body.
func (t *TypeInjector) emitBody(body *codewriter.Writer, strat strategy.Strategy, value string) error {
	c := t.ctx
	inj := t.inj
	c.Push(body)
	defer c.Pop(body)
	reflectPkg := body.Import("reflect")
	body.L("beanType := %s.TypeFor[%s]()", reflectPkg, body.Type(inj.Type))
	if quals := qualifiers(inj); quals == "nil" {
		body.L("var qualifiers []string")
	} else {
		body.L("qualifiers := %s", quals)
	}
	result, err := strat.Construct(body, value, c)
	if err != nil {
		return errors.Errorf("%s: %w", inj, err)
	}
	if !result.Constructed {
		return errors.Errorf("%s: %s did not construct an instance", inj, strat.Name())
	}
	// The proxy is bound and the bean registered before post-construction wiring, so
	// fields and setters only ever see the instance consumers hold.
	if proxy, ok := c.Proxy(inj); ok {
		proxy.bind(body, result.Value)
	}
	body.L("beanRef := cctx.GetBeanReference(beanType, qualifiers)")
	body.L("cctx.AddBean(beanRef, %s)", result.Value)
	if err := strat.Inject(body, result.Value, c); err != nil {
		return errors.Errorf("%s: %w", inj, err)
	}
	body.L("return %s, nil", result.Value)
	return nil
}

func (t *TypeInjector) cycleError() error {
	var path []*graph.Injectable
	for inj, other := range t.ctx.injectors {
		if other.state == Building && inj != t.inj {
			path = append(path, inj)
		}
	}
	slices.SortFunc(path, func(a, b *graph.Injectable) int { return strings.Compare(a.Key(), b.Key()) })
	return &graph.CycleError{Path: append(append([]*graph.Injectable{t.inj}, path...), t.inj)}
}

// ProxyInjector is a forward reference to a singleton handed to members of a cycle
// before the singleton is constructed.
type ProxyInjector struct {
	inj      *graph.Injectable
	variable string
	proxied  bool
	binds    int
}

// Variable holding the proxy.
func (p *ProxyInjector) Variable() string { return p.variable }

// Proxied returns true once the proxy has been bound to the real instance.
func (p *ProxyInjector) Proxied() bool { return p.proxied }

// Binds is the number of times a bind was emitted.
func (p *ProxyInjector) Binds() int { return p.binds }

// Reference to the proxy's placeholder instance.
func (p *ProxyInjector) Reference() Ref { return Ref{Expr: p.variable + ".Instance()"} }

func (p *ProxyInjector) bind(w *codewriter.Writer, value string) {
	if p.proxied {
		return
	}
	p.proxied = true
	p.binds++
	w.L("%s = %s.Bind(%s)", value, p.variable, value)
}

func elem(t types.Type) types.Type {
	if ptr, ok := t.(*types.Pointer); ok {
		return ptr.Elem()
	}
	return t
}
