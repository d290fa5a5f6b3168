package graph

import (
	"slices"
	"strings"

	"github.com/alecthomas/errors"
)

// Graph is the resolved dependency graph for one generation pass.
type Graph struct {
	order     []*Injectable
	nodes     []*Injectable
	edges     map[*Injectable][]*Injectable
	resolved  map[*Site]*Injectable
	component map[*Injectable]int
	proxies   map[*Injectable]bool
}

// Build resolves every injection site reachable from roots and analyses the result for cycles.
//
// Roots are injectable references (see [Injectable.Ref]) or handle keys. If no roots are
// given every registered injectable is a root.
//
// Cycles are permitted only if they can be broken by handing out a proxy for a proxyable
// member. Proxy targets are chosen per strongly connected component until the component
// without the proxied edges is acyclic.
func (r *Registry) Build(roots ...string) (*Graph, error) {
	g := &Graph{
		edges:     map[*Injectable][]*Injectable{},
		resolved:  map[*Site]*Injectable{},
		component: map[*Injectable]int{},
		proxies:   map[*Injectable]bool{},
	}
	start, err := r.roots(roots)
	if err != nil {
		return nil, err
	}

	var errs []error
	seen := map[*Injectable]bool{}
	queue := slices.Clone(start)
	for len(queue) > 0 {
		inj := queue[0]
		queue = queue[1:]
		if seen[inj] {
			continue
		}
		seen[inj] = true
		g.nodes = append(g.nodes, inj)
		for _, site := range inj.Sites {
			dep, err := r.Resolve(site)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			g.resolved[site] = dep
			if !slices.Contains(g.edges[inj], dep) {
				g.edges[inj] = append(g.edges[inj], dep)
			}
			if !seen[dep] {
				queue = append(queue, dep)
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for i, component := range g.stronglyConnected() {
		for _, inj := range component {
			g.component[inj] = i
		}
		if err := g.breakCycles(component); err != nil {
			return nil, err
		}
		g.order = append(g.order, component...)
	}
	for inj := range g.proxies {
		r.opts.logger.Debug("Breaking cycle with proxy", "injectable", inj)
	}
	return g, nil
}

func (r *Registry) roots(roots []string) ([]*Injectable, error) {
	if len(roots) == 0 {
		return r.Injectables(), nil
	}
	out := make([]*Injectable, 0, len(roots))
	for _, root := range roots {
		var matched []*Injectable
		for _, inj := range r.injectables {
			if inj.Ref() == root || inj.Key() == root {
				matched = append(matched, inj)
			}
		}
		if len(matched) == 0 {
			return nil, errors.Errorf("the required root %s does not exist", root)
		}
		out = append(out, matched...)
	}
	return out, nil
}

// Order returns injectables in emission order: dependencies before their consumers,
// except where an edge is satisfied by a proxy.
func (g *Graph) Order() []*Injectable { return slices.Clone(g.order) }

// Resolved returns the injectable resolved for a site, or nil.
func (g *Graph) Resolved(site *Site) *Injectable { return g.resolved[site] }

// Dependencies of an injectable, in site order without duplicates.
func (g *Graph) Dependencies(inj *Injectable) []*Injectable { return slices.Clone(g.edges[inj]) }

// IsProxyTarget returns true if consumers within the injectable's cycle receive a proxy.
func (g *Graph) IsProxyTarget(inj *Injectable) bool { return g.proxies[inj] }

// ProxyTargets returns every injectable chosen to break a cycle.
func (g *Graph) ProxyTargets() []*Injectable {
	var out []*Injectable
	for _, inj := range g.order {
		if g.proxies[inj] {
			out = append(out, inj)
		}
	}
	return out
}

// Deferred returns true if the site may be satisfied with a proxy when its target has not
// been constructed yet.
func (g *Graph) Deferred(site *Site) bool {
	target, ok := g.resolved[site]
	if !ok || !g.proxies[target] {
		return false
	}
	owner, ok := g.component[site.Owner]
	return ok && owner == g.component[target]
}

// Edges returns the graph as a map of injectable keys to the keys of their dependencies.
func (g *Graph) Edges() map[string][]string {
	out := make(map[string][]string, len(g.nodes))
	for _, inj := range g.nodes {
		deps := make([]string, 0, len(g.edges[inj]))
		for _, dep := range g.edges[inj] {
			deps = append(deps, dep.Key())
		}
		out[inj.Key()] = deps
	}
	return out
}

// stronglyConnected returns the strongly connected components of the graph using
// Tarjan's algorithm. Components are returned in reverse topological order, so every
// component appears after the components it depends on.
func (g *Graph) stronglyConnected() [][]*Injectable {
	var (
		index      = map[*Injectable]int{}
		lowlink    = map[*Injectable]int{}
		onStack    = map[*Injectable]bool{}
		stack      []*Injectable
		components [][]*Injectable
		next       int
		connect    func(v *Injectable)
	)
	connect = func(v *Injectable) {
		index[v] = next
		lowlink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range g.edges[v] {
			if _, visited := index[w]; !visited {
				connect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], index[w])
			}
		}
		if lowlink[v] != index[v] {
			return
		}
		var component []*Injectable
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			component = append(component, w)
			if w == v {
				break
			}
		}
		slices.Reverse(component)
		components = append(components, component)
	}
	for _, v := range g.nodes {
		if _, visited := index[v]; !visited {
			connect(v)
		}
	}
	return components
}

// breakCycles chooses proxy targets within a component until it is acyclic once edges
// into proxy targets are ignored.
func (g *Graph) breakCycles(component []*Injectable) error {
	members := map[*Injectable]bool{}
	for _, inj := range component {
		members[inj] = true
	}
	for {
		cycle := g.findCycle(component, members)
		if cycle == nil {
			return nil
		}
		candidates := filter(cycle[:len(cycle)-1], (*Injectable).Proxyable)
		if len(candidates) == 0 {
			return &CycleError{Path: cycle}
		}
		slices.SortFunc(candidates, func(a, b *Injectable) int { return strings.Compare(a.Key(), b.Key()) })
		g.proxies[candidates[0]] = true
	}
}

// findCycle returns a cycle among members, ignoring edges into proxy targets, or nil.
func (g *Graph) findCycle(component []*Injectable, members map[*Injectable]bool) []*Injectable {
	const (
		unvisited = iota
		active
		done
	)
	state := map[*Injectable]int{}
	var path []*Injectable
	var visit func(v *Injectable) []*Injectable
	visit = func(v *Injectable) []*Injectable {
		state[v] = active
		path = append(path, v)
		for _, w := range g.edges[v] {
			if !members[w] || g.proxies[w] {
				continue
			}
			switch state[w] {
			case active:
				start := slices.Index(path, w)
				cycle := slices.Clone(path[start:])
				return append(cycle, w)
			case unvisited:
				if cycle := visit(w); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		state[v] = done
		return nil
	}
	for _, v := range component {
		if state[v] == unvisited {
			if cycle := visit(v); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
