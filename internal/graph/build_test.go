package graph_test

import (
	"go/types"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/errors"

	"github.com/alecthomas/ioc/internal/graph"
	. "github.com/alecthomas/ioc/internal/graph/graphtest" //nolint:revive
)

func keys(injectables []*graph.Injectable) []string {
	out := make([]string, len(injectables))
	for i, inj := range injectables {
		out[i] = inj.Key()
	}
	return out
}

func TestBuildOrder(t *testing.T) {
	config := Struct("Config")
	repo := Struct("Repo")
	service := Struct("Service")

	serviceBean := Constructor(Bean(service, "ioc:bean singleton"), false, Param("repo", types.NewPointer(repo)))
	repoBean := Bean(repo, "ioc:bean")
	repoBean.Fields = append(repoBean.Fields, Field("Config", types.NewPointer(config)))
	configBean := Bean(config, "ioc:bean singleton")

	r := graph.NewRegistry()
	mustRegister(t, r, serviceBean, repoBean, configBean)
	g, err := r.Build()
	assert.NoError(t, err)
	assert.Equal(t, []string{
		"*github.com/example/app.Config",
		"*github.com/example/app.Repo",
		"*github.com/example/app.Service",
	}, keys(g.Order()))
	assert.Equal(t, map[string][]string{
		"*github.com/example/app.Service": {"*github.com/example/app.Repo"},
		"*github.com/example/app.Repo":    {"*github.com/example/app.Config"},
		"*github.com/example/app.Config":  {},
	}, g.Edges())
	assert.Zero(t, g.ProxyTargets())
}

func TestBuildRoots(t *testing.T) {
	repo := Struct("Repo")
	service := Struct("Service")
	unused := Struct("Unused")

	r := graph.NewRegistry()
	mustRegister(t, r,
		Constructor(Bean(service, "ioc:bean"), false, Param("repo", types.NewPointer(repo))),
		Bean(repo, "ioc:bean"),
		Bean(unused, "ioc:bean"),
	)
	g, err := r.Build("*github.com/example/app.Service")
	assert.NoError(t, err)
	assert.Equal(t, []string{"*github.com/example/app.Repo", "*github.com/example/app.Service"}, keys(g.Order()))

	_, err = r.Build("*github.com/example/app.Missing")
	assert.EqualError(t, err, "the required root *github.com/example/app.Missing does not exist")
}

func TestBuildCollectsResolutionErrors(t *testing.T) {
	service := Struct("Service")
	bean := Bean(service, "ioc:bean")
	bean.Fields = append(bean.Fields,
		Field("Repo", types.NewPointer(Struct("Repo"))),
		Field("Cache", types.NewPointer(Struct("Cache"))),
	)
	r := graph.NewRegistry()
	mustRegister(t, r, bean)
	_, err := r.Build()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Repo")
	assert.Contains(t, err.Error(), "Cache")
	var unresolvable *graph.UnresolvableError
	assert.True(t, errors.As(err, &unresolvable))
}

func TestBuildCycleWithProxyableSingleton(t *testing.T) {
	a := Struct("A")
	b := Struct("B")
	aBean := Bean(a, "ioc:bean singleton")
	aBean.Fields = append(aBean.Fields, Field("B", types.NewPointer(b)))
	bBean := Constructor(Bean(b, "ioc:bean"), false, Param("a", types.NewPointer(a)))

	r := graph.NewRegistry()
	injs := mustRegister(t, r, aBean, bBean)
	g, err := r.Build()
	assert.NoError(t, err)
	assert.Equal(t, []string{"*github.com/example/app.A"}, keys(g.ProxyTargets()))
	assert.True(t, g.IsProxyTarget(injs[0]))
	assert.False(t, g.IsProxyTarget(injs[1]))

	// B's constructor parameter is satisfied by the proxy, A's field by B itself.
	assert.True(t, g.Deferred(injs[1].Sites[0]))
	assert.False(t, g.Deferred(injs[0].Sites[0]))
	assert.Equal(t, injs[0], g.Resolved(injs[1].Sites[0]))
}

func TestBuildCycleOfDependents(t *testing.T) {
	a := Struct("A")
	b := Struct("B")
	aBean := Bean(a, "ioc:bean")
	aBean.Fields = append(aBean.Fields, Field("B", types.NewPointer(b)))
	bBean := Bean(b, "ioc:bean")
	bBean.Fields = append(bBean.Fields, Field("A", types.NewPointer(a)))

	r := graph.NewRegistry()
	mustRegister(t, r, aBean, bBean)
	_, err := r.Build()
	var cycle *graph.CycleError
	assert.True(t, errors.As(err, &cycle))
	assert.Equal(t, 3, len(cycle.Path))
	assert.Contains(t, err.Error(), "circular dependency with no proxyable singleton")
}

func TestBuildSelfCycle(t *testing.T) {
	node := Struct("Node")
	bean := Bean(node, "ioc:bean singleton")
	bean.Fields = append(bean.Fields, Field("Next", types.NewPointer(node)))

	r := graph.NewRegistry()
	injs := mustRegister(t, r, bean)
	g, err := r.Build()
	assert.NoError(t, err)
	assert.True(t, g.IsProxyTarget(injs[0]))
	assert.True(t, g.Deferred(injs[0].Sites[0]))
}

func TestBuildNestedCyclesShareProxy(t *testing.T) {
	// A -> B -> A and A -> C -> A are both broken by proxying A.
	a := Struct("A")
	b := Struct("B")
	c := Struct("C")
	aBean := Bean(a, "ioc:bean singleton")
	aBean.Fields = append(aBean.Fields, Field("B", types.NewPointer(b)), Field("C", types.NewPointer(c)))
	bBean := Bean(b, "ioc:bean")
	bBean.Fields = append(bBean.Fields, Field("A", types.NewPointer(a)))
	cBean := Bean(c, "ioc:bean")
	cBean.Fields = append(cBean.Fields, Field("A", types.NewPointer(a)))

	r := graph.NewRegistry()
	mustRegister(t, r, aBean, bBean, cBean)
	g, err := r.Build()
	assert.NoError(t, err)
	assert.Equal(t, []string{"*github.com/example/app.A"}, keys(g.ProxyTargets()))
}
