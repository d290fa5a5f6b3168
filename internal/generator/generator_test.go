package generator

import (
	"bytes"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/errors"

	"github.com/alecthomas/ioc/internal/graph"
	. "github.com/alecthomas/ioc/internal/graph/graphtest" //nolint:revive
	"github.com/alecthomas/ioc/internal/meta"
)

// app returns a universe of a config singleton, a dependent repo constructed from it, and
// a service provided by a function.
func app() *meta.Universe {
	config := Struct("Config")
	repo := Struct("Repo")
	service := Struct("Service")
	configBean := Bean(config, "ioc:bean singleton")
	repoBean := Constructor(Bean(repo, "ioc:bean qualifier=Primary"), true, Param("config", types.NewPointer(config)))
	provider := Provider("ProvideService", "ioc:provider singleton", types.NewPointer(service),
		Param("repo", types.NewPointer(repo), "Primary"))
	return &meta.Universe{
		Dest:      Package,
		Types:     []*meta.Type{configBean, repoBean},
		Providers: []*meta.Func{provider},
	}
}

func generate(t *testing.T, universe *meta.Universe, options ...Option) string {
	t.Helper()
	out := &bytes.Buffer{}
	err := Generate(out, universe, options...)
	assert.NoError(t, err)
	_, err = parser.ParseFile(token.NewFileSet(), "ioc_gen.go", out.Bytes(), parser.ParseComments)
	assert.NoError(t, err, "%s", out.String())
	return out.String()
}

func TestGenerate(t *testing.T) {
	out := generate(t, app())
	assert.True(t, strings.HasPrefix(out, "// Code generated by iocgen. DO NOT EDIT.\n\npackage app\n"), "%s", out)
	assert.Contains(t, out, `"github.com/alecthomas/ioc"`)
	assert.Contains(t, out, "func IOCBootstrap(ctx context.Context, options ...ioc.Option) (*ioc.BeanManager, error) {\n")
	assert.Contains(t, out, "\tcctx := ioc.NewCreationalContext(ctx, options...)\n")
	assert.Contains(t, out, "\treturn cctx.BeanManager(), nil\n}\n")
	assert.Contains(t, out, "NewRepo(")
	assert.Contains(t, out, `return out, fmt.Errorf("NewRepo: %w", err)`)
	assert.Contains(t, out, "ProvideService(")
	assert.Contains(t, out, `qualifiers := []string{"Primary"}`)
	assert.Equal(t, 2, strings.Count(out, "ioc.Singleton,"))
	assert.Equal(t, 1, strings.Count(out, "ioc.Dependent,"))

	// Dependencies are emitted before their consumers.
	config := strings.Index(out, "CreationalCallback[*Config]")
	repo := strings.Index(out, "CreationalCallback[*Repo]")
	service := strings.Index(out, "CreationalCallback[*Service]")
	assert.True(t, config >= 0 && config < repo && repo < service, "%s", out)
}

func TestGenerateIsDeterministic(t *testing.T) {
	universe := app()
	assert.Equal(t, generate(t, universe), generate(t, universe))
}

func TestGenerateWithTags(t *testing.T) {
	out := generate(t, app(), WithTags("integration", "linux"))
	assert.Contains(t, out, "//go:build integration && linux\n")
}

func TestGenerateWritesNothingOnError(t *testing.T) {
	missing := Struct("Missing")
	service := Bean(Struct("Service"), "ioc:bean")
	service.Fields = append(service.Fields, Field("Missing", types.NewPointer(missing)))
	out := &bytes.Buffer{}
	err := Generate(out, &meta.Universe{Dest: Package, Types: []*meta.Type{service}})
	var unresolvable *graph.UnresolvableError
	assert.True(t, errors.As(err, &unresolvable), "%v", err)
	assert.Equal(t, 0, out.Len())
}

func TestGenerateWithoutDestination(t *testing.T) {
	universe := app()
	universe.Dest = nil
	err := Generate(&bytes.Buffer{}, universe)
	assert.EqualError(t, err, "no destination package")
}

func TestGenerateCycleUsesProxy(t *testing.T) {
	a := Struct("A")
	b := Struct("B")
	aBean := Bean(a, "ioc:bean singleton")
	aBean.Fields = append(aBean.Fields, Field("B", types.NewPointer(b)))
	bBean := Constructor(Bean(b, "ioc:bean"), false, Param("a", types.NewPointer(a)))
	out := generate(t, &meta.Universe{Dest: Package, Types: []*meta.Type{aBean, bBean}})
	assert.Contains(t, out, "ioc.NewProxy[A](cctx,")
	assert.Equal(t, 1, strings.Count(out, ".Bind("))
}

func TestGenerateCycleOfDependentsFails(t *testing.T) {
	a := Struct("A")
	b := Struct("B")
	aBean := Constructor(Bean(a, "ioc:bean"), false, Param("b", types.NewPointer(b)))
	bBean := Constructor(Bean(b, "ioc:bean"), false, Param("a", types.NewPointer(a)))
	err := Generate(&bytes.Buffer{}, &meta.Universe{Dest: Package, Types: []*meta.Type{aBean, bBean}})
	var cycle *graph.CycleError
	assert.True(t, errors.As(err, &cycle), "%v", err)
}

func TestGenerateElement(t *testing.T) {
	button := Struct("Button")
	page := Bean(Struct("Page"), "ioc:bean")
	page.Fields = append(page.Fields, Field("Button", types.NewPointer(button)))
	universe := &meta.Universe{
		Dest:  Package,
		Types: []*meta.Type{page, Bean(button, "ioc:native", "ioc:element my-button")},
	}
	out := generate(t, universe)
	assert.Contains(t, out, `ioc.CreateElement[*Button](cctx, "my-button")`)
}

func TestGenerateWithoutExtensions(t *testing.T) {
	button := Struct("Button")
	page := Bean(Struct("Page"), "ioc:bean")
	page.Fields = append(page.Fields, Field("Button", types.NewPointer(button)))
	universe := &meta.Universe{
		Dest:  Package,
		Types: []*meta.Type{page, Bean(button, "ioc:native", "ioc:element my-button")},
	}
	err := Generate(&bytes.Buffer{}, universe, WithExtensions())
	var unresolvable *graph.UnresolvableError
	assert.True(t, errors.As(err, &unresolvable), "%v", err)
}

func TestAnalyseRoots(t *testing.T) {
	universe := app()
	orphan := Bean(Struct("Orphan"), "ioc:bean")
	universe.Types = append(universe.Types, orphan)

	_, g, err := Analyse(universe)
	assert.NoError(t, err)
	assert.Equal(t, 4, len(g.Order()))

	_, g, err = Analyse(universe, WithRoots("github.com/example/app.ProvideService"))
	assert.NoError(t, err)
	assert.Equal(t, 3, len(g.Order()))
	for _, inj := range g.Order() {
		assert.NotEqual(t, "*github.com/example/app.Orphan", inj.Ref())
	}

	_, _, err = Analyse(universe, WithRoots("*github.com/example/app.Missing"))
	assert.Error(t, err)
}

func TestAnalyseMocks(t *testing.T) {
	store := Interface("Store")
	realStore := Struct("RealStore")
	mockStore := Struct("MockStore")
	Implement(realStore, store)
	Implement(mockStore, store)
	consumer := Bean(Struct("Consumer"), "ioc:bean")
	consumer.Fields = append(consumer.Fields, Field("Store", store))
	universe := &meta.Universe{
		Dest: Package,
		Types: []*meta.Type{
			consumer,
			Bean(realStore, "ioc:bean"),
			Bean(mockStore, "ioc:bean mock"),
		},
	}

	_, g, err := Analyse(universe)
	assert.NoError(t, err)
	assert.Equal(t, []string{"*github.com/example/app.RealStore"}, dependencies(g, consumer))

	_, g, err = Analyse(universe, WithTestMocks(true))
	assert.NoError(t, err)
	assert.Equal(t, []string{"*github.com/example/app.MockStore"}, dependencies(g, consumer))
}

func dependencies(g *graph.Graph, bean *meta.Type) []string {
	var out []string
	for _, inj := range g.Order() {
		if inj.Bean != bean {
			continue
		}
		for _, dep := range g.Dependencies(inj) {
			out = append(out, dep.Ref())
		}
	}
	return out
}
