package generator

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/alecthomas/ioc/internal/buildtesting"
	"github.com/alecthomas/ioc/internal/logging/loggingtest"
	"github.com/alecthomas/ioc/internal/scan"
)

func TestMain(m *testing.M) { buildtesting.Run(m) }

const bootstrapApp = `package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/ioc"
)

//ioc:bean singleton
type Config struct{ Name string }

//ioc:bean singleton
type Service struct {
	Config *Config ` + "`inject:\"\"`" + `
	Fresh  *Config ` + "`inject:\"new\"`" + `
}

//ioc:bean
type Request struct {
	Config *Config ` + "`inject:\"\"`" + `
}

//ioc:bean singleton
type Registry struct{ Items []*A }

//ioc:bean singleton
type A struct {
	B *B ` + "`inject:\"\"`" + `
}

//ioc:inject
func (a *A) Register(registry *Registry) { registry.Items = append(registry.Items, a) }

//ioc:bean
type B struct{ A *A }

//ioc:constructor
func NewB(a *A) *B { return &B{A: a} }

func lookup[T any](ctx context.Context, beans *ioc.BeanManager) T {
	out, err := ioc.Lookup[T](ctx, beans)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return out
}

func main() {
	ctx := context.Background()
	beans, err := IOCBootstrap(ctx)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	config := lookup[*Config](ctx, beans)
	service := lookup[*Service](ctx, beans)
	fmt.Println("shared config:", service.Config == config)
	fmt.Println("fresh config:", service.Fresh != nil && service.Fresh != config)
	fmt.Println("singleton service:", lookup[*Service](ctx, beans) == service)

	first := lookup[*Request](ctx, beans)
	second := lookup[*Request](ctx, beans)
	fmt.Println("dependent request:", first != second && first.Config == config)

	a := lookup[*A](ctx, beans)
	registry := lookup[*Registry](ctx, beans)
	fmt.Println("cycle:", a.B != nil && a.B.A == a)
	fmt.Println("setter:", len(registry.Items) == 1 && registry.Items[0] == a)
}
`

func TestBootstrapRuns(t *testing.T) {
	dir := buildtesting.Prepare(t, bootstrapApp)
	t.Chdir(dir)

	universe, err := scan.Scan(".", scan.WithLogger(loggingtest.NewForTesting()))
	assert.NoError(t, err)
	source := &bytes.Buffer{}
	err = Generate(source, universe, WithLogger(loggingtest.NewForTesting()))
	assert.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "ioc_gen.go"), source.Bytes(), 0600)
	assert.NoError(t, err)

	cmd := exec.CommandContext(t.Context(), "go", "run", ".")
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	assert.NoError(t, err, "%s\nioc_gen.go:\n%s", output, numbered(source.String()))
	assert.Equal(t, strings.Join([]string{
		"shared config: true",
		"fresh config: true",
		"singleton service: true",
		"dependent request: true",
		"cycle: true",
		"setter: true",
	}, "\n")+"\n", string(output))
}

func numbered(source string) string {
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		lines[i] = fmt.Sprintf("%03d: %s", i+1, line)
	}
	return strings.Join(lines, "\n")
}
