package main

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/psanford/memfs"

	"github.com/alecthomas/ioc/internal/buildtesting"
	"github.com/alecthomas/ioc/internal/logging/loggingtest"
)

func TestMain(m *testing.M) { buildtesting.Run(m) }

func TestRunReportsStaleOnlyWhenChecking(t *testing.T) {
	dir := buildtesting.Prepare(t, `package main

//ioc:bean singleton
type Config struct{}

func main() {}
`)
	t.Chdir(dir)
	logger := loggingtest.NewForTesting()
	stdout := &bytes.Buffer{}

	// Writing a new file is success.
	cli := &CLI{Dest: ".", Output: "ioc_gen.go"}
	stale, err := cli.Run(logger, stdout)
	assert.NoError(t, err)
	assert.False(t, stale)
	generated, err := os.ReadFile(filepath.Join(dir, "ioc_gen.go"))
	assert.NoError(t, err)
	assert.Contains(t, string(generated), "func IOCBootstrap(")

	cli.Check = true
	stale, err = cli.Run(logger, stdout)
	assert.NoError(t, err)
	assert.False(t, stale)
	assert.Equal(t, "", stdout.String())

	err = os.WriteFile(filepath.Join(dir, "ioc_gen.go"), []byte("package main\n"), 0600)
	assert.NoError(t, err)
	stale, err = cli.Run(logger, stdout)
	assert.NoError(t, err)
	assert.True(t, stale)
	assert.Contains(t, stdout.String(), "+func IOCBootstrap(")
}

func TestWriteOutput(t *testing.T) {
	fsys := memfs.New()
	stdout := &bytes.Buffer{}

	changed, err := writeOutput(fsys, "ioc_gen.go", []byte("package app\n"), false, stdout)
	assert.NoError(t, err)
	assert.True(t, changed)
	data, err := fs.ReadFile(fsys, "ioc_gen.go")
	assert.NoError(t, err)
	assert.Equal(t, "package app\n", string(data))

	changed, err = writeOutput(fsys, "ioc_gen.go", []byte("package app\n"), false, stdout)
	assert.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "", stdout.String())
}

func TestWriteOutputCheck(t *testing.T) {
	fsys := memfs.New()
	err := fsys.WriteFile("ioc_gen.go", []byte("package app\n\nvar a = 1\n"), 0600)
	assert.NoError(t, err)
	stdout := &bytes.Buffer{}

	changed, err := writeOutput(fsys, "ioc_gen.go", []byte("package app\n\nvar a = 2\n"), true, stdout)
	assert.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, stdout.String(), "-var a = 1\n")
	assert.Contains(t, stdout.String(), "+var a = 2\n")

	data, err := fs.ReadFile(fsys, "ioc_gen.go")
	assert.NoError(t, err)
	assert.Equal(t, "package app\n\nvar a = 1\n", string(data))

	stdout.Reset()
	changed, err = writeOutput(fsys, "ioc_gen.go", []byte("package app\n\nvar a = 1\n"), true, stdout)
	assert.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "", stdout.String())
}

func TestParseGoTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, parseGoTags(`-mod=mod -tags=a,b "--tags=c"`))
	assert.Equal(t, []string{}, parseGoTags(""))
	assert.Zero(t, parseGoTags(`-tags="unterminated`))
}

func TestListEdges(t *testing.T) {
	out := &strings.Builder{}
	listEdges(out, map[string][]string{
		"*app.Service": {"*app.Repo"},
		"*app.Repo":    {"*app.Config"},
		"*app.Config":  {},
	})
	assert.Equal(t, "*app.Config\n*app.Repo\n  *app.Config\n*app.Service\n  *app.Repo\n", out.String())
}
