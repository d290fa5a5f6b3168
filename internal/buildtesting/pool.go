// Package buildtesting provides a pool of Go build environments for use in tests.
//
// Each environment is a module named "test" in a workspace alongside the ioc module, so
// test sources may import the ioc runtime.
package buildtesting

import (
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

type Env struct {
	dir string
}

func newEnv(iocDir, dir string) Env {
	err := os.MkdirAll(dir, 0750)
	if err != nil {
		log.Fatalln(err)
	}
	poolExecIn(dir, "go", "mod", "init", "test")
	poolExecIn(dir, "go", "work", "init", dir, iocDir)
	return Env{dir: dir}
}

type Pool struct {
	iocDir    string
	available chan Env
}

// Run should be called from TestMain.
//
//	func TestMain(m *testing.M) { buildtesting.Run(m) }`)
//
// Then use Prepare() to retrieve an environment.
func Run(m *testing.M) {
	iocDir, err := moduleRoot()
	if err != nil {
		log.Fatalln(err)
	}

	dir, err := os.MkdirTemp("", "ioc-scan-")
	if err != nil {
		log.Fatal(err)
	}
	count := runtime.NumCPU() * 2
	pool = &Pool{
		iocDir:    iocDir,
		available: make(chan Env, count),
	}
	// Fill the pool with new environments.
	for i := range count {
		pool.available <- newEnv(iocDir, filepath.Join(dir, strconv.Itoa(i)))
	}
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

var pool *Pool

// Prepare a new test environment containing main.go, returning the path.
func Prepare(t *testing.T, main string) string {
	t.Helper()
	return pool.Prepare(t, map[string]string{"main.go": main})
}

// PrepareFiles prepares a new test environment containing files, keyed by slash-separated
// path relative to the module root, returning the path.
func PrepareFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	return pool.Prepare(t, files)
}

// Prepare a new test environment, returning the path.
//
// When the test completes the environment will be returned to the pool.
func (p *Pool) Prepare(t *testing.T, files map[string]string) string {
	t.Helper()
	env := <-p.available
	t.Cleanup(func() { p.returnEnv(t, env) })
	for name, content := range files {
		path := filepath.Join(env.dir, filepath.FromSlash(name))
		err := os.MkdirAll(filepath.Dir(path), 0750)
		assert.NoError(t, err)
		err = os.WriteFile(path, []byte(content), 0600)
		assert.NoError(t, err)
	}
	return env.dir
}

// returnEnv a test environment to the pool.
//
// Everything but the module and workspace files is removed, including anything the test
// generated.
func (p *Pool) returnEnv(t *testing.T, env Env) {
	t.Helper()
	entries, err := os.ReadDir(env.dir)
	assert.NoError(t, err)
	for _, entry := range entries {
		switch entry.Name() {
		case "go.mod", "go.sum", "go.work", "go.work.sum":
			continue
		}
		err := os.RemoveAll(filepath.Join(env.dir, entry.Name()))
		assert.NoError(t, err)
	}
	p.available <- env
}

// moduleRoot finds the directory of the go.mod enclosing the working directory.
func moduleRoot() (string, error) {
	out, err := exec.CommandContext(context.Background(), "go", "env", "GOMOD").Output()
	if err != nil {
		return "", err
	}
	gomod := strings.TrimSpace(string(out))
	if gomod == "" || gomod == os.DevNull {
		return "", os.ErrNotExist
	}
	return filepath.Dir(gomod), nil
}

func poolExecIn(dir string, cmd ...string) {
	c := exec.CommandContext(context.Background(), cmd[0], cmd[1:]...)
	b := &strings.Builder{}
	c.Stdout = b
	c.Stderr = b
	c.Dir = dir
	err := c.Run()
	if err != nil {
		log.Fatalln(err, b.String())
	}
}
