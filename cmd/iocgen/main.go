package main

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/alecthomas/errors"
	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/kballard/go-shellquote"

	"github.com/alecthomas/ioc/internal/generator"
	"github.com/alecthomas/ioc/internal/logging"
	"github.com/alecthomas/ioc/internal/scan"
)

const runtimeModule = "github.com/alecthomas/ioc"

type CLI struct {
	Version     kong.VersionFlag   `help:"Print the version and exit."`
	Chdir       kong.ChangeDirFlag `help:"Change to this directory before running." placeholder:"DIR" short:"C"`
	Config      kong.ConfigFlag    `help:"Load defaults from this TOML file." placeholder:"FILE"`
	Debug       bool               `help:"Enable debug logging."`
	Log         logging.Config     `embed:"" prefix:"log-"`
	Tags        []string           `help:"Tags to enable during type analysis (will also be read from $GOFLAGS)." placeholder:"TAG"`
	OutputTags  []string           `help:"Tags to add to generated code."`
	Resolve     []string           `help:"Resolve an ambiguous injection point with this provider or type." placeholder:"REF"`
	Alternative []string           `help:"Enable this alternative bean." placeholder:"REF"`
	Mocks       bool               `help:"Enable beans marked as test mocks."`
	Root        []string           `help:"Prune beans outside these roots." placeholder:"REF" short:"r"`
	List        bool               `help:"List all dependencies." xor:"action"`
	Check       bool               `help:"Exit with an error if the generated file is out of date." xor:"action"`
	Output      string             `help:"Name of the generated file in the destination directory." default:"ioc_gen.go"`
	Dest        string             `help:"Destination package directory for generated files." arg:"" type:"existingdir"`
	Patterns    []string           `help:"Additional packages pattern to scan." arg:"" optional:""`
}

func main() {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		version = info.Main.Version
	}
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Description("Generate compile-time dependency injection bootstrap code."),
		kong.Vars{"version": version},
		kong.Configuration(kongtoml.Loader, ".iocgen.toml"),
	)
	if cli.Debug {
		cli.Log.Level = slog.LevelDebug
	}
	logger := logging.New(os.Stderr, cli.Log)

	// Verify/add the version of the runtime being used.
	err := ensureGoModuleVersion(kctx, version)
	kctx.FatalIfErrorf(err)

	stale, err := cli.Run(logger, os.Stdout)
	kctx.FatalIfErrorf(err)
	if stale {
		kctx.Exit(1)
	}
}

// Run the generator, returning true if --check found the output out of date.
func (c *CLI) Run(logger *slog.Logger, stdout io.Writer) (bool, error) {
	// Combine explicit tags and tags from GOFLAGS
	tags := append(slices.Clone(c.Tags), parseGoTags(os.Getenv("GOFLAGS"))...)

	universe, err := scan.Scan(c.Dest,
		scan.WithPatterns(c.Patterns...),
		scan.WithTags(tags...),
		scan.WithLogger(logger),
	)
	if err != nil {
		return false, err
	}
	options := []generator.Option{
		generator.WithLogger(logger),
		generator.WithTags(c.OutputTags...),
		generator.WithPicks(c.Resolve...),
		generator.WithRoots(c.Root...),
		generator.WithAlternatives(c.Alternative...),
		generator.WithTestMocks(c.Mocks),
	}

	if c.List {
		_, g, err := generator.Analyse(universe, options...)
		if err != nil {
			return false, err
		}
		listEdges(stdout, g.Edges())
		return false, nil
	}

	source := &bytes.Buffer{}
	if err := generator.Generate(source, universe, options...); err != nil {
		return false, err
	}
	changed, err := writeOutput(dirFS{FS: os.DirFS(c.Dest), root: c.Dest}, c.Output, source.Bytes(), c.Check, stdout)
	if err != nil {
		return false, err
	}
	if changed && !c.Check {
		logger.Debug("Generated", "file", filepath.Join(c.Dest, c.Output))
	}
	return changed && c.Check, nil
}

func listEdges(w io.Writer, edges map[string][]string) {
	keys := make([]string, 0, len(edges))
	for key := range edges {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "%s\n", key)
		for _, dep := range edges[key] {
			fmt.Fprintf(w, "  %s\n", dep)
		}
	}
}

// writableFS is a filesystem generated files can be written to.
type writableFS interface {
	fs.FS
	WriteFile(name string, data []byte, perm fs.FileMode) error
}

type dirFS struct {
	fs.FS
	root string
}

func (d dirFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(filepath.Join(d.root, name), data, perm)
}

// writeOutput writes source to name if it differs from the existing file.
//
// If check is true the file is left untouched and a unified diff is written to stdout
// instead. Returns true if the file differed.
func writeOutput(fsys writableFS, name string, source []byte, check bool, stdout io.Writer) (bool, error) {
	existing, err := fs.ReadFile(fsys, name)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, errors.Errorf("failed to read %s: %w", name, err)
	}
	if bytes.Equal(existing, source) {
		return false, nil
	}
	if check {
		edits := myers.ComputeEdits(span.URIFromPath(name), string(existing), string(source))
		fmt.Fprint(stdout, gotextdiff.ToUnified(name, name, string(existing), edits))
		return true, nil
	}
	if err := fsys.WriteFile(name, source, 0600); err != nil {
		return false, errors.Errorf("failed to write %s: %w", name, err)
	}
	return true, nil
}

func ensureGoModuleVersion(kctx *kong.Context, version string) error {
	if version == "dev" || version == "(devel)" || strings.Contains(version, "+dirty") {
		return nil
	}
	output, err := exec.Command("go", "list", "-m", "-f", "{{.Version}}", runtimeModule).CombinedOutput() //nolint
	if err != nil {
		return fmt.Errorf("failed to get version of Go module %s: %w", runtimeModule, err)
	}
	moduleVersion := strings.TrimSpace(string(output))
	if moduleVersion == "v0.0.0-00010101000000-000000000000" || moduleVersion == version {
		return nil
	}
	kctx.Printf("updating to %s@%s", runtimeModule, version)
	cmd := exec.Command("go", "get", runtimeModule+"@"+version) //nolint
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "failed to update to "+runtimeModule+"@"+version)
	}
	cmd = exec.Command("go", "mod", "tidy") //nolint
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "failed to update to "+runtimeModule+"@"+version)
	}
	return nil
}

func parseGoTags(goFlags string) []string {
	words, err := shellquote.Split(goFlags)
	if err != nil {
		return nil
	}
	tags := []string{}
	for _, word := range words {
		if strings.HasPrefix(word, "-tags=") {
			tags = append(tags, strings.Split(word[6:], ",")...)
		} else if strings.HasPrefix(word, "--tags=") {
			tags = append(tags, strings.Split(word[7:], ",")...)
		}
	}
	return tags
}
