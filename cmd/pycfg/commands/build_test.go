package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/pycfg/internal/config"
	"github.com/l3aro/pycfg/internal/log"
	"github.com/l3aro/pycfg/pkg/cache"
	"github.com/l3aro/pycfg/pkg/cfg"
)

const program = `x = 1
if x > 0:
    x -= 1
`

const library = `import sys

def countdown(n):
    while n > 0:
        n -= 1
    return n
`

func writeProgram(t *testing.T, code string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.py")
	require.NoError(t, os.WriteFile(path, []byte(code), 0644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.DefaultConfig()
	c.CacheDir = t.TempDir()
	return c
}

func TestRunBuildPrintsDOT(t *testing.T) {
	var out bytes.Buffer
	opts := buildOptions{Input: writeProgram(t, program), NoRender: true}

	err := runBuild(context.Background(), testConfig(t), opts, &out, log.Nop())
	require.NoError(t, err)

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "digraph cfg {"), text)
	assert.Contains(t, text, "label=entry")
	assert.Contains(t, text, `"x > 0"`)
	assert.Contains(t, text, "shape=box")
}

func TestRunBuildJSONFunction(t *testing.T) {
	var out bytes.Buffer
	opts := buildOptions{
		Input:    writeProgram(t, library),
		Function: "countdown",
		Format:   "json",
		NoRender: true,
	}

	require.NoError(t, runBuild(context.Background(), testConfig(t), opts, &out, log.Nop()))

	snap, err := cfg.DecodeSnapshot(bytes.TrimSpace(out.Bytes()), cfg.FormatJSON)
	require.NoError(t, err)
	g, err := snap.Graph()
	require.NoError(t, err)

	_, ok := g.FindByText("n > 0")
	assert.True(t, ok)
	_, ok = g.FindByText("import sys")
	assert.False(t, ok, "module statements are not part of the function graph")
}

func TestRunBuildMsgpack(t *testing.T) {
	var out bytes.Buffer
	opts := buildOptions{Input: writeProgram(t, program), Format: "msgpack", NoRender: true}

	require.NoError(t, runBuild(context.Background(), testConfig(t), opts, &out, log.Nop()))

	snap, err := cfg.DecodeSnapshot(out.Bytes(), cfg.FormatMsgpack)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Stats.Conditions)
}

func TestRunBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		opts buildOptions
		code string
		want string
		is   error
	}{
		{
			name: "unknown format",
			opts: buildOptions{Format: "xml"},
			code: program,
			want: "unknown output format",
		},
		{
			name: "missing function",
			opts: buildOptions{Function: "nope"},
			code: library,
			want: "available: countdown",
		},
		{
			name: "function definition in module body",
			code: library,
			is:   cfg.ErrUnsupported,
		},
		{
			name: "non-comparison test",
			code: "if ready:\n    go()\n",
			is:   cfg.ErrUnsupported,
		},
		{
			name: "break outside loop",
			code: "break\n",
			is:   cfg.ErrLoopControl,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.Input = writeProgram(t, tt.code)
			opts.NoRender = true

			err := runBuild(context.Background(), testConfig(t), opts, &bytes.Buffer{}, log.Nop())
			require.Error(t, err)
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), "got %v", err)
			}
		})
	}
}

func TestRunBuildRejectsNonPython(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0644))

	err := runBuild(context.Background(), testConfig(t), buildOptions{Input: path, NoRender: true}, &bytes.Buffer{}, log.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only .py files")
}

func TestRunBuildLenientTests(t *testing.T) {
	c := testConfig(t)
	c.StrictTests = false

	var out bytes.Buffer
	opts := buildOptions{Input: writeProgram(t, "if ready:\n    go()\n"), NoRender: true}
	require.NoError(t, runBuild(context.Background(), c, opts, &out, log.Nop()))
	assert.Contains(t, out.String(), "label=ready")
}

func TestRunBuildCache(t *testing.T) {
	c := testConfig(t)
	input := writeProgram(t, program)
	opts := buildOptions{Input: input, NoRender: true, UseCache: true}

	var first bytes.Buffer
	require.NoError(t, runBuild(context.Background(), c, opts, &first, log.Nop()))

	lc, err := cache.New(c.CacheSize)
	require.NoError(t, err)
	require.NoError(t, cache.LoadFromFile(lc, c.CacheFile()))
	assert.Equal(t, 1, lc.Len())

	src, err := os.ReadFile(input)
	require.NoError(t, err)
	_, ok := lc.Get(cache.Key(src, buildKeyParts(c, "")...))
	assert.True(t, ok)

	var second bytes.Buffer
	require.NoError(t, runBuild(context.Background(), c, opts, &second, log.Nop()))
	assert.Equal(t, first.String(), second.String())

	// a different option set is a different entry
	c.SurfaceLoopExits = true
	require.NoError(t, runBuild(context.Background(), c, opts, &bytes.Buffer{}, log.Nop()))
	require.NoError(t, cache.LoadFromFile(lc, c.CacheFile()))
	assert.Equal(t, 2, lc.Len())
}

func TestRunBuildRenders(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	dir := t.TempDir()
	tool := filepath.Join(dir, "dot")
	script := "#!/bin/sh\n# args: -Tfmt in -o out\ncp \"$2\" \"$4\"\n"
	require.NoError(t, os.WriteFile(tool, []byte(script), 0755))

	c := testConfig(t)
	c.DotPath = tool
	c.OutputFormat = config.FormatSVG
	out := filepath.Join(dir, "graph.svg")

	opts := buildOptions{Input: writeProgram(t, program), Output: out}
	require.NoError(t, runBuild(context.Background(), c, opts, &bytes.Buffer{}, log.Nop()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph cfg")
}

func TestIsPythonFile(t *testing.T) {
	assert.True(t, isPythonFile("a/b.py"))
	assert.True(t, isPythonFile("stubs.pyi"))
	assert.False(t, isPythonFile("main.go"))
}

func TestCachedGraph(t *testing.T) {
	assert.Nil(t, cachedGraph(nil, "k", log.Nop()))

	lc, err := cache.New(4)
	require.NoError(t, err)
	key := cache.Key([]byte(program))
	assert.Nil(t, cachedGraph(lc, key, log.Nop()), "miss")

	lc.Put(key, &cfg.Snapshot{Nodes: []cfg.SnapshotNode{{ID: 3, Kind: cfg.KindStatement}}})
	assert.Nil(t, cachedGraph(lc, key, log.Nop()), "invalid snapshot")
	assert.Equal(t, 0, lc.Len(), "invalid snapshot is evicted")

	g, err := cfg.FromSource(context.Background(), []byte(program))
	require.NoError(t, err)
	lc.Put(key, g.Snapshot())
	got := cachedGraph(lc, key, log.Nop())
	require.NotNil(t, got)
	assert.Equal(t, g.Len(), got.Len())
}
