package healthcheck

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/l3aro/pycfg/internal/config"
	"github.com/l3aro/pycfg/pkg/cache"
	"github.com/l3aro/pycfg/pkg/cfg"
)

// ComponentStatus represents the health status of one dependency of pycfg.
type ComponentStatus struct {
	Name    string
	Path    string // resolved executable or file
	Version string
	Status  string // "ready", "missing", "error"
	Error   string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string
	SavedScope     string // "global" or "project"
	EffectivePath  string
	EffectiveScope string // "global" or "project"
	Layout         ComponentStatus
	Parser         ComponentStatus
	Cache          ComponentStatus
}

// HasError reports whether any component failed.
func (r *HealthCheckResult) HasError() bool {
	for _, s := range []ComponentStatus{r.Layout, r.Parser, r.Cache} {
		if s.Status != "ready" {
			return true
		}
	}
	return false
}

// probeTimeout bounds each external command run by the checks.
var probeTimeout = 5 * time.Second

// Check performs a health check against the given config.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use (considering priority).
func Check(c *config.Config, savedPath string, effectivePath string) (*HealthCheckResult, error) {
	if c == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
	}

	result.Layout = checkLayoutTool(c.DotPath)
	result.Parser = checkParser()
	result.Cache = checkCache(c)

	return result, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, ".pycfg")
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

// checkLayoutTool resolves the Graphviz executable and asks it for its
// version. dot prints the version banner on stderr.
func checkLayoutTool(dotPath string) ComponentStatus {
	status := ComponentStatus{Name: "graphviz"}

	r := &cfg.Renderer{DotPath: dotPath}
	path, err := r.LookPath()
	if err != nil {
		status.Status = "missing"
		status.Error = fmt.Sprintf("%s not found: %v", dotPath, err)
		return status
	}
	status.Path = path

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-V").CombinedOutput()
	if err != nil {
		status.Status = "error"
		status.Error = fmt.Sprintf("running %s -V: %v", path, err)
		return status
	}

	status.Version = strings.TrimSpace(string(out))
	status.Status = "ready"
	return status
}

// checkParser builds a small program end to end.
func checkParser() ComponentStatus {
	status := ComponentStatus{Name: "python parser", Version: "tree-sitter-python"}

	src := []byte("x = 1\nif x > 0:\n    x -= 1\n")
	g, err := cfg.FromSource(context.Background(), src)
	if err != nil {
		status.Status = "error"
		status.Error = err.Error()
		return status
	}
	if err := g.Validate(); err != nil {
		status.Status = "error"
		status.Error = err.Error()
		return status
	}

	status.Status = "ready"
	return status
}

// checkCache verifies the persisted snapshot cache, if any, can be loaded.
func checkCache(c *config.Config) ComponentStatus {
	path := c.CacheFile()
	status := ComponentStatus{Name: "snapshot cache", Path: path}

	lc, err := cache.New(c.CacheSize)
	if err != nil {
		status.Status = "error"
		status.Error = err.Error()
		return status
	}
	if err := cache.LoadFromFile(lc, path); err != nil {
		status.Status = "error"
		status.Error = err.Error()
		return status
	}

	status.Version = fmt.Sprintf("%d entries", lc.Len())
	status.Status = "ready"
	return status
}
