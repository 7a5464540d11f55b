package scanner

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func paths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func equalPaths(t *testing.T, got []FileInfo, want []string) {
	t.Helper()
	gotPaths := paths(got)
	if len(gotPaths) != len(want) {
		t.Fatalf("Scan() = %v, want %v", gotPaths, want)
	}
	for i := range want {
		if gotPaths[i] != want[i] {
			t.Fatalf("Scan() = %v, want %v", gotPaths, want)
		}
	}
}

func TestScannerScan(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"main.py":                   "print('hello')",
		"pkg/util.py":               "x = 1",
		"pkg/util.pyc":              "",
		"README.md":                 "# Test",
		".hidden/secret.py":         "x = 1",
		"pkg/__pycache__/util.py":   "x = 1",
		".venv/lib/site.py":         "x = 1",
		"node_modules/pkg/index.py": "x = 1",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	equalPaths(t, results, []string{"main.py", "pkg/util.py"})

	for _, f := range results {
		if !filepath.IsAbs(f.FullPath) {
			t.Errorf("FullPath %q is not absolute", f.FullPath)
		}
		if f.Size == 0 {
			t.Errorf("Size of %s = 0", f.Path)
		}
	}
}

func TestScannerWithIgnoreFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		".pycfgignore":           "# generated code\ngenerated/\n*_pb2.py\n/scripts/*.py\n!scripts/keep.py\n",
		"app.py":                 "x = 1",
		"api_pb2.py":             "x = 1",
		"lib/model_pb2.py":       "x = 1",
		"generated/out.py":       "x = 1",
		"scripts/tool.py":        "x = 1",
		"scripts/keep.py":        "x = 1",
		"lib/scripts/nested.py":  "x = 1",
		"lib/.pycfgignore":       "legacy.py\n",
		"lib/legacy.py":          "x = 1",
		"legacy.py":              "x = 1",
		"lib/generated/other.py": "x = 1",
	})

	results, err := Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	equalPaths(t, results, []string{
		"app.py",
		"legacy.py",
		"lib/scripts/nested.py",
		"scripts/keep.py",
	})
}

func TestScannerExtensions(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"a.py":  "x = 1",
		"b.pyi": "x: int",
		"c.txt": "",
	})

	opts := DefaultOptions()
	opts.Extensions = []string{".py", ".pyi"}
	results, err := New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	equalPaths(t, results, []string{"a.py", "b.pyi"})
}

func TestScannerHiddenIncluded(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		".config/setup.py": "x = 1",
	})

	opts := DefaultOptions()
	opts.SkipHidden = false
	results, err := New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	equalPaths(t, results, []string{".config/setup.py"})
}

func TestScannerSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	tmpDir := t.TempDir()
	outside := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"real.py": "x = 1"})
	writeTree(t, outside, map[string]string{"far.py": "x = 1"})

	if err := os.Symlink(filepath.Join(tmpDir, "real.py"), filepath.Join(tmpDir, "link.py")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outside, "far.py"), filepath.Join(tmpDir, "escape.py")); err != nil {
		t.Fatal(err)
	}

	results, err := Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	equalPaths(t, results, []string{"real.py"})

	opts := DefaultOptions()
	opts.FollowSymlinks = true
	results, err = New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	equalPaths(t, results, []string{"link.py", "real.py"})
}

func TestScanNotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.py")
	writeTree(t, filepath.Dir(path), map[string]string{"file.py": "x = 1"})

	if _, err := Scan(path); err == nil {
		t.Error("expected error scanning a file")
	}
	if _, err := Scan(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error scanning a missing directory")
	}
}

func TestIgnorePatternMatch(t *testing.T) {
	tests := []struct {
		pattern string
		base    string
		path    string
		isDir   bool
		want    bool
	}{
		{"*.py", "", "a.py", false, true},
		{"*.py", "", "deep/in/a.py", false, true},
		{"build/", "", "build", true, true},
		{"build/", "", "build", false, false},
		{"build/", "", "src/build", true, true},
		{"/top.py", "", "top.py", false, true},
		{"/top.py", "", "sub/top.py", false, false},
		{"docs/*.py", "", "docs/conf.py", false, true},
		{"docs/*.py", "", "x/docs/conf.py", false, false},
		{"**/tests/*.py", "", "a/b/tests/t.py", false, true},
		{"legacy.py", "lib", "lib/legacy.py", false, true},
		{"legacy.py", "lib", "legacy.py", false, false},
		{"test_[ab].py", "", "test_a.py", false, true},
		{"test_[ab].py", "", "test_c.py", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"@"+tt.path, func(t *testing.T) {
			p := ParseIgnorePattern(tt.pattern, tt.base)
			if got := p.Match(tt.path, tt.isDir); got != tt.want {
				t.Errorf("ParseIgnorePattern(%q, %q).Match(%q, %v) = %v, want %v",
					tt.pattern, tt.base, tt.path, tt.isDir, got, tt.want)
			}
		})
	}
}

func TestIgnorePatternNegation(t *testing.T) {
	patterns := []IgnorePattern{
		ParseIgnorePattern("*.py", ""),
		ParseIgnorePattern("!keep.py", ""),
	}
	if !matchesIgnorePatterns("drop.py", false, patterns) {
		t.Error("drop.py should be ignored")
	}
	if matchesIgnorePatterns("keep.py", false, patterns) {
		t.Error("keep.py should be re-included")
	}
	if !patterns[1].IsNegation() || patterns[0].IsNegation() {
		t.Error("IsNegation mismatch")
	}
	if patterns[1].String() != "!keep.py" {
		t.Errorf("String() = %q", patterns[1].String())
	}
}
