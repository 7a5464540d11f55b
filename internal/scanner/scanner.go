// Package scanner walks a project tree for Python sources. It respects
// .pycfgignore files with gitignore-style patterns.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string // Absolute path
	Size     int64  // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	FollowSymlinks  bool     // Follow file symlinks that stay within root
	DefaultExcludes []string // Directory names never entered
	IgnoreFileName  string   // Name of the ignore file (default: .pycfgignore)
	Extensions      []string // File extensions to report (default: .py)
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".pycfgignore",
		Extensions:     []string{".py"},
		DefaultExcludes: []string{
			"__pycache__",
			".venv",
			"venv",
			".tox",
			".nox",
			".mypy_cache",
			".pytest_cache",
			"site-packages",
			"node_modules",
			"build",
			"dist",
			".git",
			".hg",
		},
	}
}

// Scanner provides file tree scanning.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = ".pycfgignore"
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".py"}
	}
	return &Scanner{opts: opts}
}

// Scan walks root and returns matching files sorted by path. Ignore files
// found in subdirectories add to the patterns of the root one; their
// patterns are relative to the directory holding them.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	var patterns []IgnorePattern
	var files []FileInfo

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." {
				if (s.opts.SkipHidden && isHidden(d.Name())) || s.isDefaultExcluded(d.Name()) {
					return filepath.SkipDir
				}
				if matchesIgnorePatterns(rel, true, patterns) {
					return filepath.SkipDir
				}
			}
			nested, err := s.loadIgnorePatterns(path, rel)
			if err != nil {
				return fmt.Errorf("loading ignore patterns: %w", err)
			}
			patterns = append(patterns, nested...)
			return nil
		}

		if s.opts.SkipHidden && isHidden(d.Name()) {
			return nil
		}
		if !s.hasExtension(d.Name()) {
			return nil
		}
		if matchesIgnorePatterns(rel, false, patterns) {
			return nil
		}

		fi, ok := s.resolve(absRoot, path, d)
		if !ok {
			return nil
		}
		files = append(files, FileInfo{Path: rel, FullPath: path, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// resolve returns file info for a regular file, following a symlink when
// allowed and the target stays within root.
func (s *Scanner) resolve(root, path string, d fs.DirEntry) (fs.FileInfo, bool) {
	if d.Type()&fs.ModeSymlink == 0 {
		fi, err := d.Info()
		return fi, err == nil
	}
	if !s.opts.FollowSymlinks {
		return nil, false
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, false
	}
	if !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return nil, false
	}
	fi, err := os.Stat(target)
	if err != nil || fi.IsDir() {
		return nil, false
	}
	return fi, true
}

func (s *Scanner) hasExtension(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range s.opts.Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// loadIgnorePatterns reads the ignore file in dir. rel is dir relative to the
// scan root and scopes the patterns.
func (s *Scanner) loadIgnorePatterns(dir, rel string) ([]IgnorePattern, error) {
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	base := ""
	if rel != "." {
		base = rel
	}

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line, base))
	}
	return patterns, sc.Err()
}

// Scan scans root with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
