// Package scanner discovers the source files a scan should process. It
// walks a project tree applying include patterns, exclude patterns,
// gitignore rules, and binary detection, and returns slash-separated
// paths relative to the root in lexical order.
package scanner

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// ignoreCacheSize bounds the per-directory gitignore matcher cache.
	ignoreCacheSize = 512

	// DefaultMaxFileSize is the largest file the scanner will admit.
	DefaultMaxFileSize = 1 << 20 // 1 MiB

	// binarySniffLen is how many leading bytes are checked for NUL.
	binarySniffLen = 512
)

// defaultIncludeExts are scanned when config lists no include patterns.
var defaultIncludeExts = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".mjs": true, ".cjs": true,
}

// Options configures one discovery walk.
type Options struct {
	// Root is the project directory to walk.
	Root string

	// Include restricts results to files matching at least one glob
	// pattern. Empty means the default source extensions.
	Include []string

	// Exclude drops files and directories matching any glob pattern.
	Exclude []string

	// MaxFiles caps the number of results; 0 means no cap. The walk
	// stops once the cap is reached.
	MaxFiles int

	// MaxFileSize skips files larger than this many bytes; 0 uses
	// DefaultMaxFileSize.
	MaxFileSize int64

	// SkipGitignore disables .gitignore handling.
	SkipGitignore bool
}

// Scanner walks project trees. Parsed gitignore matchers are cached per
// directory with LRU eviction so repeated walks of a watched project
// stay cheap.
type Scanner struct {
	ignoreCache *lru.Cache[string, *ignoreMatcher]
	logger      *slog.Logger
}

// New creates a Scanner.
func New(logger *slog.Logger) (*Scanner, error) {
	cache, err := lru.New[string, *ignoreMatcher](ignoreCacheSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{ignoreCache: cache, logger: logger}, nil
}

// Discover walks opts.Root and returns the relative paths of every
// admissible file, sorted. Unreadable entries are logged and skipped.
func (s *Scanner) Discover(ctx context.Context, opts Options) ([]string, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			s.logger.Warn("scan skipping entry", "path", p, "error", walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.excludedDir(rel, d.Name(), opts) || s.gitignored(root, rel, true, opts) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if !s.admits(rel, d.Name(), opts) || s.gitignored(root, rel, false, opts) {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxSize {
			return nil
		}
		if s.isBinary(p) {
			return nil
		}

		paths = append(paths, rel)
		if opts.MaxFiles > 0 && len(paths) >= opts.MaxFiles {
			s.logger.Warn("scan truncated at file cap", "max_files", opts.MaxFiles)
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// InvalidateIgnoreCache drops cached gitignore matchers. Call after a
// .gitignore file changes.
func (s *Scanner) InvalidateIgnoreCache() {
	s.ignoreCache.Purge()
}

// Ignores reports whether a filesystem event for rel is irrelevant to a
// scan under opts. .gitignore files are never ignored so edits to them
// can invalidate the cache.
func (s *Scanner) Ignores(rel string, isDir bool, opts Options) bool {
	name := path.Base(rel)
	if isDir {
		return s.excludedDir(rel, name, opts) || s.gitignored(opts.Root, rel, true, opts)
	}
	if name == ".gitignore" {
		return false
	}
	return !s.admits(rel, name, opts) || s.gitignored(opts.Root, rel, false, opts)
}

func (s *Scanner) excludedDir(rel, name string, opts Options) bool {
	if name == ".git" || name == ".codeatlas" {
		return true
	}
	for _, pattern := range opts.Exclude {
		if matchConfigPattern(pattern, rel) {
			return true
		}
	}
	return false
}

func (s *Scanner) admits(rel, name string, opts Options) bool {
	for _, pattern := range opts.Exclude {
		if matchConfigPattern(pattern, rel) {
			return false
		}
	}
	if len(opts.Include) == 0 {
		return defaultIncludeExts[strings.ToLower(filepath.Ext(name))]
	}
	for _, pattern := range opts.Include {
		if matchConfigPattern(pattern, rel) {
			return true
		}
	}
	return false
}

// matchConfigPattern matches config include/exclude globs. Patterns use
// the gitignore glob dialect: `**` crosses directories, and a trailing
// `/**` names a directory plus everything beneath it.
func matchConfigPattern(pattern, rel string) bool {
	core, dirPattern := strings.CutSuffix(pattern, "/**")
	trimmed := strings.TrimPrefix(core, "**/")
	anchored := trimmed == core && strings.Contains(core, "/")

	re, err := compileIgnorePattern(trimmed, anchored)
	if err != nil {
		return false
	}
	if re.MatchString(rel) {
		return true
	}
	if dirPattern {
		dir := path.Dir(rel)
		for dir != "." && dir != "/" {
			if re.MatchString(dir) {
				return true
			}
			dir = path.Dir(dir)
		}
	}
	return false
}

// gitignored checks rel against every .gitignore from the root down to
// the entry's directory. Deeper files win over shallower ones.
func (s *Scanner) gitignored(root, rel string, isDir bool, opts Options) bool {
	if opts.SkipGitignore {
		return false
	}

	ignored := false
	// Walk from root to the entry's parent, consulting each level's
	// .gitignore with the path made relative to that level.
	segments := strings.Split(rel, "/")
	for depth := 0; depth < len(segments); depth++ {
		dir := filepath.Join(root, filepath.Join(segments[:depth]...))
		m := s.matcherFor(dir)
		if m == nil || len(m.rules) == 0 {
			continue
		}
		sub := strings.Join(segments[depth:], "/")
		if m.Match(sub, isDir) {
			ignored = true
		}
	}
	return ignored
}

func (s *Scanner) matcherFor(dir string) *ignoreMatcher {
	if m, ok := s.ignoreCache.Get(dir); ok {
		return m
	}
	m, err := parseIgnoreFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		s.logger.Warn("unreadable gitignore", "dir", dir, "error", err)
		m = &ignoreMatcher{}
	}
	s.ignoreCache.Add(dir, m)
	return m
}

func (s *Scanner) isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, binarySniffLen)
	n, _ := f.Read(buf)
	return bytes.IndexByte(buf[:n], 0) >= 0
}
