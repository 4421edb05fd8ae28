package mainindexer

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// EnumerateFiles walks repoPath and returns every regular file whose path,
// relative to repoPath, matches at least one included glob and none of the
// excluded globs. Excluded globs are matched component-by-component against
// the relative path, so the default exclusions (".*", "vendor",
// "node_modules", ...) apply regardless of depth; included globs are matched
// against the base name or the whole relative path.
func EnumerateFiles(repoPath string, included, excluded []string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directory entries are skipped rather than aborting
			// the whole walk; the caller's own per-file read will surface
			// anything that matters.
			return nil
		}

		relPath, relErr := filepath.Rel(repoPath, path)
		if relErr != nil || relPath == "." {
			return nil
		}

		if d.IsDir() {
			if matchesAnyComponent(relPath, excluded) {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAnyComponent(relPath, excluded) {
			return nil
		}
		if !matchesIncluded(relPath, included) {
			return nil
		}

		files = append(files, relPath)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// matchesAnyComponent reports whether any path component of relPath matches
// any of the given glob patterns, so a pattern like "vendor" excludes
// "vendor/x.go" and "a/vendor/b.go" alike.
func matchesAnyComponent(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	for _, part := range parts {
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}

// matchesIncluded reports whether relPath's base name matches at least one
// included glob. An empty pattern set matches everything.
func matchesIncluded(relPath string, included []string) bool {
	if len(included) == 0 {
		return true
	}
	base := filepath.Base(relPath)
	for _, pattern := range included {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}
