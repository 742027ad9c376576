// Package repo reads a working tree into a snapshot and writes suggested
// changes back into it.
package repo

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v6/plumbing/format/gitignore"
	log "github.com/sirupsen/logrus"
)

// DefaultIgnore lists the entries never sent to a model.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	".github",
	"dist",
	"__tests__",
	"docs",
	".DS_Store",
	".env",
	".env.example",
	"package-lock.json",
}

// ErrNotRepository is returned by Validate for a directory without .git.
var ErrNotRepository = errors.New("not a git repository")

// Validate checks that root is an existing directory holding a git repository.
func Validate(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("repository path does not exist: %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root)
	}
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return fmt.Errorf("%w: %s", ErrNotRepository, root)
	}
	return nil
}

// ReadSnapshot returns the content of every file under root keyed by its
// slash-separated relative path. DefaultIgnore, the patterns of root's
// .gitignore and extra (gitignore syntax) exclude entries. Unreadable files
// are logged and skipped.
func ReadSnapshot(root string, extra ...string) (map[string]string, error) {
	matcher := gitignore.NewMatcher(ignorePatterns(root, extra))
	snapshot := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("Error reading %s: %v", path, err)
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		if matcher.Match(strings.Split(filepath.ToSlash(rel), "/"), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("Error reading file %s: %v", rel, err)
			return nil
		}
		snapshot[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk repository %s: %w", root, err)
	}

	log.Infof("Retrieved content for %d files", len(snapshot))
	return snapshot, nil
}

func ignorePatterns(root string, extra []string) []gitignore.Pattern {
	var patterns []gitignore.Pattern
	for _, p := range DefaultIgnore {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	if data, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), " \r")
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, gitignore.ParsePattern(line, nil))
		}
	}

	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, gitignore.ParsePattern(p, nil))
		}
	}
	return patterns
}
