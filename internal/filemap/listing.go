package filemap

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"partrecon/internal/apperr"
)

// ListDir walks root in lexical order and returns the base names of files
// whose slash-separated relative path matches any include pattern. An empty
// include list accepts every file. Duplicate base names keep the first hit.
func ListDir(root string, include []string) ([]string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, &apperr.MissingInputError{Kind: "parts directory"}
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperr.MissingInputError{Kind: "parts directory", Path: root}
		}
		return nil, fmt.Errorf("stat parts directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("parts directory %q is not a directory", root)
	}

	matches := func(rel string) bool {
		if len(include) == 0 {
			return true
		}
		for _, pattern := range include {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return true
			}
		}
		return false
	}

	var names []string
	seen := make(map[string]struct{})
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if !matches(filepath.ToSlash(rel)) {
			return nil
		}
		name := entry.Name()
		if _, dup := seen[name]; dup {
			return nil
		}
		seen[name] = struct{}{}
		names = append(names, name)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk parts directory: %w", walkErr)
	}
	return names, nil
}

// ReadListing reads one file name per line, preserving order. Blank lines and
// lines starting with # are skipped; directories are stripped from each name.
func ReadListing(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperr.MissingInputError{Kind: "listing", Path: path}
		}
		return nil, fmt.Errorf("open listing: %w", err)
	}
	defer file.Close()

	var names []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name := filepath.Base(filepath.FromSlash(strings.ReplaceAll(line, `\`, "/")))
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	return names, nil
}
