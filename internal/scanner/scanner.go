package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extensions the API can ingest, directly or after conversion
var Extensions = []string{".json", ".eml"}

// Uploadable reports whether name has an extension the importer handles
func Uploadable(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Scanner finds uploadable files under a folder
type Scanner struct {
	rootPath string
}

// NewScanner creates a new scanner for the given root path
func NewScanner(rootPath string) *Scanner {
	return &Scanner{
		rootPath: rootPath,
	}
}

// GetRootPath returns the root path for resolving relative paths
func (s *Scanner) GetRootPath() string {
	return s.rootPath
}

// Scan recursively collects .json and .eml files and returns their paths
// relative to rootPath, slash-separated and sorted. Hidden directories are
// skipped.
func (s *Scanner) Scan() ([]string, error) {
	absRoot, err := filepath.Abs(s.rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute root path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", s.rootPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", s.rootPath)
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if d.IsDir() {
			if path != absRoot && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !Uploadable(path) {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}
		files = append(files, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// Count returns the number of uploadable files without collecting them
func (s *Scanner) Count() (int, error) {
	files, err := s.Scan()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// Resolve turns a path returned by Scan back into a filesystem path
func (s *Scanner) Resolve(relPath string) string {
	return filepath.Join(s.rootPath, filepath.FromSlash(relPath))
}
