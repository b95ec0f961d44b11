package parser

import (
	"fmt"
	"os"
	"path/filepath"
)

// ExpandGlobs resolves data file arguments into a deduplicated list of paths
// in argument order; the matches of a single glob are sorted. Each pattern
// may be a file, a glob, or a directory (which expands to the *.csv files
// directly inside it). Patterns that match nothing are kept as literal paths
// so that opening them reports a useful error.
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && info.IsDir() {
			pattern = filepath.Join(pattern, "*.csv")
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			add(pattern)
			continue
		}

		for _, match := range matches {
			add(match)
		}
	}

	return result, nil
}
