package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ajitpratap0/polyload/pkg/compression"
	"github.com/ajitpratap0/polyload/pkg/errors"
)

// DefaultPatterns are the file patterns discovered when none are configured.
var DefaultPatterns = []string{"*.csv", "*.csv.gz", "*.csv.zst", "*.csv.lz4"}

// TableName derives the logical table name from a file path by taking the
// base name and stripping a compression suffix, then one extension:
// data/tags.csv.gz -> tags, book_tags.2023.csv -> book_tags.2023.
func TableName(path string) string {
	base := filepath.Base(path)
	if compression.Detect(base) != compression.None {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// Discover returns the regular files in dir matching any of patterns,
// sorted by name and without duplicates.
func Discover(dir string, patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read download dir")
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrorTypeFile, "%s is not a directory", dir)
	}

	seen := make(map[string]struct{})
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid file pattern "+p)
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			if fi, err := os.Stat(m); err != nil || !fi.Mode().IsRegular() {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}
