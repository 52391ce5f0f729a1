package dataset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoInputs is returned when discovery matches nothing.
var ErrNoInputs = errors.New("no input files matched")

// DefaultPattern matches one gene per TSV file.
const DefaultPattern = "*.tsv"

// Discover returns the files in dir matching pattern, sorted and deduplicated.
// dir == "" means the working directory.
func Discover(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("input folder: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("input folder %s is not a directory", dir)
		}
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	seen := map[string]struct{}{}
	var files []string
	for _, m := range matches {
		if info, err := os.Stat(m); err != nil || info.IsDir() {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		files = append(files, m)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInputs, filepath.Join(dir, pattern))
	}
	sort.Strings(files)
	return files, nil
}

// Range is a y-axis interval shared by all figures of a run.
type Range struct {
	Min, Max float64
}

// PaddedRange returns the global value range over all series, widened by
// frac of the span on each side. A zero span is widened by ±0.5.
func PaddedRange(frac float64, series ...*Series) (Range, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		if s == nil || s.Len() == 0 {
			continue
		}
		a, b := s.MinMax()
		lo = math.Min(lo, a)
		hi = math.Max(hi, b)
	}
	if math.IsInf(lo, 1) {
		return Range{}, false
	}
	pad := (hi - lo) * frac
	if hi == lo {
		pad = 0.5
	}
	return Range{Min: lo - pad, Max: hi + pad}, true
}
