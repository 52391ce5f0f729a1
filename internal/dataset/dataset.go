package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/stat"
)

// ErrColumnNotFound indicates the time or value column is missing from the header.
var ErrColumnNotFound = errors.New("column not found")

// Options controls how a gene file is read.
type Options struct {
	// TimeColumn names the sampling time column (e.g. "ZT"). "Time" is always accepted.
	TimeColumn string
	// ValueColumn names the expression column. "Value" is always accepted.
	ValueColumn string
	// Delimiter for CSV. If 0, picked from the extension ('\t' for .tsv, ',' otherwise).
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// SheetName selects an XLSX sheet; empty means the first sheet.
	SheetName string
}

// DefaultOptions returns the column names written by the qPCR export.
func DefaultOptions() Options {
	return Options{
		TimeColumn:  "ZT",
		ValueColumn: "expression ratio (goi/hk)",
	}
}

// Series is one gene's time series.
type Series struct {
	Gene   string
	Path   string
	Times  []float64
	Values []float64
	// Warnings lists skipped rows and similar notes.
	Warnings []string
}

// Len returns the number of observations.
func (s *Series) Len() int { return len(s.Values) }

// TimePoint aggregates the replicates sampled at one time.
type TimePoint struct {
	Time  float64
	Count int
	Mean  float64
	// SD is the sample standard deviation; NaN for a single replicate.
	SD float64
}

// GroupByTime returns per-time mean and SD sorted by time.
func (s *Series) GroupByTime() []TimePoint {
	byTime := map[float64][]float64{}
	for i, t := range s.Times {
		byTime[t] = append(byTime[t], s.Values[i])
	}
	out := make([]TimePoint, 0, len(byTime))
	for t, vals := range byTime {
		tp := TimePoint{Time: t, Count: len(vals), Mean: stat.Mean(vals, nil), SD: math.NaN()}
		if len(vals) > 1 {
			tp.SD = stat.StdDev(vals, nil)
		}
		out = append(out, tp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// UniqueTimes returns the distinct sampling times in ascending order.
func (s *Series) UniqueTimes() []float64 {
	seen := map[float64]struct{}{}
	var out []float64
	for _, t := range s.Times {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Float64s(out)
	return out
}

// MinMax returns the smallest and largest value, or NaNs for an empty series.
func (s *Series) MinMax() (lo, hi float64) {
	if len(s.Values) == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range s.Values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// GeneName derives the gene name from a file path (basename without extension).
func GeneName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads a gene file. XLSX workbooks go through excelize; everything else
// is treated as delimited text.
func Load(path string, opt Options) (*Series, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		rows, err := readXLSX(path, opt.SheetName)
		if err != nil {
			return nil, err
		}
		return fromRows(path, rows, opt)
	}
	rows, err := readDelimited(path, opt)
	if err != nil {
		return nil, err
	}
	return fromRows(path, rows, opt)
}

func readDelimited(path string, opt Options) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comma = delim
	// encoding/csv treats a tab as leading space, so an empty TSV cell would
	// vanish. fromRows trims fields itself.
	r.TrimLeadingSpace = !unicode.IsSpace(delim)

	var rows [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// fromRows maps a header plus records onto a Series.
func fromRows(path string, rows [][]string, opt Options) (*Series, error) {
	s := &Series{Gene: GeneName(path), Path: path}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty file: %w", filepath.Base(path), ErrColumnNotFound)
	}
	header := rows[0]
	ti := findColumn(header, opt.TimeColumn, "Time")
	if ti < 0 {
		return nil, fmt.Errorf("%s: time column %q: %w", filepath.Base(path), opt.TimeColumn, ErrColumnNotFound)
	}
	vi := findColumn(header, opt.ValueColumn, "Value")
	if vi < 0 {
		return nil, fmt.Errorf("%s: value column %q: %w", filepath.Base(path), opt.ValueColumn, ErrColumnNotFound)
	}
	for n, rec := range rows[1:] {
		line := n + 2
		if ti >= len(rec) || vi >= len(rec) {
			s.Warnings = append(s.Warnings, fmt.Sprintf("row %d: missing fields", line))
			continue
		}
		tRaw, vRaw := strings.TrimSpace(rec[ti]), strings.TrimSpace(rec[vi])
		if tRaw == "" || vRaw == "" {
			s.Warnings = append(s.Warnings, fmt.Sprintf("row %d: skipped empty time/value", line))
			continue
		}
		t, okT := parseNumeric(tRaw, opt)
		v, okV := parseNumeric(vRaw, opt)
		if !okT || !okV {
			s.Warnings = append(s.Warnings, fmt.Sprintf("row %d: skipped non-numeric time/value (%q, %q)", line, tRaw, vRaw))
			continue
		}
		s.Times = append(s.Times, t)
		s.Values = append(s.Values, v)
	}
	return s, nil
}

// findColumn matches a header by exact name, by name with units stripped, or
// by the fallback name, case-insensitively.
func findColumn(header []string, name, fallback string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	wantClean, _ := splitUnits(want)
	fb := strings.ToLower(fallback)
	for _, cand := range []string{want, wantClean, fb} {
		if cand == "" {
			continue
		}
		for i, h := range header {
			hn := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
			clean, _ := splitUnits(hn)
			if hn == cand || clean == cand {
				return i
			}
		}
	}
	return -1
}

func sniffDelimiter(path string) rune {
	name := strings.ToLower(path)
	switch {
	case strings.HasSuffix(name, ".tsv"), strings.HasSuffix(name, ".txt"):
		return '\t'
	case strings.HasSuffix(name, ".ssv"):
		return ';'
	}
	return ','
}

func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.ReplaceAll(s, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		if cpos >= 0 && dpos >= 0 {
			if cpos > dpos {
				dec = ','
				thou = '.'
			} else {
				dec = '.'
				thou = ','
			}
		} else if cpos >= 0 {
			dec = ','
		} else {
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`),  // expression ratio (goi/hk)
	regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), // ZT [h]
}

func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, re := range unitPatterns {
		if m := re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[2])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}
