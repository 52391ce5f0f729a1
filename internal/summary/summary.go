package summary

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/cosinor-cli/internal/cosinor"
	"github.com/KaramelBytes/cosinor-cli/internal/utils"
)

// Columns is the header of the summary table, in output order.
var Columns = []string{
	"Gene",
	"MESOR",
	"Amplitude",
	"Amplitude_SE",
	"Acrophase_radians",
	"Acrophase_hours",
	"R2",
	"ZeroAmp_pvalue",
}

// Row is one gene's cosinor statistics.
type Row struct {
	Gene             string  `json:"gene"`
	Mesor            float64 `json:"mesor"`
	Amplitude        float64 `json:"amplitude"`
	AmplitudeSE      float64 `json:"amplitude_se"`
	AcrophaseRadians float64 `json:"acrophase_radians"`
	AcrophaseHours   float64 `json:"acrophase_hours"`
	R2               float64 `json:"r2"`
	PValue           float64 `json:"zero_amp_pvalue"`
	N                int     `json:"n"`
}

// FromResult builds a row from a fit.
func FromResult(gene string, r *cosinor.Result) Row {
	return Row{
		Gene:             gene,
		Mesor:            r.Mesor,
		Amplitude:        r.Amplitude,
		AmplitudeSE:      r.AmplitudeSE,
		AcrophaseRadians: r.Acrophase,
		AcrophaseHours:   r.AcrophaseHours,
		R2:               r.R2,
		PValue:           r.PValue,
		N:                r.N,
	}
}

// MarshalJSON writes non-finite statistics as null.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Gene             string   `json:"gene"`
		Mesor            *float64 `json:"mesor"`
		Amplitude        *float64 `json:"amplitude"`
		AmplitudeSE      *float64 `json:"amplitude_se"`
		AcrophaseRadians *float64 `json:"acrophase_radians"`
		AcrophaseHours   *float64 `json:"acrophase_hours"`
		R2               *float64 `json:"r2"`
		PValue           *float64 `json:"zero_amp_pvalue"`
		N                int      `json:"n"`
	}{
		Gene:             r.Gene,
		Mesor:            finite(r.Mesor),
		Amplitude:        finite(r.Amplitude),
		AmplitudeSE:      finite(r.AmplitudeSE),
		AcrophaseRadians: finite(r.AcrophaseRadians),
		AcrophaseHours:   finite(r.AcrophaseHours),
		R2:               finite(r.R2),
		PValue:           finite(r.PValue),
		N:                r.N,
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (r Row) values() []float64 {
	return []float64{r.Mesor, r.Amplitude, r.AmplitudeSE, r.AcrophaseRadians, r.AcrophaseHours, r.R2, r.PValue}
}

// Table is the aggregate summary across genes, in processing order.
type Table struct {
	Rows []Row
}

// Add appends a row.
func (t *Table) Add(r Row) { t.Rows = append(t.Rows, r) }

// Len returns the number of genes.
func (t *Table) Len() int { return len(t.Rows) }

// CSV renders the table with a header row. NaN is written as an empty cell.
func (t *Table) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range t.Rows {
		rec := []string{r.Gene}
		for _, v := range r.values() {
			rec = append(rec, FormatFloat(v))
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write csv row %s: %w", r.Gene, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteCSV writes the table atomically to path.
func (t *Table) WriteCSV(path string) error {
	b, err := t.CSV()
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, b)
}

// FormatFloat prints the shortest representation that round-trips, using
// exponent notation only for very small or very large magnitudes.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	a := math.Abs(v)
	if a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Text renders an aligned plain-text table for the terminal.
func (t *Table) Text() string {
	cells := [][]string{append([]string{""}, Columns...)}
	for i, r := range t.Rows {
		row := []string{strconv.Itoa(i), r.Gene}
		for _, v := range r.values() {
			row = append(row, textFloat(v))
		}
		cells = append(cells, row)
	}
	widths := make([]int, len(cells[0]))
	for _, row := range cells {
		for j, c := range row {
			if n := len([]rune(c)); n > widths[j] {
				widths[j] = n
			}
		}
	}
	var b strings.Builder
	for _, row := range cells {
		for j, c := range row {
			if j > 0 {
				b.WriteString("  ")
			}
			pad := widths[j] - len([]rune(c))
			if j == 1 {
				b.WriteString(c)
				if j < len(row)-1 {
					b.WriteString(strings.Repeat(" ", pad))
				}
				continue
			}
			b.WriteString(strings.Repeat(" ", pad))
			b.WriteString(c)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func textFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	a := math.Abs(v)
	if a != 0 && (a < 1e-4 || a >= 1e6) {
		return strconv.FormatFloat(v, 'e', 6, 64)
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Markdown renders a compact report; genes with p < alpha are flagged rhythmic.
func (t *Table) Markdown(alpha float64) string {
	var b strings.Builder
	b.WriteString("[COSINOR SUMMARY]\n")
	b.WriteString(fmt.Sprintf("Genes: %d\n", len(t.Rows)))
	rhythmic := 0
	for _, r := range t.Rows {
		if !math.IsNaN(r.PValue) && r.PValue < alpha {
			rhythmic++
		}
	}
	b.WriteString(fmt.Sprintf("Rhythmic (p < %.3g): %d\n\n", alpha, rhythmic))
	b.WriteString("[GENES]\n")
	b.WriteString("| Gene | MESOR | Amplitude | SE | Acrophase (h) | R² | p | Rhythmic |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, r := range t.Rows {
		flag := "no"
		if !math.IsNaN(r.PValue) && r.PValue < alpha {
			flag = "yes"
		}
		b.WriteString(fmt.Sprintf("| %s | %.4g | %.4g | %.4g | %.2f | %.3f | %.3g | %s |\n",
			safeVal(r.Gene), r.Mesor, r.Amplitude, r.AmplitudeSE, r.AcrophaseHours, r.R2, r.PValue, flag))
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
