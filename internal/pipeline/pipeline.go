package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/cosinor-cli/internal/config"
	"github.com/KaramelBytes/cosinor-cli/internal/cosinor"
	"github.com/KaramelBytes/cosinor-cli/internal/dataset"
	"github.com/KaramelBytes/cosinor-cli/internal/plot"
	"github.com/KaramelBytes/cosinor-cli/internal/summary"
	"github.com/KaramelBytes/cosinor-cli/internal/utils"
)

// ManifestName is the file name of the run manifest inside the output folder.
const ManifestName = "cosinor_run.json"

// Options controls one batch run.
type Options struct {
	InputDir string
	Pattern  string
	// OutputDir receives figures and summaries; empty means InputDir.
	OutputDir string

	Dataset dataset.Options
	Model   cosinor.Options
	Plot    plot.Options

	// YPadding widens the shared y-axis by this fraction of the data span.
	YPadding    float64
	Alpha       float64
	SaveSummary bool
	SaveFigures bool
	SummaryName string
	SummaryXLSX bool
	Manifest    bool

	KeepGoing bool
	Quiet     bool
}

// OptionsFromConfig maps persisted settings onto run options.
func OptionsFromConfig(c *config.Global) (Options, error) {
	format, err := plot.ParseFormat(c.FigureFormat)
	if err != nil {
		return Options{}, err
	}
	outDir, err := utils.ExpandHome(c.OutputDir)
	if err != nil {
		return Options{}, err
	}
	ds := dataset.DefaultOptions()
	ds.TimeColumn = c.TimeColumn
	ds.ValueColumn = c.ValueColumn
	ds.SheetName = c.SheetName

	return Options{
		Pattern:   c.Pattern,
		OutputDir: outDir,
		Dataset:   ds,
		Model:     cosinor.Options{Period: c.Period, MaxIterations: c.MaxIterations},
		Plot: plot.Options{
			Format:      format,
			Width:       c.FigureWidth,
			Height:      c.FigureHeight,
			ShowPoints:  c.ShowPoints,
			CurvePoints: c.CurvePoints,
		},
		YPadding:    c.YPadding,
		Alpha:       c.Alpha,
		SaveSummary: c.SaveSummary,
		SaveFigures: c.SaveFigures,
		SummaryName: c.SummaryName,
		SummaryXLSX: c.SummaryXLSX,
		Manifest:    c.Manifest,
	}, nil
}

// Result describes what a run produced.
type Result struct {
	StartedAt    time.Time
	Inputs       []string
	Table        *summary.Table
	Figures      []string
	SummaryPath  string
	XLSXPath     string
	ManifestPath string
	Warnings     []string
}

// Run fits every discovered gene file and writes figures and summaries.
// Progress lines go to out; diagnostics go to logger.
func Run(ctx context.Context, opt Options, logger *zap.Logger, out io.Writer) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	started := time.Now()
	outDir := opt.OutputDir
	if outDir == "" {
		outDir = opt.InputDir
	}

	files, err := dataset.Discover(opt.InputDir, opt.Pattern)
	if err != nil {
		return nil, err
	}
	logger.Debug("discovered inputs", zap.String("dir", opt.InputDir), zap.Int("files", len(files)))

	res := &Result{StartedAt: started, Inputs: files, Table: &summary.Table{}}
	warn := func(msg string) {
		res.Warnings = append(res.Warnings, msg)
		logger.Warn(msg)
		if !opt.Quiet {
			fmt.Fprintf(out, "⚠ %s\n", msg)
		}
	}

	// All series are loaded up front so every figure shares one y-axis.
	var series []*dataset.Series
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s, err := dataset.Load(path, opt.Dataset)
		if err != nil {
			if !opt.KeepGoing {
				return res, fmt.Errorf("load %s: %w", filepath.Base(path), err)
			}
			warn(fmt.Sprintf("skipped %s: %v", filepath.Base(path), err))
			continue
		}
		for _, w := range s.Warnings {
			warn(fmt.Sprintf("%s: %s", filepath.Base(path), w))
		}
		series = append(series, s)
	}

	plotOpt := opt.Plot
	if yr, ok := dataset.PaddedRange(opt.YPadding, series...); ok {
		plotOpt.YRange = yr
	}

	if opt.SaveFigures || opt.SaveSummary || opt.SummaryXLSX || opt.Manifest {
		if err := utils.EnsureDir(outDir); err != nil {
			return res, err
		}
	}

	for i, s := range series {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		logger.Debug("fitting", zap.String("gene", s.Gene), zap.Int("n", s.Len()), zap.Int("index", i+1))
		fig, err := processGene(s, opt, plotOpt, outDir, res)
		if err != nil {
			if !opt.KeepGoing {
				return res, fmt.Errorf("gene %s: %w", s.Gene, err)
			}
			warn(fmt.Sprintf("skipped gene %s: %v", s.Gene, err))
			continue
		}
		if fig != "" && !opt.Quiet {
			fmt.Fprintf(out, "Saved figure: %s\n", fig)
		}
	}

	if !opt.Quiet {
		fmt.Fprintln(out, "\n=== COSINOR SUMMARY ===")
		fmt.Fprint(out, res.Table.Text())
	}

	if opt.SaveSummary {
		name := opt.SummaryName
		if name == "" {
			name = "cosinor_summary.csv"
		}
		res.SummaryPath = filepath.Join(outDir, name)
		if err := res.Table.WriteCSV(res.SummaryPath); err != nil {
			return res, fmt.Errorf("write summary: %w", err)
		}
		if !opt.Quiet {
			fmt.Fprintf(out, "\nSaved cosinor summary to: %s\n", res.SummaryPath)
		}
	}
	if opt.SummaryXLSX {
		res.XLSXPath = filepath.Join(outDir, xlsxName(opt.SummaryName))
		if err := res.Table.WriteXLSX(res.XLSXPath); err != nil {
			return res, fmt.Errorf("write summary workbook: %w", err)
		}
		if !opt.Quiet {
			fmt.Fprintf(out, "Saved cosinor workbook to: %s\n", res.XLSXPath)
		}
	}
	if opt.Manifest {
		res.ManifestPath = filepath.Join(outDir, ManifestName)
		if err := writeManifest(res, opt); err != nil {
			return res, err
		}
		logger.Debug("manifest written", zap.String("path", res.ManifestPath))
	}
	return res, nil
}

// processGene fits one series, records its row and writes its figure.
// It returns the figure path, or "" when figures are disabled.
func processGene(s *dataset.Series, opt Options, plotOpt plot.Options, outDir string, res *Result) (string, error) {
	fit, err := cosinor.Fit(s.Times, s.Values, opt.Model)
	if err != nil {
		return "", err
	}
	res.Table.Add(summary.FromResult(s.Gene, fit))
	if !opt.SaveFigures {
		return "", nil
	}
	b, err := plot.Render(s, fit, plotOpt)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	path := filepath.Join(outDir, s.Gene+"_cosinor"+plotOpt.Format.Ext())
	if err := utils.SafeWriteFile(path, b); err != nil {
		return "", fmt.Errorf("write figure: %w", err)
	}
	res.Figures = append(res.Figures, path)
	return path, nil
}

func xlsxName(csvName string) string {
	if csvName == "" {
		return "cosinor_summary.xlsx"
	}
	return strings.TrimSuffix(csvName, filepath.Ext(csvName)) + ".xlsx"
}

func writeManifest(res *Result, opt Options) error {
	m := summary.NewManifest(opt.InputDir, map[string]any{
		"pattern":       opt.Pattern,
		"period":        opt.Model.Period,
		"alpha":         opt.Alpha,
		"y_padding":     opt.YPadding,
		"show_points":   opt.Plot.ShowPoints,
		"figure_format": string(opt.Plot.Format),
		"time_column":   opt.Dataset.TimeColumn,
		"value_column":  opt.Dataset.ValueColumn,
		"keep_going":    opt.KeepGoing,
	})
	m.StartedAt = res.StartedAt
	m.Inputs = res.Inputs
	m.Outputs = append([]string{}, res.Figures...)
	for _, p := range []string{res.SummaryPath, res.XLSXPath} {
		if p != "" {
			m.Outputs = append(m.Outputs, p)
		}
	}
	m.Warnings = res.Warnings
	m.Genes = res.Table.Rows
	if err := m.Write(res.ManifestPath); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
