package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/cosinor-cli/internal/cosinor"
	"github.com/KaramelBytes/cosinor-cli/internal/dataset"
	"github.com/KaramelBytes/cosinor-cli/internal/plot"
	"github.com/KaramelBytes/cosinor-cli/internal/summary"
	"github.com/KaramelBytes/cosinor-cli/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	anaPlotPath    string
	anaMarkdown    bool
	anaPeriod      float64
	anaNoPoints    bool
	anaTimeColumn  string
	anaValueColumn string
	anaSheetName   string
	anaDecimal     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Fit a single gene file and print the cosinor parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		c := effectiveConfig()
		f := cmd.Flags()
		if f.Changed("period") {
			c.Period = anaPeriod
		}
		if f.Changed("time-column") {
			c.TimeColumn = anaTimeColumn
		}
		if f.Changed("value-column") {
			c.ValueColumn = anaValueColumn
		}
		if f.Changed("sheet-name") {
			c.SheetName = anaSheetName
		}
		if f.Changed("no-points") {
			c.ShowPoints = !anaNoPoints
		}
		if err := c.Validate(); err != nil {
			return err
		}

		opt := dataset.DefaultOptions()
		opt.TimeColumn = c.TimeColumn
		opt.ValueColumn = c.ValueColumn
		opt.SheetName = c.SheetName
		// Locale separators
		switch strings.ToLower(strings.TrimSpace(anaDecimal)) {
		case ",", "comma":
			opt.DecimalSeparator = ','
		case ".", "dot":
			opt.DecimalSeparator = '.'
		case "":
		default:
			return fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", anaDecimal)
		}

		s, err := dataset.Load(path, opt)
		if err != nil {
			return err
		}
		for _, w := range s.Warnings {
			fmt.Printf("⚠ %s\n", w)
		}
		res, err := cosinor.Fit(s.Times, s.Values, cosinor.Options{Period: c.Period, MaxIterations: c.MaxIterations})
		if err != nil {
			return fmt.Errorf("gene %s: %w", s.Gene, err)
		}
		logger.Debug("fit done", zap.String("gene", s.Gene), zap.String("method", res.Method), zap.Float64("sse", res.SSE))

		if anaMarkdown {
			t := &summary.Table{}
			t.Add(summary.FromResult(s.Gene, res))
			fmt.Print(t.Markdown(c.Alpha))
		} else {
			printFit(s, res, c.Alpha)
		}

		if anaPlotPath != "" {
			popt := plot.DefaultOptions()
			popt.ShowPoints = c.ShowPoints
			popt.Width, popt.Height = c.FigureWidth, c.FigureHeight
			popt.CurvePoints = c.CurvePoints
			if yr, ok := dataset.PaddedRange(c.YPadding, s); ok {
				popt.YRange = yr
			}
			if strings.EqualFold(filepath.Ext(anaPlotPath), ".svg") {
				popt.Format = plot.SVG
			}
			b, err := plot.Render(s, res, popt)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(anaPlotPath, b); err != nil {
				return fmt.Errorf("write figure: %w", err)
			}
			fmt.Printf("✓ Saved figure to %s\n", anaPlotPath)
		}
		return nil
	},
}

func printFit(s *dataset.Series, r *cosinor.Result, alpha float64) {
	fmt.Printf("Gene: %s (%d samples, %d time points)\n", s.Gene, r.N, len(s.UniqueTimes()))
	fmt.Printf("  MESOR:        %.6g ± %.3g\n", r.Mesor, r.MesorSE)
	fmt.Printf("  Amplitude:    %.6g ± %.3g\n", r.Amplitude, r.AmplitudeSE)
	fmt.Printf("  Acrophase:    %.4f rad (%.2f h)\n", r.Acrophase, r.AcrophaseHours)
	fmt.Printf("  R²:           %.4f\n", r.R2)
	fmt.Printf("  F(%d, %d):     %.4g\n", r.DF1, r.DF2, r.FStat)
	fmt.Printf("  p (amp = 0):  %.4g\n", r.PValue)
	if r.Rhythmic(alpha) {
		fmt.Printf("✓ Rhythmic at α = %g\n", alpha)
	} else {
		fmt.Printf("✗ Not rhythmic at α = %g\n", alpha)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anaPlotPath, "plot", "", "write the gene figure to this path (.png or .svg)")
	analyzeCmd.Flags().BoolVar(&anaMarkdown, "markdown", false, "print a markdown report instead of plain text")
	analyzeCmd.Flags().Float64Var(&anaPeriod, "period", 24, "rhythm period in hours")
	analyzeCmd.Flags().BoolVar(&anaNoPoints, "no-points", false, "hide raw replicate points in the figure")
	analyzeCmd.Flags().StringVar(&anaTimeColumn, "time-column", "ZT", "name of the time column")
	analyzeCmd.Flags().StringVar(&anaValueColumn, "value-column", "expression ratio (goi/hk)", "name of the expression column")
	analyzeCmd.Flags().StringVar(&anaSheetName, "sheet-name", "", "XLSX: sheet name to read (default: first sheet)")
	analyzeCmd.Flags().StringVar(&anaDecimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
}
