package cmd

import (
	"fmt"
	"os"

	"github.com/KaramelBytes/cosinor-cli/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	abPattern     string
	abOutDir      string
	abPeriod      float64
	abNoPoints    bool
	abNoSummary   bool
	abNoFigures   bool
	abFormat      string
	abXLSX        bool
	abManifest    bool
	abKeepGoing   bool
	abQuiet       bool
	abTimeColumn  string
	abValueColumn string
	abSheetName   string
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch [folder]",
	Short: "Fit every gene file in a folder and save figures plus a summary CSV",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := effectiveConfig()
		f := cmd.Flags()
		if f.Changed("pattern") {
			c.Pattern = abPattern
		}
		if f.Changed("out") {
			c.OutputDir = abOutDir
		}
		if f.Changed("period") {
			c.Period = abPeriod
		}
		if f.Changed("format") {
			c.FigureFormat = abFormat
		}
		if f.Changed("time-column") {
			c.TimeColumn = abTimeColumn
		}
		if f.Changed("value-column") {
			c.ValueColumn = abValueColumn
		}
		if f.Changed("sheet-name") {
			c.SheetName = abSheetName
		}
		if f.Changed("no-points") {
			c.ShowPoints = !abNoPoints
		}
		if f.Changed("no-summary") {
			c.SaveSummary = !abNoSummary
		}
		if f.Changed("no-figures") {
			c.SaveFigures = !abNoFigures
		}
		if f.Changed("xlsx") {
			c.SummaryXLSX = abXLSX
		}
		if f.Changed("manifest") {
			c.Manifest = abManifest
		}
		if err := c.Validate(); err != nil {
			return err
		}

		opt, err := pipeline.OptionsFromConfig(c)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			opt.InputDir = args[0]
		}
		opt.KeepGoing = abKeepGoing
		opt.Quiet = abQuiet

		res, err := pipeline.Run(cmd.Context(), opt, logger, os.Stdout)
		if err != nil {
			return err
		}
		if !abQuiet && len(res.Warnings) > 0 {
			fmt.Printf("⚠ %d warning(s) during run\n", len(res.Warnings))
		}
		if res.ManifestPath != "" && !abQuiet {
			fmt.Printf("✓ Wrote run manifest to %s\n", res.ManifestPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abPattern, "pattern", "*.tsv", "glob for gene files inside the folder")
	analyzeBatchCmd.Flags().StringVarP(&abOutDir, "out", "o", "", "output folder for figures and summaries (default: input folder)")
	analyzeBatchCmd.Flags().Float64Var(&abPeriod, "period", 24, "rhythm period in hours")
	analyzeBatchCmd.Flags().BoolVar(&abNoPoints, "no-points", false, "hide raw replicate points in figures")
	analyzeBatchCmd.Flags().BoolVar(&abNoSummary, "no-summary", false, "do not write the summary CSV")
	analyzeBatchCmd.Flags().BoolVar(&abNoFigures, "no-figures", false, "do not write per-gene figures")
	analyzeBatchCmd.Flags().StringVar(&abFormat, "format", "png", "figure format: png|svg")
	analyzeBatchCmd.Flags().BoolVar(&abXLSX, "xlsx", false, "also write the summary as an XLSX workbook")
	analyzeBatchCmd.Flags().BoolVar(&abManifest, "manifest", false, "write a JSON run manifest (cosinor_run.json)")
	analyzeBatchCmd.Flags().BoolVar(&abKeepGoing, "keep-going", false, "skip genes that fail instead of aborting")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
	analyzeBatchCmd.Flags().StringVar(&abTimeColumn, "time-column", "ZT", "name of the time column")
	analyzeBatchCmd.Flags().StringVar(&abValueColumn, "value-column", "expression ratio (goi/hk)", "name of the expression column")
	analyzeBatchCmd.Flags().StringVar(&abSheetName, "sheet-name", "", "XLSX: sheet name to read (default: first sheet)")
}
