package cmd

import (
	"fmt"
	"strconv"

	cfgpkg "github.com/KaramelBytes/cosinor-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Cosinor configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := effectiveConfig()
		if cfg == nil {
			fmt.Println("# no config loaded, showing defaults")
		}
		fmt.Printf("period: %g\n", c.Period)
		fmt.Printf("max_iterations: %d\n", c.MaxIterations)
		fmt.Printf("alpha: %g\n", c.Alpha)
		fmt.Printf("y_padding: %g\n", c.YPadding)
		fmt.Printf("pattern: %s\n", c.Pattern)
		fmt.Printf("time_column: %s\n", c.TimeColumn)
		fmt.Printf("value_column: %s\n", c.ValueColumn)
		if c.SheetName != "" {
			fmt.Printf("sheet_name: %s\n", c.SheetName)
		}
		if c.OutputDir != "" {
			fmt.Printf("output_dir: %s\n", c.OutputDir)
		}
		fmt.Printf("show_points: %t\n", c.ShowPoints)
		fmt.Printf("save_summary: %t\n", c.SaveSummary)
		fmt.Printf("save_figures: %t\n", c.SaveFigures)
		fmt.Printf("summary_name: %s\n", c.SummaryName)
		fmt.Printf("summary_xlsx: %t\n", c.SummaryXLSX)
		fmt.Printf("manifest: %t\n", c.Manifest)
		fmt.Printf("figure_format: %s\n", c.FigureFormat)
		fmt.Printf("figure_width: %d\n", c.FigureWidth)
		fmt.Printf("figure_height: %d\n", c.FigureHeight)
		fmt.Printf("curve_points: %d\n", c.CurvePoints)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c := effectiveConfig()
		if err := setKey(c, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = c
		fmt.Println("✓ Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	var err error
	switch key {
	case "period":
		c.Period, err = parseFloat(key, val)
	case "alpha":
		c.Alpha, err = parseFloat(key, val)
	case "y_padding":
		c.YPadding, err = parseFloat(key, val)
	case "max_iterations":
		c.MaxIterations, err = parseInt(key, val)
	case "figure_width":
		c.FigureWidth, err = parseInt(key, val)
	case "figure_height":
		c.FigureHeight, err = parseInt(key, val)
	case "curve_points":
		c.CurvePoints, err = parseInt(key, val)
	case "show_points":
		c.ShowPoints, err = parseBool(key, val)
	case "save_summary":
		c.SaveSummary, err = parseBool(key, val)
	case "save_figures":
		c.SaveFigures, err = parseBool(key, val)
	case "summary_xlsx":
		c.SummaryXLSX, err = parseBool(key, val)
	case "manifest":
		c.Manifest, err = parseBool(key, val)
	case "pattern":
		c.Pattern = val
	case "time_column":
		c.TimeColumn = val
	case "value_column":
		c.ValueColumn = val
	case "sheet_name":
		c.SheetName = val
	case "output_dir":
		c.OutputDir = val
	case "summary_name":
		c.SummaryName = val
	case "figure_format":
		c.FigureFormat = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func parseFloat(key, val string) (float64, error) {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float for %s: %w", key, err)
	}
	return f, nil
}

func parseInt(key, val string) (int, error) {
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %w", key, err)
	}
	return i, nil
}

func parseBool(key, val string) (bool, error) {
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %w", key, err)
	}
	return b, nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
