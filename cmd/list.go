package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/cosinor-cli/internal/dataset"
	"github.com/spf13/cobra"
)

var listPattern string

var listCmd = &cobra.Command{
	Use:   "list [folder]",
	Short: "List gene files in a folder with sample counts and time points",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := effectiveConfig()
		if cmd.Flags().Changed("pattern") {
			c.Pattern = listPattern
		}
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}
		files, err := dataset.Discover(dir, c.Pattern)
		if err != nil {
			return err
		}
		opt := dataset.DefaultOptions()
		opt.TimeColumn = c.TimeColumn
		opt.ValueColumn = c.ValueColumn
		opt.SheetName = c.SheetName
		for _, path := range files {
			s, err := dataset.Load(path, opt)
			if err != nil {
				fmt.Printf("- %s: ✗ %v\n", filepath.Base(path), err)
				continue
			}
			ts := s.UniqueTimes()
			labels := make([]string, len(ts))
			for i, t := range ts {
				labels[i] = fmt.Sprintf("%g", t)
			}
			fmt.Printf("- %s: %d samples, %d time points (%s)\n", s.Gene, s.Len(), len(ts), strings.Join(labels, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listPattern, "pattern", "*.tsv", "glob for gene files inside the folder")
}
