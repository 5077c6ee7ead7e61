package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/centrally/ingest-cli/internal/victims"
)

var (
	victimsFile   string
	victimsOutput string
)

var victimsCmd = &cobra.Command{
	Use:   "victims",
	Short: "Canonicalize the victims incident export",
	Long:  "Reads the raw victims CSV export, keeps rows with valid Medellín coordinates, projects them onto the canonical incident shape, and overwrites the canonical snapshot.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		output := victimsOutput
		if output == "" {
			output = cfg.Victims.OutputPath
		}

		pipe := victims.New(victims.WithOutput(output))

		var sum *victims.Summary
		err := recordRun(ctx, "victimas", victimsFile, func() (int, error) {
			s, err := pipe.Run(victimsFile)
			if err != nil {
				return 0, err
			}
			sum = s
			return s.RowsKept, nil
		})
		if err != nil {
			return eris.Wrap(err, "victims")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Rows read:\t%d\n", sum.RowsRead)
		_, _ = fmt.Fprintf(w, "Rows kept:\t%d\n", sum.RowsKept)
		_, _ = fmt.Fprintf(w, "Rows dropped:\t%d\n", sum.RowsDropped)
		_, _ = fmt.Fprintf(w, "Null dates:\t%d\n", sum.NullDates)
		_, _ = fmt.Fprintf(w, "Output:\t%s\n", sum.OutputPath)
		return w.Flush()
	},
}

func init() {
	victimsCmd.Flags().StringVar(&victimsFile, "file", "", "path of the raw victims CSV export (required)")
	victimsCmd.Flags().StringVar(&victimsOutput, "output", "", "canonical output path (default: victims.output_path from config)")
	_ = victimsCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(victimsCmd)
}
