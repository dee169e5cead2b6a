package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Save the recorded changes as JSON or Markdown",
	Long: `Save the daemon's statistics and recorded changes. The file is written
to the configured output directory as typetrace-data-<timestamp>.<ext>
unless --output is given. Use --output - to print to stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := normalizeFormat(exportFormat)
		if err != nil {
			return err
		}
		c, _, err := daemonClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		data, err := c.Export(ctx, format)
		if err != nil {
			return err
		}
		if exportOutput == "-" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		path, err := writeExport(data, format, exportOutput, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "output format: json or markdown (default from config)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file path, or - for stdout")
	rootCmd.AddCommand(exportCmd)
}
