package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/typetrace/internal/export"
	"github.com/fakeyudi/typetrace/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view [file]",
	Short: "View an export file, or the running daemon when no file is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return viewDaemon(cmd)
		}
		path := args[0]

		doc, err := loadExport(path)
		if err != nil {
			return err
		}
		if plainOutput {
			printDocument(cmd.OutOrStdout(), doc)
			return nil
		}
		return tui.RunViewer(doc, path)
	},
}

// loadExport reads and parses an export file. JSON exports are checked
// against the export schema first.
func loadExport(path string) (*export.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, err
	}

	parser := export.ParserFor(path)
	if _, ok := parser.(*export.JSONParser); ok {
		if err := export.Validate(data); err != nil {
			return nil, err
		}
	}
	return parser.Parse(data)
}

func viewDaemon(cmd *cobra.Command) error {
	c, s, err := daemonClient()
	if err != nil {
		return err
	}
	format, err := normalizeFormat("")
	if err != nil {
		return err
	}
	b := &remoteBackend{c: c, format: format}

	if plainOutput {
		snap, err := b.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Daemon http://%s\n", s.Addr)
		printStats(out, snap.Stats)
		if len(snap.Changes) > 0 {
			fmt.Fprintln(out, changesTable(snap.Changes))
		}
		return nil
	}
	return tui.Run(b, s.Addr, cfg.RefreshInterval())
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "print plain text instead of launching the TUI")
	rootCmd.AddCommand(viewCmd)
}
