package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// recentCPSSamples is how many per-change rates status lists.
const recentCPSSamples = 10

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's logging state and typing statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		c, s, err := daemonClient()
		if errors.Is(err, errNoDaemon) {
			fmt.Fprintln(out, "No running daemon.")
			return nil
		}
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		st, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		state, err := c.Status(ctx)
		if err != nil {
			return err
		}
		samples, err := c.CPSHistory(ctx, recentCPSSamples)
		if err != nil {
			return err
		}

		logging := "no"
		if st.IsLogging {
			logging = "yes"
		}
		fmt.Fprintf(out, "Daemon:        http://%s (pid %d)\n", s.Addr, s.PID)
		fmt.Fprintf(out, "Started:       %s\n", humanize.Time(s.StartTime))
		if s.Source != "" {
			fmt.Fprintf(out, "Source:        %s\n", s.Source)
		}
		fmt.Fprintf(out, "Logging:       %s\n", logging)
		if state.LastPushAt != nil {
			fmt.Fprintf(out, "Last push:     %s\n", humanize.Time(*state.LastPushAt))
		}
		fmt.Fprintf(out, "Changes:       %d\n", st.TotalChanges)
		fmt.Fprintf(out, "Additions:     %d\n", st.Additions)
		fmt.Fprintf(out, "Deletions:     %d\n", st.Deletions)
		fmt.Fprintf(out, "Modifications: %d\n", st.Modifications)
		fmt.Fprintf(out, "Chars changed: %s\n", humanize.Comma(int64(st.TotalCharsChanged)))
		fmt.Fprintf(out, "CPS:           avg %.2f, max %.2f, current %.2f\n", st.AvgCPS, st.MaxCPS, st.CurrentCPS)
		if len(samples) > 0 {
			rates := make([]string, len(samples))
			for i, sm := range samples {
				rates[i] = fmt.Sprintf("%.2f", sm.CPS)
			}
			fmt.Fprintf(out, "Recent CPS:    %s\n", strings.Join(rates, " "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
