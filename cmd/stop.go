package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop logging; recorded changes are kept",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := daemonClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		st, err := c.Stop(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logging stopped. %s kept.\n", plural(st.Changes, "change"))
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard every recorded change",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := daemonClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		if _, err := c.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Changes cleared.")
		return nil
	},
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func init() {
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(clearCmd)
}
