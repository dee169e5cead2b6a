package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/typetrace/internal/client"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Begin logging changes in the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := daemonClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		st, err := c.Start(ctx)
		if errors.Is(err, client.ErrUnavailable) {
			return fmt.Errorf("cannot start logging: %w (is the document open?)", err)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logging started (run %s).\n", st.RunID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
