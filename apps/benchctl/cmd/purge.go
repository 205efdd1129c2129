package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <run-id>",
	Short: "Remove a terminal run's record and artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := getClient(cmd)
		if err != nil {
			return err
		}

		if err := client.PurgeRun(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Printf("Purged run %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}
