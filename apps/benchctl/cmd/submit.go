package cmd

import (
	"fmt"
	"os"

	"github.com/osbench/osbench/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	submitTargetOS   string
	submitScriptType string
	submitImage      string
)

var submitCmd = &cobra.Command{
	Use:   "submit <script-file>",
	Short: "Submit a script for execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := getClient(cmd)
		if err != nil {
			return err
		}

		script, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading script: %w", err)
		}

		run, err := client.Submit(cmd.Context(), sdk.SubmitRequest{
			Script:     string(script),
			ScriptType: submitScriptType,
			TargetOS:   submitTargetOS,
			Image:      submitImage,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Submitted run %s (status: %s, image: %s)\n", run.ID, run.Status, run.Image)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitTargetOS, "os", "", "target OS identifier (required)")
	submitCmd.Flags().StringVar(&submitScriptType, "type", "shell", "script type: shell, powershell, batch, python")
	submitCmd.Flags().StringVar(&submitImage, "image", "", "explicit container image override")
	submitCmd.MarkFlagRequired("os")
	rootCmd.AddCommand(submitCmd)
}
