package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/osbench/osbench/pkg/sdk"
	"github.com/spf13/cobra"
)

type contextKey string

const configContextKey contextKey = "osbenchconfig"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "benchctl",
		Short: "CLI for interacting with the osbench server (runs, logs)",
		Long: `benchctl is a small command-line tool for interacting with a running
osbench server. Submit scripts for execution against a target OS image,
list and inspect runs, and fetch captured output.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sdk.LoadConfig(cfgFile)
			if err != nil {
				return err
			}

			if err := cfg.Viper().BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			ctx := context.WithValue(cmd.Context(), configContextKey, cfg)
			cmd.SetContext(ctx)

			return nil
		},
	}
)

// getClient builds an API client from the config in the command context.
func getClient(cmd *cobra.Command) (*sdk.Client, error) {
	cfg, ok := cmd.Context().Value(configContextKey).(*sdk.Config)
	if !ok {
		return nil, errors.New("no config in context")
	}
	return sdk.NewClient(cfg.BaseURL), nil
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default osbench.yaml)")
}
