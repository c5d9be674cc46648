package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var confPath string

	root := &cobra.Command{
		Use:          "snapgram",
		Short:        "Local client of the snapgram remote backend",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&confPath, "config", "c", "./config", "directory holding config.yaml and .env")

	root.AddCommand(newServeCmd(&confPath))
	root.AddCommand(newMigrateCmd(&confPath))
	return root
}
