package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bridge-project/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "bridged",
		Short:        "Cross-ledger payment channel and HTLC bridge node",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String(flagConfig, config.DefaultPath, "path to the config file")

	rootCmd.AddCommand(serveCmd(), keygenCmd(), cidCmd())
	return rootCmd
}

const flagConfig = "config"
