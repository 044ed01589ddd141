package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bridge-project/channel"
)

// cidCmd prints the channel id both ledgers derive for a participant pair.
func cidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cid <participant1> <participant2> <chain1> <chain2>",
		Short: "Derive the channel id for two participants and their chains",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cid := channel.DeriveCID([2]string{args[0], args[1]}, [2]string{args[2], args[3]})
			fmt.Fprintln(cmd.OutOrStdout(), cid)
			return nil
		},
	}
}
