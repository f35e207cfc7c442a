// Package main is the operator CLI of the relay.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func NewRelayctlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "relayctl",
		Short:        "Operate the caller-ID relay",
		Example:      "relayctl ask 050-123-4567",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		NewLoginCommand(),
		NewAskCommand(),
		NewNormalizeCommand(),
	)

	return cmd
}

func main() {
	cmd := NewRelayctlCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
