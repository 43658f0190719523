package main

import (
	"github.com/spf13/cobra"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/output"
	"github.com/Unigalactix/GasOps-DI-JSON/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return output.Print(version.Get())
	},
}
