package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/skeleton"
)

var skeletonCmd = &cobra.Command{
	Use:   "skeleton [template]",
	Short: "Print the blanked template sent to the model",
	Long: `Print the blanked template sent to the model.

Every scalar in the template becomes null while keys, nesting and array
elements are kept. Without an argument the built-in MTR template is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		tmpl, err := skeleton.Load(path)
		if err != nil {
			return err
		}
		body, err := skeleton.Build(tmpl).Indent()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return err
	},
}

func init() {
	rootCmd.AddCommand(skeletonCmd)
}
