package main

import (
	"github.com/spf13/cobra"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/output"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/svcctx"
)

var processOpts processFlags

var processCmd = &cobra.Command{
	Use:   "process <pdf>",
	Short: "Extract one MTR PDF into a JSON record",
	Long: `Extract one MTR PDF into a JSON record.

Writes {base}.json on success, {base}.raw.txt when no JSON could be
recovered from the model's answer, and {base}.call.json when call
recording is enabled.

Examples:
  gasops process mtr-1042.pdf
  gasops process mtr-1042.pdf --out-dir ./records -o json
  gasops process mtr-1042.pdf --template heat-template.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := processOpts.services()
		if err != nil {
			return err
		}
		ctx := svcctx.WithServices(cmd.Context(), svc)

		out, procErr := svcctx.ProcessorFrom(ctx).ProcessFile(ctx, args[0])
		if err := output.Print(out); err != nil {
			return err
		}
		return procErr
	},
}

func init() {
	processOpts.register(processCmd)
	rootCmd.AddCommand(processCmd)
}
