package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/output"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/pipeline"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/svcctx"
)

var batchOpts processFlags

var batchCmd = &cobra.Command{
	Use:   "batch <pdf|dir>...",
	Short: "Extract many MTR PDFs concurrently",
	Long: `Extract many MTR PDFs concurrently.

Directories contribute their *.pdf files in name order. At most
defaults.max_workers documents are in flight; one failing document never
stops the others. A PDF whose outputs would overwrite an earlier PDF's
(same base name under one --out-dir) is reported as failed. Exits
non-zero when any document failed.

Examples:
  gasops batch ./inbox
  gasops batch a.pdf b.pdf ./more --out-dir ./records`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := pipeline.CollectPDFs(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no PDF files found in %v", args)
		}

		svc, err := batchOpts.services()
		if err != nil {
			return err
		}
		ctx := svcctx.WithServices(cmd.Context(), svc)

		summary := svcctx.ProcessorFrom(ctx).ProcessBatch(ctx, paths)
		if err := output.Print(summary); err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d documents failed: %v", summary.Failed, summary.Total, summary.FailuresByKind())
		}
		return nil
	},
}

func init() {
	batchOpts.register(batchCmd)
	rootCmd.AddCommand(batchCmd)
}
