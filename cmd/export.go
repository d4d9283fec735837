package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/export"
)

func newExportCmd() *cobra.Command {
	var req export.Request
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dumps stored documents as TSV or JSON lines to the export backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				exp, err := rt.app.Exporter(ctx)
				if err != nil {
					return err
				}
				res, err := exp.Export(ctx, req)
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				rt.logger.Debug("export result", zap.Any("result", res))
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%d exported, %d skipped)\n", res.URI, res.Exported, res.Skipped)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&req.Format, "format", export.FormatTSV, "output format: tsv or jsonl")
	cmd.Flags().StringVar(&req.Name, "out", "", "object name below the export prefix (default: generated)")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "export at most this many documents (0 = all)")
	return cmd
}
