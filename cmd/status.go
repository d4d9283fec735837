package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/wikicrawler/internal/status"
)

func newStatusCmd() *cobra.Command {
	var (
		recent int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Shows store-wide progress, per-source counts and the latest documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				rep, err := status.Collect(ctx, rt.app.Repository(), rt.cfg.Logic.TargetDocumentCount, recent)
				if err != nil {
					return fmt.Errorf("collect status: %w", err)
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(rep)
				}
				return status.Render(out, rep)
			})
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 5, "number of recently crawled documents to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
