package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/wikicrawler/internal/restore"
)

func newRestoreCmd() *cobra.Command {
	var opts restore.Options
	cmd := &cobra.Command{
		Use:   "restore <backup.jsonl[.gz]>",
		Short: "Loads a JSON lines backup into the document store",
		Long: `Reads a backup written by "export --format jsonl" (optionally gzipped) and
inserts every document with its stored timestamps. Documents whose URL is
already stored are left as they are unless --replace empties the collection
first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open backup: %w", err)
				}
				defer f.Close()

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				res, err := rt.app.Restorer().Restore(ctx, f, opts)
				if err != nil {
					return fmt.Errorf("restore %s: %w", args[0], err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d restored, %d duplicates, %d cleared; store holds %d documents\n",
					res.Restored, res.Duplicates, res.Cleared, res.Total)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "delete every stored document before loading")
	return cmd
}
