package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rightsprobe/internal/export"
	"github.com/ppiankov/rightsprobe/internal/store"
)

var (
	fromCSV     string
	syncBackend string
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Search terms and append new results to the store",
	Long: `Sync appends results to the configured store (Google Sheets by default)
without duplicating rows already there.

Results come either from a fresh search (--terms / --file) or from an
earlier CSV export (--from-csv), in which case nothing is searched.

Example:
  rightsprobe sync --terms "nicki nicole,airbag"
  rightsprobe sync --file artists.txt --backend sqlite
  rightsprobe sync --from-csv rightsprobe_batch_20_terms.csv`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	addTermFlags(syncCmd)

	syncCmd.Flags().StringVar(&fromCSV, "from-csv", "", "sync rows from an earlier CSV export instead of searching")
	syncCmd.Flags().StringVar(&syncBackend, "backend", "", "store backend: sheets, sqlite, csv (default from config: sync.backend)")
}

func runSync(cmd *cobra.Command, args []string) error {
	env, err := newRuntime()
	if err != nil {
		return err
	}
	defer env.close()
	applyTermFlags(cmd, env.cfg)
	if syncBackend != "" {
		env.cfg.Sync.Backend = syncBackend
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if fromCSV != "" {
		rows, err := store.LoadCSVRecords(fromCSV)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return errors.New("no rows to sync in " + fromCSV)
		}
		fmt.Fprintf(os.Stderr, "✓ Loaded %d rows from %s\n", len(rows), fromCSV)
		if _, err := syncRecords(ctx, env.cfg, env.logger, rows); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		return nil
	}

	terms, err := collectTerms(bufio.NewReader(os.Stdin), os.Stderr)
	if err != nil {
		return err
	}
	printBatchBanner("Search & Sync", env.cfg, terms)

	records, err := scanTerms(ctx, env, terms)
	if err != nil {
		return err
	}

	csvPath, jsonPath, err := writeBatchExports(env.cfg, export.BatchBaseName(len(records)), records)
	if err != nil {
		return err
	}
	printBatchSummary(records, csvPath, jsonPath)

	if _, err := syncRecords(ctx, env.cfg, env.logger, records); err != nil {
		return fmt.Errorf("sync failed (exports kept): %w", err)
	}
	return nil
}
