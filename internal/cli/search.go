package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rightsprobe/internal/export"
)

var (
	searchJSON   string
	searchNoJSON bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search one term in all four categories",
	Long: `Search solves the anti-bot challenge, queries the four unmatched-rights
lists for a single term and prints the entries found per category.

The result is also written as JSON (default: <term>_results_<timestamp>.json
in the output directory).

Example:
  rightsprobe search "Nicki Nicole"
  rightsprobe search airbag --json airbag.json
  rightsprobe search airbag --no-json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchJSON, "json", "", "output JSON path (default: generated in the output directory)")
	searchCmd.Flags().BoolVar(&searchNoJSON, "no-json", false, "do not write a JSON result file")
}

func runSearch(cmd *cobra.Command, args []string) error {
	term := strings.TrimSpace(strings.Join(args, " "))
	if term == "" {
		return fmt.Errorf("search term is empty")
	}

	env, err := newRuntime()
	if err != nil {
		return err
	}
	defer env.close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	fmt.Fprintf(os.Stderr, "⚙️  Searching %q...\n", term)

	processor := buildProcessor(env.cfg, env.logger)
	records, err := processor.ProcessTerms(ctx, []string{term})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	rec := records[0]

	export.RenderTerm(os.Stdout, rec)
	switch {
	case rec.Status.IsError():
		fmt.Fprintf(os.Stderr, "✗ %s\n", rec.Status)
	case rec.TotalCount == 0:
		fmt.Fprintf(os.Stderr, "⚠️  No results for %q in any category.\n", term)
		fmt.Fprintf(os.Stderr, "   The artist may be fully registered or absent from the lists.\n")
	default:
		fmt.Fprintf(os.Stderr, "✓ %d results for %q in %d/4 categories\n", rec.TotalCount, term, rec.CategoriesWithResults)
	}
	if len(rec.FailedCategories) > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  Queries failed for: %v (counts for these are not reliable)\n", rec.FailedCategories)
	}

	if searchNoJSON {
		return nil
	}
	path := searchJSON
	if path == "" {
		path = export.TermResultFile(env.cfg.Output.Dir, term, rec.CreatedAt)
	}
	if err := export.WriteTermJSON(path, rec); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	fmt.Fprintf(os.Stderr, "💾 Saved %s\n", path)
	return nil
}
