package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rightsprobe/internal/export"
	"github.com/ppiankov/rightsprobe/internal/model"
	"github.com/ppiankov/rightsprobe/internal/worker"
)

// confirmAbove is the batch size from which a confirmation is requested
const confirmAbove = 10

var (
	termList    string
	termFile    string
	interactive bool
	delaySecs   float64
	outputBase  string
	outputDir   string
	assumeYes   bool
	syncAfter   bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Search a list of terms and export the results",
	Long: `Batch searches many terms with a single browser session:
- Terms come from --terms, --file (one per line, # comments) or --interactive
- Terms are processed one at a time with a pause between them
- A failing term is recorded as an Error row and the batch continues
- Results are written to <output>.csv and <output>.json

Example:
  rightsprobe batch --terms "nicki nicole,airbag"
  rightsprobe batch --file artists.txt --delay 3 --output run1
  rightsprobe batch --file artists.txt --sync`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addTermFlags(batchCmd)

	batchCmd.Flags().BoolVar(&interactive, "interactive", false, "enter terms one per line on stdin")
	batchCmd.Flags().StringVar(&outputBase, "output", "", "base name for the CSV/JSON exports (default: rightsprobe_batch_<n>_terms)")
	batchCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation on large batches")
	batchCmd.Flags().BoolVar(&syncAfter, "sync", false, "append the results to the configured store")
}

// addTermFlags registers the term input and pacing flags shared by batch and sync
func addTermFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&termList, "terms", "", "comma-separated list of terms")
	cmd.Flags().StringVar(&termFile, "file", "", "file with one term per line")
	cmd.Flags().Float64Var(&delaySecs, "delay", 0, "seconds between requests (default from config: pacing.delay)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory for exports (default from config: output.dir)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	env, err := newRuntime()
	if err != nil {
		return err
	}
	defer env.close()
	applyTermFlags(cmd, env.cfg)

	// one reader for every prompt, so lines buffered while reading terms
	// are still there for the confirmation
	stdin := bufio.NewReader(os.Stdin)
	terms, err := collectTerms(stdin, os.Stderr)
	if err != nil {
		return err
	}

	printBatchBanner("Batch Processing", env.cfg, terms)

	if len(terms) > confirmAbove && !assumeYes {
		ok, err := confirm(stdin, os.Stderr, fmt.Sprintf("⚠️  About to process %d terms. Continue? (y/N): ", len(terms)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "Cancelled\n")
			return nil
		}
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	records, err := scanTerms(ctx, env, terms)
	if err != nil {
		return err
	}

	base := outputBase
	if base == "" {
		base = export.BatchBaseName(len(records))
	}
	csvPath, jsonPath, err := writeBatchExports(env.cfg, base, records)
	if err != nil {
		return err
	}

	printBatchSummary(records, csvPath, jsonPath)

	if syncAfter {
		summary, err := syncRecords(ctx, env.cfg, env.logger, records)
		if err != nil {
			return fmt.Errorf("sync failed (exports kept): %w", err)
		}
		env.logger.Info("sync complete", "new", summary.NewRecords, "duplicates", summary.DuplicateRecords)
	}
	return nil
}

// applyTermFlags copies the shared flags onto the configuration
func applyTermFlags(cmd *cobra.Command, cfg *model.Config) {
	if cmd.Flags().Changed("delay") {
		cfg.Pacing.Delay = time.Duration(delaySecs * float64(time.Second))
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
}

// collectTerms reads terms from whichever input flag is set
func collectTerms(in *bufio.Reader, out io.Writer) ([]string, error) {
	var terms []string
	switch {
	case termList != "":
		terms = worker.SplitTerms(termList)
	case termFile != "":
		var err error
		terms, err = worker.ReadTermsFromFile(termFile)
		if err != nil {
			return nil, err
		}
	case interactive:
		var err error
		terms, err = readInteractive(in, out)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("no terms given: use --terms, --file or --interactive")
	}

	if len(terms) == 0 {
		return nil, errors.New("no terms to process")
	}
	return terms, nil
}

// readInteractive reads one term per line until an empty line after at
// least one term, or end of input
func readInteractive(in *bufio.Reader, out io.Writer) ([]string, error) {
	fmt.Fprintf(out, "Enter one term per line, empty line to finish\n\n")

	var terms []string
	for {
		fmt.Fprintf(out, "Term %d: ", len(terms)+1)
		raw, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read terms: %w", err)
		}
		line := strings.TrimSpace(raw)
		if line != "" {
			terms = append(terms, line)
		}
		if err != nil {
			break
		}
		if line == "" {
			if len(terms) > 0 {
				break
			}
			fmt.Fprintf(out, "⚠️  Enter at least one term\n")
		}
	}
	fmt.Fprintln(out)
	return terms, nil
}

// confirm asks a yes/no question; anything but y/yes is a no
func confirm(in *bufio.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// scanTerms runs the batch and reports progress on stderr. A cancelled run
// returns no records so that nothing partial is exported.
func scanTerms(ctx context.Context, env *runtimeEnv, terms []string) ([]model.Record, error) {
	processor := buildProcessor(env.cfg, env.logger)
	processor.OnProgress(func(index, total int, rec model.Record) {
		mark := "✓"
		switch {
		case rec.Status.IsError():
			mark = "✗"
		case rec.TotalCount == 0:
			mark = "·"
		}
		fmt.Fprintf(os.Stderr, "[%d/%d] %s %s: %s (%d)\n", index, total, mark, rec.Term, rec.Status, rec.TotalCount)
	})

	records, err := processor.ProcessTerms(ctx, terms)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintf(os.Stderr, "\n⏹️  Interrupted after %d/%d terms, nothing exported\n", len(records), len(terms))
		}
		return nil, fmt.Errorf("batch failed: %w", err)
	}
	return records, nil
}

func writeBatchExports(cfg *model.Config, base string, records []model.Record) (string, string, error) {
	csvPath, jsonPath := export.BatchFiles(cfg.Output.Dir, base)
	if err := export.WriteCSV(csvPath, records); err != nil {
		return "", "", fmt.Errorf("write CSV: %w", err)
	}
	if err := export.WriteBatchJSON(jsonPath, records, time.Now()); err != nil {
		return "", "", fmt.Errorf("write JSON: %w", err)
	}
	return csvPath, jsonPath, nil
}

func printBatchBanner(title string, cfg *model.Config, terms []string) {
	preview := terms
	more := ""
	if len(preview) > 5 {
		preview = preview[:5]
		more = ", ..."
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  rightsprobe %s\n", title)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Terms:      %d\n", len(terms))
	fmt.Fprintf(os.Stderr, "  Delay:      %v\n", cfg.Pacing.Delay)
	fmt.Fprintf(os.Stderr, "  Headless:   %v\n", cfg.Browser.Headless)
	fmt.Fprintf(os.Stderr, "  Output dir: %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "  Preview:    %s%s\n", strings.Join(preview, ", "), more)
	fmt.Fprintf(os.Stderr, "\n")
}

func printBatchSummary(records []model.Record, csvPath, jsonPath string) {
	export.RenderBatch(os.Stdout, records)

	meta := model.NewBatchReport(records, time.Now()).Metadata
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d terms\n", meta.TotalTerms)
	fmt.Fprintf(os.Stderr, "  Found:      %d\n", meta.Found)
	fmt.Fprintf(os.Stderr, "  Not found:  %d\n", meta.NotFound-meta.Errors)
	fmt.Fprintf(os.Stderr, "  Errors:     %d\n", meta.Errors)
	fmt.Fprintf(os.Stderr, "  CSV:        %s\n", csvPath)
	fmt.Fprintf(os.Stderr, "  JSON:       %s\n", jsonPath)
	fmt.Fprintf(os.Stderr, "\n")
}
