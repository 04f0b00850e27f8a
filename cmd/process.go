// =============================================================================
// Order Report Generator - Process Command
// =============================================================================
//
// This file defines the 'process' command, the batch mode of the generator.
//
// COMMAND USAGE:
//   orderreport process [flags]
//
// FLAGS:
//   --dry-run   : Build reports without writing or archiving anything
//   --file      : Process only these exports (repeatable)
//   --platform  : Force the platform of every export
//   --date      : Report date YYYY/MM/DD (repeatable); default is the most
//                 recent date of each export
//   --format    : html (default), json or xlsx
//
// PROCESSING PIPELINE:
//   1. Load configuration and platform rules
//   2. Discover exports in the input directory
//   3. Match each export to a platform by file name
//   4. For each export (concurrently, up to max_concurrency):
//      a. Read the data sheet
//      b. Remap columns and normalize dates
//      c. Build and encode the report
//      d. Write the report file
//      e. Archive the export
//   5. Print and write the processing summary
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/order-report/internal/converter"
	"github.com/ginjaninja78/order-report/internal/metrics"
	"github.com/ginjaninja78/order-report/internal/report"
	"github.com/ginjaninja78/order-report/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	dryRun       bool
	processFiles []string
	forcePlat    string
	reportDates  []string
	reportFormat string
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Build reports for the exports in the input directory",
	Long: `The process command scans the input directory for platform exports
(.xlsx, .xlsm, .csv), matches each to a platform by its file name, and writes
one report per export to the output directory.

On successful processing:
  - The report is placed in the output directory
  - The export is moved to the input archive
  - A summary is written to the output directory

On error:
  - The export stays in the input directory
  - Other exports continue unless continue_on_error is false`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Build reports without writing or archiving anything")
	processCmd.Flags().StringSliceVar(&processFiles, "file", nil, "Process only these exports")
	processCmd.Flags().StringVar(&forcePlat, "platform", "", "Force the platform of every export (official, shopee, momo)")
	processCmd.Flags().StringSliceVar(&reportDates, "date", nil, "Report date YYYY/MM/DD; default is the most recent date")
	processCmd.Flags().StringVar(&reportFormat, "format", "html", "Report format: html, json or xlsx")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(ctx context.Context) error {
	startTime := time.Now()

	format, err := report.ParseFormat(reportFormat)
	if err != nil {
		return err
	}
	dates, err := normalizeDates(reportDates)
	if err != nil {
		return err
	}

	conv := converter.New(app.cfg, app.rules, metrics.NewRegistry(), app.log)

	if ctx == nil {
		ctx = context.Background()
	}
	results, err := conv.Run(ctx, converter.Options{
		Files:    processFiles,
		Platform: forcePlat,
		Dates:    dates,
		Format:   format,
		DryRun:   dryRun,
	})
	if err != nil {
		return fmt.Errorf("failed to process exports: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No exports found in the input directory.")
		return nil
	}

	for _, r := range results {
		name := filepath.Base(r.FilePath)
		switch {
		case r.Success && dryRun:
			fmt.Printf("  ✓ %s: %s, %d orders, %s (dry run)\n", name, r.Title, r.Stats.Orders, r.Stats.Total)
		case r.Success:
			fmt.Printf("  ✓ %s -> %s (%d orders, %s)\n", name, filepath.Base(r.OutputFile), r.Stats.Orders, r.Stats.Total)
		case r.Skipped:
			fmt.Printf("  - %s: skipped\n", name)
		default:
			fmt.Printf("  ✗ %s: %v\n", name, r.Error)
		}
	}

	summary := converter.Summarize(results, startTime, time.Now())

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:     %d\n", summary.TotalFiles)
	fmt.Printf("Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Printf("Errors:          %d\n", summary.FailedFiles)
	fmt.Printf("Skipped:         %d\n", summary.SkippedFiles)
	fmt.Printf("Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond))

	if !dryRun {
		path, err := utils.WriteSummaryLog(summary, app.cfg.OutputDir)
		if err != nil {
			app.log.WithError(err).Warn("failed to write processing summary")
		} else {
			fmt.Printf("Summary:         %s\n", path)
		}
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d export(s) failed", summary.FailedFiles)
	}
	return nil
}

// normalizeDates accepts any date form ParseDate understands and returns
// YYYY/MM/DD dates.
func normalizeDates(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, d := range in {
		norm, ok := report.ParseDate(d)
		if !ok {
			return nil, fmt.Errorf("invalid --date %q", d)
		}
		out = append(out, norm)
	}
	return out, nil
}
