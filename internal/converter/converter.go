// =============================================================================
// Order Report Generator - Converter Module
// =============================================================================
//
// This module contains the report pipeline. It is shared by the HTTP server,
// which runs it in two halves (Load on upload, Generate on report request),
// and by batch mode, which runs it end to end for every export in the input
// directory.
//
// PIPELINE:
//   1. Match the export to a platform
//   2. Read the data sheet (or the CSV) into a raw table
//   3. Remap the raw table onto the platform's canonical columns
//   4. List the available dates and pick the report dates
//   5. Build the report (filter, sort, project, total)
//   6. Encode it as HTML, JSON or XLSX
//   7. Write the report file and archive the export
//
// CONCURRENCY:
//   Each export is processed in its own goroutine, at most MaxConcurrency at
//   a time. Exports share no state.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ginjaninja78/order-report/internal/config"
	"github.com/ginjaninja78/order-report/internal/metrics"
	"github.com/ginjaninja78/order-report/internal/platform"
	"github.com/ginjaninja78/order-report/internal/report"
	"github.com/ginjaninja78/order-report/internal/types"
	"github.com/ginjaninja78/order-report/internal/workbook"
	"github.com/ginjaninja78/order-report/pkg/utils"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrNoPlatformMatch is returned when no platform rule matches a file name.
var ErrNoPlatformMatch = errors.New("no platform matches the file name")

// ErrNoDates is returned when an export has no row with a readable date.
var ErrNoDates = errors.New("export has no dated rows")

// =============================================================================
// LOAD AND GENERATE
// =============================================================================

// Upload is an export after reading and remapping.
type Upload struct {
	Profile *platform.Profile

	// Sheet is the sheet the rows were read from.
	Sheet string

	// RawRows is the number of rows in the export.
	RawRows int

	// Table is the normalized table.
	Table *types.Table

	// Dates are the available dates, most recent first.
	Dates []string
}

// Load reads an export and normalizes it for a platform.
//
// PARAMETERS:
//   - r: The export content.
//   - fileName: The export file name; its extension selects XLSX or CSV.
//   - profile: The platform of the export.
//   - rule: The platform's batch rule, for the sheet name override and CSV
//     layout. May be nil.
//
// RETURNS:
//   - The normalized upload.
//   - An error if the file cannot be read.
func Load(r io.Reader, fileName string, profile *platform.Profile, rule *config.PlatformRule) (*Upload, error) {
	format, err := workbook.DetectFormat(fileName)
	if err != nil {
		return nil, err
	}

	sheetName := profile.SourceSheetName
	csvSettings := config.DefaultCSVSettings()
	if rule != nil {
		if rule.SheetName != "" {
			sheetName = rule.SheetName
		}
		csvSettings = rule.CSVSettings
	}

	sheet, err := workbook.Read(r, format, sheetName, platform.SheetMarker, csvSettings)
	if err != nil {
		return nil, err
	}

	table := report.Remap(sheet.Table, profile)
	return &Upload{
		Profile: profile,
		Sheet:   sheet.Name,
		RawRows: sheet.Table.Len(),
		Table:   table,
		Dates:   report.AvailableDates(table, profile.DateColumn),
	}, nil
}

// Output is an encoded report.
type Output struct {
	Report *report.Report
	Format report.Format
	Body   []byte
}

// Generate builds and encodes the report of the selected dates.
func Generate(table *types.Table, dates []string, profile *platform.Profile, format report.Format) (*Output, error) {
	rep, err := report.BuildReport(table, dates, profile)
	if err != nil {
		return nil, err
	}
	body, err := report.Encode(rep, format)
	if err != nil {
		return nil, err
	}
	return &Output{Report: rep, Format: format, Body: body}, nil
}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single export.
type Result struct {
	// FilePath is the path to the export.
	FilePath string

	// Platform is the matched platform, empty if matching failed.
	Platform platform.ID

	// OutputFile is the path to the generated report.
	// Empty if processing failed or in a dry run.
	OutputFile string

	// ArchivePath is where the export was moved.
	ArchivePath string

	// Title is the report title.
	Title string

	// Success indicates whether the processing was successful.
	Success bool

	// Skipped is set when the export was not started because the run was
	// cancelled.
	Skipped bool

	// Error contains the error if processing failed.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// RowsRead is the number of rows in the export.
	RowsRead int

	// Orders is the number of report rows.
	Orders int

	// Dates are the report dates.
	Dates []string

	// Total is the display total, e.g. "NT$ 1,234".
	Total string

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Options controls a batch run.
type Options struct {
	// Files limits the run to these exports. Empty means every export in the
	// input directory.
	Files []string

	// Platform forces the platform of every export.
	Platform string

	// Dates are the report dates. Empty means the most recent date of each
	// export.
	Dates []string

	// Format is the report format.
	Format report.Format

	// DryRun reads and builds reports without writing or archiving anything.
	DryRun bool
}

// Converter runs the pipeline over the exports of the input directory.
type Converter struct {
	cfg     *config.MainConfig
	rules   map[string]*config.PlatformRule
	files   *utils.FileManager
	metrics *metrics.Registry
	log     logrus.FieldLogger
}

// New creates a Converter.
//
// PARAMETERS:
//   - cfg: The main configuration.
//   - rules: Platform rules by identifier; platforms without a rule use
//     config.DefaultPlatformRules.
//   - m: Metrics registry, may be nil.
//   - log: The logger.
func New(cfg *config.MainConfig, rules map[string]*config.PlatformRule, m *metrics.Registry, log logrus.FieldLogger) *Converter {
	merged := config.DefaultPlatformRules()
	for id, r := range rules {
		merged[id] = r
	}
	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir)
	files.UseTimestampSubdirs = cfg.ArchiveTimestampSubdirs
	return &Converter{
		cfg:     cfg,
		rules:   merged,
		files:   files,
		metrics: m,
		log:     log,
	}
}

// Rule returns the rule of a platform.
func (c *Converter) Rule(id platform.ID) *config.PlatformRule {
	return c.rules[string(id)]
}

// =============================================================================
// BATCH RUN
// =============================================================================

// Run processes the exports concurrently and returns one result per export
// in input order. Unless ContinueOnError is set, the first failure stops
// exports that have not started yet; they are reported as skipped.
func (c *Converter) Run(ctx context.Context, opts Options) ([]Result, error) {
	files := opts.Files
	if len(files) == 0 {
		found, err := c.files.DiscoverInputFiles()
		if err != nil {
			return nil, err
		}
		files = found
	}
	if opts.Format == "" {
		opts.Format = report.FormatHTML
	}

	if !opts.DryRun {
		if err := c.files.EnsureDirectories(); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limit := c.cfg.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	results := make([]Result, len(files))

	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = Result{FilePath: path, Skipped: true, Error: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results[i] = Result{FilePath: path, Skipped: true, Error: ctx.Err()}
				return
			}

			results[i] = c.ProcessFile(path, opts)
			if !results[i].Success && !c.cfg.ContinueOnError {
				cancel()
			}
		}(i, path)
	}
	wg.Wait()

	for _, r := range results {
		c.observe(r)
	}
	return results, nil
}

// ProcessFile runs the whole pipeline for one export.
func (c *Converter) ProcessFile(path string, opts Options) Result {
	start := time.Now()
	result := Result{FilePath: path}
	log := c.log.WithField("file", filepath.Base(path))

	// =========================================================================
	// STEP 1: MATCH PLATFORM
	// =========================================================================

	profile, err := c.matchPlatform(path, opts.Platform)
	if err != nil {
		result.Error = err
		log.WithError(err).Warn("skipping export")
		return result
	}
	result.Platform = profile.ID
	log = log.WithField("platform", profile.ID)

	// =========================================================================
	// STEP 2: READ AND NORMALIZE
	// =========================================================================

	f, err := os.Open(path)
	if err != nil {
		result.Error = fmt.Errorf("failed to open export: %w", err)
		return result
	}
	upload, err := Load(f, path, profile, c.Rule(profile.ID))
	f.Close()
	if err != nil {
		result.Error = fmt.Errorf("failed to read export: %w", err)
		log.WithError(err).Error("read failed")
		return result
	}
	result.Stats.RowsRead = upload.RawRows
	log.WithFields(logrus.Fields{"sheet": upload.Sheet, "rows": upload.RawRows, "dates": len(upload.Dates)}).Debug("export loaded")

	// =========================================================================
	// STEP 3: PICK DATES
	// =========================================================================

	dates := opts.Dates
	if len(dates) == 0 {
		if len(upload.Dates) == 0 {
			result.Error = ErrNoDates
			log.Warn("export has no dated rows")
			return result
		}
		dates = upload.Dates[:1]
	}
	result.Stats.Dates = dates

	// =========================================================================
	// STEP 4: BUILD AND ENCODE
	// =========================================================================

	out, err := Generate(upload.Table, dates, profile, opts.Format)
	if err != nil {
		result.Error = err
		log.WithError(err).Warn("report not generated")
		return result
	}
	summary := out.Report.Summarize()
	result.Title = summary.Title
	result.Stats.Orders = summary.OrderCount
	result.Stats.Total = summary.TotalDisplay

	if opts.DryRun {
		result.Success = true
		result.Stats.ProcessingTime = time.Since(start)
		log.WithField("orders", summary.OrderCount).Info("dry run: report built")
		return result
	}

	// =========================================================================
	// STEP 5: WRITE AND ARCHIVE
	// =========================================================================

	name := utils.GenerateOutputFileName(c.cfg.UUIDFormat, opts.Format.Ext(), map[string]string{
		"platform": string(profile.ID),
		"date":     strings.ReplaceAll(dates[0], "/", ""),
		"original": strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	})
	outputPath, err := c.files.WriteOutput(name, out.Body)
	if err != nil {
		result.Error = fmt.Errorf("failed to write output: %w", err)
		return result
	}
	result.OutputFile = outputPath

	archived, err := c.files.ArchiveInputFile(path)
	if err != nil {
		// The report exists; the export stays for the next run.
		log.WithError(err).Warn("failed to archive export")
	} else {
		result.ArchivePath = archived
	}

	result.Success = true
	result.Stats.ProcessingTime = time.Since(start)
	log.WithFields(logrus.Fields{
		"output": filepath.Base(outputPath),
		"orders": summary.OrderCount,
		"total":  summary.TotalDisplay,
	}).Info("report written")

	return result
}

// matchPlatform picks the platform of an export: the forced platform if
// any, otherwise the first rule, in identifier order, whose pattern matches.
func (c *Converter) matchPlatform(path, forced string) (*platform.Profile, error) {
	if forced != "" {
		return platform.Lookup(forced)
	}
	for _, p := range platform.All() {
		if rule := c.rules[string(p.ID)]; rule != nil && rule.Matches(path) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoPlatformMatch, filepath.Base(path))
}

func (c *Converter) observe(r Result) {
	if c.metrics == nil {
		return
	}
	switch {
	case r.Skipped:
		c.metrics.FilesProcessed.WithLabelValues("skipped").Inc()
	case r.Success:
		c.metrics.FilesProcessed.WithLabelValues("success").Inc()
	default:
		c.metrics.FilesProcessed.WithLabelValues("failed").Inc()
	}
}

// Summarize folds results into the run summary.
func Summarize(results []Result, start, end time.Time) utils.ProcessingSummary {
	s := utils.ProcessingSummary{StartTime: start, EndTime: end, TotalFiles: len(results)}
	for _, r := range results {
		s.TotalRows += r.Stats.RowsRead
		switch {
		case r.Skipped:
			s.SkippedFiles++
		case r.Success:
			s.SuccessfulFiles++
			s.TotalOrders += r.Stats.Orders
			s.ProcessedFiles = append(s.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   r.FilePath,
				OutputFile:  r.OutputFile,
				ArchivePath: r.ArchivePath,
				Platform:    string(r.Platform),
				Title:       r.Title,
				Rows:        r.Stats.RowsRead,
				Orders:      r.Stats.Orders,
				Total:       r.Stats.Total,
				ProcessTime: r.Stats.ProcessingTime,
			})
		default:
			s.FailedFiles++
			msg := ""
			if r.Error != nil {
				msg = r.Error.Error()
			}
			s.FailedFilesList = append(s.FailedFilesList, utils.FailedFileInfo{InputFile: r.FilePath, ErrorMessage: msg})
		}
	}
	return s
}
