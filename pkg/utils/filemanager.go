// =============================================================================
// Order Report Generator - File Manager Utility
// =============================================================================
//
// This module provides the file handling of batch mode:
//   - Discovering order exports in the input directory
//   - Naming and writing report files
//   - Archiving exports after a successful run
//   - Writing the run summary
//
// ARCHIVAL STRATEGY:
//   - Exports are moved to input_archive once their report is written
//   - Failed exports stay in the input directory for the next run
//   - The run summary is written next to the reports
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for batch mode.
type FileManager struct {
	// InputDir is the directory where exports are placed.
	InputDir string

	// OutputDir is the directory where reports are written.
	OutputDir string

	// InputArchiveDir is the directory for archived exports.
	InputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2025/06/02/orders.xlsx
	UseTimestampSubdirs bool

	// ArchiveOnSuccess determines whether exports are archived after
	// successful processing.
	ArchiveOnSuccess bool
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		ArchiveOnSuccess: true,
	}
}

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// exportExtensions are the file types batch mode picks up.
var exportExtensions = map[string]bool{".xlsx": true, ".xlsm": true, ".csv": true}

// DiscoverInputFiles lists the exports in the input directory, sorted by
// name. Office lock files ("~$...") and hidden files are skipped.
//
// RETURNS:
//   - A slice of file paths.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverInputFiles() ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
			continue
		}
		if !exportExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		files = append(files, filepath.Join(fm.InputDir, name))
	}
	sort.Strings(files)
	return files, nil
}

// =============================================================================
// OUTPUT FILES
// =============================================================================

// WriteOutput writes a report into the output directory.
//
// PARAMETERS:
//   - fileName: The report file name.
//   - data: The report content.
//
// RETURNS:
//   - The path of the written file.
func (fm *FileManager) WriteOutput(fileName string, data []byte) (string, error) {
	outputPath := filepath.Join(fm.OutputDir, fileName)
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return outputPath, nil
}

// GenerateOutputFileName generates a unique output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {platform}  - Platform identifier
//               {date}      - Report date (YYYYMMDD)
//               {original}  - Original file name (without extension)
//   - ext: The extension of the report format, without the dot.
//   - params: A map of placeholder values.
//
// EXAMPLE:
//   format: "{platform}_{date}_{uuid}"
//   params: {"platform": "momo", "date": "20250602"}
//   output: "momo_20250602_a1b2c3d4-e5f6-7890-abcd-ef1234567890.html"
func GenerateOutputFileName(format, ext string, params map[string]string) string {
	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": time.Now().Format("20060102_150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}
	result = sanitizeFileName(result)

	suffix := "." + ext
	if !strings.HasSuffix(strings.ToLower(result), suffix) {
		result += suffix
	}
	return result
}

// sanitizeFileName replaces path separators left by placeholder values.
func sanitizeFileName(name string) string {
	return strings.NewReplacer("/", "-", "\\", "-", ":", "-").Replace(name)
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an export to the archive directory.
//
// PARAMETERS:
//   - filePath: The path to the file to archive.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device moves fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// getArchivePath constructs the archive path for a file. An existing
// archive of the same name is never overwritten.
func (fm *FileManager) getArchivePath(filePath string) string {
	dir := fm.InputArchiveDir
	if fm.UseTimestampSubdirs {
		now := time.Now()
		dir = filepath.Join(dir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
		)
	}

	fileName := filepath.Base(filePath)
	path := filepath.Join(dir, fileName)
	if !FileExists(path) {
		return path
	}
	ext := filepath.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, time.Now().Format("20060102_150405"), ext))
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a batch run.
type ProcessingSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	SkippedFiles    int
	TotalRows       int
	TotalOrders     int
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo describes a successfully processed export.
type ProcessedFileInfo struct {
	InputFile   string
	OutputFile  string
	ArchivePath string
	Platform    string
	Title       string
	Rows        int
	Orders      int
	Total       string
	ProcessTime time.Duration
}

// FailedFileInfo describes a failed export.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes a run summary to a text file.
//
// PARAMETERS:
//   - summary: The processing summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryFileName := fmt.Sprintf("processing_summary_%s.txt", summary.EndTime.Format("20060102_150405"))
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	rule := strings.Repeat("=", 80) + "\n"
	thin := strings.Repeat("-", 80) + "\n"

	fmt.Fprintf(w, "Order Report Generator - Processing Summary\n%s\n", rule)
	fmt.Fprintf(w, "Run Information:\n")
	fmt.Fprintf(w, "  Start Time:     %s\n", summary.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  End Time:       %s\n", summary.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Duration:       %s\n\n", summary.EndTime.Sub(summary.StartTime))
	fmt.Fprintf(w, "Statistics:\n")
	fmt.Fprintf(w, "  Total Files:    %d\n", summary.TotalFiles)
	fmt.Fprintf(w, "  Successful:     %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(w, "  Failed:         %d\n", summary.FailedFiles)
	fmt.Fprintf(w, "  Skipped:        %d\n", summary.SkippedFiles)
	fmt.Fprintf(w, "  Rows Read:      %s\n", humanize.Comma(int64(summary.TotalRows)))
	fmt.Fprintf(w, "  Report Orders:  %s\n\n", humanize.Comma(int64(summary.TotalOrders)))

	if len(summary.ProcessedFiles) > 0 {
		fmt.Fprintf(w, "Successful Files:\n%s", thin)
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(w, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(w, "  Output:       %s\n", pf.OutputFile)
			fmt.Fprintf(w, "  Report:       %s\n", pf.Title)
			fmt.Fprintf(w, "  Orders:       %d\n", pf.Orders)
			fmt.Fprintf(w, "  Total:        %s\n", pf.Total)
			fmt.Fprintf(w, "  Process Time: %s\n\n", pf.ProcessTime)
		}
	}

	if len(summary.FailedFilesList) > 0 {
		fmt.Fprintf(w, "Failed Files:\n%s", thin)
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(w, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(w, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	fmt.Fprintf(w, "%sEnd of Summary\n", rule)

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
