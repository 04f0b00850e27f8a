// =============================================================================
// Order Report Generator - Main Entry Point
// =============================================================================
//
// USAGE:
//   orderreport serve       - Start the HTTP server (uploads, reports, tracker)
//   orderreport process     - Build reports for every export in the input directory
//   orderreport dates       - List the selectable dates of one export
//   orderreport version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Report pipeline, server, tracker, sessions, config
//   - pkg/           : Shared file utilities
//   - configs/       : Per-platform file matching rules
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/order-report/cmd"
)

func main() {
	cmd.Execute()
}
