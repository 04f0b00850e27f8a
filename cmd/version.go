// =============================================================================
// Order Report Generator - Version Command
// =============================================================================
//
// This file defines the 'version' command, which displays the application
// version and build information.
//
// COMMAND USAGE:
//   orderreport version
//
// OUTPUT:
//   Order Report Generator
//   Version:    1.0.0
//   Build Date: 2025-06-02
//   Go Version: go1.24.0
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/order-report/internal/platform"
)

// =============================================================================
// VERSION INFORMATION
// =============================================================================
// Set at build time:
//   go build -ldflags "-X 'github.com/ginjaninja78/order-report/cmd.Version=1.1.0'"

var (
	Version   = "1.0.0"
	BuildDate = "unknown"
)

// =============================================================================
// VERSION COMMAND DEFINITION
// =============================================================================

// versionCmd represents the 'version' command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long:  `Display the application version, build date, and Go runtime version.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Order Report Generator")
		fmt.Fprintf(out, "Version:    %s\n", Version)
		fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
		fmt.Fprintf(out, "Platforms:  %d\n", len(platform.All()))
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(versionCmd)
}
