package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/order-report/internal/converter"
	"github.com/ginjaninja78/order-report/internal/platform"
)

var (
	datesFile     string
	datesPlatform string
)

// datesCmd lists the dates an export can be reported on.
var datesCmd = &cobra.Command{
	Use:   "dates",
	Short: "List the selectable dates of an export",
	Example: `  orderreport dates --file 蝦皮前日交易.xlsx --platform shopee`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := platform.Lookup(datesPlatform)
		if err != nil {
			return err
		}

		f, err := os.Open(datesFile)
		if err != nil {
			return fmt.Errorf("failed to open export: %w", err)
		}
		defer f.Close()

		conv := converter.New(app.cfg, app.rules, nil, app.log)
		upload, err := converter.Load(f, datesFile, profile, conv.Rule(profile.ID))
		if err != nil {
			return fmt.Errorf("failed to read export: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: sheet %q, %d rows\n", profile.DisplayName, upload.Sheet, upload.RawRows)
		if len(upload.Dates) == 0 {
			fmt.Fprintln(out, "no dated rows")
			return nil
		}
		for _, d := range upload.Dates {
			fmt.Fprintln(out, d)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datesCmd)
	datesCmd.Flags().StringVar(&datesFile, "file", "", "Path to the export")
	datesCmd.Flags().StringVar(&datesPlatform, "platform", "", "Platform of the export (official, shopee, momo)")
	datesCmd.MarkFlagRequired("file")
	datesCmd.MarkFlagRequired("platform")
}
