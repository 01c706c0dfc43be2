package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"boqledger/internal/config"
	"boqledger/internal/logger"
	"boqledger/internal/sheets"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export billing data to external tools",
}

var exportSheetsCmd = &cobra.Command{
	Use:   "sheets [project-id]",
	Short: "Append a project's BOQ status to a Google Sheet",
	Long: `Append one row per BOQ item (quantities, billed and remaining, RA usage,
locked GST rate) to a worksheet. The worksheet and its header row are
created when missing.

Required environment variables:
  GOOGLE_SHEET_URL - URL of the target spreadsheet
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string

The service account needs edit access to the spreadsheet.`,
	Example: `  # Export to the default worksheet (GOOGLE_SHEET_WORKSHEET, default BOQ_Status)
  boqledger export sheets tower-a

  # Export to a named worksheet
  boqledger export sheets tower-a --sheet "Tower A"`,
	Args: cobra.ExactArgs(1),
	RunE: runExportSheets,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportSheetsCmd)

	exportSheetsCmd.Flags().String("sheet", "", "Worksheet name (overrides GOOGLE_SHEET_WORKSHEET)")
	exportSheetsCmd.Flags().Int("timeout", 120, "Export timeout in seconds")
}

func runExportSheets(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	log := logger.WithProject("export", projectID)
	sheetName, _ := cmd.Flags().GetString("sheet")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	ctx, cancel := commandContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	a, err := openApp(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	if err := a.cfg.RequireSheets(); err != nil {
		return fmt.Errorf("Google Sheets export is not configured: %w", err)
	}
	if sheetName == "" {
		sheetName = a.cfg.GoogleSheetWorksheet
	}

	status, err := a.billing.Status(ctx, projectID)
	if err != nil {
		return handleServiceError(err, log)
	}

	sheetsService, err := sheets.NewSheetsService(ctx, a.cfg.GoogleSheetURL)
	if err != nil {
		return handleSheetsError(err, a.cfg)
	}

	rows, err := sheetsService.WriteBOQStatus(ctx, status, sheetName)
	if err != nil {
		return handleSheetsError(err, a.cfg)
	}

	fmt.Printf("Exported %d BOQ items of %s to worksheet %q\n", rows, status.ProjectName, sheetName)
	return nil
}

// handleSheetsError explains common credential and permission failures
func handleSheetsError(err error, cfg *config.Config) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "GOOGLE_APPLICATION_CREDENTIALS"):
		return fmt.Errorf("missing Google credentials. Please set one of:\n" +
			"  GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n" +
			"  GOOGLE_CREDENTIALS='<json-credentials>'\n" +
			"Original error: %w", err)
	case strings.Contains(errStr, "PERMISSION_DENIED") || strings.Contains(errStr, "403"):
		return fmt.Errorf("permission denied writing to %s. Share the spreadsheet with the service account: %w", cfg.GoogleSheetURL, err)
	default:
		return fmt.Errorf("Google Sheets export failed: %w", err)
	}
}
