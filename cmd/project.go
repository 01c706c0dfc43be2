package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"boqledger/internal/ledger"
	"boqledger/internal/logger"
	"boqledger/internal/sheets"
	"boqledger/pkg/models"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects and inspect their BOQ billing status",
}

var projectImportCmd = &cobra.Command{
	Use:   "import [project-file]",
	Short: "Register a project and its Bill of Quantities from a YAML file",
	Long: `Import a project definition with its client and BOQ items. The file is
YAML (JSON is accepted too) in the following shape:

  id: tower-a
  name: Tower A Civil Works
  client:
    name: Acme Builders
    gstin: 29ABCDE1234F1Z5
    bill_to_address: 12 MG Road, Bengaluru, Karnataka
  boq_items:
    - id: "1"
      description: Excavation
      unit: cum
      quantity: 100
      rate: 500
      gst_rate: 18

With --boq-sheet the BOQ items are read from a worksheet of GOOGLE_SHEET_URL
instead; the header row is detected and the file then only needs the project
and client fields. Rows without a GST column get 18%.

The BOQ cannot be changed after import.`,
	Example: `  # Import a project
  boqledger project import tower-a.yaml

  # Take the BOQ from the "BOQ" worksheet of the configured Google Sheet
  boqledger project import tower-a.yaml --boq-sheet BOQ`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectImport,
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List all projects",
	Example: `  boqledger project list`,
	Args:    cobra.NoArgs,
	RunE:    runProjectList,
}

var projectStatusCmd = &cobra.Command{
	Use:   "status [project-id]",
	Short: "Show billed and remaining quantities for every BOQ item",
	Long: `Derive the BOQ status of a project from its invoice history: billed and
remaining quantity per item, quantities per RA bill, locked GST rates and
project totals.`,
	Example: `  # Human-readable status
  boqledger project status tower-a

  # JSON for scripting
  boqledger project status tower-a --json`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectStatus,
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectImportCmd, projectListCmd, projectStatusCmd)

	projectImportCmd.Flags().String("boq-sheet", "", "Read BOQ items from this Google Sheets worksheet")
	projectListCmd.Flags().Bool("json", false, "Output as JSON format")
	projectStatusCmd.Flags().Bool("json", false, "Output as JSON format")
}

func runProjectImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("project")
	path := args[0]
	boqSheet, _ := cmd.Flags().GetString("boq-sheet")

	project, err := readProjectFile(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to read project file")
		return err
	}

	ctx, cancel := commandContext(time.Minute, log)
	defer cancel()

	a, err := openApp(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	if boqSheet != "" {
		if err := a.cfg.RequireSheets(); err != nil {
			return fmt.Errorf("reading the BOQ from Google Sheets is not configured: %w", err)
		}
		sheetsService, err := sheets.NewSheetsService(ctx, a.cfg.GoogleSheetURL)
		if err != nil {
			return handleSheetsError(err, a.cfg)
		}
		if project.Items, err = sheets.NewBOQReader(sheetsService).ReadBOQItems(ctx, boqSheet); err != nil {
			return handleSheetsError(err, a.cfg)
		}
	}

	created, err := a.billing.CreateProject(ctx, project)
	if err != nil {
		return handleServiceError(err, log)
	}

	log.Info().
		Str("project_id", created.ID).
		Int("boq_items", len(created.Items)).
		Msg("Project imported")

	fmt.Printf("Imported project %s (%s) with %d BOQ items, total value %s\n",
		created.ID, created.Name, len(created.Items), created.TotalValue().StringFixed(2))
	return nil
}

// readProjectFile decodes a project definition. Unknown keys are rejected so
// typos in the BOQ do not silently drop data.
func readProjectFile(path string) (*models.Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open project file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var project models.Project
	if err := dec.Decode(&project); err != nil {
		return nil, fmt.Errorf("failed to parse project file %s: %w", path, err)
	}
	return &project, nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("project")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, cancel := commandContext(time.Minute, log)
	defer cancel()

	a, err := openApp(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	projects, err := a.billing.ListProjects(ctx)
	if err != nil {
		return handleServiceError(err, log)
	}

	if jsonOutput {
		return outputJSON(projects)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCLIENT\tITEMS\tVALUE")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Client.Name, len(p.Items), p.TotalValue().StringFixed(2))
	}
	return w.Flush()
}

func runProjectStatus(cmd *cobra.Command, args []string) error {
	log := logger.WithProject("project", args[0])
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, cancel := commandContext(time.Minute, log)
	defer cancel()

	a, err := openApp(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	status, err := a.billing.Status(ctx, args[0])
	if err != nil {
		return handleServiceError(err, log)
	}

	if jsonOutput {
		return outputJSON(status)
	}
	return outputStatusConsole(status)
}

// outputStatusConsole prints the BOQ status as a table followed by totals
func outputStatusConsole(status *ledger.Status) error {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("BOQ STATUS: %s (%s)\n", status.ProjectName, status.ProjectID)
	fmt.Println(strings.Repeat("=", 80))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ITEM\tDESCRIPTION\tUNIT\tQTY\tBILLED\tREMAINING\tBILLED %%\tGST %%\n")
	for _, st := range status.Items {
		rate := st.Item.GSTRate.String()
		if st.Locked() {
			rate = st.LockedGSTRate.String() + " (locked " + st.FirstBilledOn + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			st.Item.ID,
			st.Item.Description,
			st.Item.Unit,
			st.Item.Quantity.String(),
			st.Billed.String(),
			st.Remaining.String(),
			st.BillingPercentage.StringFixed(2),
			rate,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	t := status.Totals
	fmt.Println()
	fmt.Printf("Project value:    %s\n", t.TotalProjectValue.StringFixed(2))
	fmt.Printf("Billed value:     %s (%s%%)\n", t.TotalBilledValue.StringFixed(2), t.BillingPercentage.StringFixed(2))
	fmt.Printf("Remaining value:  %s\n", t.RemainingValue.StringFixed(2))
	fmt.Printf("Advance received: %s\n", status.AdvanceReceived.StringFixed(2))
	fmt.Printf("Tax invoices: %d, proforma: %d, next RA: %s\n", t.TaxInvoiceCount, t.ProformaCount, t.NextRANumber)
	return nil
}
