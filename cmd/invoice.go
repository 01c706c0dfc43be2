package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"boqledger/internal/invoice"
	"boqledger/internal/logger"
	"boqledger/pkg/models"
	"boqledger/pkg/services"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Create and list running-account invoices",
}

var invoiceCreateCmd = &cobra.Command{
	Use:   "create [project-id]",
	Short: "Assemble an invoice from BOQ item selections",
	Long: `Assemble a tax or proforma invoice for a project. Selections are given as
repeated --select ITEM=QTY flags or a YAML file of selections:

  - boq_item_id: "1"
    quantity: 40
  - boq_item_id: "2"
    quantity: 12.5
    gst_rate: 18
    gst_type: igst

Tax invoices consume BOQ quantity and take the next RA number. Proforma
invoices consume nothing and may be issued without tax (--no-tax). All
selections are validated before anything is stored; every problem found is
reported at once.`,
	Example: `  # Bill 40 units of item 1 and 10 of item 2 as the next RA bill
  boqledger invoice create tower-a --select 1=40 --select 2=10

  # Tax-free proforma preview from a selections file
  boqledger invoice create tower-a --type proforma --no-tax --selections sel.yaml

  # Check an invoice without storing it
  boqledger invoice create tower-a --select 1=40 --dry-run --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoiceCreate,
}

var invoiceListCmd = &cobra.Command{
	Use:     "list [project-id]",
	Short:   "List a project's invoices in creation order",
	Example: `  boqledger invoice list tower-a`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInvoiceList,
}

var invoiceShowCmd = &cobra.Command{
	Use:     "show [invoice-id]",
	Short:   "Show one invoice as JSON",
	Example: `  boqledger invoice show 4b1c0a7e-6c59-4a53-9d0e-2f0f3c1b7a10`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInvoiceShow,
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.AddCommand(invoiceCreateCmd, invoiceListCmd, invoiceShowCmd)

	invoiceCreateCmd.Flags().String("type", string(models.InvoiceTypeTaxInvoice), "Invoice type (tax_invoice or proforma)")
	invoiceCreateCmd.Flags().StringArray("select", nil, "Selection as ITEM=QTY (repeatable)")
	invoiceCreateCmd.Flags().String("selections", "", "YAML file with selections")
	invoiceCreateCmd.Flags().Bool("no-tax", false, "Omit GST (proforma only)")
	invoiceCreateCmd.Flags().String("advance", "0", "Advance received with this invoice")
	invoiceCreateCmd.Flags().String("terms", "", "Payment terms (default: DEFAULT_PAYMENT_TERMS)")
	invoiceCreateCmd.Flags().String("date", "", "Invoice date YYYY-MM-DD (default: today)")
	invoiceCreateCmd.Flags().String("status", "", "Invoice status (draft, sent, approved, paid, pending)")
	invoiceCreateCmd.Flags().Bool("dry-run", false, "Assemble and validate without storing")
	invoiceCreateCmd.Flags().Bool("json", false, "Output as JSON format")

	invoiceListCmd.Flags().Bool("json", false, "Output as JSON format")
}

func runInvoiceCreate(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	log := logger.WithProject("invoice", projectID)

	req, err := invoiceRequestFromFlags(cmd, projectID)
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	log.Info().
		Str("invoice_type", string(req.InvoiceType)).
		Int("selections", len(req.Selections)).
		Bool("dry_run", req.DryRun).
		Msg("Creating invoice")

	ctx, cancel := commandContext(time.Minute, log)
	defer cancel()

	a, err := openApp(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	result, err := a.billing.CreateInvoice(ctx, req)
	if err != nil {
		return handleServiceError(err, log)
	}

	if jsonOutput {
		return outputJSON(result)
	}
	return outputInvoiceConsole(result, req.DryRun)
}

// invoiceRequestFromFlags builds a create request from the command line.
func invoiceRequestFromFlags(cmd *cobra.Command, projectID string) (services.CreateInvoiceRequest, error) {
	typeFlag, _ := cmd.Flags().GetString("type")
	selectFlags, _ := cmd.Flags().GetStringArray("select")
	selectionsFile, _ := cmd.Flags().GetString("selections")
	noTax, _ := cmd.Flags().GetBool("no-tax")
	advanceFlag, _ := cmd.Flags().GetString("advance")
	terms, _ := cmd.Flags().GetString("terms")
	dateFlag, _ := cmd.Flags().GetString("date")
	statusFlag, _ := cmd.Flags().GetString("status")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	req := services.CreateInvoiceRequest{
		ProjectID:    projectID,
		PaymentTerms: terms,
		DryRun:       dryRun,
	}

	var err error
	if req.InvoiceType, err = models.ParseInvoiceType(typeFlag); err != nil {
		return req, err
	}
	if statusFlag != "" {
		if req.Status, err = models.ParseInvoiceStatus(statusFlag); err != nil {
			return req, err
		}
	}
	if req.AdvanceReceived, err = decimal.NewFromString(advanceFlag); err != nil {
		return req, fmt.Errorf("invalid --advance %q: %w", advanceFlag, err)
	}
	if dateFlag != "" {
		if req.InvoiceDate, err = time.Parse("2006-01-02", dateFlag); err != nil {
			return req, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD: %w", dateFlag, err)
		}
	}
	if noTax {
		includeTax := false
		req.IncludeTax = &includeTax
	}

	if selectionsFile != "" {
		if req.Selections, err = readSelectionsFile(selectionsFile); err != nil {
			return req, err
		}
	}
	for _, s := range selectFlags {
		sel, err := parseSelection(s)
		if err != nil {
			return req, err
		}
		req.Selections = append(req.Selections, sel)
	}
	if len(req.Selections) == 0 {
		return req, fmt.Errorf("no selections given; use --select ITEM=QTY or --selections FILE")
	}
	return req, nil
}

// parseSelection parses "ITEM=QTY".
func parseSelection(s string) (invoice.Selection, error) {
	id, qty, ok := strings.Cut(s, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return invoice.Selection{}, fmt.Errorf("invalid --select %q, expected ITEM=QTY", s)
	}
	quantity, err := decimal.NewFromString(strings.TrimSpace(qty))
	if err != nil {
		return invoice.Selection{}, fmt.Errorf("invalid quantity in --select %q: %w", s, err)
	}
	return invoice.Selection{BOQItemID: id, Quantity: quantity}, nil
}

func readSelectionsFile(path string) ([]invoice.Selection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selections file: %w", err)
	}
	var selections []invoice.Selection
	if err := yaml.Unmarshal(data, &selections); err != nil {
		return nil, fmt.Errorf("failed to parse selections file %s: %w", path, err)
	}
	return selections, nil
}

// outputInvoiceConsole prints an assembled invoice
func outputInvoiceConsole(result *invoice.Result, dryRun bool) error {
	inv := result.Invoice

	fmt.Println(strings.Repeat("=", 80))
	title := "TAX INVOICE"
	if inv.InvoiceType == models.InvoiceTypeProforma {
		title = "PROFORMA INVOICE"
	}
	if dryRun {
		title += " (DRY RUN, NOT STORED)"
	}
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 80))

	if inv.InvoiceNumber != "" {
		fmt.Printf("Invoice number: %s\n", inv.InvoiceNumber)
	}
	if ra := inv.RALabel(); ra != "" {
		fmt.Printf("RA number: %s\n", ra)
	}
	fmt.Printf("Invoice date: %s\n", inv.InvoiceDate.Format("02.01.2006"))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ITEM\tDESCRIPTION\tQTY\tRATE\tAMOUNT\tGST %%\tGST\tTOTAL\n")
	for _, line := range inv.Items {
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\t%s\t%s\t%s\n",
			line.BOQItemID,
			line.Description,
			line.QuantityBilled.String(), line.Unit,
			line.Rate.StringFixed(2),
			line.Amount.StringFixed(2),
			line.GSTRate.String(),
			line.GSTAmount.StringFixed(2),
			line.TotalWithGST.StringFixed(2),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Subtotal:       %s\n", inv.Subtotal.StringFixed(2))
	if inv.IGSTAmount.IsPositive() {
		fmt.Printf("IGST:           %s\n", inv.IGSTAmount.StringFixed(2))
	} else {
		fmt.Printf("CGST:           %s\n", inv.CGSTAmount.StringFixed(2))
		fmt.Printf("SGST:           %s\n", inv.SGSTAmount.StringFixed(2))
	}
	fmt.Printf("Total:          %s\n", inv.TotalAmount.StringFixed(2))
	if inv.AdvanceReceived.IsPositive() {
		fmt.Printf("Advance:        %s\n", inv.AdvanceReceived.StringFixed(2))
		fmt.Printf("Net amount due: %s\n", inv.NetAmountDue.StringFixed(2))
	}
	if inv.PaymentTerms != "" {
		fmt.Printf("Payment terms:  %s\n", inv.PaymentTerms)
	}
	fmt.Println()
	fmt.Printf("Next RA number: %s\n", result.NextRANumber)
	return nil
}

func runInvoiceList(cmd *cobra.Command, args []string) error {
	log := logger.WithProject("invoice", args[0])
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, cancel := commandContext(time.Minute, log)
	defer cancel()

	a, err := openApp(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	invoices, err := a.billing.ListInvoices(ctx, args[0])
	if err != nil {
		return handleServiceError(err, log)
	}

	if jsonOutput {
		return outputJSON(invoices)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tTYPE\tRA\tDATE\tSTATUS\tSUBTOTAL\tGST\tTOTAL\tID")
	for _, inv := range invoices {
		ra := inv.RALabel()
		if ra == "" {
			ra = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			inv.InvoiceNumber,
			inv.InvoiceType,
			ra,
			inv.InvoiceDate.Format("2006-01-02"),
			inv.Status,
			inv.Subtotal.StringFixed(2),
			inv.TotalGSTAmount.StringFixed(2),
			inv.TotalAmount.StringFixed(2),
			inv.ID,
		)
	}
	return w.Flush()
}

func runInvoiceShow(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice")

	ctx, cancel := commandContext(time.Minute, log)
	defer cancel()

	a, err := openApp(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	inv, err := a.billing.GetInvoice(ctx, args[0])
	if err != nil {
		return handleServiceError(err, log)
	}
	return outputJSON(inv)
}
