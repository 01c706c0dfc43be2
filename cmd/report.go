package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"boqledger/internal/logger"
	"boqledger/internal/report"
	"boqledger/pkg/models"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Tax reports across all projects",
}

var reportGSTCmd = &cobra.Command{
	Use:   "gst",
	Short: "Summarize GST collected over a date range",
	Long: `Summarize taxable value and CGST, SGST and IGST over all invoices dated
within the range, broken down by GST rate, month and invoice type. Both
bounds are inclusive dates; either may be omitted.`,
	Example: `  # Financial year 2024-25
  boqledger report gst --from 2024-04-01 --to 2025-03-31

  # Everything, as JSON
  boqledger report gst --json`,
	Args: cobra.NoArgs,
	RunE: runReportGST,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportGSTCmd)

	reportGSTCmd.Flags().String("from", "", "First invoice date YYYY-MM-DD")
	reportGSTCmd.Flags().String("to", "", "Last invoice date YYYY-MM-DD (inclusive)")
	reportGSTCmd.Flags().Bool("json", false, "Output as JSON format")
}

func runReportGST(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("report")
	fromFlag, _ := cmd.Flags().GetString("from")
	toFlag, _ := cmd.Flags().GetString("to")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	from, to, err := parseDateRange(fromFlag, toFlag)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(time.Minute, log)
	defer cancel()

	a, err := openApp(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	summary, err := a.billing.GSTSummary(ctx, from, to)
	if err != nil {
		return handleServiceError(err, log)
	}

	if jsonOutput {
		return outputJSON(summary)
	}
	return outputGSTConsole(summary)
}

// parseDateRange parses inclusive YYYY-MM-DD bounds into [from, to).
func parseDateRange(fromFlag, toFlag string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if fromFlag != "" {
		if from, err = time.Parse("2006-01-02", fromFlag); err != nil {
			return from, to, fmt.Errorf("invalid --from %q, expected YYYY-MM-DD: %w", fromFlag, err)
		}
	}
	if toFlag != "" {
		if to, err = time.Parse("2006-01-02", toFlag); err != nil {
			return from, to, fmt.Errorf("invalid --to %q, expected YYYY-MM-DD: %w", toFlag, err)
		}
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, fmt.Errorf("--from must not be after --to")
	}
	return from, to, nil
}

// outputGSTConsole prints the summary with rate and month breakdowns
func outputGSTConsole(s *report.GSTSummary) error {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("GST SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	period := "all dates"
	switch {
	case s.From != nil && s.To != nil:
		period = s.From.Format("2006-01-02") + " to " + s.To.AddDate(0, 0, -1).Format("2006-01-02")
	case s.From != nil:
		period = "from " + s.From.Format("2006-01-02")
	case s.To != nil:
		period = "until " + s.To.AddDate(0, 0, -1).Format("2006-01-02")
	}
	fmt.Printf("Period:          %s\n", period)
	fmt.Printf("Invoices:        %d\n", s.TotalInvoices)
	fmt.Printf("Taxable amount:  %s\n", s.TotalTaxableAmount.StringFixed(2))
	fmt.Printf("CGST:            %s\n", s.TotalCGST.StringFixed(2))
	fmt.Printf("SGST:            %s\n", s.TotalSGST.StringFixed(2))
	fmt.Printf("IGST:            %s\n", s.TotalIGST.StringFixed(2))
	fmt.Printf("Total GST:       %s\n", s.TotalGSTAmount.StringFixed(2))
	fmt.Printf("Total with GST:  %s\n", s.TotalAmountWithGST.StringFixed(2))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if len(s.Rates) > 0 {
		fmt.Fprintf(w, "\nRATE %%\tTAXABLE\tGST\tTOTAL\n")
		for _, r := range s.Rates {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Rate.String(), r.TaxableAmount.StringFixed(2), r.GSTAmount.StringFixed(2), r.TotalAmount.StringFixed(2))
		}
	}
	if len(s.Months) > 0 {
		fmt.Fprintln(w, "\nMONTH\tINVOICES\tTAXABLE\tGST\tTOTAL")
		for _, m := range s.Months {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", m.Month, m.TotalInvoices, m.TaxableAmount.StringFixed(2), m.GSTAmount.StringFixed(2), m.TotalAmount.StringFixed(2))
		}
	}
	if len(s.ByType) > 0 {
		types := make([]string, 0, len(s.ByType))
		for t := range s.ByType {
			types = append(types, string(t))
		}
		sort.Strings(types)
		fmt.Fprintln(w, "\nTYPE\tTOTAL")
		for _, t := range types {
			fmt.Fprintf(w, "%s\t%s\n", t, s.ByType[models.InvoiceType(t)].StringFixed(2))
		}
	}
	return w.Flush()
}
