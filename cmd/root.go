package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"boqledger/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "boqledger",
	Short: "BOQ running-account billing ledger",
	Long: `boqledger tracks how much of each Bill of Quantities (BOQ) item has been
billed for a construction project, and assembles tax and proforma invoices
against the remaining balances.

Tax invoices consume BOQ quantity and are numbered RA1, RA2, ... per project.
Proforma invoices are previews that never consume quantity. The GST rate of an
item is locked by its first tax invoice.

Configuration is read from the environment (or a .env file):
  DB_PATH           - SQLite database file (default ./data/boqledger.db)
  REDIS_URL         - Redis for cross-process project locks (optional)
  COMPANY_STATE     - Billing state; clients elsewhere are charged IGST
  STRICT_GST_RATES  - Only accept 0, 5, 12, 18 and 28 percent`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("boqledger executed")

		fmt.Println("Welcome to boqledger!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides DB_PATH)")
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

// commandContext returns a context that is canceled on SIGINT/SIGTERM or
// after timeout, whichever comes first. A zero timeout means no deadline.
func commandContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
