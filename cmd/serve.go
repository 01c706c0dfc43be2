package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"boqledger/internal/httpapi"
	"boqledger/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the billing HTTP API",
	Long: `Serve the JSON API under /api/v1 (projects, BOQ status, invoices, quantity
validation and GST reports). Basic auth is enabled when AUTH_USER and
AUTH_PASS are set. Run several instances against one database only with
REDIS_URL set, so invoice creation stays serialized per project.`,
	Example: `  # Listen on HTTP_ADDR (default :8080)
  boqledger serve

  # Custom address
  boqledger serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (overrides HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	ctx, cancel := commandContext(0, log)
	defer cancel()

	a, err := openApp(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	addr := a.cfg.HTTPAddr
	if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
		addr = flagAddr
	}

	server := &http.Server{
		Addr: addr,
		Handler: httpapi.NewRouter(a.billing, httpapi.Options{
			AuthUser: a.cfg.AuthUser,
			AuthPass: a.cfg.AuthPass,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Bool("basic_auth", a.cfg.AuthUser != "").
			Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
