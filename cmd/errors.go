package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"boqledger/internal/billing"
	"boqledger/internal/invoice"
	"boqledger/internal/store"
)

// handleServiceError provides user-friendly messages for billing failures
func handleServiceError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Operation failed")

	var failure *invoice.ValidationFailure
	switch {
	case errors.As(err, &failure):
		var b strings.Builder
		b.WriteString("invoice rejected, nothing was stored:")
		for _, v := range failure.Details() {
			fmt.Fprintf(&b, "\n  - [%s] %s", v.Code, v.Message)
		}
		return errors.New(b.String())
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("operation timed out")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("operation was canceled")
	case errors.Is(err, store.ErrLockBusy):
		return fmt.Errorf("another invoice is being created for this project, try again: %w", err)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("not found: %w", err)
	case errors.Is(err, store.ErrProjectExists):
		return fmt.Errorf("a project with this ID already exists: %w", err)
	case errors.Is(err, billing.ErrInvalidRequest), errors.Is(err, invoice.ErrInvalidOptions):
		return fmt.Errorf("invalid request: %w", err)
	default:
		return err
	}
}
