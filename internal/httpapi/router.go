// Package httpapi exposes the billing service over HTTP with chi.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"boqledger/internal/logger"
	"boqledger/pkg/services"
)

type Options struct {
	AuthUser string
	AuthPass string
}

// NewRouter builds the /api/v1 routes over svc.
func NewRouter(svc services.BillingService, opts Options) http.Handler {
	h := &handler{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BasicAuth(opts.AuthUser, opts.AuthPass))

		// Projects
		r.Get("/projects", h.listProjects)
		r.Post("/projects", h.createProject)
		r.Get("/projects/{id}", h.getProject)
		r.Get("/projects/{id}/boq-status", h.boqStatus)

		// Invoices
		r.Get("/projects/{id}/invoices", h.listInvoices)
		r.Post("/projects/{id}/invoices", h.createInvoice)
		r.Post("/projects/{id}/validate-quantities", h.validateQuantities)
		r.Get("/invoices/{id}", h.getInvoice)

		// Reports
		r.Get("/reports/gst", h.gstSummary)
	})

	return r
}

// requestLogger attaches a request-scoped zerolog logger to the context and
// logs each request once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithComponent("httpapi").With().
			Str("request_id", middleware.GetReqID(r.Context())).
			Logger()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(log.WithContext(r.Context())))

		var ev *zerolog.Event
		if ww.Status() >= http.StatusInternalServerError {
			ev = log.Error()
		} else {
			ev = log.Info()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
