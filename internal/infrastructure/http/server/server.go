package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	healthhttp "facturalo/ms_cfdi_core/internal/adapters/http/health"
	invoicehttp "facturalo/ms_cfdi_core/internal/adapters/http/invoice"
	paymenthttp "facturalo/ms_cfdi_core/internal/adapters/http/payment"
	"facturalo/ms_cfdi_core/internal/infrastructure/config"
	"facturalo/ms_cfdi_core/internal/infrastructure/http/middleware"
)

// Server hosts the invoicing HTTP API.
type Server struct {
	log        *slog.Logger
	httpServer *http.Server
	cfg        config.HTTPSettings
}

// Options carries everything the server needs to assemble its routes.
type Options struct {
	HTTP           config.HTTPSettings
	Logger         *slog.Logger
	Auth           *middleware.JWTAuthenticator
	HealthHandler  *healthhttp.Handler
	InvoiceHandler *invoicehttp.Handler
	PaymentHandler *paymenthttp.Handler
}

// New builds the router and the underlying http.Server.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.HealthHandler == nil || opts.InvoiceHandler == nil || opts.PaymentHandler == nil {
		return nil, errors.New("all handlers are required")
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(opts.Logger))
	if opts.Auth != nil {
		r.Use(opts.Auth.Middleware)
	}

	r.Get("/health", opts.HealthHandler.Check)

	// Stamping and cancellation wait on the PAC, so those endpoints get the
	// extended timeout; everything else is bounded by the write timeout.
	stampTimeout := middleware.StampTimeout(opts.HTTP)
	requestTimeout := middleware.Timeout(opts.HTTP.WriteTimeout)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/facturas", func(r chi.Router) {
			r.With(requestTimeout).Post("/", opts.InvoiceHandler.Create)
			r.With(requestTimeout).Get("/{invoiceID}", opts.InvoiceHandler.Get)
			r.With(stampTimeout).Post("/{invoiceID}/timbrar", opts.InvoiceHandler.Stamp)
			r.With(stampTimeout).Post("/{invoiceID}/cancelar", opts.InvoiceHandler.Cancel)
			r.With(requestTimeout).Get("/{invoiceID}/pdf", opts.InvoiceHandler.DownloadPDF)
		})

		r.Route("/pagos", func(r chi.Router) {
			r.With(stampTimeout).Post("/", opts.PaymentHandler.Create)
			r.With(requestTimeout).Get("/{paymentID}", opts.PaymentHandler.Get)
			r.With(requestTimeout).Get("/{paymentID}/pdf", opts.PaymentHandler.DownloadPDF)
		})
	})

	// The server-wide write timeout must not cut off stamping responses,
	// which are bounded per-route well above the regular write timeout.
	writeTimeout := opts.HTTP.WriteTimeout
	if opts.HTTP.StampTimeout > writeTimeout {
		writeTimeout = opts.HTTP.StampTimeout
	}

	srv := &http.Server{
		Addr:         opts.HTTP.Address(),
		Handler:      r,
		ReadTimeout:  opts.HTTP.ReadTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  opts.HTTP.IdleTimeout,
	}

	return &Server{log: opts.Logger, httpServer: srv, cfg: opts.HTTP}, nil
}

// Run starts the server and blocks until the context is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
