package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	auditpg "facturalo/ms_cfdi_core/internal/adapters/audit/postgres"
	healthhttp "facturalo/ms_cfdi_core/internal/adapters/http/health"
	invoicehttp "facturalo/ms_cfdi_core/internal/adapters/http/invoice"
	paymenthttp "facturalo/ms_cfdi_core/internal/adapters/http/payment"
	"facturalo/ms_cfdi_core/internal/adapters/invoice/pac"
	invoicepg "facturalo/ms_cfdi_core/internal/adapters/invoice/postgres"
	partypg "facturalo/ms_cfdi_core/internal/adapters/party/postgres"
	paymentpg "facturalo/ms_cfdi_core/internal/adapters/payment/postgres"
	"facturalo/ms_cfdi_core/internal/adapters/pdf"
	seriespg "facturalo/ms_cfdi_core/internal/adapters/series/postgres"
	s3storage "facturalo/ms_cfdi_core/internal/adapters/storage/s3"
	apphealth "facturalo/ms_cfdi_core/internal/application/health"
	appinvoice "facturalo/ms_cfdi_core/internal/application/invoice"
	apppayment "facturalo/ms_cfdi_core/internal/application/payment"
	"facturalo/ms_cfdi_core/internal/infrastructure/config"
	"facturalo/ms_cfdi_core/internal/infrastructure/database"
	httpclient "facturalo/ms_cfdi_core/internal/infrastructure/http"
	"facturalo/ms_cfdi_core/internal/infrastructure/http/middleware"
	"facturalo/ms_cfdi_core/internal/infrastructure/http/server"
	"facturalo/ms_cfdi_core/internal/infrastructure/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service stopped: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database ready", "database", cfg.Database.Database)

	invoiceRepo := invoicepg.NewRepository(pool)
	paymentRepo := paymentpg.NewRepository(pool)
	partyRepo := partypg.NewRepository(pool)
	seriesRepo := seriespg.NewRepository(pool)
	auditRepo := auditpg.NewRepository(pool)

	tracedClient := httpclient.NewTracedClient(&httpclient.TracedClientConfig{
		Timeout:         cfg.PAC.APITimeout,
		AuditEnabled:    cfg.Audit.Enabled,
		LogRequestBody:  cfg.Audit.LogRequestBody,
		LogResponseBody: cfg.Audit.LogResponseBody,
		MaxBodySize:     cfg.Audit.MaxBodySize,
	}, log, auditRepo, "pac")

	stamper := pac.NewClient(cfg.PAC, tracedClient, log)
	renderer := pdf.NewRenderer(cfg.PAC.VerificationHost)

	var artifactStore appinvoice.ArtifactStore
	if cfg.Storage.Bucket != "" {
		uploader, err := s3storage.NewUploader(ctx, cfg.Storage, log)
		if err != nil {
			return fmt.Errorf("init artifact storage: %w", err)
		}
		artifactStore = uploader
		log.Info("artifact storage enabled", "bucket", cfg.Storage.Bucket)
	} else {
		log.Warn("artifact storage not configured, stamped XML and PDF will not be uploaded")
	}

	invoiceService := appinvoice.NewService(
		invoiceRepo, seriesRepo, partyRepo, stamper, renderer,
		artifactStore, cfg.PAC.IssuerCacheTTL, log,
	)
	paymentService := apppayment.NewService(
		paymentRepo, invoiceRepo, seriesRepo, partyRepo, stamper, renderer,
		artifactStore, log,
	)
	healthService := apphealth.NewService(apphealth.Metadata{
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	}, pool)

	var auth *middleware.JWTAuthenticator
	if cfg.Auth.Enabled {
		auth, err = middleware.NewJWTAuthenticator(cfg.Auth, log)
		if err != nil {
			return fmt.Errorf("init authentication: %w", err)
		}
		log.Info("JWT authentication enabled", "issuer", cfg.Auth.IssuerURI)
	} else {
		log.Warn("JWT authentication disabled")
	}

	srv, err := server.New(server.Options{
		HTTP:           cfg.HTTP,
		Logger:         log,
		Auth:           auth,
		HealthHandler:  healthhttp.NewHandler(healthService),
		InvoiceHandler: invoicehttp.NewHandler(invoiceService, log),
		PaymentHandler: paymenthttp.NewHandler(paymentService, log),
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	return srv.Run(ctx)
}
