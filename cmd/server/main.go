package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/eventbus"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/httpapi"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/memory"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/postgres"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/redis"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/security"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/storage"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/telegram"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/xlsx"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/thoknuts/nda-sm-platform/internal/core/services"
	"github.com/thoknuts/nda-sm-platform/internal/shared/config"
	"github.com/thoknuts/nda-sm-platform/internal/shared/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	baseLogger := logger.New("nda-server", cfg.IsDev())
	baseLogger.Info().
		Str("app_env", cfg.AppEnv).
		Str("storage_backend", cfg.Storage.Backend).
		Bool("blob_remote", cfg.Blob.URL != "").
		Bool("rate_limiter", cfg.Redis.URL != "").
		Bool("crew_bot", cfg.Telegram.Token != "").
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, &baseLogger); err != nil {
		baseLogger.Fatal().Err(err).Msg("Server stopped with error")
	}
	baseLogger.Info().Msg("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, baseLogger *zerolog.Logger) error {
	// 3. Security Service (optional PII encryption at rest)
	var secSvc ports.SecurityPort
	if cfg.EncryptionKey != "" {
		svc, err := security.NewAESServiceFromHex(cfg.EncryptionKey, baseLogger)
		if err != nil {
			return fmt.Errorf("init security service: %w", err)
		}
		secSvc = svc
	}

	// 4. Record store
	var (
		repos  ports.Repositories
		health func(ctx context.Context) error
	)
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		store := memory.NewStore()
		if cfg.IsDev() {
			if err := seedDev(store, baseLogger); err != nil {
				return err
			}
		}
		repos = store.Repositories()
		baseLogger.Warn().Msg("Using in-memory storage, records are lost on restart")
	default:
		db, err := postgres.NewDB(ctx, cfg.Storage.PostgresURL, cfg.Storage.MaxConns, baseLogger)
		if err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		repos = postgres.NewRepositories(db, secSvc, baseLogger)
		health = db.Ping
	}

	// 5. Blob storage
	var blobs ports.BlobStorage
	if cfg.Blob.URL != "" {
		blobs = storage.NewBlobClient(cfg.Blob.URL, cfg.Blob.ServiceKey, baseLogger).
			MapBucket(domain.SignaturesBucket, cfg.Blob.SignaturesBucket).
			MapBucket(domain.PDFBucket, cfg.Blob.PDFBucket)
	} else {
		blobs = storage.NewMemoryBlobs()
		baseLogger.Warn().Msg("BLOB_URL not set, keeping signature images in memory")
	}

	// 6. Lookup rate limiter
	var limiter ports.RateLimiter
	if cfg.Redis.URL != "" {
		client, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		defer client.Close()
		limiter = redis.NewFixedWindowLimiter(client, cfg.Redis.LookupRatePerMinute, time.Minute, baseLogger)
	}

	// 7. Services
	bus := eventbus.NewInMemoryBus(baseLogger)
	auth := services.NewAuthorizer(repos.Events, repos.EventAccess)

	sessionSvc := services.NewKioskSessionService(auth, repos.KioskSessions, repos.Audit, cfg.Kiosk.SessionTTL, baseLogger)
	lookupSvc := services.NewLookupService(repos.Guests, repos.EventGuests, baseLogger)
	submissionSvc := services.NewSubmissionService(services.SubmissionDeps{
		Tx:          repos.Tx,
		Guests:      repos.Guests,
		EventGuests: repos.EventGuests,
		Events:      repos.Events,
		Signatures:  repos.Signatures,
		Privacy:     repos.Privacy,
		Blobs:       blobs,
		Audit:       repos.Audit,
		Bus:         bus,
	}, baseLogger)
	attestationSvc := services.NewAttestationService(services.AttestationDeps{
		Auth:        auth,
		Tx:          repos.Tx,
		Signatures:  repos.Signatures,
		EventGuests: repos.EventGuests,
		Blobs:       blobs,
		Audit:       repos.Audit,
		Bus:         bus,
	}, baseLogger)
	adminSvc := services.NewSignatureAdminService(auth, repos.Signatures, blobs, repos.Audit, xlsx.NewExporter(time.Local, baseLogger), baseLogger)

	// 8. Crew bot
	if cfg.Telegram.Token != "" {
		orchestrator := telegram.NewOrchestrator(cfg.Telegram, cfg.IsDev(), repos.Identity, attestationSvc, bus, baseLogger)
		go func() {
			if err := orchestrator.Start(ctx); err != nil {
				baseLogger.Error().Err(err).Msg("Crew bot stopped")
			}
		}()
	}

	// 9. HTTP server
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Services{
			Sessions:    sessionSvc,
			Lookup:      lookupSvc,
			Submission:  submissionSvc,
			Attestation: attestationSvc,
			Admin:       adminSvc,
			Identity:    repos.Identity,
			Limiter:     limiter,
			Health:      health,
		}, baseLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		baseLogger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	baseLogger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if err := bus.Drain(shutdownCtx); err != nil {
		baseLogger.Warn().Err(err).Msg("Event handlers still running at exit")
	}
	return nil
}
