package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/debemdeboas/memories/internal/auth"
	"github.com/debemdeboas/memories/internal/bind"
	"github.com/debemdeboas/memories/internal/config"
	"github.com/debemdeboas/memories/internal/db"
	"github.com/debemdeboas/memories/internal/logger"
	"github.com/debemdeboas/memories/internal/model"
	"github.com/debemdeboas/memories/internal/objectstore"
	"github.com/debemdeboas/memories/internal/reclaim"
	"github.com/debemdeboas/memories/internal/repository"
	"github.com/debemdeboas/memories/internal/routes"
	"github.com/debemdeboas/memories/internal/staging"
	"github.com/debemdeboas/memories/internal/surface"
	"github.com/debemdeboas/memories/internal/workflow"
)

// ed25519UserID owns every memory when ed25519 auth is used.
const ed25519UserID model.UserID = "admin"

var configPath = flag.String("config", "config.yaml", "path to the YAML configuration file")

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		// The main logger isn't configured yet.
		fmt.Fprintln(os.Stderr, "No .env file loaded, using the process environment")
	}

	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	setLoggers(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(logger.Component(l, "config"))
	db.SetLogger(logger.Component(l, "db"))
	repository.SetLogger(logger.Component(l, "repository"))
	auth.SetLogger(logger.Component(l, "auth"))
	objectstore.SetLogger(logger.Component(l, "objectstore"))
	staging.SetLogger(logger.Component(l, "staging"))
	reclaim.SetLogger(logger.Component(l, "reclaim"))
	bind.SetLogger(logger.Component(l, "bind"))
	surface.SetLogger(logger.Component(l, "surface"))
	workflow.SetLogger(logger.Component(l, "workflow"))
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	sqlite := db.NewSQLite(cfg.Database.Path)
	if err := sqlite.InitDB(); err != nil {
		return fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
	}
	defer sqlite.Close()

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, sqlite, store, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go a.drafts.Run(ctx, cfg.Drafts.SweepInterval)

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage.Backend).Msg("Server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Drafts.DispatchTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	// Open drafts do not survive a restart.
	a.drafts.Close()
	return nil
}

type app struct {
	handler http.Handler
	drafts  *workflow.Service
}

func newApp(cfg *config.Config, database db.DB, store objectstore.Store, log zerolog.Logger) (*app, error) {
	provider, err := newAuthProvider(cfg, database)
	if err != nil {
		return nil, fmt.Errorf(config.ErrCreateProviderFmt, err)
	}

	stagingClient := staging.NewClient(store,
		staging.WithParallelism(cfg.Drafts.UnstageParallelism),
		staging.WithRemoveAttempts(cfg.Drafts.RemoveAttempts),
	)
	reclaimer := reclaim.NewCoordinator(stagingClient, cfg.Drafts.DiscardWait, cfg.Drafts.DispatchTimeout)
	binder := bind.NewCoordinator(repository.NewDBMemoryRepository(database), reclaimer)

	drafts := workflow.NewService(stagingClient, reclaimer, binder, surface.NewHub(), workflow.Options{
		MaxAssets:   cfg.Drafts.MaxAssets,
		IdleTTL:     cfg.Drafts.IdleTTL,
		ListingPath: config.ListingUrlPath,
	})

	mux := http.NewServeMux()

	mux.HandleFunc(routes.RobotsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow: /api/"))
	})

	workflow.NewHandler(drafts, provider, int64(cfg.Drafts.MaxUploadBytes), cfg.Drafts.UploadsPerMinute).Register(mux)

	if cfg.Storage.Backend == "fs" {
		mux.Handle(config.UploadsUrlPath, http.StripPrefix(config.UploadsUrlPath, http.FileServer(http.Dir(cfg.Storage.FS.Path))))
	}
	if cfg.Features.Metrics.Enabled {
		mux.Handle(config.MetricsUrlPath, promhttp.Handler())
	}

	switch p := provider.(type) {
	case *auth.Ed25519AuthProvider:
		auth.RegisterEd25519AuthRoutes(mux, p)
	case *auth.ClerkAuthProvider:
		auth.RegisterClerkRoutes(mux, p)
	}

	handler := provider.WithHeaderAuthorization()(secureHeaders(cacheIt(mux.ServeHTTP)))
	handler = hlog.NewHandler(log)(
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Dur("duration", duration).
				Msg("Request")
		})(handler),
	)

	return &app{handler: handler, drafts: drafts}, nil
}

func newAuthProvider(cfg *config.Config, database db.DB) (auth.AuthProvider, error) {
	if !cfg.Features.Authentication.Enabled {
		return auth.LocalAuthProvider{}, nil
	}
	switch cfg.Features.Authentication.Type {
	case "clerk":
		return auth.NewClerkAuthProvider(os.Getenv("CLERK_API"), database), nil
	default:
		return auth.NewEd25519AuthProvider(os.Getenv("ED25519_PUBKEY"), "Authorization", ed25519UserID)
	}
}

func newObjectStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	if cfg.Storage.Backend == "s3" {
		return objectstore.NewS3Store(ctx, objectstore.S3Options{
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Endpoint:        cfg.Storage.S3.Endpoint,
			Region:          cfg.Storage.S3.Region,
			Bucket:          cfg.Storage.S3.Bucket,
			KeyPrefix:       cfg.Storage.KeyPrefix,
			PublicURL:       cfg.Storage.S3.PublicURL,
		})
	}
	return objectstore.NewFSStore(cfg.Storage.FS.Path, cfg.Storage.KeyPrefix, cfg.Storage.FS.PublicURL)
}

// cacheIt keeps draft responses out of shared caches. Uploaded objects are
// immutable, their keys are never reused.
func cacheIt(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, config.UploadsUrlPath) {
			w.Header().Set(config.HCacheControl, "public, max-age=31536000, immutable")
		} else {
			w.Header().Set(config.HCacheControl, "no-cache")
			w.Header().Set("Vary", "Cookie")
		}

		h(w, r)
	}
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")

		h(w, r)
	}
}
