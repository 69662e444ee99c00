package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/dernek/pkg/api"
	"github.com/platinummonkey/dernek/pkg/audit"
	"github.com/platinummonkey/dernek/pkg/auth"
	"github.com/platinummonkey/dernek/pkg/config"
	"github.com/platinummonkey/dernek/pkg/httputil"
	"github.com/platinummonkey/dernek/pkg/middleware"
	"github.com/platinummonkey/dernek/pkg/observability"
	"github.com/platinummonkey/dernek/pkg/ratelimit"
	"github.com/platinummonkey/dernek/pkg/storage"
)

var (
	migrateOnly = flag.Bool("migrate-only", false, "Apply database migrations and exit")
	createUser  = flag.String("create-user", "", "Create a user with the given email and exit. Reads the password from DERNEK_NEW_USER_PASSWORD")
	userRole    = flag.String("role", "uye", "Role of the user created with -create-user (admin, muhasebe, gorevli, uye)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("dernek exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	if providers != nil {
		shutdown.Register("otel", providers.Shutdown)
	}

	otelMetrics, err := observability.NewOTelMetrics()
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry instruments: %w", err)
	}

	db, err := storage.Open(ctx, storage.DBConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	shutdown.Register("database", func(context.Context) error { return db.Close() })

	if err := storage.RunMigrations(ctx, db); err != nil {
		return err
	}
	logger.WithField("driver", cfg.Database.Driver).Info("Database migrations applied")

	if *migrateOnly {
		return shutdown.Shutdown(context.Background())
	}
	if *createUser != "" {
		err := createUserRecord(ctx, db, *createUser, *userRole, os.Getenv("DERNEK_NEW_USER_PASSWORD"))
		if err == nil {
			logger.WithFields(map[string]interface{}{"email": *createUser, "role": *userRole}).Info("User created")
		}
		return errors.Join(err, shutdown.Shutdown(context.Background()))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	health := observability.NewHealthChecker(cfg.Observability.OTelServiceVersion).
		AddCritical("database", db)

	scheduler := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	store, err := rateLimitStore(cfg, logger, health, scheduler, shutdown)
	if err != nil {
		return err
	}
	if cfg.Observability.MetricsEnabled {
		store = ratelimit.Instrument(store, ratelimit.NewMetrics(registry))
	}

	if metrics != nil {
		if _, err := scheduler.AddFunc("@every 15s", func() {
			defer observability.RecoverPanic(logger, "db stats collector")
			metrics.UpdateDBStats(db.Stats())
		}); err != nil {
			return fmt.Errorf("failed to schedule db stats collection: %w", err)
		}
	}

	users := auth.NewSQLUserStore(db)
	verifier, sessions, err := identityBackend(ctx, cfg, users)
	if err != nil {
		return err
	}
	var roles auth.UserStore = users
	var userCache *auth.CachedUserStore
	if cfg.Auth.UserCacheTTL > 0 {
		userCache = auth.NewCachedUserStore(users, cfg.Auth.UserCacheSize, cfg.Auth.UserCacheTTL)
		roles = userCache
	}
	validator := auth.NewTokenValidator(verifier, roles,
		auth.WithCookieName(cfg.Auth.AccessCookie),
		auth.WithVerifyTimeout(cfg.Auth.VerifyTimeout))

	auditLogger, err := auditSink(cfg, logger)
	if err != nil {
		return err
	}
	shutdown.Register("audit", func(context.Context) error { return auditLogger.Close() })

	mw := middleware.New(store, validator, logger).
		WithPresets(cfg.RateLimit.Presets).
		WithAudit(auditLogger).
		WithMetrics(metrics, otelMetrics).
		WithTrustProxy(cfg.RateLimit.TrustProxy).
		WithFailClosed(cfg.Redis.FailClosed)

	deps := api.Deps{
		Middleware: mw,
		Users:      users,
		Members:    storage.NewRecordStore(db, storage.Members).WithMetrics(otelMetrics),
		Donations:  storage.NewRecordStore(db, storage.Donations).WithMetrics(otelMetrics),
		SocialAid:  storage.NewRecordStore(db, storage.SocialAid).WithMetrics(otelMetrics),
		Logger:     logger,
		Audit:      auditLogger,
		Metrics:    metrics,
		Gatherer:   registry,
		Health:     health,
		Cookies: api.CookieConfig{
			AccessName:  cfg.Auth.AccessCookie,
			RefreshName: cfg.Auth.RefreshCookie,
			AccessTTL:   cfg.Auth.AccessTTL,
			RefreshTTL:  cfg.Auth.RefreshTTL,
			Secure:      cfg.Auth.Production,
		},
		CORS: httputil.CORSOptions{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		},
		AuditAll:       cfg.Audit.LogAll,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	}
	if sessions != nil {
		deps.Sessions = sessions
	}
	if userCache != nil {
		deps.UserCache = userCache
	}

	if cfg.Storage.S3Bucket != "" {
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Bucket:       cfg.Storage.S3Bucket,
			Region:       cfg.Storage.S3Region,
			Endpoint:     cfg.Storage.S3Endpoint,
			AccessKey:    cfg.Storage.S3AccessKey,
			SecretKey:    cfg.Storage.S3SecretKey,
			UsePathStyle: cfg.Storage.S3UsePathStyle,
		})
		if err != nil {
			return err
		}
		documents := storage.NewDocumentStore(client, cfg.Storage.S3Bucket,
			storage.NewRecordStore(db, storage.Documents).WithMetrics(otelMetrics)).WithMetrics(otelMetrics)
		deps.Documents = documents
		health.AddOptional("object_store", observability.PingFunc(documents.Ping))
	} else {
		logger.Warn("DERNEK_S3_BUCKET is not set, document routes are disabled")
	}

	server := api.NewServer(deps)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           server.OpsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("api server", apiServer.Shutdown)

	scheduler.Start()
	shutdown.Register("scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("Starting dernek API server")
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		return serve(healthServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}

// rateLimitStore returns the shared Redis store when a URL is configured, otherwise
// an in-memory store purged on the cleanup schedule
func rateLimitStore(cfg *config.Config, logger *observability.Logger, health *observability.HealthChecker,
	scheduler *cron.Cron, shutdown *observability.ShutdownManager) (ratelimit.Store, error) {
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts.PoolSize = cfg.Redis.PoolSize
		client := redis.NewClient(opts)
		shutdown.Register("redis", func(context.Context) error { return client.Close() })

		store := ratelimit.NewRedisStore(client, cfg.Redis.Prefix)
		if cfg.Redis.FailClosed {
			health.AddCritical("redis", observability.PingFunc(store.Ping))
		} else {
			health.AddOptional("redis", observability.PingFunc(store.Ping))
		}
		logger.WithField("prefix", cfg.Redis.Prefix).Info("Rate limit counters stored in Redis")
		return store, nil
	}

	store := ratelimit.NewMemoryStore(ratelimit.WithMaxKeys(cfg.RateLimit.MaxKeys))
	if _, err := scheduler.AddFunc(cfg.RateLimit.CleanupSchedule, func() {
		defer observability.RecoverPanic(logger, "rate limit cleanup")
		if n := store.Cleanup(); n > 0 {
			logger.WithField("purged", n).Debug("Purged expired rate limit windows")
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule rate limit cleanup: %w", err)
	}
	logger.Info("Rate limit counters kept in memory")
	return store, nil
}

// identityBackend picks the bearer token verifier. An OIDC issuer takes over verification
// and disables password login; otherwise sessions are minted locally with the JWT secret.
func identityBackend(ctx context.Context, cfg *config.Config, users *auth.SQLUserStore) (auth.IdentityVerifier, *auth.PasswordAuthenticator, error) {
	if cfg.Auth.OIDCIssuer != "" {
		verifier, err := auth.NewOIDCVerifier(ctx, auth.OIDCConfig{
			IssuerURL: cfg.Auth.OIDCIssuer,
			ClientID:  cfg.Auth.OIDCClientID,
		})
		if err != nil {
			return nil, nil, err
		}
		return verifier, nil, nil
	}

	issuer, err := auth.NewJWTIssuer(auth.JWTConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		Issuer:     cfg.Auth.JWTIssuer,
		Audience:   cfg.Auth.JWTAudience,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return nil, nil, err
	}
	return issuer, auth.NewPasswordAuthenticator(users, issuer), nil
}

// auditSink writes audit events as logrus JSON lines from a background queue
func auditSink(cfg *config.Config, logger *observability.Logger) (audit.Logger, error) {
	if !cfg.Audit.Enabled {
		return audit.NoOp(), nil
	}
	var out io.Writer = os.Stdout
	if cfg.Audit.Output != "" && cfg.Audit.Output != "stdout" {
		f, err := os.OpenFile(cfg.Audit.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		out = f
	}
	return audit.NewAsyncLogger(audit.NewLogrusLogger(out), cfg.Audit.BufferSize, func(err error) {
		logger.WithError(err).Warn("failed to write audit event")
	}), nil
}

func createUserRecord(ctx context.Context, db *sqlx.DB, email, role, password string) error {
	parsed := auth.ParseRole(role)
	if !parsed.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if len(password) < 6 {
		return fmt.Errorf("DERNEK_NEW_USER_PASSWORD must be at least 6 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, db.Rebind(`INSERT INTO users (id, email, role, password_hash) VALUES (?, ?, ?, ?)`),
		uuid.NewString(), email, parsed.String(), hash)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}
