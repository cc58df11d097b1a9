// Package main is the entry point for the vessel wizard server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/vesselwizard/internal/capability"
	"github.com/pitabwire/vesselwizard/internal/config"
	"github.com/pitabwire/vesselwizard/internal/definition"
	"github.com/pitabwire/vesselwizard/internal/eligibility"
	"github.com/pitabwire/vesselwizard/internal/messages"
	"github.com/pitabwire/vesselwizard/internal/observability"
	"github.com/pitabwire/vesselwizard/internal/registry"
	"github.com/pitabwire/vesselwizard/internal/transactions"
	"github.com/pitabwire/vesselwizard/internal/transport"
	"github.com/pitabwire/vesselwizard/internal/wizard"
	"github.com/pitabwire/vesselwizard/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

var (
	_ wizard.Recorder            = (*observability.Metrics)(nil)
	_ eligibility.Recorder       = (*observability.Metrics)(nil)
	_ registry.Recorder          = (*observability.Metrics)(nil)
	_ registry.CacheRecorder     = (*observability.Metrics)(nil)
	_ capability.Recorder        = (*observability.Metrics)(nil)
	_ transport.LocaleNegotiator = (*messages.Catalog)(nil)
)

// expiryInterval is how often expired sessions are purged from the store.
const expiryInterval = 5 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "vesselwizard", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Message catalogs are optional; without them messages fall back to
	// their keys.
	var (
		catalog  *messages.Catalog
		resolver model.MessageResolver
		locales  transport.LocaleNegotiator
	)
	if cfg.Messages.Directory != "" {
		catalog, err = messages.Load(cfg.Messages.Directory, cfg.Messages.DefaultLocale)
		if err != nil {
			logger.Error("message catalog loading failed", zap.Error(err))
			return 1
		}
		resolver = catalog
		locales = catalog
	}

	defReg, err := loadDefinitions(cfg.Definitions, metrics, logger)
	if err != nil {
		logger.Error("definition loading failed", zap.Error(err))
		return 1
	}

	units, unitsHealth, err := buildRegistry(cfg.Registry, metrics, logger)
	if err != nil {
		logger.Error("registry initialization failed", zap.Error(err))
		return 1
	}

	ruleSets, err := transactions.Register(defReg, units, resolver)
	if err != nil {
		logger.Error("rule set registration failed", zap.Error(err))
		return 1
	}

	eligibilityOpts := []eligibility.Option{
		eligibility.WithRecorder(metrics),
		eligibility.WithConcurrency(cfg.Eligibility.Concurrency),
		eligibility.WithLookupTimeout(cfg.Eligibility.LookupTimeout),
	}
	if resolver != nil {
		eligibilityOpts = append(eligibilityOpts, eligibility.WithMessages(resolver))
	}
	eligibilityEngine := eligibility.NewEngine(logger, eligibilityOpts...)

	capResolver, err := buildCapabilityResolver(cfg.Capability, metrics)
	if err != nil {
		logger.Error("capability resolver initialization failed", zap.Error(err))
		return 1
	}

	store, storeCloser, err := buildSessionStore(ctx, cfg.Sessions, logger)
	if err != nil {
		logger.Error("session store initialization failed", zap.Error(err))
		return 1
	}

	wizardOpts := []wizard.Option{
		wizard.WithRecorder(metrics),
		wizard.WithTTL(cfg.Sessions.TTL),
	}
	if resolver != nil {
		wizardOpts = append(wizardOpts, wizard.WithMessages(resolver))
	}
	engine := wizard.NewEngine(defReg, store, eligibilityEngine, ruleSets, units, capResolver, logger, wizardOpts...)

	authenticate, err := transport.JWTAuthenticator(cfg.Auth, []byte(os.Getenv(cfg.Auth.SecretEnv)))
	if err != nil {
		logger.Error("authenticator initialization failed", zap.Error(err), zap.String("secret_env", cfg.Auth.SecretEnv))
		return 1
	}

	readiness := observability.ReadinessChecks{
		DefinitionsLoaded: defReg.Loaded,
		SessionStore:      store,
		Registry:          unitsHealth,
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:             cfg,
		Logger:             logger,
		Authenticate:       authenticate,
		Locales:            locales,
		CapabilityResolver: capResolver,
		Definitions:        defReg,
		Wizard:             engine,
		Metrics:            metrics,
		Readiness:          readiness,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go runSessionExpiry(bgCtx, engine, expiryInterval, logger)

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("transactions", len(defReg.AllTransactions())),
		zap.String("definitions_checksum", defReg.Checksum()),
		zap.String("sessions_driver", cfg.Sessions.Driver),
		zap.String("registry_driver", cfg.Registry.Driver),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	bgCancel()

	if storeCloser != nil {
		storeCloser()
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// loadDefinitions loads, validates and compiles the transaction definitions.
func loadDefinitions(cfg config.DefinitionsConfig, metrics *observability.Metrics, logger *zap.Logger) (*definition.Registry, error) {
	defs, err := definition.NewLoader().LoadAll(cfg.Directories)
	if err != nil {
		metrics.RecordDefinitionLoad("error")
		return nil, err
	}

	if verrs := definition.NewValidator(transactions.Names()...).Validate(defs); len(verrs) > 0 {
		for _, ve := range verrs {
			logger.Error("definition validation error", zap.String("error", ve.Error()))
		}
		metrics.RecordDefinitionLoad("invalid")
		return nil, fmt.Errorf("%d definition validation errors", len(verrs))
	}

	reg, err := definition.NewRegistry(defs)
	if err != nil {
		metrics.RecordDefinitionLoad("error")
		return nil, err
	}
	metrics.RecordDefinitionLoad("ok")
	metrics.SetDefinitionsLoaded(float64(len(reg.AllTransactions())))
	return reg, nil
}

// buildRegistry creates the marine unit registry. The http driver is wrapped
// in a cache; the returned checker reports its breaker state for readiness.
func buildRegistry(cfg config.RegistryConfig, metrics *observability.Metrics, logger *zap.Logger) (model.MarineRegistry, observability.HealthChecker, error) {
	switch cfg.Driver {
	case config.RegistryStatic:
		units, err := registry.LoadStatic(cfg.StaticFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using static marine unit registry", zap.String("file", cfg.StaticFile))
		return units, nil, nil
	case config.RegistryHTTP:
		opts := []registry.ClientOption{registry.WithRecorder(metrics)}
		if cfg.TokenEnv != "" {
			if token := os.Getenv(cfg.TokenEnv); token != "" {
				opts = append(opts, registry.WithToken(token))
			}
		}
		client := registry.NewClient(cfg, logger, opts...)
		return registry.NewCached(client, cfg.Cache, metrics), client, nil
	default:
		return nil, nil, fmt.Errorf("unsupported registry driver: %q", cfg.Driver)
	}
}

// buildCapabilityResolver creates the resolver from the policy file, or one
// granting everything when no policy file is configured.
func buildCapabilityResolver(cfg config.CapabilityConfig, metrics *observability.Metrics) (*capability.Resolver, error) {
	if cfg.PolicyFile == "" {
		return capability.NewResolver(capability.AllowAll{}, cfg.Cache, metrics), nil
	}
	evaluator, err := capability.NewStaticPolicyEvaluator(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("static policy: %w", err)
	}
	return capability.NewResolver(evaluator, cfg.Cache, metrics), nil
}

// buildSessionStore creates the session store based on config. The returned
// closer, when non-nil, releases its connections.
func buildSessionStore(ctx context.Context, cfg config.SessionsConfig, logger *zap.Logger) (wizard.SessionStore, func(), error) {
	switch cfg.Driver {
	case config.SessionsMemory, "":
		logger.Info("using in-memory session store")
		return wizard.NewMemorySessionStore(), nil, nil

	case config.SessionsPostgres:
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("session store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: parse DSN: %w", err)
		}
		if cfg.MaxConns > 0 {
			poolCfg.MaxConns = cfg.MaxConns
		}
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("session store: ping: %w", err)
		}

		store := wizard.NewPgSessionStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("session store: schema: %w", err)
		}
		logger.Info("using postgres session store")
		return store, pool.Close, nil

	case config.SessionsRedis:
		addr := os.Getenv(cfg.RedisAddrEnv)
		if addr == "" {
			return nil, nil, fmt.Errorf("session store: %s environment variable not set", cfg.RedisAddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("session store: ping: %w", err)
		}
		logger.Info("using redis session store", zap.String("addr", addr))
		return wizard.NewRedisSessionStore(client, wizard.WithRedisTTL(cfg.TTL)), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported session store driver: %q", cfg.Driver)
	}
}

// runSessionExpiry periodically removes sessions past their expiry.
func runSessionExpiry(ctx context.Context, engine *wizard.Engine, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := engine.ExpireSessions(ctx)
			if err != nil {
				logger.Error("session expiry failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}
