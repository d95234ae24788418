package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/httpapi"
	httpcatalog "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/httpclient/catalog"
	httpstepservice "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/httpclient/stepservice"
	memcatalog "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/memory/catalog"
	memidempotency "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/memory/idempotency"
	memsessionrepo "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/memory/sessionrepo"
	memstepservice "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/memory/stepservice"
	otelobserver "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/otel/observer"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/postgres"
	pgcatalog "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/postgres/catalog"
	pgidempotency "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/postgres/idempotency"
	pgsessionrepo "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/postgres/sessionrepo"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/redis"
	redissessionrepo "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/redis/sessionrepo"
	slogobserver "github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/slog/observer"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/app/onboarding"
	platformclock "github.com/Overland-East-Bay/policy-onboarding-api/internal/platform/clock"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/platform/config"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/platform/logging"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/platform/tracing"
	catalogport "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/catalog"
	idempotencyport "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/idempotency"
	observerport "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/observer"
	sessionrepoport "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/sessionrepo"
	stepserviceport "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/stepservice"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("invalid config", slog.Any("err", err))
		os.Exit(1)
	}
	logger, err := logging.New(os.Stdout, cfg.Logging.Format, cfg.Logging.Level, cfg.Tracing.ServiceName)
	if err != nil {
		slog.Error("invalid logging config", slog.Any("err", err))
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := onboarding.CheckFlowTables(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Endpoint != "" {
		shutdown, err := tracing.Setup(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	clk := platformclock.NewSystemClock()

	var pool *pgxpool.Pool
	if cfg.Storage.Backend == config.BackendPostgres || cfg.Catalog.Backend == config.BackendPostgres {
		p, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			return err
		}
		defer p.Close()
		if err := postgres.Migrate(ctx, p); err != nil {
			return err
		}
		pool = p
	}

	var (
		sessions  sessionrepoport.Repository
		idemStore idempotencyport.Store
	)
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		sessions = pgsessionrepo.NewRepo(pool)
		replays := pgidempotency.NewStore(pool, cfg.Storage.ReplayRetention)
		go purgeReplays(ctx, replays, cfg.Storage.ReplayRetention, logger)
		idemStore = replays
	case config.BackendRedis:
		client, err := redis.NewClient(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		sessions = redissessionrepo.NewRepo(client, cfg.Storage.SessionTTL)
		// Replay records only need to outlive client retries.
		idemStore = memidempotency.NewStore(cfg.Storage.ReplayRetention)
	default:
		sessions = memsessionrepo.NewRepo()
		idemStore = memidempotency.NewStore(cfg.Storage.ReplayRetention)
	}

	var source catalogport.Source
	seed := memcatalog.DefaultCoverages
	switch cfg.Catalog.Backend {
	case config.BackendHTTP:
		source = httpcatalog.NewClient(cfg.Catalog.URL, cfg.Catalog.Timeout, logger)
	case config.BackendPostgres:
		source = pgcatalog.NewSource(pool)
	default:
		if cfg.Catalog.File != "" {
			src, err := memcatalog.LoadFile(cfg.Catalog.File)
			if err != nil {
				return err
			}
			if list, err := src.ListCoverages(ctx); err == nil {
				seed = list
			}
			source = src
		} else {
			source = memcatalog.NewSource(memcatalog.DefaultCoverages)
		}
	}

	obs := observerport.Multi{slogobserver.NewLogger(logger), otelobserver.Spans{}}
	catalog := onboarding.NewCoverageCatalog(source, onboarding.CatalogOptions{
		TTL:      cfg.Catalog.CacheTTL,
		Logger:   logger,
		Observer: obs,
	})

	var steps stepserviceport.Service
	if cfg.StepService.URL != "" {
		steps = httpstepservice.NewClient(cfg.StepService.URL, cfg.StepService.Timeout, logger)
	} else {
		logger.Warn("STEP_SERVICE_URL not set; using the local step simulator")
		steps = memstepservice.NewSimulator(clk, seed)
	}

	svc := onboarding.NewService(sessions, steps, clk, onboarding.ControllerOptions{Observer: obs})
	api := httpapi.NewServer(svc, catalog, idemStore, logger)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening",
			slog.Int("port", cfg.HTTP.Port),
			slog.String("storage", cfg.Storage.Backend),
			slog.String("catalog", cfg.Catalog.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// purgeReplays deletes expired step replays until ctx is done.
func purgeReplays(ctx context.Context, store *pgidempotency.Store, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(retention / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Purge(ctx)
			if err != nil {
				logger.Warn("replay purge failed", slog.Any("err", err))
				continue
			}
			if n > 0 {
				logger.Debug("replays purged", slog.Int64("rows", n))
			}
		}
	}
}
