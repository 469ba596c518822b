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

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	authhttp "github.com/openlearn/sessionkit/adapters/http"
	"github.com/openlearn/sessionkit/core"
	"github.com/openlearn/sessionkit/identity"
	"github.com/openlearn/sessionkit/metrics"
	"github.com/openlearn/sessionkit/riverjobs"
	memorystore "github.com/openlearn/sessionkit/storage/memory"
	pgstore "github.com/openlearn/sessionkit/storage/postgres"
	redisstore "github.com/openlearn/sessionkit/storage/redis"
)

type config struct {
	ListenAddr string `env:"SESSIONKIT_LISTEN_ADDR" envDefault:":8080"`
	Backend    string `env:"SESSIONKIT_BACKEND" envDefault:"memory"` // memory | redis | postgres
	RedisAddr  string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DBURL      string `env:"DATABASE_URL"`

	ExternalAuthURL   string        `env:"EXTERNAL_AUTH_URL" envDefault:"https://auth.example.com/authorize"`
	ExternalClientID  string        `env:"EXTERNAL_CLIENT_ID" envDefault:"sessionkit-dev"`
	ExternalRedirect  string        `env:"EXTERNAL_REDIRECT_URL" envDefault:"http://localhost:8080/auth/external/callback"`
	StateTTL          time.Duration `env:"SESSIONKIT_STATE_TTL" envDefault:"10m"`
	PurgeCron         string        `env:"SESSIONKIT_PURGE_CRON" envDefault:"*/10 * * * *"`
	DevUserEmail      string        `env:"SESSIONKIT_DEV_USER_EMAIL" envDefault:"demo@example.com"`
	DevUserPassword   string        `env:"SESSIONKIT_DEV_USER_PASSWORD" envDefault:"demo-password"`
	ProductionLogging bool          `env:"SESSIONKIT_PROD_LOGGING" envDefault:"false"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	log, err := buildLogger(cfg.ProductionLogging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		docs      core.DocumentStore
		ephemeral core.EphemeralStore
		cleanup   func()
	)
	switch cfg.Backend {
	case "memory":
		docs = memorystore.NewDocStore()
		ephemeral = memorystore.NewKV()
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		docs = redisstore.NewDocStore(rdb)
		ephemeral = redisstore.NewKV(rdb)
		cleanup = func() { _ = rdb.Close() }
	case "postgres":
		if cfg.DBURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
		pool, err := pgxpool.New(ctx, cfg.DBURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if err := pgstore.Migrate(ctx, pool); err != nil {
			pool.Close()
			return err
		}
		kv := pgstore.NewKV(pool)
		docs = pgstore.New(pool)
		ephemeral = kv

		riverStop, err := startPurgeJobs(ctx, pool, kv, cfg.PurgeCron, log)
		if err != nil {
			pool.Close()
			return err
		}
		cleanup = func() {
			riverStop()
			pool.Close()
		}
	default:
		return fmt.Errorf("unknown backend %q (supported: memory, redis, postgres)", cfg.Backend)
	}
	if cleanup != nil {
		defer cleanup()
	}

	provider := identity.NewMemoryProvider("native")
	if err := provider.EmailPasswordSignUp(ctx, cfg.DevUserEmail, cfg.DevUserPassword); err != nil {
		return fmt.Errorf("seed dev user: %w", err)
	}
	_ = provider.SignOut(ctx)

	svc, err := core.NewService(provider, core.Config{
		Documents: docs,
		Ephemeral: ephemeral,
		ExternalOAuth: oauth2.Config{
			ClientID:    cfg.ExternalClientID,
			RedirectURL: cfg.ExternalRedirect,
			Endpoint:    oauth2.Endpoint{AuthURL: cfg.ExternalAuthURL},
		},
		StateTTL: cfg.StateTTL,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Close()

	if err := metrics.Register(nil); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/auth/", authhttp.NewService(svc, log).Handler())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("sessionkit devserver listening",
		zap.String("addr", cfg.ListenAddr), zap.String("backend", cfg.Backend))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startPurgeJobs runs the River purge worker for the postgres ephemeral
// store. River's own job tables must already exist (river migrate-up).
func startPurgeJobs(ctx context.Context, pool *pgxpool.Pool, kv *pgstore.KV, cronSpec string, log *zap.Logger) (stop func(), err error) {
	workers := river.NewWorkers()
	riverjobs.RegisterPurgeExpiredStateWorker(workers, kv)

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: 2}},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("river client: %w", err)
	}
	if err := riverjobs.AddPurgeExpiredStatePeriodicJob(client, cronSpec, riverjobs.PurgeExpiredStateArgs{}, true); err != nil {
		return nil, err
	}
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("start river: %w", err)
	}
	log.Info("ephemeral purge worker started", zap.String("cron", cronSpec))
	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Stop(stopCtx)
	}, nil
}

func buildLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
