package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/enrollhub/internal/accounts"
	"github.com/geocoder89/enrollhub/internal/auth"
	"github.com/geocoder89/enrollhub/internal/config"
	"github.com/geocoder89/enrollhub/internal/db"
	"github.com/geocoder89/enrollhub/internal/enrollment"
	httpx "github.com/geocoder89/enrollhub/internal/http"
	"github.com/geocoder89/enrollhub/internal/http/handlers"
	"github.com/geocoder89/enrollhub/internal/observability"
	"github.com/geocoder89/enrollhub/internal/redisclient"
	"github.com/geocoder89/enrollhub/internal/repo/memory"
	"github.com/geocoder89/enrollhub/internal/repo/postgres"
	"github.com/geocoder89/enrollhub/internal/revocation"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// .env is optional; real env vars win
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if cfg.OTELEnabled {
		shutdownTracer, err := observability.InitTracer(context.Background(), "enrollhub-api", cfg.OTELEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	var (
		users   accounts.UserStore
		courses handlers.CourseStore
		txStore enrollment.Store
		checks  []handlers.ReadinessCheck
	)

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.NewStore()
		users, courses, txStore = store, store, store
		checks = append(checks, handlers.ReadinessCheck{Name: "store", Ping: store.Ping})
		log.Warn("using in-memory store; data is lost on restart")

	default:
		pool, err := db.NewPool(cfg.DBURL, cfg.DBMaxConns)
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		ctx, cancel := config.WithTimeout(10 * time.Second)
		err = db.Migrate(ctx, pool)
		cancel()
		if err != nil {
			log.Error("db migrate failed", "err", err)
			os.Exit(1)
		}

		users = postgres.NewUsersRepo(pool, prom)
		courses = postgres.NewCoursesRepo(pool, prom)
		txStore = postgres.NewEnrollmentStore(pool, prom)
		checks = append(checks, handlers.ReadinessCheck{Name: "postgres", Ping: pool.Ping})
	}

	var denylist revocation.Denylist

	switch cfg.TokenDenylist {
	case config.DenylistMemory:
		denylist = revocation.NewMemoryDenylist()

	case config.DenylistRedis:
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		ctx, cancel := config.WithTimeout(3 * time.Second)
		err := rdb.Ping(ctx)
		cancel()
		if err != nil {
			log.Error("redis connect failed", "err", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}

		denylist = revocation.NewRedisDenylist(rdb.Raw())
		checks = append(checks, handlers.ReadinessCheck{Name: "redis", Ping: rdb.Ping})
	}

	accountsSvc := accounts.NewService(users, accounts.Options{
		RegisterCost:     cfg.BcryptCost,
		ChangeCost:       cfg.BcryptChangeCost,
		AllowAdminSignup: cfg.AllowAdminSignup,
	})

	// seeding bypasses the self-signup switch
	seeder := accounts.NewService(users, accounts.Options{
		RegisterCost:     cfg.BcryptCost,
		AllowAdminSignup: true,
	})

	seedCtx, seedCancel := config.WithTimeout(10 * time.Second)
	created, err := db.EnsureAdminUser(seedCtx, seeder, cfg)
	seedCancel()
	if err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}
	if created {
		log.Info("admin user created", "email", cfg.AdminEmail)
	}

	var shuttingDown atomic.Bool

	router := httpx.NewRouter(log, httpx.Deps{
		Env:            cfg.Env,
		Accounts:       accountsSvc,
		Tokens:         auth.NewManager(cfg.JWTSecret, cfg.TokenTTL()),
		Courses:        courses,
		Enrollment:     enrollment.NewCoordinator(txStore, log, prom),
		Denylist:       denylist,
		Prom:           prom,
		Gatherer:       reg,
		Checks:         checks,
		ShuttingDown:   shuttingDown.Load,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AuthRateLimit:  cfg.AuthRateLimit,
		Tracing:        cfg.OTELEnabled,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver, "denylist", cfg.TokenDenylist)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")
	shuttingDown.Store(true)

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
