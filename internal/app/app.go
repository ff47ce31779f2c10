package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tipbridge/internal/api/handlers"
	"tipbridge/internal/api/middlew"
	"tipbridge/internal/balancecache"
	"tipbridge/internal/config"
	"tipbridge/internal/db"
	"tipbridge/internal/engine"
	"tipbridge/internal/lockregistry"
	"tipbridge/internal/models"
	"tipbridge/internal/pricefeed"
	"tipbridge/internal/repository/postgres"
	"tipbridge/internal/secretbox"
	"tipbridge/internal/server"
	"tipbridge/internal/service"
	"tipbridge/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type App struct {
	cfg       *config.Config
	log       *slog.Logger
	logCloser io.Closer
	server    *server.Server
	pool      *pgxpool.Pool
	redis     *redis.Client

	// background holds the loops started by the tipbot layer; they stop when cancel is called.
	background context.Context
	cancel     context.CancelFunc
	workers    sync.WaitGroup

	flusher   *balancecache.Flusher
	transfers *service.TransferService
}

func NewApp() (*App, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, logCloser, err := logger.NewLogger(cfg.Log.ErrorFile, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	log.Info("config loaded", slog.String("port", cfg.HTTP.Port), slog.String("lock_backend", cfg.Tipbot.LockBackend))

	log.Info("running database migrations")
	if err := db.RunMigrations(cfg.DB.MigrationURL(), cfg.DB.MigrationsPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("migrations applied")

	pool, err := db.NewPool(context.Background(), cfg.DB.DSN(), db.PoolOptions{
		MaxConns:       cfg.DB.MaxConns,
		MinConns:       cfg.DB.MinConns,
		ConnectTimeout: cfg.DB.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	var rdb *redis.Client
	if cfg.Tipbot.LockBackend == "redis" {
		rdb, err = db.NewRedisClient(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("redis connection established", slog.String("addr", cfg.Redis.Addr))
	}

	srv := server.NewServer(cfg.HTTP)

	srv.Router.Use(middleware.RequestID)
	srv.Router.Use(middlew.WithLogger(log))
	srv.Router.Use(middleware.RealIP)
	srv.Router.Use(middleware.Recoverer)
	srv.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	background, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:        cfg,
		log:        log,
		logCloser:  logCloser,
		server:     srv,
		pool:       pool,
		redis:      rdb,
		background: background,
		cancel:     cancel,
	}, nil
}

func (a *App) goBackground(fn func(ctx context.Context)) {
	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		fn(a.background)
	}()
}

func (a *App) buildLocker() lockregistry.Locker {
	ttl := a.cfg.Tipbot.LockTTL
	if a.redis != nil {
		return lockregistry.NewRedis(a.redis, ttl, a.cfg.Redis.Prefix+"lock:")
	}
	locks := lockregistry.New(ttl)
	a.goBackground(func(ctx context.Context) { locks.RunSweeper(ctx, a.cfg.Tipbot.LockSweep) })
	return locks
}

// BuildTipbotLayer wires engines, caches, services and routes. It must run once before Run.
func (a *App) BuildTipbotLayer() error {
	box, err := secretbox.New(a.cfg.Secrets.Key)
	if err != nil {
		return fmt.Errorf("failed to init secret box: %w", err)
	}

	engines, err := buildEngines(a.cfg, a.log)
	if err != nil {
		return err
	}
	if len(engines) == 0 {
		return errors.New("no network enabled, set LEDGER_ENABLED or COIN_ENABLED")
	}
	fees, err := buildFeePolicies(a.cfg)
	if err != nil {
		return err
	}

	walletRepo := postgres.NewWalletRepository(a.pool)
	txRepo := postgres.NewTransactionRepository(a.pool)
	aliasRepo := postgres.NewAliasRepository(a.pool)

	a.flusher = balancecache.NewFlusher(walletRepo, a.cfg.Tipbot.FlushInterval, a.log)
	a.goBackground(a.flusher.Run)

	var price balancecache.PriceSource
	if a.cfg.Price.Enabled {
		feed := pricefeed.New(a.cfg.Price.BaseURL, a.cfg.Price.CoinID, a.cfg.Price.Currency, a.cfg.Price.Interval, a.log)
		a.goBackground(feed.Run)
		price = feed
	}

	sources := make(map[models.Network]balancecache.Source, len(engines))
	for network, eng := range engines {
		sources[network] = eng
	}
	keyring := engine.NewKeyring(box)
	balances := balancecache.New(sources, keyring, a.flusher, price, a.log)

	opts := service.DefaultTransferOptions()
	opts.FeeSettleDelay = a.cfg.Tipbot.FeeSettleDelay
	opts.FeeRetryDelay = a.cfg.Tipbot.FeeRetryDelay
	opts.ExplorerURLs = map[models.Network]string{models.NetworkLedger: a.cfg.Ledger.ExplorerURL}

	a.transfers = service.NewTransferService(walletRepo, txRepo, aliasRepo, a.buildLocker(), balances, keyring, engines, fees, opts, a.log)
	fanOut := service.NewFanOut(a.transfers, a.cfg.Tipbot.MaxRecipients, a.cfg.Tipbot.TipSpacing, a.log)
	wallets := service.NewWalletService(walletRepo, txRepo, aliasRepo, engines, box, balances, a.log)

	walletHandler := handlers.NewWalletHandler(wallets)
	transferHandler := handlers.NewTransferHandler(a.transfers, fanOut)

	a.server.Router.Get("/healthz", a.health)
	a.server.Router.Handle("/metrics", promhttp.Handler())
	a.server.Router.Route("/api/v1", func(r chi.Router) {
		r.Post("/wallets", walletHandler.RegisterWallet)
		r.Route("/wallets/{network}/{ownerID}", func(r chi.Router) {
			r.Get("/address", walletHandler.GetAddress)
			r.Get("/balance", walletHandler.GetBalance)
			r.Post("/reconcile", walletHandler.Reconcile)
			r.Get("/transactions", walletHandler.History)
		})
		r.Post("/transactions", transferHandler.Transfer)
		r.Post("/tips", transferHandler.Tip)
		r.Post("/aliases", walletHandler.CreateAlias)
		r.Get("/aliases/{title}", walletHandler.GetAlias)
	})

	networks := make([]string, 0, len(engines))
	for network := range engines {
		networks = append(networks, string(network))
	}
	a.log.Info("tipbot layer built and routes registered", slog.Any("networks", networks))
	return nil
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.pool.Ping(ctx); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *App) Run() error {
	a.log.Info("server starting", slog.String("addr", a.server.Addr()))

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-serverErr:
	case sig := <-shutdownChan:
		a.log.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	a.log.Info("application stopping")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("failed to stop http server", slog.String("error", err.Error()))
	}

	// In-flight transfers finish first so their receiver reconciles still reach the flusher.
	if a.transfers != nil {
		a.transfers.Wait()
	}
	a.cancel()
	a.workers.Wait()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("failed to close redis", slog.String("error", err.Error()))
		}
	}

	a.log.Info("closing database connection")
	a.pool.Close()

	a.log.Info("application stopped")
	_ = a.logCloser.Close()
	return runErr
}
