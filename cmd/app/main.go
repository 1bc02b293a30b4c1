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

	"github.com/rs/zerolog"

	"github.com/gauravv01/subshare-sub000/internal/config"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/repository"
	payAdapters "github.com/gauravv01/subshare-sub000/internal/infra/adapters/payment"
	"github.com/gauravv01/subshare-sub000/internal/infra/api"
	"github.com/gauravv01/subshare-sub000/internal/infra/db/memory"
	"github.com/gauravv01/subshare-sub000/internal/infra/i18n"
	pg "github.com/gauravv01/subshare-sub000/internal/infra/db/postgres"
	"github.com/gauravv01/subshare-sub000/internal/infra/logging"
	"github.com/gauravv01/subshare-sub000/internal/infra/metrics"
	"github.com/gauravv01/subshare-sub000/internal/infra/notify"
	red "github.com/gauravv01/subshare-sub000/internal/infra/redis"
	"github.com/gauravv01/subshare-sub000/internal/infra/sched"
	"github.com/gauravv01/subshare-sub000/internal/infra/security"
	"github.com/gauravv01/subshare-sub000/internal/infra/worker"
	"github.com/gauravv01/subshare-sub000/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

type storage struct {
	subs        repository.SubscriptionRepository
	memberships repository.MembershipRepository
	txs         repository.TransactionRepository
	tm          repository.TransactionManager
	close       func()
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted refs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("subshare stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("commit", commit).Bool("dev", cfg.Runtime.Dev).Msg("starting subshare")

	// ---- Redis (optional) ----
	var (
		redisClient *red.Client
		limiter     api.Limiter
		locker      red.Locker
	)
	if cfg.Redis.URL != "" {
		c, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer c.Close()
		redisClient = c
		limiter = red.NewRateLimiter(c)
		locker = red.NewLocker(c)
	}

	// ---- Storage ----
	store, err := openStorage(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer store.close()

	// ---- Adapters ----
	cipher, err := security.NewCredentialCipher(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("encryption: %w", err)
	}

	var processor adapter.PaymentProcessor = payAdapters.NewNoopProcessor()
	if cfg.Payment.APIKey != "" {
		processor, err = payAdapters.NewHTTPProcessor(cfg.Payment)
		if err != nil {
			return fmt.Errorf("payment processor: %w", err)
		}
	}
	logger.Info().Str("processor", processor.Name()).Msg("payment processor ready")

	sinks, closeSinks, err := buildSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	// Stop drains queued events, so the pool outlives the signal context.
	pool := worker.NewPool(cfg.Notify.Workers, cfg.Notify.QueueSize, logger)
	pool.Start(context.WithoutCancel(ctx))
	defer pool.Stop()
	notifier := notify.NewDispatcher(pool, cfg.Ledger.ExternalTimeout, logger, sinks...)

	// ---- Use cases ----
	subUC := usecase.NewSubscriptionUseCase(store.subs, store.memberships, cipher, notifier, store.tm, cfg.Ledger.ExternalTimeout, logger)
	memUC := usecase.NewMembershipUseCase(store.subs, store.memberships, notifier, store.tm, logger)
	ledgerUC := usecase.NewLedgerUseCase(store.txs, store.subs, store.memberships, processor, notifier,
		usecase.LedgerConfig{FeeRateBps: cfg.Ledger.FeeBps, ExternalTimeout: cfg.Ledger.ExternalTimeout}, logger)

	// ---- Background workers ----
	reconciler := sched.NewLedgerReconciler(ledgerUC, locker, cfg.Ledger.ReconcileInterval, cfg.Ledger.StaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- HTTP ----
	gw := api.NewJWTGateway(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	srv := api.NewServer(subUC, memUC, ledgerUC, gw, api.Options{Limiter: limiter, RateLimitPerMin: cfg.HTTP.RateLimitPerMin}, logger)
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, redisClient *red.Client, logger *zerolog.Logger) (*storage, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn().Msg("using in-memory storage; data is lost on exit")
		s := memory.NewStore()
		return &storage{
			subs:        memory.NewSubscriptionRepo(s),
			memberships: memory.NewMembershipRepo(s),
			txs:         memory.NewTransactionRepo(s),
			tm:          memory.NewTxManager(s),
			close:       func() {},
		}, nil
	}

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := pg.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}
	go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)

	var subs repository.SubscriptionRepository = pg.NewSubscriptionRepo(pool)
	if redisClient != nil {
		subs = pg.NewSubscriptionRepoCacheDecorator(subs, redisClient, cfg.Redis.TTL, logger)
	}
	return &storage{
		subs:        subs,
		memberships: pg.NewMembershipRepo(pool),
		txs:         pg.NewTransactionRepo(pool),
		tm:          pg.NewTxManager(pool),
		close:       pool.Close,
	}, nil
}

func buildSinks(cfg *config.Config, logger *zerolog.Logger) ([]notify.Sink, func(), error) {
	var (
		sinks   []notify.Sink
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if url := cfg.Notify.RabbitMQ.URL; url != "" {
		p, err := notify.NewRabbitPublisher(url, cfg.Notify.RabbitMQ.Exchange)
		if err != nil {
			return nil, closeAll, fmt.Errorf("rabbitmq: %w", err)
		}
		sinks = append(sinks, p)
		closers = append(closers, p.Close)
	}
	if tok := cfg.Notify.Telegram.Token; tok != "" {
		tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Notify.Telegram.Language)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		t, err := notify.NewTelegramNotifier(tok, cfg.Notify.Telegram.ChatIDs, tr)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("telegram: %w", err)
		}
		sinks = append(sinks, t)
	}
	if len(sinks) == 0 {
		sinks = append(sinks, notify.NewLogSink(logger))
	}
	return sinks, closeAll, nil
}
