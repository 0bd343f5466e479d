package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/davidahmann/geogate/internal/api"
	"github.com/davidahmann/geogate/internal/auth"
	"github.com/davidahmann/geogate/internal/cache"
	"github.com/davidahmann/geogate/internal/config"
	"github.com/davidahmann/geogate/internal/crypto"
	"github.com/davidahmann/geogate/internal/ledger"
	"github.com/davidahmann/geogate/internal/ledger/pgstore"
	"github.com/davidahmann/geogate/internal/ledger/sqlstore"
	"github.com/davidahmann/geogate/internal/logging"
	"github.com/davidahmann/geogate/internal/metrics"
	"github.com/davidahmann/geogate/internal/notify"
	"github.com/davidahmann/geogate/internal/policy"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := runFn(ctx, os.Args[1:], os.Getenv, listenAndServe, newGateway); err != nil {
		fatalf("server error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

type envFn func(string) string
type listenFn func(*http.Server) error
type gatewayFactory func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*gateway, error)

// gateway is everything one process serves: the HTTP server, the optional
// notification outbox and the resources to release on shutdown.
type gateway struct {
	server       *http.Server
	outbox       *notify.Outbox
	pollInterval time.Duration
	closers      []func() error
}

func (g *gateway) Close() error {
	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, args []string, getenv envFn, listen listenFn, factory gatewayFactory) error {
	fs := flag.NewFlagSet("geogate-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to geogate config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := *configPath
	if cfgFile == "" {
		cfgFile = getenv("GEOGATE_CONFIG_PATH")
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	gw, err := factory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := gw.Close(); err != nil {
			logger.Warn("close resources", zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if gw.outbox != nil {
		go gw.outbox.Run(runCtx, gw.pollInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("geogate-gateway listening", zap.String("addr", gw.server.Addr))
		errCh <- listen(gw.server)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := gw.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newGateway(ctx context.Context, cfg config.Config, logger *zap.Logger) (*gateway, error) {
	gw := &gateway{pollInterval: cfg.Notify.PollInterval}
	fail := func(err error) (*gateway, error) {
		_ = gw.Close()
		return nil, err
	}

	loaded, err := policy.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return fail(fmt.Errorf("load policy: %w", err))
	}

	store, closeStore, err := openStore(cfg.DB)
	if err != nil {
		return fail(err)
	}
	gw.closers = append(gw.closers, closeStore)

	idem, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return fail(err)
	}
	gw.closers = append(gw.closers, closeCache)

	signer, err := loadSigner(cfg.SigningKey, logger)
	if err != nil {
		return fail(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	channel := ""
	if cfg.Notify.Enabled {
		channel = cfg.Notify.Channel
		gw.outbox = &notify.Outbox{
			Store:   store,
			Poster:  notify.NewWebhookPoster(cfg.Notify.WebhookURL),
			Logger:  logger.Named("notify"),
			Metrics: m,
		}
	}

	svc, err := api.NewReviewService(api.ServiceOptions{
		Policy:        loaded,
		Store:         store,
		Signer:        signer,
		Cache:         idem,
		CacheTTL:      cfg.Cache.TTL,
		NotifyChannel: channel,
		Logger:        logger.Named("review"),
		Metrics:       m,
	})
	if err != nil {
		return fail(err)
	}

	authn := auth.NewStaticAuthenticator(cfg.Auth.Tokens)
	if authn.Open() {
		logger.Warn("no auth tokens configured; /v1 accepts anonymous requests")
	}

	h := &api.Handler{
		Auth:     authn,
		Service:  svc,
		Logger:   logger.Named("http"),
		Gatherer: reg,
	}
	gw.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("gateway ready",
		zap.String("policy_id", loaded.Policy.PolicyID),
		zap.String("policy_hash", loaded.Hash),
		zap.String("db_driver", cfg.DB.Driver),
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.String("key_id", signer.KeyID()),
		zap.Bool("notify", cfg.Notify.Enabled))
	return gw, nil
}

func openStore(cfg config.DBConfig) (ledger.Store, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		return ledger.NewInMemoryStore(), func() error { return nil }, nil
	case "sqlite":
		s, err := sqlstore.OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := ledger.Migrate(s.DB(), ledger.DBSQLite); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return s, s.Close, nil
	case "postgres":
		s, err := pgstore.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := ledger.Migrate(s.DB(), ledger.DBPostgres); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported db.driver: %s", cfg.Driver)
	}
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		return cache.NewMemoryCache(), func() error { return nil }, nil
	case "redis":
		c, err := cache.NewRedis(ctx, cache.RedisOptions{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache.driver: %s", cfg.Driver)
	}
}

// loadSigner reads the configured key, or generates a throwaway one whose
// receipts cannot be verified after a restart unless the ledger kept the key.
func loadSigner(cfg config.SigningKeyConfig, logger *zap.Logger) (*crypto.Ed25519Signer, error) {
	if cfg.PrivateKeyPath != "" {
		signer, err := crypto.LoadSigner(cfg.PrivateKeyPath, cfg.KeyID)
		if err != nil {
			return nil, fmt.Errorf("load signing key: %w", err)
		}
		return signer, nil
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	logger.Warn("no signing key configured; using an ephemeral key")
	return crypto.NewEd25519Signer(cfg.KeyID, priv)
}

func listenAndServe(server *http.Server) error {
	return server.ListenAndServe()
}
