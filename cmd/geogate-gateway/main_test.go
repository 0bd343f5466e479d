package main

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/davidahmann/geogate/internal/config"
	"github.com/davidahmann/geogate/internal/crypto"
)

const testPolicyPath = "../../policies/geogate.yaml"

func stubFactory(t *testing.T, check func(config.Config)) gatewayFactory {
	return func(_ context.Context, cfg config.Config, _ *zap.Logger) (*gateway, error) {
		if check != nil {
			check(cfg)
		}
		return &gateway{server: &http.Server{Addr: cfg.ListenAddr}}, nil
	}
}

func noEnv(string) string { return "" }

func TestRunDefaults(t *testing.T) {
	factory := stubFactory(t, func(cfg config.Config) {
		if cfg.ListenAddr != ":8080" {
			t.Fatalf("expected default addr, got %s", cfg.ListenAddr)
		}
		if cfg.PolicyPath != "policies/geogate.yaml" {
			t.Fatalf("expected default policy path, got %s", cfg.PolicyPath)
		}
		if cfg.DB.Driver != "memory" || cfg.Cache.Driver != "memory" {
			t.Fatalf("expected memory drivers, got %s/%s", cfg.DB.Driver, cfg.Cache.Driver)
		}
	})
	listen := func(*http.Server) error { return http.ErrServerClosed }

	if err := run(context.Background(), nil, noEnv, listen, factory); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunListenError(t *testing.T) {
	listenErr := errors.New("listen failed")
	listen := func(*http.Server) error { return listenErr }

	err := run(context.Background(), nil, noEnv, listen, stubFactory(t, nil))
	if !errors.Is(err, listenErr) {
		t.Fatalf("expected listen error, got %v", err)
	}
}

func TestRunFactoryError(t *testing.T) {
	factory := func(context.Context, config.Config, *zap.Logger) (*gateway, error) {
		return nil, errors.New("boom")
	}
	if err := run(context.Background(), nil, noEnv, nil, factory); err == nil {
		t.Fatalf("expected factory error")
	}
}

func TestRunLoadsConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geogate.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":9999\"\npolicy_path: \"./policies/custom.yaml\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	factory := stubFactory(t, func(cfg config.Config) {
		if cfg.ListenAddr != ":9999" {
			t.Fatalf("expected addr from config, got %s", cfg.ListenAddr)
		}
		if cfg.PolicyPath != "./policies/custom.yaml" {
			t.Fatalf("expected policy path from config, got %s", cfg.PolicyPath)
		}
	})
	getenv := func(key string) string {
		if key == "GEOGATE_CONFIG_PATH" {
			return path
		}
		return ""
	}
	listen := func(*http.Server) error { return nil }

	if err := run(context.Background(), nil, getenv, listen, factory); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geogate.yaml")
	if err := os.WriteFile(path, []byte("db:\n  driver: mongo\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	err := run(context.Background(), []string{"--config", path}, noEnv, nil, stubFactory(t, nil))
	if err == nil || !strings.Contains(err.Error(), "db.driver") {
		t.Fatalf("expected db.driver error, got %v", err)
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	stopped := make(chan struct{})

	factory := func(_ context.Context, cfg config.Config, _ *zap.Logger) (*gateway, error) {
		gw := &gateway{server: &http.Server{Addr: cfg.ListenAddr}}
		gw.server.RegisterOnShutdown(func() { close(stopped) })
		return gw, nil
	}
	listen := func(srv *http.Server) error {
		close(started)
		<-stopped
		return http.ErrServerClosed
	}

	done := make(chan error, 1)
	go func() { done <- run(ctx, nil, noEnv, listen, factory) }()

	<-started
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}

func TestNewGatewayMemory(t *testing.T) {
	cfg := config.Config{
		ListenAddr: "127.0.0.1:0",
		PolicyPath: testPolicyPath,
		DB:         config.DBConfig{Driver: "memory"},
		Cache:      config.CacheConfig{Driver: "memory", TTL: time.Minute},
		Auth:       config.AuthConfig{Tokens: []string{"ops:secret"}},
		Notify:     config.NotifyConfig{Enabled: true, WebhookURL: "http://127.0.0.1:1/hook", Channel: "#c", PollInterval: time.Second},
	}
	gw, err := newGateway(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	defer gw.Close()

	if gw.server.Addr != cfg.ListenAddr || gw.server.ReadHeaderTimeout == 0 {
		t.Fatalf("unexpected server: %+v", gw.server)
	}
	if gw.outbox == nil {
		t.Fatalf("expected outbox when notify is enabled")
	}

	rec := httptest.NewRecorder()
	gw.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	gw.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/hitl/tasks", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	gw.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("expected runtime metrics, got %d", rec.Code)
	}
}

func TestNewGatewaySQLite(t *testing.T) {
	cfg := config.Config{
		ListenAddr: "127.0.0.1:0",
		PolicyPath: testPolicyPath,
		DB:         config.DBConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "ledger.db")},
		Cache:      config.CacheConfig{Driver: "memory"},
	}
	gw, err := newGateway(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	if gw.outbox != nil {
		t.Fatalf("outbox should be off by default")
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewGatewayMissingPolicy(t *testing.T) {
	cfg := config.Config{ListenAddr: ":0", PolicyPath: filepath.Join(t.TempDir(), "missing.yaml")}
	if _, err := newGateway(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatalf("expected policy error")
	}
}

func TestOpenStoreAndCacheUnsupported(t *testing.T) {
	if _, _, err := openStore(config.DBConfig{Driver: "mongo"}); err == nil {
		t.Fatalf("expected store error")
	}
	if _, _, err := openCache(context.Background(), config.CacheConfig{Driver: "memcached"}); err == nil {
		t.Fatalf("expected cache error")
	}
}

func TestLoadSigner(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "signing.key")
	if err := os.WriteFile(path, []byte("hex:"+hex.EncodeToString(seed)), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	signer, err := loadSigner(config.SigningKeyConfig{PrivateKeyPath: path}, zap.NewNop())
	if err != nil {
		t.Fatalf("load signer: %v", err)
	}
	if signer.KeyID() != crypto.KeyIDFor(signer.PublicKey()) {
		t.Fatalf("expected derived key id, got %s", signer.KeyID())
	}

	named, err := loadSigner(config.SigningKeyConfig{KeyID: "prod-1", PrivateKeyPath: path}, zap.NewNop())
	if err != nil || named.KeyID() != "prod-1" {
		t.Fatalf("expected configured key id, got %v %v", named, err)
	}

	ephemeral, err := loadSigner(config.SigningKeyConfig{}, zap.NewNop())
	if err != nil || ephemeral.KeyID() == "" {
		t.Fatalf("expected ephemeral signer, got %v", err)
	}
}
