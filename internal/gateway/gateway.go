// ABOUTME: Wires the store, vault, registry, providers, and dispatcher together.
// ABOUTME: Owns the HTTP server lifecycle from startup through graceful shutdown.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/azar84/mcp-gateway/internal/auth"
	"github.com/azar84/mcp-gateway/internal/config"
	"github.com/azar84/mcp-gateway/internal/mcp"
	"github.com/azar84/mcp-gateway/internal/metrics"
	"github.com/azar84/mcp-gateway/internal/providers/general"
	"github.com/azar84/mcp-gateway/internal/providers/webhook"
	"github.com/azar84/mcp-gateway/internal/registry"
	"github.com/azar84/mcp-gateway/internal/store"
	"github.com/azar84/mcp-gateway/internal/vault"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Gateway is the assembled server: every component is constructed once in New
// and injected by reference; nothing is global.
type Gateway struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.SQLiteStore
	vault      *vault.Vault
	registry   *registry.Registry
	signed     *auth.SignedTokens
	metrics    *metrics.Metrics
	dispatcher *mcp.Server
	mux        *http.ServeMux
	httpSrv    *http.Server
}

// New assembles a Gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	v, err := vault.OpenOrGenerate(cfg.Vault.Key, logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("opening vault: %w", err)
	}

	version := cfg.Server.Version
	if version == "" {
		version = "dev"
	}

	// Registration order is listing order, so providers are wired as an
	// ordered slice, not a map.
	reg := registry.New(logger)
	providers := []struct {
		domain   string
		provider registry.Provider
	}{
		{"general", general.New(version)},
		{"webhook", webhook.New(nil)},
	}
	byName := make(map[string]registry.Provider, len(providers))
	for _, entry := range providers {
		if err := reg.RegisterProvider(entry.domain, entry.provider); err != nil {
			s.Close()
			return nil, fmt.Errorf("registering provider %s: %w", entry.provider.Name(), err)
		}
		byName[entry.provider.Name()] = entry.provider
	}

	var signed *auth.SignedTokens
	if cfg.Auth.JWTSecret != "" {
		signed = auth.NewSignedTokens([]byte(cfg.Auth.JWTSecret))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	g := &Gateway{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		vault:    v,
		registry: reg,
		signed:   signed,
		metrics:  m,
		mux:      http.NewServeMux(),
	}

	dispatcher, err := mcp.NewServer(mcp.Config{
		Registry:      reg,
		Authenticator: auth.NewAuthenticator(s, logger),
		Builder:       registry.NewContextBuilder(s, v, logger),
		Store:         s,
		Signed:        signed,
		Metrics:       m,
		Logger:        logger,
		ServerName:    cfg.Server.Name,
		ServerVersion: version,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	g.dispatcher = dispatcher
	dispatcher.RegisterRoutes(g.mux)

	api := newAdminAPI(g, byName)
	api.registerRoutes(g.mux)

	g.mux.HandleFunc("/health", g.handleHealth)
	if m != nil {
		g.mux.Handle(cfg.Metrics.Path, m.Handler())
	}

	g.httpSrv = &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      g.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // tool calls may wait on slow upstreams
	}

	return g, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		g.logger.Info("http server listening",
			"addr", g.cfg.Server.HTTPAddr,
			"tools", g.registry.ToolCount(),
		)
		if err := g.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if idle := g.cfg.Session.IdleTimeout; idle > 0 {
		group.Go(func() error {
			g.dispatcher.RunSessionSweeper(ctx, idle)
			return nil
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		g.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := g.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err := group.Wait()
	if closeErr := g.store.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("closing store: %w", closeErr)
	}
	return err
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
