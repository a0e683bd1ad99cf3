// ABOUTME: Gateway orchestrator that wires the store, chat core and HTTP server
// ABOUTME: Owns the listener (TCP or Tailscale), the idle-channel sweeper and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/xiaozhu6-2-2/Chat/internal/api"
	"github.com/xiaozhu6-2-2/Chat/internal/auth"
	"github.com/xiaozhu6-2-2/Chat/internal/chat"
	"github.com/xiaozhu6-2-2/Chat/internal/config"
	"github.com/xiaozhu6-2-2/Chat/internal/dedupe"
	"github.com/xiaozhu6-2-2/Chat/internal/store"
	"github.com/xiaozhu6-2-2/Chat/internal/ws"
)

const (
	dedupeMaxEntries = 100_000
	shutdownTimeout  = 10 * time.Second
)

// Gateway runs the chat server.
type Gateway struct {
	config *config.Config
	store  store.Store
	logger *slog.Logger

	registry *chat.Registry
	presence *chat.Presence
	pipeline *chat.Pipeline
	handler  *chat.Handler
	dedupe   *dedupe.Cache

	httpServer  *http.Server
	tsnetServer *tsnet.Server

	// ready is closed once the listener is bound.
	ready    chan struct{}
	addr     net.Addr
	shutdown sync.Once
	stopErr  error
}

// initStore opens the configured database, creating its directory.
func initStore(cfg *config.Config) (store.Store, error) {
	path := cfg.Database.Path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	s, err := store.Open(cfg.Database.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	rt := cfg.Realtime
	registry := chat.NewRegistry(rt.SubscriberBacklog, logger)
	presence := chat.NewPresence()
	dedupeCache := dedupe.New(rt.DedupeTTL, dedupeMaxEntries)
	pipeline := chat.NewPipeline(s, registry, presence, chat.PipelineConfig{
		MaxContentLength: rt.MaxContentLength,
		Dedupe:           dedupeCache,
	}, logger)
	resolver := chat.NewSessionResolver(s, logger)
	handler := chat.NewHandler(registry, presence, pipeline, logger)

	server, err := api.New(api.Config{
		Store:          s,
		Registry:       registry,
		Presence:       presence,
		Pipeline:       pipeline,
		Resolver:       resolver,
		Handler:        handler,
		Tokens:         tokens,
		TokenTTL:       cfg.Auth.TokenTTL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Socket: ws.Options{
			MaxMessageSize: rt.MaxMessageSize,
			PingInterval:   rt.PingInterval,
			WriteTimeout:   rt.WriteTimeout,
			ReadTimeout:    rt.ReadTimeout,
		},
		Logger: logger,
	})
	if err != nil {
		dedupeCache.Close()
		_ = s.Close()
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	return &Gateway{
		config:   cfg,
		store:    s,
		logger:   logger.With("component", "gateway"),
		registry: registry,
		presence: presence,
		pipeline: pipeline,
		handler:  handler,
		dedupe:   dedupeCache,
		httpServer: &http.Server{
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		ready: make(chan struct{}),
	}, nil
}

// Addr blocks until the gateway is listening and returns the bound
// address, or returns nil if ctx ends first.
func (g *Gateway) Addr(ctx context.Context) net.Addr {
	select {
	case <-g.ready:
		return g.addr
	case <-ctx.Done():
		return nil
	}
}

// setupListener creates the HTTP listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run serves until ctx is canceled or the server fails, then shuts down.
// Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		_ = g.Shutdown(ctx)
		return err
	}
	g.addr = ln.Addr()
	close(g.ready)

	rt := g.config.Realtime
	eg, gctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		g.registry.RunSweeper(gctx, rt.SweepInterval, rt.ChannelIdleTTL)
		return nil
	})

	eg.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			g.logger.Info("context canceled, initiating shutdown")
		}
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown runs Shutdown with a fresh context since the caller's
// is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "chat-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :80 there.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	ln, err := g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting requests, closes live connections and releases
// resources. Only the first call does any work.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdown.Do(func() {
		g.logger.Info("shutting down gateway")

		var errs []error
		errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
		// Hijacked WebSocket connections are not tracked by http.Server.
		errs = appendCloseError(errs, "connection drain", g.handler.Shutdown(ctx))
		g.registry.Close()

		if g.tsnetServer != nil {
			errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
		}
		errs = appendCloseError(errs, "store close", g.store.Close())
		g.dedupe.Close()

		if len(errs) > 0 {
			g.stopErr = fmt.Errorf("shutdown errors: %v", errs)
		}
	})
	return g.stopErr
}
