// Package daemon wires the storage, gateway, tools, and agent pipeline into
// a long-running service.
package daemon

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/leadpilot/leadpilot/internal/config"
	"github.com/leadpilot/leadpilot/internal/logger"
	"github.com/leadpilot/leadpilot/internal/metrics"
	"github.com/leadpilot/leadpilot/pkg/agent"
	"github.com/leadpilot/leadpilot/pkg/channel"
	"github.com/leadpilot/leadpilot/pkg/contextstore"
	"github.com/leadpilot/leadpilot/pkg/gateway"
	"github.com/leadpilot/leadpilot/pkg/integration"
	"github.com/leadpilot/leadpilot/pkg/ratelimit"
	"github.com/leadpilot/leadpilot/pkg/tenant"
	"github.com/leadpilot/leadpilot/pkg/tool"
	"github.com/leadpilot/leadpilot/pkg/toolexec"
	"github.com/leadpilot/leadpilot/pkg/tools"
)

// Daemon owns every long-lived component of the service.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	db       *sql.DB
	tenants  *tenant.MemoryStore
	registry *tool.Registry
	contexts *contextstore.Store
	limiter  *ratelimit.Limiter
	executor *toolexec.Executor
	gateway  gateway.Gateway
	service  *agent.Service
	metrics  *metrics.Metrics

	janitor *ratelimit.Janitor
	watcher *config.Watcher
	httpSrv *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// New builds a daemon from cfg, initializing components in dependency
// order. Nothing starts running until Run.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:  cfg,
		logger:  log,
		metrics: metrics.New(),
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := d.initialize(); err != nil {
		cancel()
		d.closeResources()
		return nil, fmt.Errorf("initialize daemon: %w", err)
	}
	return d, nil
}

func (d *Daemon) initialize() error {
	zlog := d.logger.Zerolog()

	if err := os.MkdirAll(d.config.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.config.Database.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	d.db = db

	d.tenants = tenant.NewMemoryStore()
	if err := d.tenants.LoadFile(d.config.TenantsFile); err != nil {
		// Missing tenants file means every tenant is disabled, which is
		// a valid (if useless) state.
		zlog.Warn().Err(err).Str("path", d.config.TenantsFile).Msg("Could not load tenants file")
	}

	d.contexts, err = contextstore.New(db, zlog)
	if err != nil {
		return fmt.Errorf("init context store: %w", err)
	}
	d.limiter, err = ratelimit.New(db, d.tenants, zlog)
	if err != nil {
		return fmt.Errorf("init rate limiter: %w", err)
	}

	d.registry = tool.NewRegistry(d.tenants, zlog)
	if err := d.registerTools(db, zlog); err != nil {
		return err
	}

	d.executor, err = toolexec.New(toolexec.Config{
		Registry: d.registry,
		Limiter:  d.limiter,
		Audit:    d.contexts,
		Metrics:  d.metrics,
		Logger:   zlog,
		Timeout:  time.Duration(d.config.Executor.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init tool executor: %w", err)
	}

	d.gateway, err = newGateway(d.config.Provider)
	if err != nil {
		return err
	}

	d.service, err = agent.New(agent.Config{
		Configs:  d.tenants,
		Leads:    d.tenants,
		Registry: d.registry,
		Executor: d.executor,
		Limiter:  d.limiter,
		Contexts: d.contexts,
		Gateway:  d.gateway,
		Channel:  channel.NewLogDeliverer(zlog),
		Metrics:  d.metrics,
		Logger:   zlog,
	})
	if err != nil {
		return fmt.Errorf("init agent service: %w", err)
	}

	d.janitor = ratelimit.NewJanitor(d.limiter, d.config.Janitor.Schedule, zlog)
	return nil
}

func (d *Daemon) registerTools(db *sql.DB, zlog zerolog.Logger) error {
	deps := tools.Deps{
		Leads:  d.tenants,
		Logger: zlog,
	}

	if key := d.config.Integrations.EncryptionKey; key != "" {
		cipher, err := integration.NewCipher(key)
		if err != nil {
			return fmt.Errorf("init integration cipher: %w", err)
		}
		creds, err := integration.NewStore(db, cipher, zlog)
		if err != nil {
			return fmt.Errorf("init integration store: %w", err)
		}
		deps.Credentials = creds
	}

	if err := tools.RegisterAll(d.registry, deps); err != nil {
		return err
	}
	return nil
}

func newGateway(cfg config.ProviderConfig) (gateway.Gateway, error) {
	switch cfg.Name {
	case "openai":
		return gateway.NewOpenAIGateway(cfg.OpenAIAPIKey)
	case "anthropic":
		return gateway.NewAnthropicGateway(cfg.AnthropicAPIKey)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// Service exposes the message pipeline for CLI commands.
func (d *Daemon) Service() *agent.Service { return d.service }

// Registry exposes the tool registry for CLI commands.
func (d *Daemon) Registry() *tool.Registry { return d.registry }

// Limiter exposes the rate limiter for CLI commands.
func (d *Daemon) Limiter() *ratelimit.Limiter { return d.limiter }

// Run starts the background services and blocks until the context is
// canceled or a termination signal arrives.
func (d *Daemon) Run() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	zlog := d.logger.Zerolog()
	zlog.Info().Str("data_dir", d.config.DataDir).Str("provider", d.config.Provider.Name).Msg("Daemon starting")

	d.janitor.Start()

	watcher, err := config.NewWatcher(d.config.TenantsFile, d.reloadTenants, zlog)
	if err != nil {
		zlog.Warn().Err(err).Msg("Tenants file watcher unavailable, hot reload disabled")
	} else {
		d.watcher = watcher
	}

	if d.config.Metrics.Enabled {
		d.startMetricsServer(zlog)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		zlog.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case <-d.ctx.Done():
	}

	return d.Stop()
}

func (d *Daemon) startMetricsServer(zlog zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	d.httpSrv = &http.Server{Addr: d.config.Metrics.Listen, Handler: mux}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		zlog.Info().Str("listen", d.config.Metrics.Listen).Msg("Metrics endpoint up")
		if err := d.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

func (d *Daemon) reloadTenants() {
	zlog := d.logger.Zerolog()
	if err := d.tenants.LoadFile(d.config.TenantsFile); err != nil {
		zlog.Error().Err(err).Msg("Tenants reload failed, keeping previous state")
		return
	}
	ids, _ := d.tenants.TenantIDs(context.Background())
	zlog.Info().Int("tenants", len(ids)).Msg("Tenants reloaded")
}

// Stop shuts everything down in reverse order of startup.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	uptime := time.Since(d.startTime)
	d.mu.Unlock()

	zlog := d.logger.Zerolog()
	zlog.Info().Dur("uptime", uptime).Msg("Daemon stopping")

	if d.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = d.httpSrv.Shutdown(shutdownCtx)
		cancel()
	}
	if d.watcher != nil {
		_ = d.watcher.Close()
	}
	if d.janitor != nil {
		d.janitor.Stop()
	}
	d.cancel()
	d.wg.Wait()
	d.closeResources()

	zlog.Info().Msg("Daemon stopped")
	return nil
}

// Close releases resources for a daemon that was built but never Run, as
// one-shot CLI commands do.
func (d *Daemon) Close() {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()
	if running {
		_ = d.Stop()
		return
	}
	d.cancel()
	d.closeResources()
}

func (d *Daemon) closeResources() {
	if d.db != nil {
		_ = d.db.Close()
		d.db = nil
	}
}
