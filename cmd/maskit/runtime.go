package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/guillermoBallester/maskit/internal/adapter/memory"
	"github.com/guillermoBallester/maskit/internal/adapter/policy"
	"github.com/guillermoBallester/maskit/internal/adapter/postgres"
	"github.com/guillermoBallester/maskit/internal/audit"
	"github.com/guillermoBallester/maskit/internal/config"
	"github.com/guillermoBallester/maskit/internal/core/domain"
	"github.com/guillermoBallester/maskit/internal/core/port"
	"github.com/guillermoBallester/maskit/internal/core/service"
	"github.com/guillermoBallester/maskit/internal/telemetry"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

// runtime holds the wired services shared by every subcommand.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	masks   *service.MaskService
	tracer  trace.Tracer
	inst    port.Instrumentation
	closers []func(context.Context) error
}

// setup loads config from the root flags and wires telemetry, audit, the mask
// store and the rule catalog.
func setup(ctx context.Context, c *cli.Command) (rt *runtime, err error) {
	cfg, err := config.Load(overridesFrom(c.Root()))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout carries the MCP stdio transport and command output.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	rt = &runtime{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = rt.close(ctx)
		}
	}()

	if cfg.OTelEnabled {
		store := "memory"
		if cfg.DatabaseURL != "" {
			store = "postgres"
		}
		provider, err := telemetry.Init(ctx, telemetry.Settings{
			ServiceName: "maskit",
			Version:     version,
			Transport:   cfg.Transport,
			Store:       store,
			MaskChar:    cfg.MaskChar,
			RulesFile:   cfg.RulesFile,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		rt.closers = append(rt.closers, provider.Shutdown)
		rt.tracer = telemetry.Tracer()
		rt.inst = telemetry.NewInstruments()
		logger.Info("telemetry enabled")
	} else {
		rt.tracer = telemetry.NoopTracer()
		rt.inst = telemetry.NoopInstruments()
	}

	var auditor port.MaskAuditor = audit.NoopAuditor{}
	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error { return fa.Close() })
		auditor = fa
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}

	store, err := rt.openStore(ctx)
	if err != nil {
		return nil, err
	}

	engine, catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RulesFile != "" {
		logger.Info("rule catalog loaded",
			slog.String("file", cfg.RulesFile),
			slog.Int("masks", len(catalog)),
		)
	}

	rt.masks = service.NewMaskService(engine, catalog, store, auditor, logger, rt.tracer, rt.inst)
	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context) (port.MaskStore, error) {
	if rt.cfg.DatabaseURL == "" {
		rt.logger.Info("using in-memory mask store")
		return memory.NewMaskStore(), nil
	}

	pool, err := postgres.NewPool(ctx, rt.cfg.DatabaseURL, postgres.PoolOptions{
		MaxConns:        rt.cfg.PoolMaxConns,
		MinConns:        rt.cfg.PoolMinConns,
		MaxConnLifetime: rt.cfg.PoolMaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { pool.Close(); return nil })

	store := postgres.NewMaskStore(pool, rt.cfg.StoreTimeout)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}

	rt.logger.Info("database pool connected",
		slog.String("db.system", "postgresql"),
		slog.String("database_url", redactDSN(rt.cfg.DatabaseURL)),
		slog.Int("pool_max_conns", int(rt.cfg.PoolMaxConns)),
	)
	return store, nil
}

// loadCatalog builds the engine and compiles the rule catalog. Mask settings
// from flags and env take precedence over the catalog's config section.
func loadCatalog(cfg *config.Config) (*domain.Engine, map[string]*domain.CompiledMask, error) {
	var pol *policy.Policy
	if cfg.RulesFile != "" {
		p, err := policy.LoadFromFile(cfg.RulesFile)
		if err != nil {
			return nil, nil, fmt.Errorf("loading rule catalog: %w", err)
		}
		pol = p
	}

	var opts []domain.ConfigOption
	if pol != nil {
		opts = append(opts, pol.ConfigOptions()...)
	}
	if r, ok := cfg.MaskRune(); ok {
		opts = append(opts, domain.WithMaskChar(r))
	}
	if cfg.MaskSeparator != nil {
		opts = append(opts, domain.WithSeparator(*cfg.MaskSeparator))
	}
	engine := domain.NewEngine(domain.NewMaskConfig(opts...))

	if pol == nil {
		return engine, nil, nil
	}
	catalog, err := pol.Compile(engine)
	if err != nil {
		return nil, nil, fmt.Errorf("compiling rule catalog: %w", err)
	}
	return engine, catalog, nil
}

// close releases resources in reverse order of acquisition.
func (rt *runtime) close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
