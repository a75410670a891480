package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/teller/internal/config"
	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/accounts"
	"github.com/aretw0/teller/pkg/adapters/file"
	"github.com/aretw0/teller/pkg/adapters/memory"
	"github.com/aretw0/teller/pkg/adapters/redis"
	"github.com/aretw0/teller/pkg/assistant"
	"github.com/aretw0/teller/pkg/assistant/etransfer"
	"github.com/aretw0/teller/pkg/assistant/tfsa"
	"github.com/aretw0/teller/pkg/banking"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/llm"
	"github.com/aretw0/teller/pkg/observability"
	"github.com/aretw0/teller/pkg/persistence/middleware"
	"github.com/aretw0/teller/pkg/ports"
	"github.com/aretw0/teller/pkg/router"
	"github.com/aretw0/teller/pkg/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// app holds everything a command may need, built once from the config.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry

	manager  *accounts.Manager
	banking  *banking.Service
	model    *llm.Ollama
	tfsa     *tfsa.Assistant
	transfer *etransfer.Assistant
	router   *router.Router

	closers []func() error
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if store, _ := cmd.Flags().GetString("store"); store != "" {
		cfg.Store.Driver = store
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.NewWithWriter(os.Stderr, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		logger:   newLogger(cfg),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, locker, err := a.openStore()
	if err != nil {
		return nil, err
	}

	managerOpts := []accounts.Option{accounts.WithLogger(a.logger), accounts.WithLockTTL(cfg.Store.LockTTL)}
	if locker != nil {
		managerOpts = append(managerOpts, accounts.WithLocker(locker))
	}
	a.manager = accounts.NewManager(store, managerOpts...)
	a.banking = banking.NewService(a.manager, banking.WithLogger(a.logger))

	a.model = llm.NewOllama(cfg.LLM, llm.WithLogger(a.logger))

	metrics := observability.NewMetrics(a.registry)
	rt := assistant.Runtime{
		Logger:   a.logger,
		Hooks:    observability.Chain(observability.LogHooks(a.logger), metrics.Hooks()),
		MaxSteps: cfg.Engine.MaxSteps,
	}

	tfsaCfg := tfsa.Config{Banking: a.banking, Model: a.model, Runtime: rt}
	if cfg.Search.APIKey != "" {
		tfsaCfg.Searcher = search.NewTavily(cfg.Search, search.WithLogger(a.logger))
	} else {
		a.logger.Warn("TAVILY_API_KEY not set, policy search disabled")
	}
	if a.tfsa, err = tfsa.New(tfsaCfg); err != nil {
		return nil, err
	}
	if a.transfer, err = etransfer.New(etransfer.Config{Banking: a.banking, Model: a.model, Runtime: rt}); err != nil {
		return nil, err
	}

	classifierOpts := []router.ClassifierOption{
		router.WithDefault(cfg.Router.Default),
		router.WithClassifierLogger(a.logger),
	}
	if cfg.Router.UseModel {
		classifierOpts = append(classifierOpts, router.WithModel(a.model))
	}
	classifier, err := router.NewClassifier(classifierOpts...)
	if err != nil {
		return nil, err
	}
	a.router, err = router.New(classifier, []assistant.Service{a.tfsa, a.transfer}, router.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openStore() (ports.AccountStore, ports.DistributedLocker, error) {
	cfg := a.cfg.Store
	var (
		store  ports.AccountStore
		locker ports.DistributedLocker
	)
	switch cfg.Driver {
	case config.DriverMemory:
		store = memory.NewStore(banking.DemoAccounts()...)
	case config.DriverFile:
		store = file.New(cfg.Path)
	case config.DriverRedis:
		opts := []redis.Option{}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		a.closers = append(a.closers, rs.Close)
		store = rs
		locker = redis.NewLocker(rs.Client(), cfg.Redis.Prefix+"lock:")
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	var mws []middleware.Middleware
	if cfg.MaskPII {
		mws = append(mws, middleware.NewPIIMiddleware([]string{"(?i)^sin$"}))
	}
	if cfg.EncryptionKey != "" {
		key, err := middleware.DecodeKey(cfg.EncryptionKey)
		if err != nil {
			return nil, nil, err
		}
		enc := middleware.EncryptionConfig{ActiveKey: key}
		for _, k := range cfg.FallbackKeys {
			old, err := middleware.DecodeKey(k)
			if err != nil {
				return nil, nil, fmt.Errorf("fallback key: %w", err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, old)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	a.logger.Debug("account store ready", "driver", cfg.Driver, "middlewares", len(mws))
	return middleware.Chain(store, mws...), locker, nil
}

// seed stores the demo customers when a persistent store is empty.
func (a *app) seed(ctx context.Context) error {
	if a.cfg.Store.Driver == config.DriverMemory {
		return nil
	}
	for _, acc := range banking.DemoAccounts() {
		_, err := a.manager.Load(ctx, acc.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		if err := a.manager.Save(ctx, acc); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
