package cli

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/access"
	"github.com/roach88/bakehouse/internal/catalog"
	"github.com/roach88/bakehouse/internal/config"
	"github.com/roach88/bakehouse/internal/inventory"
	"github.com/roach88/bakehouse/internal/logging"
	"github.com/roach88/bakehouse/internal/production"
	"github.com/roach88/bakehouse/internal/reconcile"
	"github.com/roach88/bakehouse/internal/sales"
	"github.com/roach88/bakehouse/internal/service"
	"github.com/roach88/bakehouse/internal/store"
	"github.com/roach88/bakehouse/internal/tenancy"
)

// envFile is loaded from the working directory when present.
const envFile = ".env"

// app is an opened database with every service wired to it.
type app struct {
	opts *RootOptions
	cfg  config.Config
	log  *zap.Logger
	st   *store.Store
	env  service.Env

	tenancy  *tenancy.Service
	inv      *inventory.Service
	counts   *reconcile.Service
	sales    *sales.Service
	prod     *production.Service
	importer *catalog.Importer
}

// openApp loads configuration, builds the logger and opens the store.
// Hooks observe committed movements and count decisions.
func openApp(opts *RootOptions, hooks service.Hooks) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath, envFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}
	if opts.Tenant == "" {
		opts.Tenant = os.Getenv(config.EnvPrefix + "TENANT")
	}
	if opts.User == "" {
		opts.User = os.Getenv(config.EnvPrefix + "USER")
	}

	log, err := logging.New(cfg.Log, opts.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		_ = log.Sync()
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	log.Debug("database opened", zap.String("path", cfg.DBPath))

	env := service.New(st, service.WithLogger(log), service.WithHooks(hooks))
	return &app{
		opts:     opts,
		cfg:      cfg,
		log:      log,
		st:       st,
		env:      env,
		tenancy:  tenancy.New(env),
		inv:      inventory.New(env),
		counts:   reconcile.New(env),
		sales:    sales.New(env),
		prod:     production.New(env),
		importer: catalog.NewImporter(env),
	}, nil
}

// Close closes the store and flushes the logger.
func (a *app) Close() {
	if err := a.st.Close(); err != nil {
		a.log.Warn("closing database", zap.Error(err))
	}
	_ = a.log.Sync()
}

// actor resolves --tenant and --user into a member of the tenant.
func (a *app) actor(ctx context.Context) (access.Actor, error) {
	if a.opts.Tenant == "" || a.opts.User == "" {
		return access.Actor{}, NewExitError(ExitCommandError, "--tenant and --user (or BAKEHOUSE_TENANT and BAKEHOUSE_USER) are required")
	}
	return a.tenancy.Resolve(ctx, a.opts.Tenant, a.opts.User)
}

// withApp opens the app for the duration of fn.
func withApp(opts *RootOptions, fn func(a *app) error) error {
	a, err := openApp(opts, service.Hooks{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// withActor opens the app and resolves the acting member for fn.
func withActor(ctx context.Context, opts *RootOptions, fn func(a *app, actor access.Actor) error) error {
	return withApp(opts, func(a *app) error {
		actor, err := a.actor(ctx)
		if err != nil {
			return err
		}
		return fn(a, actor)
	})
}
