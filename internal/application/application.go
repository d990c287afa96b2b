// Package application wires the record store, persistence backends, scheduler,
// settings and offsite mirror into one runnable unit.
package application

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/juju/clock"

	"muwi-backup/internal/backup"
	"muwi-backup/internal/config"
	appErrors "muwi-backup/internal/errors"
	"muwi-backup/internal/host"
	"muwi-backup/internal/logging"
	"muwi-backup/internal/mirror"
	"muwi-backup/internal/settings"
	"muwi-backup/internal/store"
	"muwi-backup/internal/web"
)

// Mode selects the persistence backend.
type Mode int

const (
	// ModeDesktop saves through the local file system and supports scheduling.
	ModeDesktop Mode = iota
	// ModeServer saves through browser downloads and uploads.
	ModeServer
)

// Options configures New
type Options struct {
	Config *config.Config
	Mode   Mode
	// Picker answers file dialogs in desktop mode.
	Picker host.Picker
	Clock  clock.Clock
	Logger *logging.Logger
}

// Application represents the running application
type Application struct {
	config          *config.Config
	logger          *logging.Logger
	clock           clock.Clock
	store           store.Store
	service         *backup.Service
	scheduler       *backup.Scheduler
	settings        *settings.Store
	mirror          *mirror.Mirror
	mirrorProvider  mirror.Provider
	shutdownHandler *appErrors.GracefulShutdownHandler
	closeOnce       sync.Once
	closeErr        error
}

// New opens the record store and builds every component described by opts.
func New(ctx context.Context, opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, appErrors.NewAppError(appErrors.ErrorTypeValidation, "configuration validation failed", err)
	}

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.NewLogger(cfg.Logging.LoggerConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	app := &Application{
		config:          cfg,
		logger:          logger,
		clock:           clk,
		settings:        settings.NewStore(cfg.SettingsPath),
		shutdownHandler: appErrors.NewGracefulShutdownHandler(),
	}

	recordStore, err := OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	app.store = recordStore

	var observers []backup.SaveObserver
	if cfg.Mirror.Enabled {
		provider, err := mirror.NewProvider(ctx, &cfg.Mirror)
		if err != nil {
			recordStore.Close()
			return nil, fmt.Errorf("failed to create mirror provider: %w", err)
		}
		app.mirrorProvider = provider
		app.mirror = mirror.New(provider, cfg.Mirror, logger)
		observers = append(observers, app.mirror)
	}

	service, err := backup.NewService(backup.ServiceConfig{
		Store:      recordStore,
		Backend:    newBackend(opts, clk, logger),
		Clock:      clk,
		Logger:     logger,
		AppVersion: cfg.AppVersion,
		Observers:  observers,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.service = service
	app.scheduler = backup.NewScheduler(service, clk, logger)
	return app, nil
}

func newBackend(opts Options, clk clock.Clock, logger *logging.Logger) backup.Backend {
	if opts.Mode == ModeServer {
		return backup.NewSandboxBackend(web.Primitives{}, clk)
	}
	picker := opts.Picker
	if picker == nil {
		picker = host.StaticPicker{}
	}
	return backup.NewPrivilegedBackend(host.NewDesktopHost(picker, clk, logger))
}

// OpenStore opens the record store selected by the configured driver
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *logging.Logger) (store.Store, error) {
	switch cfg.Driver {
	case store.DriverBadger:
		return store.NewBadgerStore(cfg.Badger, logger)
	case store.DriverMySQL:
		return store.OpenSQLStore(ctx, cfg.MySQL, logger)
	default:
		return nil, appErrors.NewAppError(appErrors.ErrorTypeValidation,
			fmt.Sprintf("unsupported store driver: %s", cfg.Driver), nil)
	}
}

// Service returns the backup service
func (app *Application) Service() *backup.Service { return app.service }

// Scheduler returns the auto-backup scheduler
func (app *Application) Scheduler() *backup.Scheduler { return app.scheduler }

// Settings returns the settings store
func (app *Application) Settings() *settings.Store { return app.settings }

// Mirror returns the offsite mirror, or nil when mirroring is disabled
func (app *Application) Mirror() *mirror.Mirror { return app.mirror }

// Store returns the record store
func (app *Application) Store() store.Store { return app.store }

// Logger returns the application logger
func (app *Application) Logger() *logging.Logger { return app.logger }

// Config returns the configuration the application was built from
func (app *Application) Config() *config.Config { return app.config }

// HandleSignals returns a context cancelled on SIGINT or SIGTERM.
// The returned stop function releases the signal handler.
func (app *Application) HandleSignals(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	app.shutdownHandler.RegisterShutdownFunc(func() error {
		app.logger.Info("Received shutdown signal")
		cancel()
		return nil
	})
	app.shutdownHandler.Start()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			cancel()
			app.shutdownHandler.Stop()
		})
	}
}

// RunScheduler starts automatic backups from the stored settings and blocks until
// ctx is done. Successful runs are recorded back into the settings file.
func (app *Application) RunScheduler(ctx context.Context) error {
	if !app.service.IsPrivileged() {
		return backup.NewConfigurationError(backup.MsgRequiresDesktop, nil)
	}

	autoConfig, err := app.settings.Load()
	if err != nil {
		return err
	}
	if !autoConfig.Enabled || autoConfig.Location == "" {
		return backup.NewConfigurationError(
			fmt.Sprintf("automatic backups are not enabled in %s", app.settings.Path()), nil)
	}

	app.scheduler.Start(ctx, autoConfig, app.settings.Recorder(app.clock.Now, app.logger))
	<-ctx.Done()
	app.scheduler.StopAndWait()
	return nil
}

// RecordBackup writes lastBackup to the settings file after a successful manual backup,
// so the next scheduler start does not run an early catch-up.
func (app *Application) RecordBackup(result backup.BackupResult) {
	if !result.Success {
		return
	}
	if err := app.settings.RecordBackup(result, app.clock.Now()); err != nil {
		app.logger.WithField("settings", app.settings.Path()).WithError(err).Warn("Failed to record last backup time")
	}
}

// Serve runs the HTTP sandbox until ctx is done
func (app *Application) Serve(ctx context.Context) error {
	return web.NewServer(app.service, app.logger).
		WithShutdownTimeout(app.config.Server.ShutdownTimeout).
		WithBackupRecorder(app.RecordBackup).
		ListenAndServe(ctx, app.config.Server.Addr)
}

// Close stops the scheduler and releases the store and mirror provider.
// It is safe to call more than once.
func (app *Application) Close() error {
	app.closeOnce.Do(func() {
		if app.scheduler != nil {
			app.scheduler.StopAndWait()
		}
		if closer, ok := app.mirrorProvider.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				app.logger.WithField("mirror", app.mirror.Describe()).WithError(err).Warn("Failed to close mirror provider")
			}
		}
		if app.store != nil {
			app.closeErr = app.store.Close()
		}
	})
	return app.closeErr
}
