package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/KromaEnergia/api-guias/internal/admin"
	"github.com/KromaEnergia/api-guias/internal/auth"
	"github.com/KromaEnergia/api-guias/internal/bookmark"
	"github.com/KromaEnergia/api-guias/internal/config"
	"github.com/KromaEnergia/api-guias/internal/guide"
	"github.com/KromaEnergia/api-guias/internal/logger"
	"github.com/KromaEnergia/api-guias/internal/media"
	"github.com/KromaEnergia/api-guias/internal/notify"
	"github.com/KromaEnergia/api-guias/internal/progress"
	"github.com/KromaEnergia/api-guias/internal/server"
	"github.com/KromaEnergia/api-guias/internal/storage"
	"github.com/KromaEnergia/api-guias/internal/telemetry"
	"github.com/KromaEnergia/api-guias/internal/user"
	"github.com/KromaEnergia/api-guias/internal/utils/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "api-guias",
		Short:         "Guide platform API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Optional YAML config file; the environment overrides it")

	serve := newServeCommand(&configPath)
	cmd.AddCommand(serve)
	cmd.AddCommand(newMigrateCommand(&configPath))
	cmd.AddCommand(newSeedAdminCommand(&configPath))
	// serve is the default
	cmd.RunE = serve.RunE
	cmd.Flags().AddFlagSet(serve.Flags())
	return cmd
}

// app holds what every command needs.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		return nil, err
	}
	database, err := db.ConnectDataBase(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, db: database}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}

func newServeCommand(configPath *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(ctx, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply pending migrations before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, migrate bool) error {
	cfg, log := a.cfg, a.log

	shutdownTracing, err := telemetry.Init(ctx, cfg.App.Name, cfg.App.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	if migrate {
		if err := db.Migrate(ctx, a.db, "up"); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	events := newPublisher(cfg, log)
	defer events.Close()

	timeout := cfg.Database.Timeout
	users := user.NewRepository(a.db, timeout)
	guides := guide.NewRepository(a.db, timeout)
	bookmarks := bookmark.NewRepository(a.db, timeout)
	progresses := progress.NewRepository(a.db, timeout)

	if _, err := admin.SeedAdmin(ctx, users, cfg.Admin, log); err != nil {
		return err
	}

	tokens := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  []byte(cfg.JWT.AccessSecret),
		RefreshSecret: []byte(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	}, users)
	authService := auth.NewService(users, tokens, events, log)
	authService.RevokeOnReuse = cfg.JWT.RevokeOnReuse

	deps := server.Deps{
		Config:   cfg,
		Log:      log,
		Verifier: tokens,
		Health: func(ctx context.Context) error {
			return db.Ping(ctx, a.db, timeout)
		},
		Handlers: server.Handlers{
			Auth:      auth.NewHandler(authService, log),
			Users:     user.NewHandler(users, store, cfg.Storage.MaxBytes, log),
			Guides:    guide.NewHandler(guides, events, log),
			Bookmarks: bookmark.NewHandler(bookmarks, log),
			Progress:  progress.NewHandler(progresses, log),
			Media:     media.NewHandler(store, cfg.Storage.MaxBytes, log),
			Admin:     admin.NewHandler(users, guides, bookmarks, log),
		},
	}
	srv := server.New(cfg.HTTP, server.Wrap(deps, server.NewRouter(deps)))

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newPublisher fans events out to NATS and the webhook, whichever are
// configured. A NATS connection failure is logged and skipped.
func newPublisher(cfg *config.Config, log *zap.Logger) notify.Publisher {
	var pubs notify.Multi
	if cfg.Events.NATSURL != "" {
		nc, err := notify.NewNATS(cfg.Events.NATSURL, cfg.App.Name)
		if err != nil {
			log.Warn("nats unavailable, events will not be published there", zap.Error(err))
		} else {
			pubs = append(pubs, nc)
		}
	}
	if cfg.Events.WebhookURL != "" {
		pubs = append(pubs, notify.NewWebhook(cfg.Events.WebhookURL))
	}
	if len(pubs) == 0 {
		return notify.Nop{}
	}
	return pubs
}

func newMigrateCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or inspect database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if err := db.Migrate(ctx, a.db, args[0]); err != nil {
				return err
			}
			a.log.Info("migrate finished", zap.String("command", args[0]))
			return nil
		},
	}
	return cmd
}

func newSeedAdminCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the admin account from ADMIN_EMAIL and ADMIN_PASSWORD",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if a.cfg.Admin.Email == "" {
				return errors.New("ADMIN_EMAIL is not set")
			}
			created, err := admin.SeedAdmin(ctx, user.NewRepository(a.db, a.cfg.Database.Timeout), a.cfg.Admin, a.log)
			if err != nil {
				return err
			}
			if !created {
				a.log.Info("admin user already exists", zap.String("email", a.cfg.Admin.Email))
			}
			return nil
		},
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
