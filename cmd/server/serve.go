package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aldoetobex/legal-consult-backend/internal/ai"
	"github.com/aldoetobex/legal-consult-backend/internal/auth"
	"github.com/aldoetobex/legal-consult-backend/internal/chat"
	"github.com/aldoetobex/legal-consult-backend/internal/consultations"
	"github.com/aldoetobex/legal-consult-backend/internal/events"
	"github.com/aldoetobex/legal-consult-backend/internal/payments"
	"github.com/aldoetobex/legal-consult-backend/internal/server"
	"github.com/aldoetobex/legal-consult-backend/internal/storage"
	"github.com/aldoetobex/legal-consult-backend/internal/users"
	"github.com/aldoetobex/legal-consult-backend/pkg/cache"
	"github.com/aldoetobex/legal-consult-backend/pkg/cache/redis"
	"github.com/aldoetobex/legal-consult-backend/pkg/config"
)

type ServerFlags struct {
	DBFlags *DBFlags

	ListenAddr      string
	AutoMigrate     bool
	SweepSchedule   string
	ShutdownTimeout time.Duration
}

func NewServerFlags() *ServerFlags {
	return &ServerFlags{
		DBFlags:         NewDBFlags(),
		AutoMigrate:     true,
		SweepSchedule:   "@every 15m",
		ShutdownTimeout: 10 * time.Second,
	}
}

func (f *ServerFlags) BindFlags(flagSet *pflag.FlagSet) {
	f.DBFlags.BindFlags(flagSet)

	flagSet.StringVar(&f.ListenAddr, "listen", f.ListenAddr, "The address to serve the API on (default :$PORT)")
	flagSet.BoolVar(&f.AutoMigrate, "auto-migrate", f.AutoMigrate, "Migrate the database schema on startup")
	flagSet.StringVar(&f.SweepSchedule, "sweep-schedule", f.SweepSchedule, "Cron schedule for removing orphaned staging files")
	flagSet.DurationVar(&f.ShutdownTimeout, "shutdown-timeout", f.ShutdownTimeout, "How long to wait for in-flight requests on shutdown")
}

func NewServeCommand() *cobra.Command {
	f := NewServerFlags()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return errors.WithMessage(err, "invalid configuration")
			}
			if f.ListenAddr == "" {
				f.ListenAddr = ":" + cfg.Port
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mgr := f.DBFlags.Manager(cfg)
			defer mgr.Close()
			if f.AutoMigrate {
				if err := mgr.Migrate(ctx); err != nil {
					return errors.WithMessage(err, "could not migrate db")
				}
			} else if _, err := mgr.Acquire(ctx); err != nil {
				return errors.WithMessage(err, "couldn't connect to db")
			}

			var lawyerCache cache.Cache
			if cfg.RedisURL != "" {
				rc, err := redis.NewRedisCache(cfg.RedisURL)
				if err != nil {
					return errors.WithMessage(err, "couldn't get cache client")
				}
				defer rc.Close()
				if err := rc.Ping(); err != nil {
					log.WithError(err).Warn("redis unreachable, lawyer directory will not be cached")
				} else {
					lawyerCache = rc
				}
			}

			publisher := events.New(cfg.KafkaBrokers, cfg.KafkaTopic)
			defer publisher.Close()

			provider, err := storage.NewProvider(ctx, cfg)
			if err != nil {
				return errors.WithMessage(err, "couldn't set up storage provider")
			}
			relay := storage.NewRelay(provider, cfg.StagingDir, log.WithField("component", "relay"))

			sweeper := storage.NewSweeper(cfg.StagingDir, cfg.StagingMaxAge, log.WithField("component", "sweeper"))
			if err := sweeper.Start(f.SweepSchedule); err != nil {
				return errors.WithMessage(err, "invalid sweep schedule")
			}
			defer sweeper.Stop()

			logger := log.StandardLogger()
			userStore := users.NewStore(mgr)
			usersSvc := users.NewService(userStore, lawyerCache, logger)
			consultSvc := consultations.NewService(consultations.NewStore(mgr), userStore, publisher, cfg.MeetingLink, logger)
			chatSvc := chat.NewService(chat.NewStore(mgr), consultSvc, userStore, relay, logger)
			aiSvc := ai.NewService(ai.NewClient(cfg.AIBaseURL, cfg.AITimeout, logger), ai.NewHistory(mgr), logger)

			var uploadsDir string
			if local, ok := provider.(*storage.Local); ok {
				uploadsDir = local.Root()
			}

			app := server.New(server.Deps{
				Config:   cfg,
				DB:       mgr,
				Verifier: auth.NewVerifier(cfg.JWTSecret, cfg.AuthDisabled),
				Handlers: server.Handlers{
					Users:         users.NewHandler(usersSvc, consultSvc),
					Consultations: consultations.NewHandler(consultSvc),
					Chat:          chat.NewHandler(chatSvc),
					AI:            ai.NewHandler(aiSvc),
					Payments:      payments.NewHandler(mgr, cfg, publisher, logger),
				},
				UploadsDir: uploadsDir,
				Logger:     logger,
			})

			if cfg.AuthDisabled {
				log.Warn("token verification is disabled, dev identity headers are trusted")
			}

			errCh := make(chan error, 1)
			go func() {
				log.WithFields(log.Fields{
					"addr":    f.ListenAddr,
					"storage": provider.Name(),
					"env":     cfg.Env,
				}).Info("server listening")
				errCh <- app.Listen(f.ListenAddr)
			}()

			select {
			case err := <-errCh:
				return errors.WithMessage(err, "server stopped")
			case <-ctx.Done():
			}

			log.Info("shutting down")
			if err := app.ShutdownWithTimeout(f.ShutdownTimeout); err != nil {
				log.WithError(err).Warn("unclean shutdown")
			}
			return nil
		},
	}

	f.BindFlags(cmd.Flags())
	return cmd
}
