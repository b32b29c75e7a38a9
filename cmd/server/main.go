package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/yukikurage/taskwise/internal/auth"
	"github.com/yukikurage/taskwise/internal/calendar"
	"github.com/yukikurage/taskwise/internal/config"
	"github.com/yukikurage/taskwise/internal/constants"
	"github.com/yukikurage/taskwise/internal/database"
	"github.com/yukikurage/taskwise/internal/googleauth"
	"github.com/yukikurage/taskwise/internal/handlers"
	"github.com/yukikurage/taskwise/internal/logging"
	"github.com/yukikurage/taskwise/internal/notify"
	"github.com/yukikurage/taskwise/internal/realtime"
	"github.com/yukikurage/taskwise/internal/repository"
	"github.com/yukikurage/taskwise/internal/services"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "taskwise",
		Short:   "TaskWise - shared task management API",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logging.New(cfg.LogLevel, cfg.LogFile)

			db, err := database.Connect(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeDB(db)

			return database.Migrate(db, log)
		},
	}
}

func serve() error {
	// Load configuration
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFile)

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Connect to database
	db, err := database.Connect(context.Background(), cfg, log)
	if err != nil {
		return err
	}

	// Run migrations
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)

	// Google OAuth clients, one per integration
	calendarTokens := googleauth.NewTokenManager(
		googleauth.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL,
			googleauth.ScopeCalendarEvents, googleauth.ScopeUserEmail),
		constants.IntegrationGoogleCalendar, credentialRepo, log)
	systemEmailTokens := googleauth.NewTokenManager(
		googleauth.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.SystemEmailRedirectURL,
			googleauth.ScopeGmailSend, googleauth.ScopeUserEmail),
		constants.IntegrationSystemEmail, credentialRepo, log)

	calendarAdapter := calendar.NewAdapter(calendarTokens, cfg.CalendarID, loc, log)

	// Outbound email
	var mailer notify.Mailer
	var mailbox handlers.SystemMailbox
	switch cfg.EmailProvider {
	case "gmail":
		gmail := notify.NewGmailMailer(systemEmailTokens, cfg.EmailFromName)
		mailer, mailbox = gmail, gmail
	case "resend":
		mailer = notify.NewResendMailer(cfg.ResendAPIKey, notify.Sender{Name: cfg.EmailFromName, Email: cfg.EmailFrom})
	default:
		mailer = notify.NewLogMailer(log)
	}
	notifier := notify.NewNotifier(mailer, log)
	log.WithField("provider", mailer.Name()).Info("Email provider selected")

	// Realtime fan-out
	hub := realtime.NewHub(log, cfg.AppURL)
	var publisher realtime.Publisher = hub
	realtimeCtx, stopRealtime := context.WithCancel(context.Background())
	var redisClient *redis.Client
	if cfg.RealtimeRedis {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisHost + ":" + cfg.RedisPort})
		broadcaster := realtime.NewRedisBroadcaster(redisClient, realtime.DefaultChannel, hub, log)
		publisher = broadcaster
		go func() {
			if err := broadcaster.Serve(realtimeCtx, realtime.NewRetryBackOff()); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("Realtime subscriber stopped")
			}
		}()
	}

	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	// Initialize services
	taskService := services.NewTaskService(taskRepo, userRepo, calendarAdapter, notifier, publisher, log, cfg.AppURL)
	authService := services.NewAuthService(userRepo, verificationRepo, notifier, cfg.RegistrationEnabled, log)

	r, err := newRouter(routerDeps{
		cfg:         cfg,
		log:         log,
		db:          db,
		tokens:      tokens,
		users:       userRepo,
		auth:        handlers.NewAuthHandler(authService, tokens),
		tasks:       handlers.NewTaskHandler(taskService),
		calendar:    handlers.NewCalendarHandler(calendarTokens, calendarAdapter, taskRepo, cfg.AppURL, cfg.GoogleConfigured(), log),
		systemEmail: handlers.NewSystemEmailHandler(systemEmailTokens, mailbox, mailer.Name(), cfg.EmailFrom, cfg.AppURL, log),
		realtime:    handlers.NewRealtimeHandler(hub, log),
	})
	if err != nil {
		stopRealtime()
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		log.WithField("addr", srv.Addr).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			// Ordered: stop accepting requests, drop sockets, then release the stores.
			"taskwise": func(ctx context.Context) error {
				log.Info("Graceful shutdown initiated...")
				err := srv.Shutdown(ctx)
				err = errors.Join(err, hub.Close())
				stopRealtime()
				if redisClient != nil {
					err = errors.Join(err, redisClient.Close())
				}
				return errors.Join(err, closeDB(db))
			},
		},
	)

	exitCode := <-wait
	log.WithField("code", exitCode).Info("Server exited")
	os.Exit(exitCode)
	return nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
