package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	"github.com/markit/attendance/internal/accounts"
	"github.com/markit/attendance/internal/audit"
	"github.com/markit/attendance/internal/auth"
	"github.com/markit/attendance/internal/config"
	"github.com/markit/attendance/internal/database"
	auditstore "github.com/markit/attendance/internal/database/audit"
	eventstore "github.com/markit/attendance/internal/database/events"
	"github.com/markit/attendance/internal/database/requests"
	"github.com/markit/attendance/internal/database/users"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/events"
	http_controllers "github.com/markit/attendance/internal/http"
	"github.com/markit/attendance/internal/identity"
	"github.com/markit/attendance/internal/logger"
	"github.com/markit/attendance/internal/mail"
	"github.com/markit/attendance/internal/scheduler"
	"github.com/markit/attendance/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(handler http.Handler, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		// service connections
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Dur("timeout", timeout).Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown")
	}

	// Stop background work once no request can enqueue more
	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Info().Msg("Server exiting")
}

func Run(cfg *config.Config, version string) {
	flush := logger.Init(cfg.Logging, cfg.Global)
	defer flush()

	displayAppname(cfg.Global.AppName)
	log.Info().Str("version", version).Str("environment", cfg.Global.Environment).Msg("Starting")

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	userRepo := users.NewRepository(db.DB)
	provider, err := identity.NewProvider(userRepo, cfg.Identity)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize identity provider")
	}

	sqlDB, err := db.SQL()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get SQL DB for sessions")
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize session manager")
	}

	csrfSecret, err := sessionSecret(cfg.Auth.SessionSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate CSRF secret")
	}

	sender, err := mail.NewSender(cfg.Mail, cfg.Global.AppName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize mail sender")
	}

	// Emails go through the task queue when it is enabled, otherwise inline.
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, cfg.Tasks)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize task queue")
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing task client")
			}
		}()

		taskClient.Register(tasks.NewSendEmailQueue(sender))

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}
	mailer := tasks.NewMailer(taskClient, sender, cfg.Global.AppName, cfg.Mail.FrontendBaseURL)

	accountService := accounts.NewService(requests.NewRepository(db.DB), provider, cfg.Identity.BcryptCost)
	accountService.SetNotifier(mailer)
	eventService := events.NewService(eventstore.NewRepository(db.DB))
	auditService := audit.NewService(auditstore.NewRepository(db.DB))

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(cfg.Scheduler, provider, eventService)
		if cfg.Audit.Retention > 0 {
			sched.Add("purge_audit_events", cfg.Scheduler.AuditPurgeSchedule, func(ctx context.Context) (int64, error) {
				return auditService.DeleteOldEvents(ctx, cfg.Audit.Retention)
			})
		}
		if err := sched.Start(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	counts, err := userRepo.CountByRole(context.Background())
	if err == nil && counts[entities.RoleAdmin] == 0 {
		log.Warn().Msg("No admin account found. Create one with the create-user command.")
	}

	router, err := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:       db,
		Accounts:       accountService,
		Events:         eventService,
		Users:          userRepo,
		Audit:          auditService,
		Verifier:       auth.NewVerifier(provider, mailer),
		SessionManager: sessionManager,
		AuthConfig:     cfg.Auth,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		AppName:        cfg.Global.AppName,
		Version:        version,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}

	onShutdown := func(ctx context.Context) {
		router.Close()
		if sched != nil {
			sched.Stop()
		}
		auditService.Wait()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}

// sessionSecret decodes a configured hex secret, falls back to the raw bytes,
// and generates an ephemeral one when nothing is configured.
func sessionSecret(configured string) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}

	generated, err := identity.GenerateSecret()
	if err != nil {
		return nil, err
	}
	log.Warn().Msg("AUTH_SESSION_SECRET not set, generated an ephemeral CSRF secret")
	return hex.DecodeString(generated)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
