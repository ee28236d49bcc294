package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yuditriaji/restopos-backend/internal/branch"
	"github.com/yuditriaji/restopos-backend/internal/router"
	"github.com/yuditriaji/restopos-backend/pkg/config"
	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/email"
	"github.com/yuditriaji/restopos-backend/pkg/logger"
	"github.com/yuditriaji/restopos-backend/pkg/notify"
	"github.com/yuditriaji/restopos-backend/pkg/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.InitLogger(logger.LogConfig{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: cfg.ServiceName,
		File:        cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("Failed to initialise logger: %v", err)
	}
	defer zlog.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zlog.Fatal("failed to run migrations", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Notification channels; a channel without credentials is left out
	var notifiers []notify.Notifier
	if cfg.SMTP.EmailEnabled() {
		notifiers = append(notifiers, notify.NewEmailNotifier(email.NewEmailService(cfg.SMTP)))
	} else {
		zlog.Warn("SMTP not configured, e-mail notifications disabled")
	}
	if wa := notify.NewWhatsAppNotifier(ctx, cfg.WhatsApp); wa != nil {
		notifiers = append(notifiers, wa)
	} else {
		zlog.Warn("WhatsApp token not configured, chat notifications disabled")
	}
	dispatcher := notify.NewDispatcher(db, cfg.Notify, notifiers...)
	dispatcher.Start(ctx)

	tokens := token.NewManager(cfg.Auth.JWTSecret, cfg.Auth.ServiceTokenSecret, cfg.Auth.TokenTTL)

	r := router.New(router.Deps{
		DB:           db,
		Tokens:       tokens,
		Outbox:       dispatcher,
		Rates:        branch.NewMockRates(),
		ServiceName:  cfg.ServiceName,
		CORSOrigins:  cfg.CORSOrigins,
		CookieSecure: cfg.Auth.CookieSecure,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}
