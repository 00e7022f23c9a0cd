package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coach-sync-api/core/cache"
	"coach-sync-api/core/config"
	"coach-sync-api/core/controller"
	"coach-sync-api/core/database"
	"coach-sync-api/core/logger"
	"coach-sync-api/core/middleware"
	"coach-sync-api/core/utils"
	"coach-sync-api/core/worker"
	"coach-sync-api/modules/calendar"
	"coach-sync-api/modules/message"
	"coach-sync-api/modules/reminder"
	"coach-sync-api/modules/session"
	sessionRepository "coach-sync-api/modules/session/repository"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 15 * time.Second

func Run() error {
	cfg, err := config.Init()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	db, err := database.InitDB(database.DatabaseConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	store := newCache(cfg)
	defer store.Close()

	cipher, err := utils.NewTokenCipher(cfg.Security.TokenEncryptionKey)
	if err != nil {
		return fmt.Errorf("token cipher: %w", err)
	}
	if cipher == nil {
		logger.Warn("Server:Init:TokenEncryptionDisabled")
	}

	e := newEcho()
	mw := middleware.NewMiddleware()
	api := e.Group("/api/v1")

	sessions := sessionRepository.NewSessionRepository(db)
	messages := message.Init(api, db, mw)
	reminders := reminder.Init(cfg, db, sessions, messages)
	cal := calendar.Init(api, cfg, db, store, cipher, sessions, reminders, mw)
	session.Init(api, sessions, cal.Queue, reminders, mw)

	var w *worker.Worker
	if cfg.Worker.Enabled {
		w = newWorker(cfg, cal, reminders)
		if n, err := cal.Queue.RequeueStaleJobs(context.Background()); err != nil {
			logger.Error("Server:Init:RequeueStaleJobsError", "error", err)
		} else if n > 0 {
			logger.Info("Server:Init:RequeuedStaleJobs", "count", n)
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Shutdown()
	}

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("Server:Start", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Server:Shutdown:Signal", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(ctx)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = controller.NewRequestValidator()
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Warn("HTTP:Request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String(), "error", v.Error)
				return nil
			}
			logger.Info("HTTP:Request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String())
			return nil
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return e
}

// newCache falls back to an in-process store when redis is unreachable. OAuth state
// then only survives on a single instance.
func newCache(cfg *config.Config) cache.Cache {
	store, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("Server:Init:RedisUnavailable", "error", err)
		return cache.NewMemoryCache()
	}
	return store
}
