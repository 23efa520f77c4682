package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"musobuddy/core/cache"
	"musobuddy/core/config"
	"musobuddy/core/constants"
	"musobuddy/core/database"
	"musobuddy/core/logger"
	"musobuddy/core/tasks"
	"musobuddy/modules/booking"
	"musobuddy/modules/calendarsync"
)

// Run boots the HTTP server, the background worker and the scheduler,
// then blocks until a shutdown signal.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.JSON)

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	c, err := cache.NewCache(cfg.Redis)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer c.Close()

	taskClient := tasks.NewClient(cfg.Redis)
	defer taskClient.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.CORS())

	e.GET("/health", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	bookingSvc := booking.Init(e, db, c)
	syncModule := calendarsync.Init(e, db, c, taskClient, bookingSvc, cfg)

	// Local deletes propagate to the external calendar through the
	// observer; sync-initiated deletes bypass it.
	bookingSvc.SetDeletionObserver(syncModule.Sync)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	mux := asynq.NewServeMux()
	syncModule.Worker.Register(mux)

	worker := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 5})

	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register(cfg.Sync.ChannelRenewCron, tasks.NewRenewChannelsTask()); err != nil {
		return fmt.Errorf("register channel renewal schedule: %w", err)
	}
	if _, err := scheduler.Register(cfg.Sync.PeriodicSyncCron, tasks.NewPeriodicSyncTask()); err != nil {
		return fmt.Errorf("register periodic sync schedule: %w", err)
	}

	errCh := make(chan error, 3)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("Server:Run:HTTP", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("Server:Run:Worker")
		if err := worker.Run(mux); err != nil {
			errCh <- fmt.Errorf("task worker: %w", err)
		}
	}()
	go func() {
		logger.Info("Server:Run:Scheduler")
		if err := scheduler.Run(); err != nil {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("Server:Run:Shutdown", "signal", sig.String())
	}

	scheduler.Shutdown()
	worker.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server:Run:Shutdown:Error", "error", err)
		return err
	}

	logger.Info("Server:Run:Stopped")
	return nil
}
