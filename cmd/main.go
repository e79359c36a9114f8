package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"heating_bridge/internal/clock"
	"heating_bridge/internal/config"
	"heating_bridge/internal/devcache"
	"heating_bridge/internal/handlers"
	"heating_bridge/internal/logger"
	"heating_bridge/internal/poller"
	"heating_bridge/internal/remote"
	"heating_bridge/internal/scheduler"
	"heating_bridge/internal/server"
	"heating_bridge/internal/service"
	"heating_bridge/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// load configs/config.yml
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.LogLevel)

	// wire dependencies; each component receives its collaborators
	// explicitly, the singletons live here for the process lifetime
	clk := clock.NewSystem()
	client := remote.NewClient(cfg.Remote.BaseURL)
	sessions := session.NewManager(client, clk, log)
	cache := devcache.New(clk, cfg.OptimisticPreserve())
	sched := scheduler.New(clk, log, scheduler.Tuning{
		DebounceWindow: cfg.DebounceWindow(),
		InterOpDelay:   cfg.InterOpDelay(),
	})

	creds := session.Credentials{
		Username:      cfg.Remote.Username,
		Password:      cfg.Remote.Password,
		ApplicationID: cfg.Remote.ApplicationID,
	}
	p := poller.New(client, sessions, cache, cfg.OverrideRules, creds, clk, log)
	if err := p.RegisterTasks(sched, cfg.Polling); err != nil {
		log.Fatalw("failed to register tasks", "err", err)
	}

	services := service.NewService(cfg, sched, cache)
	apiHandler := handlers.NewHandler(services, log)

	// start the recurring tasks
	sched.StartAllTasks()
	log.Infow("scheduler started", "tasks", len(sched.GetAllTaskStatuses()))

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(sched, srv, log)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals, stops the recurring
// tasks, and drains the HTTP server.
func waitForShutdown(sched *scheduler.Scheduler, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down...")

	// cancel pending timers and discard the queue; an in-flight
	// operation runs to completion
	sched.StopAllTasks()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
