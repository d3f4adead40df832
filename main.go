package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tombola/app"
	"tombola/config"
	"tombola/logger"
	"tombola/metrics"
	"tombola/web/controller"
	"tombola/web/router"
)

const shutdownTimeout = 10 * time.Second

func main() {
	conf, err := config.Load()

	if err != nil {
		log.Fatal(err)
	}

	logfile := fmt.Sprintf("tombola_%s.log", time.Now().Format("2006-01-02_15-04-05"))

	logman, err := logger.NewLogger(filepath.Join(conf.LogFolder, logfile), conf.LogLevel)

	if err != nil {
		log.Fatal(err)
	}

	met := metrics.New()
	svc := app.NewApp(config.NewStore(conf), logman, met)

	ctrl := controller.NewController(svc, logman)
	r := router.InitRouter(ctrl, met.Handler(), logman)

	srv := &http.Server{Addr: ":" + conf.Port, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logman.LogError(err, "Error starting server")
			os.Exit(1)
		}
	}()

	logman.LogInfo("Starting server", "port", conf.Port, "environment", conf.Environment, "mode", conf.Recording.Mode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logman.LogInfo("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logman.LogError(err, "Error shutting down server")
	}

	svc.Shutdown(ctx)
	logman.LogInfo("server stopped")
}
