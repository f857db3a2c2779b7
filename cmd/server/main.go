package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Appitzr-Project/Backend-Profile/internal/app"
	"github.com/Appitzr-Project/Backend-Profile/internal/config"
	"github.com/Appitzr-Project/Backend-Profile/internal/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := logger.New(cfg.Log)
	log.WithField("env", cfg.Env).Info("starting profile service")

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	initCtx, initCancel := context.WithTimeout(rootCtx, 30*time.Second)
	application, err := app.New(initCtx, cfg, log)
	initCancel()
	if err != nil {
		log.WithError(err).Error("failed to initialize application")
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           application.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout + 20*time.Second,
		WriteTimeout:      cfg.RequestTimeout + 20*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ServerAddress).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	exitCode := 0
	select {
	case <-rootCtx.Done():
		log.Info("shutdown requested")
	case err := <-serveErrCh:
		if err != nil {
			log.WithError(err).Error("http server failed")
			exitCode = 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("closing application resources")
	}
	log.Info("stopped")

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
