package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/npezzotti/go-cliproom/internal/api"
	"github.com/npezzotti/go-cliproom/internal/blob"
	"github.com/npezzotti/go-cliproom/internal/config"
	"github.com/npezzotti/go-cliproom/internal/server"
	"github.com/npezzotti/go-cliproom/internal/stats"
	"github.com/npezzotti/go-cliproom/internal/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger := cfg.NewLogger(os.Stderr)

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	hub := server.NewHub(logger, statsUpdater)
	go hub.Run()

	rooms := store.NewStore(logger, statsUpdater, cfg.RoomTTL, store.WithNotifier(hub))

	reaper := store.NewReaper(logger, rooms, cfg.ReapInterval)
	go reaper.Run()

	media, err := blob.NewDiskStore(logger, cfg.UploadDir, cfg.MediaURL)
	if err != nil {
		logger.WithError(err).Fatal("upload dir")
	}

	srv := api.NewCliproomApp(mux, logger, rooms, hub, media, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.WithField("signal", sig.String()).Info("received signal")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server")
		}
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.WithError(err).Fatal("HTTP server shutdown")
	}

	if err := reaper.Shutdown(shutDownCtx); err != nil {
		logger.WithError(err).Fatal("reaper shutdown")
	}

	logger.Info("shutting down hub...")
	if err := hub.Shutdown(shutDownCtx); err != nil {
		logger.WithError(err).Fatal("hub shutdown")
	}

	logger.Info("shutdown complete")
}
