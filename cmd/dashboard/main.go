package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speedwagon-io/weatherdash/internal/archive"
	"github.com/speedwagon-io/weatherdash/internal/config"
	"github.com/speedwagon-io/weatherdash/internal/device"
	"github.com/speedwagon-io/weatherdash/internal/export"
	"github.com/speedwagon-io/weatherdash/internal/lib/logger/sl"
	"github.com/speedwagon-io/weatherdash/internal/poller"
	"github.com/speedwagon-io/weatherdash/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dryRun := flag.Bool("dry-run", false, "log exported frames instead of sending")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting weather dashboard",
		slog.String("env", cfg.Env),
		slog.String("device_url", cfg.Device.BaseURL),
		slog.Duration("default_interval", cfg.Refresh.Default),
		slog.Bool("dry_run", *dryRun),
	)

	if !poller.ValidInterval(cfg.Refresh.Default) {
		log.Error("default refresh interval is not selectable",
			slog.Duration("interval", cfg.Refresh.Default))
		os.Exit(1)
	}

	client := device.NewClient(cfg.Device.BaseURL, cfg.Device.Timeout)

	var arch *archive.SQLiteArchive
	if cfg.Archive.Enabled {
		var err error
		arch, err = archive.NewSQLiteArchive(log, cfg.Archive.Path)
		if err != nil {
			log.Error("failed to create archive", sl.Err(err))
			os.Exit(1)
		}
		log.Info("archive enabled", slog.String("path", cfg.Archive.Path))
	}

	var exporter poller.Exporter
	if *dryRun {
		exporter = export.NewLogExporter(log)
		log.Info("dry-run mode: frames will be logged instead of exported")
	} else if cfg.Export.Enabled {
		if cfg.Export.URL == "" {
			log.Error("export enabled but export.url is empty")
			os.Exit(1)
		}
		exporter = export.NewHTTPExporter(log, &cfg.Export)
		log.Info("export enabled", slog.String("url", cfg.Export.URL))
	}

	store := poller.NewStore()

	var archiver poller.Archiver
	if arch != nil {
		archiver = arch
	}
	p := poller.New(log, client, store, archiver, exporter, cfg.Refresh.Default, cfg.Device.Timeout)

	var history server.History
	if arch != nil {
		history = arch
	}
	srv, err := server.NewServer(log, cfg.HTTP.Address, cfg.Device.BaseURL, store, p, history)
	if err != nil {
		log.Error("failed to create server", sl.Err(err))
		os.Exit(1)
	}

	srv.AddChecker(server.NewPollerHealthChecker(store))
	if arch != nil {
		srv.AddChecker(server.NewArchiveHealthChecker(arch.Count))
	}

	if err := srv.Start(); err != nil {
		log.Error("failed to start server", sl.Err(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	if arch != nil {
		go cleanupLoop(ctx, log, arch, cfg.Archive.MaxAge)
	}

	p.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop server", sl.Err(err))
	}

	client.Close()

	if arch != nil {
		if err := arch.Close(); err != nil {
			log.Error("failed to close archive", sl.Err(err))
		}
	}

	log.Info("dashboard stopped")
}

func cleanupLoop(ctx context.Context, log *slog.Logger, arch *archive.SQLiteArchive, maxAge time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := arch.Cleanup(ctx, maxAge); err != nil {
				log.Error("failed to cleanup archive", sl.Err(err))
			}
		}
	}
}
