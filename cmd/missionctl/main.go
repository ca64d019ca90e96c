// missionctl serves the Mission Control usage analytics API for a local
// agent-orchestration gateway.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/openclaw/missionctl/internal/api"
	"github.com/openclaw/missionctl/internal/config"
	"github.com/openclaw/missionctl/internal/gateway"
	"github.com/openclaw/missionctl/internal/history"
	"github.com/openclaw/missionctl/internal/logging"
	"github.com/openclaw/missionctl/internal/pricing"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	logging.Setup(cfg.Debug, cfg.LoggingToFile, cfg.LogDir)

	store, err := history.NewStore(cfg.HistoryDir)
	if err != nil {
		log.WithError(err).Fatal("failed to open session history store")
	}
	defer store.Close()

	cleaner := history.NewRetentionCleaner(store, cfg.HistoryRetentionDays)
	cleaner.Start()
	defer cleaner.Stop()

	var catalog *pricing.CatalogFetcher
	if cfg.PricingCatalogURL != "" {
		catalog = pricing.NewCatalogFetcher(cfg.PricingCatalogURL, 0)
	}

	workspace := config.NewWorkspaceFile(cfg.WorkspaceDir)
	defer workspace.Close()

	client := gateway.NewClient(cfg.GatewayURL, time.Duration(cfg.GatewayTimeoutMs)*time.Millisecond)

	server := api.NewServer(cfg, client, store, cleaner, catalog, workspace)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Fatal("server exited")
		}
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
		}
	}
}
