package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fawkes-platform/smart-alerting/internal/api"
	"github.com/fawkes-platform/smart-alerting/internal/api/handlers"
	"github.com/fawkes-platform/smart-alerting/internal/config"
	"github.com/fawkes-platform/smart-alerting/internal/correlation"
	"github.com/fawkes-platform/smart-alerting/internal/processor"
	"github.com/fawkes-platform/smart-alerting/internal/routing"
	"github.com/fawkes-platform/smart-alerting/internal/suppression"
	"github.com/fawkes-platform/smart-alerting/pkg/cache"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting smart-alerting", "environment", cfg.Environment)

	// Redis holds group state, suppression bookkeeping and counters
	kv, err := cache.NewRedisStore(cfg.Cache.Addr, cfg.Cache.DB, cfg.Cache.Password)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", "addr", cfg.Cache.Addr, "error", err)
	}
	logger.Info("Redis connected", "addr", cfg.Cache.Addr)

	// Suppression rules from disk, optionally hot-reloaded
	ruleStore := suppression.NewRuleStore(cfg.Suppression.RulesDir, logger)
	if err := ruleStore.Load(); err != nil {
		logger.Fatal("Failed to load suppression rules", "dir", cfg.Suppression.RulesDir, "error", err)
	}

	stopWatch := make(chan struct{})
	if cfg.Suppression.WatchRules {
		go func() {
			if err := ruleStore.Watch(stopWatch); err != nil {
				logger.Error("Rules watcher stopped", "error", err)
			}
		}()
	}

	// Pipeline stages
	correlator := correlation.New(kv, logger, cfg.CorrelationWindow(), cfg.Correlation.RecentGroupsLimit)
	suppressor := suppression.NewEngine(kv, ruleStore, logger, cfg.Suppression.FlappingThreshold, cfg.FlappingWindow())

	catalog := routing.NewBackstageCatalog(cfg.Routing.BackstageURL, logger)
	var paging, slack, mattermost routing.Sink
	if cfg.Routing.PagerDuty.RoutingKey != "" {
		paging = routing.NewPagerDutySink(cfg.Routing.PagerDuty.RoutingKey, cfg.Routing.PagerDuty.EventsURL)
	}
	if cfg.Routing.Slack.WebhookURL != "" {
		slack = routing.NewSlackSink(cfg.Routing.Slack.WebhookURL)
	}
	if cfg.Routing.Mattermost.WebhookURL != "" {
		mattermost = routing.NewMattermostSink(cfg.Routing.Mattermost.WebhookURL)
	}
	router := routing.NewRouter(catalog, logger, paging, slack, mattermost)

	proc := processor.New(correlator, suppressor, router, kv, logger)

	stream := handlers.NewWebSocketHandler(logger)
	proc.AddListener(stream)
	proc.Start()

	// API server
	apiServer := api.NewServer(cfg, logger, kv, correlator, ruleStore, proc, stream)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")

		close(stopWatch)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "error", err)
		}
		if err := proc.Stop(shutdownCtx); err != nil {
			logger.Error("Processor shutdown incomplete", "error", err)
		}
	}()

	if err := apiServer.Start(); err != nil {
		logger.Fatal("Server failed", "error", err)
	}

	logger.Info("smart-alerting shutdown complete")
}
