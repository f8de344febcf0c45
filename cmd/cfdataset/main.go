package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sbasu-dev/cfdataset/internal/codeforces"
	"github.com/sbasu-dev/cfdataset/internal/collector"
	"github.com/sbasu-dev/cfdataset/internal/config"
	"github.com/sbasu-dev/cfdataset/internal/logger"
	"github.com/sbasu-dev/cfdataset/internal/storage"
	"github.com/sbasu-dev/cfdataset/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	handle     = flag.String("handle", "", "Collect a single handle instead of the pending queue")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: %s [flags] <command>

Commands:
  contests    Fetch the contest list and refresh the local catalog
  users       Discover user handles from recent contest standings
  collect     Build the enriched dataset for pending users (or -handle)
  export      Rebuild the combined dataset CSV from collected rows

Flags:
`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	client := codeforces.NewClient(
		cfg.Codeforces.BaseURL,
		cfg.Codeforces.Timeout,
		codeforces.ClientConfig{
			MaxRetries:        cfg.Codeforces.MaxRetries,
			RetryDelayBase:    cfg.Codeforces.RetryDelayBase,
			RequestsPerSecond: cfg.Codeforces.RequestsPerSecond,
			Burst:             cfg.Codeforces.Burst,
		},
	)

	var notifier collector.Notifier
	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
		notifier = telegramClient
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	coll := collector.New(client, store, notifier, collector.Config{
		Workers:           cfg.Collector.Workers,
		DiscoveryContests: cfg.Collector.DiscoveryContests,
		StandingsCount:    cfg.Collector.StandingsCount,
		UserLimit:         cfg.Collector.UserLimit,
		DatasetDir:        cfg.Storage.DatasetDir,
		ContestsCSV:       cfg.Storage.ContestsCSV,
		UsersCSV:          cfg.Storage.UsersCSV,
		CombinedCSV:       cfg.Storage.CombinedCSV,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if err := run(ctx, coll, command); err != nil {
		logger.Fatal("%v", err)
	}
}

func run(ctx context.Context, coll *collector.Collector, command string) error {
	switch command {
	case "contests":
		cat, err := coll.SyncContests(ctx)
		if err != nil {
			return fmt.Errorf("contest sync failed: %w", err)
		}
		logger.Info("Catalog now lists %d contests", cat.Len())
		return nil

	case "users":
		cat, err := coll.Catalog(ctx)
		if err != nil {
			return err
		}
		handles, err := coll.DiscoverUsers(ctx, cat)
		if err != nil {
			return fmt.Errorf("user discovery failed: %w", err)
		}
		logger.Info("User registry now holds %d handles", len(handles))
		return nil

	case "collect":
		var handles []string
		if *handle != "" {
			handles = []string{*handle}
		}
		stats, err := coll.Run(ctx, handles)
		if err != nil {
			return fmt.Errorf("collection run failed: %w", err)
		}
		logger.Info("Collected %d users (%d failed) into %d dataset rows",
			stats.Users, stats.Failed, stats.Rows)
		if _, err := coll.ExportDataset(); err != nil {
			return fmt.Errorf("dataset export failed: %w", err)
		}
		return nil

	case "export":
		n, err := coll.ExportDataset()
		if err != nil {
			return fmt.Errorf("dataset export failed: %w", err)
		}
		logger.Info("Combined dataset holds %d rows", n)
		return nil

	default:
		return fmt.Errorf("unknown command %q (expected contests, users, collect, or export)", command)
	}
}
