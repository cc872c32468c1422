package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/yogiovic/sreality-cron-querybot/config"
	"github.com/yogiovic/sreality-cron-querybot/httputil"
	"github.com/yogiovic/sreality-cron-querybot/logging"
	"github.com/yogiovic/sreality-cron-querybot/notify"
	"github.com/yogiovic/sreality-cron-querybot/scheduler"
	"github.com/yogiovic/sreality-cron-querybot/scraper"
	"github.com/yogiovic/sreality-cron-querybot/services"
	"github.com/yogiovic/sreality-cron-querybot/storage"
	"github.com/yogiovic/sreality-cron-querybot/watchdog"
)

var (
	crawlURL  = flag.String("crawl", "", "Run one crawl for the given search URL and exit")
	maxPages  = flag.Int("max-pages", 50, "Page cap for the one-shot crawl")
	artifacts = flag.Bool("artifacts", false, "Save crawl artifacts for the one-shot crawl")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting sreality-cron-querybot...")
	log.Printf("Site profile: %s (%s)", cfg.Site.Name, cfg.Site.BaseURL)

	clients := httputil.NewClients(cfg.Crawl.FetchTimeout)
	crawler := scraper.NewCrawler(scraper.NewFetcher(clients.Scraping), cfg.Site)

	// One-shot crawl mode
	if *crawlURL != "" {
		var store storage.ArtifactStore
		if *artifacts {
			store = storage.NewDirArtifactStore(cfg.Crawl.ArtifactDir)
		}
		runCrawl(crawler, *crawlURL, *maxPages, store)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, sqliteStore, cleanup, err := buildRegistry(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to set up registry: %v", err)
	}
	defer cleanup()

	dispatcher := notify.NewDispatcher(
		notify.NewWebhookSink(clients.Webhook),
		cfg.Notify.BatchSize,
		cfg.Notify.BatchDelay,
	)

	orchestrator := watchdog.NewOrchestrator(cfg, crawler, registry, dispatcher)
	// Run history goes to the registry's own backend when it can hold it
	// (sqlite, postgres); the file backend falls back to the sqlite store.
	if recorder, ok := registry.(watchdog.RunRecorder); ok {
		orchestrator.SetRunRecorder(recorder)
	} else {
		orchestrator.SetRunRecorder(sqliteStore)
	}
	orchestrator.SetArtifactFactory(artifactFactory(ctx, cfg))

	health := services.NewHealthServer(cfg.HealthPort)
	health.Start(ctx)

	sched := scheduler.New(cfg, orchestrator, sqliteStore)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	cancel()
	log.Println("Goodbye!")
}

// buildRegistry wires the configured registry backend. The SQLite store is
// opened even for the file and postgres backends: it still carries the
// check-run history and the command queue.
func buildRegistry(ctx context.Context, cfg *config.Config) (storage.Registry, *storage.SQLiteStore, func(), error) {
	sqliteStore, err := storage.NewSQLiteStore(cfg.Registry.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	switch cfg.Registry.Backend {
	case "sqlite":
		log.Printf("Registry backend: sqlite (%s)", cfg.Registry.DBPath)
		return sqliteStore, sqliteStore, func() { sqliteStore.Close() }, nil
	case "postgres":
		pgStore, err := storage.NewPostgresStore(ctx, cfg.Registry.DatabaseURL)
		if err != nil {
			sqliteStore.Close()
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Println("Registry backend: postgres")
		return pgStore, sqliteStore, func() { pgStore.Close(); sqliteStore.Close() }, nil
	default:
		log.Printf("Registry backend: file (%s)", cfg.Registry.Path)
		registry := storage.NewFileRegistry(cfg.Registry.Path)
		return registry, sqliteStore, func() { sqliteStore.Close() }, nil
	}
}

// artifactFactory builds per-watchdog artifact stores. Each slug gets its
// own prefix or directory so concurrent scans never mix artifacts; when
// the slugged S3 store cannot be built the factory falls back to a local
// directory rather than writing under the bucket root.
func artifactFactory(ctx context.Context, cfg *config.Config) func(slug string) storage.ArtifactStore {
	local := func(slug string) storage.ArtifactStore {
		return storage.NewDirArtifactStore(filepath.Join(cfg.Crawl.ArtifactDir, slug))
	}
	if cfg.S3.Bucket == "" {
		return local
	}
	return func(slug string) storage.ArtifactStore {
		store, err := storage.NewS3ArtifactStore(ctx, cfg.S3, slug)
		if err != nil {
			log.Printf("Warning: S3 artifact store for %s unavailable, using local dir: %v", slug, err)
			return local(slug)
		}
		return store
	}
}

func runCrawl(crawler *scraper.Crawler, url string, maxPages int, store storage.ArtifactStore) {
	listings, err := crawler.Crawl(context.Background(), url, maxPages, store)
	if err != nil {
		log.Printf("Crawl stopped early: %v (%d listings collected)", err, len(listings))
	}

	fmt.Println("\nAll found results:")
	for i, l := range listings {
		fmt.Printf("%d. %s | price=%s | %s\n", i+1, l.Name(), l.PriceLabel(), l.URL())
	}
	fmt.Printf("\nTotal: %d listings\n", len(listings))
}
